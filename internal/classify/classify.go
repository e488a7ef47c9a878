// Package classify maps raw provider errors to a retry policy, the way the
// reference codebase's providers/errors.go classifies a FailoverReason from
// an error's text, simplified to the seven reasons and exact delays this
// project's provider actually needs (no multi-provider failover, since this
// server only ever talks to one provider family).
package classify

import (
	"strconv"
	"strings"
	"time"
)

// Reason is the classification bucket for a provider error.
type Reason string

const (
	ReasonContextOverflow Reason = "context_overflow"
	ReasonRateLimit       Reason = "rate_limit"
	ReasonAuth            Reason = "auth"
	ReasonBilling         Reason = "billing"
	ReasonTimeout         Reason = "timeout"
	ReasonOverloaded      Reason = "overloaded"
	ReasonUnknown         Reason = "unknown"
)

// Policy is the classification outcome: whether a failed call should be
// retried, and if so after how long.
type Policy struct {
	Reason     Reason
	Retryable  bool
	RetryDelay time.Duration
}

// rule is one row of the classification table: a set of case-insensitive
// substrings and the policy that applies when any of them match.
type rule struct {
	reason    Reason
	retryable bool
	delay     time.Duration
	triggers  []string
}

// table is evaluated in order; the first matching rule wins. Order matters
// because some triggers (e.g. "429") could plausibly appear in multiple
// contexts; context_overflow and auth are checked first since they're
// non-retryable and should never be masked by a looser later match.
var table = []rule{
	{
		reason:    ReasonContextOverflow,
		retryable: false,
		triggers:  []string{"request_too_large", "context length exceeded", "prompt is too long"},
	},
	{
		reason:    ReasonAuth,
		retryable: false,
		triggers:  []string{"401", "403", "unauthorized", "invalid api key"},
	},
	{
		reason:    ReasonBilling,
		retryable: false,
		triggers:  []string{"billing", "payment", "insufficient funds"},
	},
	{
		reason:    ReasonRateLimit,
		retryable: true,
		delay:     30 * time.Second,
		triggers:  []string{"rate limit", "429", "quota exceeded"},
	},
	{
		reason:    ReasonTimeout,
		retryable: true,
		delay:     5 * time.Second,
		triggers:  []string{"timeout", "504", "deadline exceeded"},
	},
	{
		reason:    ReasonOverloaded,
		retryable: true,
		delay:     10 * time.Second,
		triggers:  []string{"overloaded", "503", "service unavailable"},
	},
}

// Classify maps err's message to a Policy. A nil error classifies as
// ReasonUnknown/retryable; callers should not invoke Classify(nil) but the
// behavior is defined rather than panicking.
func Classify(err error) Policy {
	if err == nil {
		return Policy{Reason: ReasonUnknown, Retryable: true, RetryDelay: 2 * time.Second}
	}
	return ClassifyMessage(err.Error())
}

// ClassifyMessage classifies a raw error message directly, which the
// provider client uses for the `{status, body}` shape of a non-2xx HTTP
// response where "413 ... too large" needs to hit context_overflow even
// though "413" alone isn't one of its triggers.
func ClassifyMessage(msg string) Policy {
	lower := strings.ToLower(msg)

	if strings.Contains(lower, "413") && strings.Contains(lower, "too large") {
		return Policy{Reason: ReasonContextOverflow, Retryable: false}
	}

	for _, r := range table {
		for _, trigger := range r.triggers {
			if strings.Contains(lower, trigger) {
				return Policy{Reason: r.reason, Retryable: r.retryable, RetryDelay: r.delay}
			}
		}
	}

	return Policy{Reason: ReasonUnknown, Retryable: true, RetryDelay: 2 * time.Second}
}

// StatusCode augments message-based classification with an HTTP status
// code when one is available (the provider client always has one for
// non-2xx responses), since "504" appearing in a body is weaker evidence
// than the actual transport status.
func StatusCode(status int, body string) Policy {
	switch {
	case status == 401 || status == 403:
		return Policy{Reason: ReasonAuth, Retryable: false}
	case status == 429:
		return Policy{Reason: ReasonRateLimit, Retryable: true, RetryDelay: 30 * time.Second}
	case status == 402:
		return Policy{Reason: ReasonBilling, Retryable: false}
	case status == 413:
		return Policy{Reason: ReasonContextOverflow, Retryable: false}
	case status == 504:
		return Policy{Reason: ReasonTimeout, Retryable: true, RetryDelay: 5 * time.Second}
	case status == 503:
		return Policy{Reason: ReasonOverloaded, Retryable: true, RetryDelay: 10 * time.Second}
	case status >= 500:
		return Policy{Reason: ReasonOverloaded, Retryable: true, RetryDelay: 10 * time.Second}
	}
	return ClassifyMessage(strconv.Itoa(status) + " " + body)
}
