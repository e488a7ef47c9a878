// Package backoff computes retry delays with exponential growth and jitter.
// The shape (InitialMs/MaxMs/Factor/Jitter, a *WithRand variant for
// deterministic tests) follows the reference codebase's backoff package;
// this version adds an absolute-jitter mode because the provider error
// classifier (internal/classify) specifies "±1s jitter, capped at 60s" per
// reason rather than a single proportional-jitter policy for everything.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// JitterMode selects how Jitter is interpreted.
type JitterMode int

const (
	// ProportionalJitter adds up to base*Jitter extra delay.
	ProportionalJitter JitterMode = iota
	// AbsoluteJitter adds up to ±Jitter milliseconds of delay, can reduce
	// the base delay as well as extend it, and never drives the result
	// below zero.
	AbsoluteJitter
)

// Policy defines the parameters for exponential backoff calculation.
type Policy struct {
	InitialMs  float64
	MaxMs      float64
	Factor     float64
	Jitter     float64
	JitterMode JitterMode
}

// Compute calculates the backoff duration for a given attempt number
// (attempts start at 1) using the package's global random source.
func Compute(policy Policy, attempt int) time.Duration {
	return ComputeWithRand(policy, attempt, rand.Float64()) // #nosec G404 -- retry jitter, not a security boundary
}

// ComputeWithRand is Compute with an injected random value in [0,1) for
// deterministic tests.
func ComputeWithRand(policy Policy, attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := policy.InitialMs * math.Pow(policy.Factor, exp)

	var total float64
	switch policy.JitterMode {
	case AbsoluteJitter:
		// randomValue in [0,1) maps to [-Jitter, +Jitter).
		offset := (randomValue*2 - 1) * policy.Jitter
		total = math.Max(0, base+offset)
	default:
		total = base + base*policy.Jitter*randomValue
	}

	total = math.Min(policy.MaxMs, total)
	return time.Duration(math.Round(total)) * time.Millisecond
}

// ForReason builds the policy for one internal/classify.Reason's initial
// retry delay: exponential growth from that reason's canonical delay,
// ±1s absolute jitter, capped at 60s: the shape internal/classify.Policy
// needs and nothing this package can guess on its own.
func ForReason(initialDelay time.Duration) Policy {
	return Policy{
		InitialMs:  float64(initialDelay.Milliseconds()),
		MaxMs:      60_000,
		Factor:     2,
		Jitter:     1000,
		JitterMode: AbsoluteJitter,
	}
}
