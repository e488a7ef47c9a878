package provider

import (
	"errors"
	"fmt"

	"github.com/agentrt/agentrt/internal/classify"
)

// ErrUnexpectedShape marks a response body that parsed as JSON but did not
// carry the {candidates: [...]} shape the decoder requires.
var ErrUnexpectedShape = errors.New("provider: unexpected response shape")

// Error is a failed provider call. Status is zero for network-level
// failures where no HTTP response arrived.
type Error struct {
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider: status %d: %s", e.Status, e.Body)
	}
	if e.Err != nil {
		return "provider: " + e.Err.Error()
	}
	return "provider: request failed"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify maps this error to the retry policy table. HTTP-status evidence
// wins over body substrings when a status is available.
func (e *Error) Classify() classify.Policy {
	if e.Status != 0 {
		return classify.StatusCode(e.Status, e.Body)
	}
	return classify.ClassifyMessage(e.Error())
}

// ClassifyErr classifies any error a provider call can return, using the
// status-aware path when err is (or wraps) a *Error.
func ClassifyErr(err error) classify.Policy {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Classify()
	}
	return classify.Classify(err)
}
