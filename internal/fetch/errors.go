package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies why a fetch failed. Every kind is retried by Fetch.
type Kind string

const (
	KindBlocked   Kind = "blocked"
	KindHTTP      Kind = "http_error"
	KindEmpty     Kind = "empty_response"
	KindChallenge Kind = "challenge_detected"
	KindTransport Kind = "transport"
)

type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}

	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, or "" when err is not a fetch error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}

	return ""
}

// IsBlocked reports whether the source refused us (403/503 or an
// interstitial challenge page).
func IsBlocked(err error) bool {
	k := KindOf(err)
	return k == KindBlocked || k == KindChallenge
}
