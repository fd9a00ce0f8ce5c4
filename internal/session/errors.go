package session

import "errors"

var (
	// ErrNoPaper is returned when a session is created without a paper.
	ErrNoPaper = errors.New("no paper loaded")
	// ErrNotAnswering is returned for edits or transitions outside the answering state.
	ErrNotAnswering = errors.New("session is not accepting answers")
	// ErrTimeExpired is returned for edits once the countdown has run out.
	// Only submit and discard remain available.
	ErrTimeExpired = errors.New("time is up")
	// ErrSubmissionInFlight is returned when a second submission races the first.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrIndexOutOfRange is returned by JumpTo for an invalid question index.
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrNotOptional is returned when selecting a question outside any optional group.
	ErrNotOptional = errors.New("question is not part of an optional group")
	// ErrSessionNotFound is returned by the manager for unknown session IDs.
	ErrSessionNotFound = errors.New("session not found")
	// ErrForbidden is returned when a user touches another user's session.
	ErrForbidden = errors.New("session belongs to another user")
)

// coder is implemented by errors that carry a machine-readable code, such as
// marking gateway errors.
type coder interface {
	ErrorCode() string
}

// ErrorCode extracts the code of err, or "internal" when it carries none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var c coder
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return "internal"
}
