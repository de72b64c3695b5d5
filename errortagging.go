package dispatcher

import (
	"errors"
	"fmt"
)

// ActionMetaError exposes the originating action id for an error recovered
// from a panicking action body, retargeted from the teacher's
// TaskMetaError (task index/id correlation) to action id correlation.
type ActionMetaError interface {
	error
	Unwrap() error
	ActionID() int64
}

type actionTaggedError struct {
	err      error
	actionID int64
}

func newActionTaggedError(err error, actionID int64) error {
	if err == nil {
		return nil
	}
	return &actionTaggedError{err: err, actionID: actionID}
}

func (e *actionTaggedError) Error() string    { return e.err.Error() }
func (e *actionTaggedError) Unwrap() error    { return e.err }
func (e *actionTaggedError) ActionID() int64  { return e.actionID }

func (e *actionTaggedError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "action(id=%d): %+v", e.actionID, e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractActionID returns the action id from err if present.
func ExtractActionID(err error) (int64, bool) {
	var ame ActionMetaError
	if errors.As(err, &ame) {
		return ame.ActionID(), true
	}
	return 0, false
}

// panicToError normalizes a recovered panic value into an error.
func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("dispatcher: action panicked: %w", err)
	}
	return fmt.Errorf("dispatcher: action panicked: %v", r)
}
