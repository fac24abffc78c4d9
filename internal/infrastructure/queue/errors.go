package queue

import (
	"errors"
)

var (
	// ErrDuplicateJob is returned by Enqueue when the dedupe key was already claimed
	ErrDuplicateJob = errors.New("queue: duplicate job")
	// ErrUnknownJobType is returned when no handler is registered for a job type
	ErrUnknownJobType = errors.New("queue: unknown job type")
	// ErrAlreadyStarted is returned by Start and Register once the dispatcher runs
	ErrAlreadyStarted = errors.New("queue: dispatcher already started")
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err as not retryable. The job is moved straight to DEAD.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
