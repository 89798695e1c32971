package models

import (
	"errors"
	"fmt"
)

// ErrClass splits failures the way the pipeline reacts to them:
// transient errors are retried, fatal errors abort the target immediately,
// data-quality errors yield zero records without counting as a failure.
type ErrClass int

const (
	ClassTransient ErrClass = iota
	ClassFatal
	ClassDataQuality
)

func (c ErrClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassFatal:
		return "fatal"
	case ClassDataQuality:
		return "data_quality"
	}
	return "unknown"
}

// ErrCancelled marks a cooperative stop; it is a terminal state, not an error
// class, and must never be retried or recorded as a failure.
var ErrCancelled = errors.New("sync cancelled by control signal")

type ClassifiedError struct {
	Class ErrClass
	Err   error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

func Transient(err error) error {
	return &ClassifiedError{Class: ClassTransient, Err: err}
}

func Fatal(err error) error {
	return &ClassifiedError{Class: ClassFatal, Err: err}
}

func DataQuality(err error) error {
	return &ClassifiedError{Class: ClassDataQuality, Err: err}
}

func ClassOf(err error) (ErrClass, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	return 0, false
}

// IsTransient reports whether err should be retried. Unclassified errors are
// not retried: only failures the fetcher or a repository explicitly marked
// transient qualify.
func IsTransient(err error) bool {
	class, ok := ClassOf(err)
	return ok && class == ClassTransient
}

func IsDataQuality(err error) bool {
	class, ok := ClassOf(err)
	return ok && class == ClassDataQuality
}
