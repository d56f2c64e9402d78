package errors

import (
	"errors"
	"fmt"
)

var (
	ErrSessionAlreadyRunning = errors.New("capture session already running")
	ErrInvalidDuration       = errors.New("invalid capture duration")
	ErrProducerLaunch        = errors.New("producer launch failed")
	ErrTailRead              = errors.New("capture file read failed")
	ErrConfigInvalid         = errors.New("invalid configuration")
	ErrInvalidFilter         = errors.New("invalid record filter")
	ErrViewerGone            = errors.New("viewer connection closed")
	ErrViewerQueueFull       = errors.New("viewer queue full")
)

func NewDurationError(duration int) error {
	return fmt.Errorf("%w: %d", ErrInvalidDuration, duration)
}

func NewLaunchError(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrProducerLaunch, path, err)
}

func NewReadError(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTailRead, path, err)
}

func NewConfigError(field string, value interface{}) error {
	return fmt.Errorf("%w: field=%s value=%v", ErrConfigInvalid, field, value)
}

func NewFilterError(src string, err error) error {
	return fmt.Errorf("%w: %q: %v", ErrInvalidFilter, src, err)
}
