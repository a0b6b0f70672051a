package logging

import (
	"fmt"
	"io"
	"os"
)

// EarlyLog writes plain lines to stderr before the structured logger exists.
type EarlyLog struct {
	service string
	out     io.Writer
}

func NewEarlyLog(service string) *EarlyLog {
	return &EarlyLog{service: service, out: os.Stderr}
}

// Error prints err and returns it, so callers can `return early.Error(err)`.
func (l *EarlyLog) Error(err error) error {
	fmt.Fprintf(l.out, "%s ERROR: %v\n", l.service, err)
	return err
}

