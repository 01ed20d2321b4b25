package utils

import (
	"fmt"
)

type NamedCloser struct {
	Name  string
	Close func() error
}

// NamedClosers releases resources acquired in order, reporting each by
// name.
type NamedClosers []NamedCloser

type CloseOpt struct {
	ReverseOrder bool
	Output       func(...any)
	ErrorOutput  func(...any)
}

// Close runs every closer, even after a failure, and returns how many
// failed.
func (closers NamedClosers) Close(opt *CloseOpt) int {
	if len(closers) == 0 {
		return 0
	}
	if opt == nil {
		opt = &CloseOpt{}
	}
	output := opt.Output
	if output == nil {
		output = func(...any) {}
	}
	errorOutput := opt.ErrorOutput
	if errorOutput == nil {
		errorOutput = func(...any) {}
	}

	failed := 0
	close := func(c NamedCloser) {
		if err := c.Close(); err != nil {
			failed++
			errorOutput(fmt.Sprintf("Fail to close %s error=%s", c.Name, err))
		} else {
			output(fmt.Sprintf("Closed %s", c.Name))
		}
	}

	if opt.ReverseOrder {
		for i := len(closers) - 1; i >= 0; i-- {
			close(closers[i])
		}
	} else {
		for _, c := range closers {
			close(c)
		}
	}
	return failed
}
