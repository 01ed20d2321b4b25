package errcode

import (
	"fmt"

	"github.com/pkg/errors"
)

type Code int

const (
	CodeSuccess  Code = 200
	CodeInternal Code = iota + 1001
	CodeInvalid
	CodeNotExist
	CodeExist
	CodeUnsupported
)

var code2str = map[Code]string{
	CodeSuccess:     "success",
	CodeInternal:    "internal error",
	CodeInvalid:     "invalid argument",
	CodeNotExist:    "not exist",
	CodeExist:       "already exists",
	CodeUnsupported: "not supported",
}

func (c Code) String() string {
	s, ok := code2str[c]
	if !ok {
		return fmt.Sprintf("unknown code: %d", c)
	}
	return s
}

type ErrorCode struct {
	code    Code
	message string
}

func (e ErrorCode) Code() Code { return e.code }
func (e ErrorCode) Message() string {
	if e.code == CodeSuccess {
		return e.Code().String()
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e ErrorCode) Error() string {
	if e.code == CodeSuccess {
		return e.code.String()
	}
	return fmt.Sprintf("error_code: %d, message: %s", e.Code(), e.Message())
}

func New(code Code, format string, a ...any) ErrorCode {
	return ErrorCode{
		code:    code,
		message: fmt.Sprintf(format, a...),
	}
}

func NewError(code Code, err error) ErrorCode {
	return New(code, "%s", err.Error())
}

// From returns the ErrorCode carried by err, or err under code.
func From(err error, code Code) ErrorCode {
	var ec ErrorCode
	if errors.As(err, &ec) {
		return ec
	}
	return NewError(code, err)
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	var ec ErrorCode
	return errors.As(err, &ec) && ec.code == code
}
