package util

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

// Error pairs a formatted message with its original cause and a category
// code. The offline drivers map categories onto exit-code families.
type Error struct {
	orig error
	msg  string
	code error
}

func (e *Error) Error() string {
	if e.orig != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.orig)
	}

	return e.msg
}

func (e *Error) Unwrap() error {
	return e.orig
}

func (e *Error) Code() error {
	return e.code
}

func WrapErrorf(orig error, code error, format string, a ...interface{}) error {
	return &Error{
		code: code,
		orig: orig,
		msg:  fmt.Sprintf(format, a...),
	}
}

// error categories, one per driver exit-code family.
var (
	ErrValidation = errors.New("input validation failed")
	ErrIO         = errors.New("io failure")
	ErrParse      = errors.New("parse failure")
	ErrIntegrity  = errors.New("integrity violation")
)

// CodeOf returns the category of err, or nil when err carries none.
func CodeOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return nil
}

// ExitCode maps an error's category onto the driver exit-code families:
// validation 2, I/O 3, parse 4, integrity 5, anything else 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch CodeOf(err) {
	case ErrValidation:
		return 2
	case ErrIO:
		return 3
	case ErrParse:
		return 4
	case ErrIntegrity:
		return 5
	}
	return 1
}

func Clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func ClampG[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ReverseG[T any](arr []T) []T {
	copyArr := make([]T, len(arr))
	copy(copyArr, arr)
	for i, j := 0, len(copyArr)-1; i < j; i, j = i+1, j-1 {
		copyArr[i], copyArr[j] = copyArr[j], copyArr[i]
	}
	return copyArr
}
