// Package panicerr converts panics and goroutine exits inside a run into
// ordinary error values.
package panicerr

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Recover runs f in a new goroutine and returns its error. A panic or a
// runtime.Goexit inside f is returned as a non-nil error instead of
// crashing the process.
func Recover(name string, f func() error) error {
	errch := make(chan error, 1)
	go func() {
		defer close(errch)
		defer func() {
			// f neither returned nor panicked: it called runtime.Goexit.
			select {
			case errch <- exitError(name):
			default:
			}
		}()
		defer func() {
			if e := recover(); e != nil {
				errch <- panicError{name: name, value: e, stack: debug.Stack()}
			}
		}()
		errch <- f()
	}()
	return <-errch
}

type panicError struct {
	name  string
	value any
	stack []byte
}

func (pe panicError) Error() string {
	return fmt.Sprint(pe)
}

// Format prints the panic value; %+v appends the goroutine stack.
func (pe panicError) Format(f fmt.State, c rune) {
	if pe.name == "" {
		fmt.Fprintf(f, "panic: %v", pe.value)
	} else {
		fmt.Fprintf(f, "%s panicked: %v", pe.name, pe.value)
	}
	if c == 'v' && f.Flag('+') {
		fmt.Fprintf(f, "\npanic stack: %s", pe.stack)
	}
}

func (pe panicError) Unwrap() error {
	err, _ := pe.value.(error)
	return err
}

type exitError string

func (name exitError) Error() string {
	if name == "" {
		return "runtime.Goexit called"
	}
	return fmt.Sprintf("%s called runtime.Goexit", string(name))
}

// IsPanic reports whether err is a recovered panic.
func IsPanic(err error) bool {
	var pe panicError
	return errors.As(err, &pe)
}

// IsExit reports whether err is a recovered runtime.Goexit.
func IsExit(err error) bool {
	var xe exitError
	return errors.As(err, &xe)
}

// PanicValue returns the value passed to panic, if err is a recovered panic.
func PanicValue(err error) any {
	var pe panicError
	if errors.As(err, &pe) {
		return pe.value
	}
	return nil
}

// PanicStack returns the stack trace captured at the panic, or "".
func PanicStack(err error) string {
	var pe panicError
	if errors.As(err, &pe) {
		return string(pe.stack)
	}
	return ""
}
