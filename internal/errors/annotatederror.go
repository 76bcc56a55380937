// Package errors extends the standard library errors with slog annotations and call-site information.
//
// Errors created with [New], [NewSentinel] or [Wrap] remember where they were created so that [SlogError]
// can log the source location next to the annotations.
package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
)

// annotatedError carries a message, optional slog annotations and the source location where it was created.
type annotatedError struct {
	msg         string
	cause       error
	annotations []slog.Attr
	source      string
}

func (e *annotatedError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.cause
}

// sentinelError has no source location since it is usually declared as a package-level variable.
type sentinelError struct {
	msg string
}

func (e *sentinelError) Error() string {
	return e.msg
}

// NewSentinel creates a comparable error meant to be declared once and matched with [Is].
func NewSentinel(msg string) error {
	return &sentinelError{msg: msg}
}

// New creates an error annotated with the caller's source location.
func New(msg string, attrs ...slog.Attr) error {
	return &annotatedError{
		msg:         msg,
		cause:       nil,
		annotations: attrs,
		source:      callerSource(),
	}
}

// Wrap adds context and slog annotations to err. It returns nil when err is nil.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	return &annotatedError{
		msg:         msg,
		cause:       err,
		annotations: attrs,
		source:      callerSource(),
	}
}

// DecoratePanic converts a recovered panic value into an error. It returns nil when nothing was recovered.
func DecoratePanic(recovered any) error {
	if recovered == nil {
		return nil
	}
	var msg string
	if err, ok := recovered.(error); ok {
		msg = "panic: " + err.Error()
	} else {
		msg = fmt.Sprintf("panic: %v", recovered)
	}
	return &annotatedError{
		msg:         msg,
		cause:       nil,
		annotations: nil,
		// Skip runtime.gopanic so that the location points to the panic call site.
		source: panicSource(),
	}
}

// SlogError returns an slog attribute group describing err with its message, annotations and source.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{Key: "error", Value: slog.GroupValue()}
	}

	attrs := []slog.Attr{slog.String("message", err.Error())}

	var (
		annotations []slog.Attr
		source      string
	)
	for current := err; current != nil; current = errors.Unwrap(current) {
		var ae *annotatedError
		if !errors.As(current, &ae) {
			break
		}
		annotations = append(annotations, ae.annotations...)
		if ae.source != "" {
			// The innermost source is the closest to the root cause.
			source = ae.source
		}
		current = ae
	}
	if len(annotations) > 0 {
		attrs = append(attrs, slog.Attr{Key: "annotations", Value: slog.GroupValue(annotations...)})
	}
	if source != "" {
		attrs = append(attrs, slog.String("source", source))
	}
	return slog.Attr{Key: "error", Value: slog.GroupValue(attrs...)}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

func callerSource() string {
	// 0 = callerSource, 1 = New/Wrap, 2 = the caller we are interested in.
	_, file, line, ok := runtime.Caller(2) //nolint:mnd // see above
	if !ok {
		return ""
	}
	return file + ":" + strconv.Itoa(line)
}

func panicSource() string {
	pcs := make([]uintptr, 16) //nolint:mnd // deep enough to get past the runtime frames
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	passedPanic := false
	for {
		frame, more := frames.Next()
		if passedPanic {
			return frame.File + ":" + strconv.Itoa(frame.Line)
		}
		if frame.Function == "runtime.gopanic" {
			passedPanic = true
		}
		if !more {
			return ""
		}
	}
}
