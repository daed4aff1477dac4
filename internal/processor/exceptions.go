package processor

import (
	"fmt"

	"github.com/roach88/rfsync/internal/fault"
	"github.com/roach88/rfsync/internal/ir"
)

// ExceptionHandler converts a reportable error into the failure the client
// sees, either for a single invocation or for the whole request.
type ExceptionHandler interface {
	CreateServerFailure(err error) ir.FailureMessage
}

// ExceptionHandlerFunc adapts a function to ExceptionHandler.
type ExceptionHandlerFunc func(err error) ir.FailureMessage

// CreateServerFailure calls f(err).
func (f ExceptionHandlerFunc) CreateServerFailure(err error) ir.FailureMessage {
	return f(err)
}

// DefaultExceptionHandler reports the error's type and message. Every
// failure it produces is fatal.
type DefaultExceptionHandler struct{}

// CreateServerFailure implements ExceptionHandler.
func (DefaultExceptionHandler) CreateServerFailure(err error) ir.FailureMessage {
	return ir.FailureMessage{
		ExceptionType: exceptionType(err),
		Message:       "Server Error: " + err.Error(),
		Fatal:         true,
	}
}

func exceptionType(err error) string {
	if code := fault.CodeOf(err); code != "" {
		return string(code)
	}
	return fmt.Sprintf("%T", err)
}

// failure builds the failure message for a reportable error. Errors that
// wrap a cause returned by domain code report the cause.
func (p *Processor) failure(err error) *ir.FailureMessage {
	target := err
	if re, ok := fault.AsReportable(err); ok && re.Cause != nil {
		target = re.Cause
	}
	msg := p.handler.CreateServerFailure(target)
	return &msg
}
