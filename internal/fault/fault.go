// Package fault defines the two error families of the request pipeline.
//
// UnexpectedError is fatal: a programming or environment problem (a type
// that cannot be constructed, a missing accessor, a batch load returning the
// wrong number of objects). It aborts the whole request and its detail is
// logged, never sent to the client.
//
// ReportableError is safe to describe to the client: a dead entity, an
// unsupported type in the graph, or an error returned by domain code.
// Per-invocation reportable errors only fail that invocation.
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes an error within its family.
type Code string

// Unexpected error codes.
const (
	// CodeConstruct indicates a domain or service instance could not be created.
	CodeConstruct Code = "CONSTRUCT"

	// CodeAccessor indicates no getter, setter or method could be found.
	CodeAccessor Code = "ACCESSOR"

	// CodeBatch indicates a batched load returned the wrong number of objects.
	CodeBatch Code = "BATCH"

	// CodeEnvelope indicates an unknown request factory or an undecodable payload.
	CodeEnvelope Code = "ENVELOPE"

	// CodeInvoke indicates a domain method could not be called.
	CodeInvoke Code = "INVOKE"

	// CodeResolve indicates a type, token or method mapping is missing.
	CodeResolve Code = "RESOLVE"

	// CodeVersion indicates a persisted entity has no version.
	CodeVersion Code = "VERSION"
)

// Reportable error codes.
const (
	// CodeDeadEntity marks a reference to an object the server can no longer load.
	CodeDeadEntity Code = "DEAD_ENTITY"

	// CodeUnsupportedType marks a domain value that cannot be sent to the client.
	CodeUnsupportedType Code = "UNSUPPORTED_TYPE"

	// CodeUser marks an error returned by domain code.
	CodeUser Code = "USER"

	// CodeClientVersion marks a payload from an incompatible client.
	CodeClientVersion Code = "CLIENT_VERSION"

	// CodeUnknownOperation marks an invocation the server does not recognise.
	CodeUnknownOperation Code = "UNKNOWN_OPERATION"

	// CodeBadArguments marks an invocation with the wrong number or shape of arguments.
	CodeBadArguments Code = "BAD_ARGUMENTS"
)

// UnexpectedError is a fatal internal error.
type UnexpectedError struct {
	// Code identifies the error category.
	Code Code

	// Message is a diagnostic description for the server log.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *UnexpectedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unexpected %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("unexpected %s: %s", e.Code, e.Message)
}

// Unwrap returns the cause.
func (e *UnexpectedError) Unwrap() error { return e.Cause }

// ReportableError is an error whose message may be shown to the client.
type ReportableError struct {
	// Code identifies the error category.
	Code Code

	// Message is shown to the client.
	Message string

	// Cause is the underlying error, if any. Exception handlers report the
	// cause in preference to the wrapper.
	Cause error
}

// Error implements the error interface.
func (e *ReportableError) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the cause.
func (e *ReportableError) Unwrap() error { return e.Cause }

// Unexpected creates an UnexpectedError with a formatted message.
func Unexpected(code Code, cause error, format string, args ...any) *UnexpectedError {
	return &UnexpectedError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Reportable creates a ReportableError with a formatted message.
func Reportable(code Code, format string, args ...any) *ReportableError {
	return &ReportableError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap turns an error returned by domain code into a ReportableError. An
// error that already belongs to either family is returned unchanged.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	if IsReportable(err) || IsUnexpected(err) {
		return err
	}
	return &ReportableError{Code: CodeUser, Message: err.Error(), Cause: err}
}

// DeadEntity returns the error raised when a client references an object
// the server cannot materialize.
func DeadEntity() *ReportableError {
	return &ReportableError{
		Code:    CodeDeadEntity,
		Message: "The requested entity is not available on the server",
	}
}

// IsUnexpected returns true if err is or wraps an UnexpectedError.
func IsUnexpected(err error) bool {
	var ue *UnexpectedError
	return errors.As(err, &ue)
}

// IsReportable returns true if err is or wraps a ReportableError and is not
// itself wrapped by an UnexpectedError.
func IsReportable(err error) bool {
	_, ok := AsReportable(err)
	return ok
}

// AsReportable returns the outermost ReportableError in err's chain.
// An UnexpectedError earlier in the chain takes precedence: the error is
// then fatal and nothing about it is reportable.
func AsReportable(err error) (*ReportableError, bool) {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := e.(type) {
		case *UnexpectedError:
			return nil, false
		case *ReportableError:
			return v, true
		}
	}
	return nil, false
}

// IsDeadEntity returns true if err is a reportable dead-entity error.
func IsDeadEntity(err error) bool {
	re, ok := AsReportable(err)
	return ok && re.Code == CodeDeadEntity
}

// CodeOf returns the code of the outermost error of either family, or "".
func CodeOf(err error) Code {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := e.(type) {
		case *UnexpectedError:
			return v.Code
		case *ReportableError:
			return v.Code
		}
	}
	return ""
}
