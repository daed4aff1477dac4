// Package processor implements the server side of a request/response sync
// exchange.
//
// A request carries edits to objects the client holds (operations) and
// service calls to make (invocations). Process applies the edits, validates
// every touched object, runs the calls and answers with the call results
// plus one write operation per touched object, telling the client what was
// persisted, updated or deleted.
//
// Stages run strictly in order and each depends on the previous one:
//
//	envelope -> operations -> validation -> invocations -> results -> write operations
//
// A Processor is safe for concurrent use when its service.API is; all
// per-request state is created fresh for each call to Process.
package processor

import (
	"context"
	"log/slog"

	"github.com/roach88/rfsync/internal/fault"
	"github.com/roach88/rfsync/internal/graph"
	"github.com/roach88/rfsync/internal/ir"
	"github.com/roach88/rfsync/internal/service"
)

// Processor processes decoded requests against a service pipeline.
type Processor struct {
	api     service.API
	handler ExceptionHandler
	reqIDs  RequestIDGenerator
}

// Option configures a Processor.
type Option func(*Processor)

// WithExceptionHandler replaces DefaultExceptionHandler.
func WithExceptionHandler(h ExceptionHandler) Option {
	return func(p *Processor) {
		p.handler = h
	}
}

// WithRequestIDs sets the generator of request ids used in log records.
//
// Default: UUIDv7Generator.
// Use NewFixedGenerator in tests that assert on log output.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(p *Processor) {
		p.reqIDs = g
	}
}

// New creates a Processor over api.
func New(api service.API, opts ...Option) *Processor {
	p := &Processor{
		api:     api,
		handler: DefaultExceptionHandler{},
		reqIDs:  UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// API returns the service pipeline the processor calls.
func (p *Processor) API() service.API { return p.api }

// ProcessPayload decodes a JSON request, processes it and encodes the
// response.
//
// A reportable failure of the whole request is answered with a response
// carrying only a general failure. Unexpected errors are logged and
// returned; the transport should answer them with a generic server error.
func (p *Processor) ProcessPayload(payload []byte) ([]byte, error) {
	req, err := ir.DecodeRequest(payload)
	if err != nil {
		err = fault.Unexpected(fault.CodeEnvelope, err, "cannot decode request payload")
		slog.Error("request rejected",
			"payload_hash", ir.PayloadHash(payload),
			"error", err)
		return nil, err
	}

	resp, err := p.Process(req)
	if err != nil {
		if !fault.IsReportable(err) {
			return nil, err
		}
		resp = ir.ResponseMessage{GeneralFailure: p.failure(err)}
	}
	return ir.EncodeResponse(resp)
}

// Process runs one request through every stage.
//
// Violations found while validating edited objects are returned in the
// response and no invocation runs. A reportable error that fails the whole
// request (an out-of-date client, a result that cannot be sent) is returned as
// an error; ProcessPayload turns it into a general failure. Errors from a
// single invocation fail only that invocation.
func (p *Processor) Process(req ir.RequestMessage) (ir.ResponseMessage, error) {
	reqID := p.reqIDs.Generate()
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		if hash, err := ir.RequestHash(req); err == nil {
			slog.Debug("request received",
				"request_id", reqID,
				"request_hash", hash,
				"protocol", ir.ProtocolVersion)
		}
	}
	resp, err := p.process(reqID, req)
	if err != nil {
		if fault.IsReportable(err) {
			slog.Warn("request failed",
				"request_id", reqID,
				"code", fault.CodeOf(err),
				"error", err)
		} else {
			slog.Error("request failed",
				"request_id", reqID,
				"code", fault.CodeOf(err),
				"error", err)
		}
		return ir.ResponseMessage{}, err
	}

	slog.Info("request processed",
		"request_id", reqID,
		"factory", req.RequestFactory,
		"invocations", len(resp.InvocationResults),
		"operations", len(resp.Operations),
		"violations", len(resp.Violations))
	return resp, nil
}

func (p *Processor) process(reqID string, req ir.RequestMessage) (ir.ResponseMessage, error) {
	if req.RequestFactory == "" {
		return ir.ResponseMessage{}, fault.Reportable(fault.CodeClientVersion,
			"The client payload version is out of sync with the server")
	}
	if _, err := p.api.ResolveRequestFactory(req.RequestFactory); err != nil {
		return ir.ResponseMessage{}, err
	}

	source := graph.NewState(p.api, p)

	slog.Debug("applying operations",
		"request_id", reqID,
		"count", len(req.Operations))
	if err := p.applyOperations(source, req.Operations); err != nil {
		return ir.ResponseMessage{}, err
	}

	violations, err := p.validate(source)
	if err != nil {
		return ir.ResponseMessage{}, err
	}
	if len(violations) > 0 {
		slog.Debug("validation failed",
			"request_id", reqID,
			"violations", len(violations))
		return ir.ResponseMessage{Violations: violations}, nil
	}

	returnState := source.Child()

	slog.Debug("processing invocations",
		"request_id", reqID,
		"count", len(req.Invocations))
	results, codes, err := p.invoke(source, returnState, req.Invocations)
	if err != nil {
		return ir.ResponseMessage{}, err
	}

	ops, err := p.returnOperations(returnState, touched(source, returnState))
	if err != nil {
		return ir.ResponseMessage{}, err
	}

	return ir.ResponseMessage{
		InvocationResults: results,
		StatusCodes:       codes,
		Operations:        ops,
	}, nil
}
