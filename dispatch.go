package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Operation selects the kind of entry a Request targets.
type Operation string

const (
	OpTool     Operation = "tool"
	OpResource Operation = "resource"
)

// Request is the transport-neutral request envelope. Resource requests
// may carry the uri in Name when URI is empty.
type Request struct {
	Operation Operation       `json:"operation"`
	Name      string          `json:"name,omitempty"`
	URI       string          `json:"uri,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
}

// Response carries either content or an error, never both.
type Response struct {
	Content []Content  `json:"content,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// MarshalJSON always emits content for a successful response, even when
// it is empty.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		return json.Marshal(struct {
			Error *ErrorBody `json:"error"`
		}{r.Error})
	}
	content := r.Content
	if content == nil {
		content = []Content{}
	}
	return json.Marshal(struct {
		Content []Content `json:"content"`
	}{content})
}

// ErrorBody is the error half of a Response.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorResponse converts err into an error envelope.
func ErrorResponse(err error) Response {
	return Response{Error: &ErrorBody{Kind: ErrorKind(err), Message: err.Error()}}
}

// Dispatch routes req to the matching tool or resource. Failures are
// returned as error envelopes.
func (r *Registry) Dispatch(ctx context.Context, req Request) Response {
	var (
		content []Content
		err     error
	)
	switch req.Operation {
	case OpTool:
		var res *ToolResult
		if res, err = r.InvokeTool(ctx, req.Name, req.Args); err == nil {
			content = res.Content
		}
	case OpResource:
		var res *ResourceResult
		if res, err = r.InvokeResource(ctx, req.resourceURI()); err == nil {
			content = res.Contents
		}
	default:
		err = &InvalidRequestError{Reason: fmt.Sprintf("unknown operation %q", req.Operation)}
	}

	if err != nil {
		r.reportFailure(req, err)
		return ErrorResponse(err)
	}
	if content == nil {
		content = []Content{}
	}
	return Response{Content: content}
}

func (req Request) resourceURI() string {
	if req.URI == "" {
		return req.Name
	}
	return req.URI
}

// DispatchJSON decodes a raw envelope and dispatches it.
func (r *Registry) DispatchJSON(ctx context.Context, data []byte) Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		err = &InvalidRequestError{Reason: "malformed envelope", Err: err}
		r.reportFailure(req, err)
		return ErrorResponse(err)
	}
	return r.Dispatch(ctx, req)
}

func (r *Registry) reportFailure(req Request, err error) {
	key := req.Name
	if req.Operation == OpResource {
		key = req.resourceURI()
	}
	r.logger.Info("dispatch failed",
		zap.String("operation", string(req.Operation)),
		zap.String("key", key),
		zap.String("kind", ErrorKind(err)),
		zap.Error(err))

	if r.dispatch == nil {
		return
	}
	if nerr := r.dispatch.NotifyLoggingMessage(LogError, "dispatch", ErrorResponse(err).Error); nerr != nil {
		r.logger.Warn("log notification failed", zap.Error(nerr))
	}
}
