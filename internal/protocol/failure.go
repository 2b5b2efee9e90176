package protocol

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies why a tool call failed. Kinds appear verbatim in
// tool-role error payloads so callers can branch on them.
type FailureKind string

const (
	KindMalformedRequest   FailureKind = "malformed_request"
	KindUnknownTool        FailureKind = "unknown_tool"
	KindMalformedArguments FailureKind = "malformed_arguments"
	KindValidationError    FailureKind = "validation_error"
	KindExecutionError     FailureKind = "execution_error"
	KindTimeout            FailureKind = "timeout"
	KindUpstreamError      FailureKind = "upstream_error"
	KindNotFound           FailureKind = "not_found"
	KindPermissionDenied   FailureKind = "permission_denied"
	KindParseError         FailureKind = "parse_error"
	KindDomainError        FailureKind = "domain_error"
)

// ToolError is a classified tool failure. Tool implementations return it when
// they can name the kind; everything else is classified at the executor.
type ToolError struct {
	Kind    FailureKind
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Failf builds a classified tool error.
func Failf(kind FailureKind, format string, args ...interface{}) *ToolError {
	return &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind from an error, defaulting to
// execution_error for unclassified failures and timeout for expired contexts.
func KindOf(err error) FailureKind {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindExecutionError
}

// FailureDetail is the wire form of a classified failure.
type FailureDetail struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// FailurePayload is the content of a tool-role message for a failed call.
type FailurePayload struct {
	Error FailureDetail `json:"error"`
}
