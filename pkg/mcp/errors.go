package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os/exec"
	"strings"
	"syscall"
)

// MCPError represents a structured error from MCP operations
type MCPError struct {
	Operation  string            // The operation that failed (e.g., "ListTools", "Probe")
	ServerName string            // Name or label of the MCP server
	ServerType string            // Type of server (stdio, http)
	ErrorType  MCPErrorType      // Category of error
	Cause      error             // The underlying error
	Retryable  bool              // Whether the error might succeed on retry
	Metadata   map[string]string // Additional context
}

// MCPErrorType categorizes different types of MCP errors
type MCPErrorType string

const (
	// Connection errors
	MCPErrorTypeConnection     MCPErrorType = "CONNECTION_ERROR"
	MCPErrorTypeTimeout        MCPErrorType = "TIMEOUT_ERROR"
	MCPErrorTypeAuthentication MCPErrorType = "AUTHENTICATION_ERROR"

	// Server errors
	MCPErrorTypeServerNotFound MCPErrorType = "SERVER_NOT_FOUND"
	MCPErrorTypeServerStartup  MCPErrorType = "SERVER_STARTUP_ERROR"
	MCPErrorTypeServerCrash    MCPErrorType = "SERVER_CRASH"

	// Tool errors
	MCPErrorTypeToolNotFound MCPErrorType = "TOOL_NOT_FOUND"
	MCPErrorTypeToolDenied   MCPErrorType = "TOOL_DENIED"

	// Protocol errors
	MCPErrorTypeProtocol      MCPErrorType = "PROTOCOL_ERROR"
	MCPErrorTypeSerialization MCPErrorType = "SERIALIZATION_ERROR"

	// Configuration errors
	MCPErrorTypeConfiguration MCPErrorType = "CONFIGURATION_ERROR"
	MCPErrorTypeValidation    MCPErrorType = "VALIDATION_ERROR"

	MCPErrorTypeUnknown MCPErrorType = "UNKNOWN_ERROR"
)

// Error implements the error interface
func (e *MCPError) Error() string {
	var parts []string

	if e.ServerName != "" {
		parts = append(parts, fmt.Sprintf("MCP server '%s'", e.ServerName))
	} else {
		parts = append(parts, "MCP")
	}

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("operation '%s'", e.Operation))
	}

	parts = append(parts, "failed")

	if e.ErrorType != MCPErrorTypeUnknown && e.ErrorType != "" {
		parts = append(parts, fmt.Sprintf("(%s)", e.ErrorType))
	}

	message := strings.Join(parts, " ")

	if e.Cause != nil {
		message += fmt.Sprintf(": %v", e.Cause)
	}

	return message
}

// Unwrap returns the underlying error
func (e *MCPError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether this error might succeed on retry
func (e *MCPError) IsRetryable() bool {
	return e.Retryable
}

// WithMetadata adds metadata to the error
func (e *MCPError) WithMetadata(key, value string) *MCPError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// NewMCPError creates a new MCP error
func NewMCPError(operation, serverName, serverType string, errorType MCPErrorType, cause error) *MCPError {
	return &MCPError{
		Operation:  operation,
		ServerName: serverName,
		ServerType: serverType,
		ErrorType:  errorType,
		Cause:      cause,
		Retryable:  isRetryableErrorType(errorType),
		Metadata:   make(map[string]string),
	}
}

// NewConnectionError creates a connection-related error
func NewConnectionError(serverName, serverType string, cause error) *MCPError {
	return NewMCPError("Connect", serverName, serverType, MCPErrorTypeConnection, cause)
}

// NewToolDeniedError records an approval request that was rejected
func NewToolDeniedError(toolName, serverName string, cause error) *MCPError {
	return NewMCPError("Approve", serverName, ServerTypeHTTP, MCPErrorTypeToolDenied, cause).
		WithMetadata("tool_name", toolName)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(operation string, cause error) *MCPError {
	return NewMCPError(operation, "", "", MCPErrorTypeConfiguration, cause)
}

func isRetryableErrorType(errorType MCPErrorType) bool {
	switch errorType {
	case MCPErrorTypeConnection,
		MCPErrorTypeTimeout,
		MCPErrorTypeServerStartup,
		MCPErrorTypeServerCrash:
		return true
	default:
		return false
	}
}

// ClassifyError wraps err in an MCPError. Typed errors from the standard
// library are inspected first; the message is only consulted for errors that
// carry no type information, such as JSON-RPC failures reported by a server.
func ClassifyError(err error, operation, serverName, serverType string) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	errorType := classifyTyped(err, operation)
	if errorType == MCPErrorTypeUnknown {
		errorType = classifyMessage(err, operation)
	}
	return NewMCPError(operation, serverName, serverType, errorType, err)
}

func classifyTyped(err error, operation string) MCPErrorType {
	var (
		netErr    net.Error
		opErr     *net.OpError
		dnsErr    *net.DNSError
		urlErr    *url.Error
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		exitErr   *exec.ExitError
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return MCPErrorTypeTimeout
	case errors.Is(err, exec.ErrNotFound):
		return MCPErrorTypeServerNotFound
	case errors.As(err, &exitErr), errors.Is(err, syscall.EPIPE), errors.Is(err, io.ErrUnexpectedEOF):
		return MCPErrorTypeServerCrash
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET), errors.As(err, &dnsErr), errors.As(err, &opErr):
		return MCPErrorTypeConnection
	case errors.As(err, &netErr) && netErr.Timeout():
		return MCPErrorTypeTimeout
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return MCPErrorTypeSerialization
	case errors.As(err, &urlErr):
		if operation == "Connect" {
			return MCPErrorTypeConnection
		}
	}
	return MCPErrorTypeUnknown
}

func classifyMessage(err error, operation string) MCPErrorType {
	errMsg := strings.ToLower(err.Error())

	containsAny := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(errMsg, s) {
				return true
			}
		}
		return false
	}

	switch {
	case containsAny("401", "403", "unauthorized", "forbidden", "invalid token"):
		return MCPErrorTypeAuthentication
	case containsAny("timeout", "deadline exceeded"):
		return MCPErrorTypeTimeout
	case containsAny("unknown tool", "tool not found"):
		return MCPErrorTypeToolNotFound
	case containsAny("not found", "404"):
		if operation == "CallTool" {
			return MCPErrorTypeToolNotFound
		}
		return MCPErrorTypeServerNotFound
	case containsAny("jsonrpc", "protocol", "invalid response"):
		return MCPErrorTypeProtocol
	default:
		return MCPErrorTypeUnknown
	}
}

// FormatUserFriendlyError creates a user-facing error message
func FormatUserFriendlyError(err error) string {
	var mcpErr *MCPError
	if !errors.As(err, &mcpErr) {
		return err.Error()
	}

	switch mcpErr.ErrorType {
	case MCPErrorTypeConnection:
		if mcpErr.ServerType == ServerTypeStdio {
			return fmt.Sprintf("Could not start MCP server '%s'. Please check that the command is installed and accessible.", mcpErr.ServerName)
		}
		return fmt.Sprintf("Could not connect to MCP server '%s'. Please check the server URL and network connectivity.", mcpErr.ServerName)

	case MCPErrorTypeTimeout:
		return fmt.Sprintf("MCP server '%s' took too long to respond. Please try again.", mcpErr.ServerName)

	case MCPErrorTypeAuthentication:
		return fmt.Sprintf("Authentication failed for MCP server '%s'. Please check the bearer token.", mcpErr.ServerName)

	case MCPErrorTypeServerNotFound:
		return fmt.Sprintf("MCP server '%s' was not found. Please check the URL or command.", mcpErr.ServerName)

	case MCPErrorTypeToolDenied:
		return fmt.Sprintf("Call to tool '%s' on MCP server '%s' was not approved.", mcpErr.Metadata["tool_name"], mcpErr.ServerName)

	case MCPErrorTypeConfiguration, MCPErrorTypeValidation:
		return fmt.Sprintf("MCP configuration error: %v", mcpErr.Cause)

	default:
		if mcpErr.ServerName == "" {
			return fmt.Sprintf("MCP error: %v", mcpErr.Cause)
		}
		return fmt.Sprintf("MCP server '%s' error: %v", mcpErr.ServerName, mcpErr.Cause)
	}
}
