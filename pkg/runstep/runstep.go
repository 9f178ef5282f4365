// Package runstep models the heterogeneous run step and message content
// payloads returned by the agent service as closed sets of Go types.
//
// Every payload is decoded into exactly one concrete variant. Variants the
// package does not know are skipped by the parsers rather than reported as
// errors, so new server-side step kinds never break a conversation.
package runstep

// Step is a run step. Implemented by MessageCreation and ToolCalls only.
type Step interface {
	StepID() string
	isStep()
}

// MessageCreation is a step in which the agent wrote a message to the thread
type MessageCreation struct {
	ID        string
	Status    string
	MessageID string
}

// ToolCalls is a step in which the agent invoked one or more tools
type ToolCalls struct {
	ID     string
	Status string
	Calls  []ToolCall
}

func (s MessageCreation) StepID() string { return s.ID }
func (s ToolCalls) StepID() string       { return s.ID }

func (MessageCreation) isStep() {}
func (ToolCalls) isStep()       {}

// ToolCall is one tool invocation inside a ToolCalls step. Implemented by
// FunctionCall, MCPCall, CodeInterpreterCall, FileSearchCall and Activity.
type ToolCall interface {
	CallID() string
	isToolCall()
}

// FunctionCall is a client-side function tool invocation
type FunctionCall struct {
	ID        string
	Name      string
	Arguments string
	Output    string
}

// MCPCall is a call the service made to a remote MCP server
type MCPCall struct {
	ID          string
	ServerLabel string
	Name        string
	Arguments   string
	Output      string
}

// CodeInterpreterCall is a code interpreter execution
type CodeInterpreterCall struct {
	ID      string
	Input   string
	Outputs []string
}

// FileSearchCall is a file search over attached vector stores
type FileSearchCall struct {
	ID      string
	Results int
}

// Activity is a service-hosted tool the harness only reports on, such as
// grounding or search connectors
type Activity struct {
	ID     string
	Kind   string
	Detail string
}

func (c FunctionCall) CallID() string        { return c.ID }
func (c MCPCall) CallID() string             { return c.ID }
func (c CodeInterpreterCall) CallID() string { return c.ID }
func (c FileSearchCall) CallID() string      { return c.ID }
func (c Activity) CallID() string            { return c.ID }

func (FunctionCall) isToolCall()        {}
func (MCPCall) isToolCall()             {}
func (CodeInterpreterCall) isToolCall() {}
func (FileSearchCall) isToolCall()      {}
func (Activity) isToolCall()            {}

// Content is one part of a thread message. Implemented by TextContent and
// ImageFileContent.
type Content interface {
	isContent()
}

// TextContent is plain text, optionally with citation annotations
type TextContent struct {
	Text        string
	Annotations []string
}

// ImageFileContent references an image file produced by a tool
type ImageFileContent struct {
	FileID string
}

func (TextContent) isContent()      {}
func (ImageFileContent) isContent() {}
