package runstep

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// activityKinds are service-hosted tools reported as Activity
var activityKinds = map[string]bool{
	"bing_grounding":       true,
	"bing_custom_search":   true,
	"azure_ai_search":      true,
	"sharepoint_grounding": true,
	"fabric_dataagent":     true,
	"openapi":              true,
	"azure_function":       true,
	"connected_agent":      true,
	"deep_research":        true,
	"browser_automation":   true,
	"computer_use_preview": true,
}

type wireStep struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	StepDetails struct {
		Type            string `json:"type"`
		MessageCreation struct {
			MessageID string `json:"message_id"`
		} `json:"message_creation"`
		ToolCalls []json.RawMessage `json:"tool_calls"`
	} `json:"step_details"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
		Output    string `json:"output"`
	} `json:"function"`
	CodeInterpreter struct {
		Input   string `json:"input"`
		Outputs []struct {
			Type  string `json:"type"`
			Logs  string `json:"logs"`
			Image struct {
				FileID string `json:"file_id"`
			} `json:"image"`
		} `json:"outputs"`
	} `json:"code_interpreter"`
	FileSearch struct {
		Results []json.RawMessage `json:"results"`
	} `json:"file_search"`

	// MCP calls carry their fields at the top level
	ServerLabel string `json:"server_label"`
	Name        string `json:"name"`
	Arguments   string `json:"arguments"`
	Output      string `json:"output"`
}

type wireContent struct {
	Type string `json:"type"`
	Text struct {
		Value       string `json:"value"`
		Annotations []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"annotations"`
	} `json:"text"`
	ImageFile struct {
		FileID string `json:"file_id"`
	} `json:"image_file"`
}

// ParseStep decodes a run step. ok is false for step kinds this package does
// not model; err is only set for malformed JSON.
func ParseStep(raw []byte) (step Step, ok bool, err error) {
	var w wireStep
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, false, fmt.Errorf("failed to decode run step: %w", err)
	}

	kind := w.StepDetails.Type
	if kind == "" {
		kind = w.Type
	}

	switch kind {
	case "message_creation":
		return MessageCreation{
			ID:        w.ID,
			Status:    w.Status,
			MessageID: w.StepDetails.MessageCreation.MessageID,
		}, true, nil
	case "tool_calls":
		calls := make([]ToolCall, 0, len(w.StepDetails.ToolCalls))
		for _, rawCall := range w.StepDetails.ToolCalls {
			call, known, err := ParseToolCall(rawCall)
			if err != nil {
				return nil, false, err
			}
			if known {
				calls = append(calls, call)
			}
		}
		return ToolCalls{ID: w.ID, Status: w.Status, Calls: calls}, true, nil
	default:
		return nil, false, nil
	}
}

// ParseToolCall decodes one entry of a tool_calls step
func ParseToolCall(raw []byte) (call ToolCall, ok bool, err error) {
	var w wireToolCall
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, false, fmt.Errorf("failed to decode tool call: %w", err)
	}

	switch w.Type {
	case "function":
		return FunctionCall{
			ID:        w.ID,
			Name:      w.Function.Name,
			Arguments: w.Function.Arguments,
			Output:    w.Function.Output,
		}, true, nil
	case "mcp":
		return MCPCall{
			ID:          w.ID,
			ServerLabel: w.ServerLabel,
			Name:        w.Name,
			Arguments:   w.Arguments,
			Output:      w.Output,
		}, true, nil
	case "code_interpreter":
		outputs := make([]string, 0, len(w.CodeInterpreter.Outputs))
		for _, o := range w.CodeInterpreter.Outputs {
			switch o.Type {
			case "logs":
				outputs = append(outputs, o.Logs)
			case "image":
				outputs = append(outputs, "image:"+o.Image.FileID)
			}
		}
		return CodeInterpreterCall{ID: w.ID, Input: w.CodeInterpreter.Input, Outputs: outputs}, true, nil
	case "file_search":
		return FileSearchCall{ID: w.ID, Results: len(w.FileSearch.Results)}, true, nil
	}

	if activityKinds[w.Type] {
		return Activity{ID: w.ID, Kind: w.Type, Detail: activityDetail(raw, w.Type)}, true, nil
	}
	return nil, false, nil
}

// ParseContent decodes one message content part
func ParseContent(raw []byte) (content Content, ok bool, err error) {
	var w wireContent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, false, fmt.Errorf("failed to decode message content: %w", err)
	}

	switch w.Type {
	case "text":
		var annotations []string
		for _, a := range w.Text.Annotations {
			if a.Text != "" {
				annotations = append(annotations, a.Text)
			}
		}
		return TextContent{Text: w.Text.Value, Annotations: annotations}, true, nil
	case "image_file":
		return ImageFileContent{FileID: w.ImageFile.FileID}, true, nil
	default:
		return nil, false, nil
	}
}

// activityDetail returns the compacted payload stored under the kind's key
func activityDetail(raw []byte, kind string) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	detail, ok := fields[kind]
	if !ok {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, detail); err != nil {
		return strings.TrimSpace(string(detail))
	}
	return buf.String()
}
