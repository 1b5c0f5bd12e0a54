package llmprovider

import (
	"errors"
	"fmt"
)

// ToolChoiceMode controls tool selection behavior
type ToolChoiceMode string

const (
	ToolChoiceModeAuto     ToolChoiceMode = "auto"     // Model decides whether to use tools
	ToolChoiceModeRequired ToolChoiceMode = "required" // Model must use a tool
	ToolChoiceModeNone     ToolChoiceMode = "none"     // Model cannot use tools
	ToolChoiceModeSpecific ToolChoiceMode = "specific" // Model must use specific tool
)

// FunctionDetails represents the function definition within a tool (OpenAI format).
type FunctionDetails struct {
	Name        string                 `json:"name" yaml:"name"`                                   // Function name (required)
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"` // What the function does
	Parameters  map[string]interface{} `json:"parameters" yaml:"parameters"`                       // JSON Schema for parameters
}

// Tool represents a function tool (OpenAI universal format).
// Anthropic encoders flatten it to {name, description, input_schema}.
type Tool struct {
	Type     string          `json:"type" yaml:"type"`         // Always "function" for function tools
	Function FunctionDetails `json:"function" yaml:"function"` // Function definition
}

// Validate checks if the Tool is properly configured
func (t *Tool) Validate() error {
	if t.Type == "" {
		return errors.New("tool type is required")
	}

	if t.Type != "function" {
		return fmt.Errorf("unsupported tool type: %s (only 'function' is supported)", t.Type)
	}

	if t.Function.Name == "" {
		return errors.New("function name is required")
	}

	if t.Function.Parameters == nil {
		return errors.New("function parameters are required")
	}

	// Validate that parameters is a valid JSON schema object
	if schemaType, ok := t.Function.Parameters["type"].(string); !ok || schemaType != "object" {
		return errors.New("function parameters must be a JSON schema with type 'object'")
	}

	return nil
}

// NewFunctionTool creates a validated function tool.
//
// Example parameters:
//
//	map[string]interface{}{
//	  "type": "object",
//	  "properties": map[string]interface{}{
//	    "location": map[string]interface{}{"type": "string"},
//	  },
//	  "required": []string{"location"},
//	}
func NewFunctionTool(name string, description string, parameters map[string]interface{}) (*Tool, error) {
	tool := &Tool{
		Type: "function",
		Function: FunctionDetails{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}

	if err := tool.Validate(); err != nil {
		return nil, fmt.Errorf("invalid function tool: %w", err)
	}

	return tool, nil
}

// ToolChoice specifies tool selection behavior
type ToolChoice struct {
	Mode     ToolChoiceMode `json:"mode" yaml:"mode"`                               // Selection mode
	ToolName *string        `json:"tool_name,omitempty" yaml:"tool_name,omitempty"` // Required when Mode is ToolChoiceModeSpecific
}

// Validate checks if the ToolChoice is properly configured
func (tc *ToolChoice) Validate() error {
	if tc.Mode == ToolChoiceModeSpecific && tc.ToolName == nil {
		return errors.New("tool_name is required when mode is 'specific'")
	}

	if tc.Mode == ToolChoiceModeSpecific && *tc.ToolName == "" {
		return errors.New("tool_name cannot be empty when mode is 'specific'")
	}

	switch tc.Mode {
	case ToolChoiceModeAuto, ToolChoiceModeRequired, ToolChoiceModeNone, ToolChoiceModeSpecific:
	default:
		return fmt.Errorf("invalid tool choice mode: %s", tc.Mode)
	}

	return nil
}

// NewToolChoice creates a new ToolChoice with the specified mode
func NewToolChoice(mode ToolChoiceMode) (*ToolChoice, error) {
	tc := &ToolChoice{
		Mode: mode,
	}

	if err := tc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tool choice: %w", err)
	}

	return tc, nil
}

// ForceTool returns a ToolChoice that forces the model to call the named tool.
func ForceTool(toolName string) *ToolChoice {
	return &ToolChoice{
		Mode:     ToolChoiceModeSpecific,
		ToolName: &toolName,
	}
}
