package anthropic

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/haowjy/meridian-claude-go"
)

// convertTools converts library function tools to Anthropic custom tools.
// OpenAI-style {name, description, parameters} becomes {name, description, input_schema}.
func convertTools(tools []llmprovider.Tool) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	result := make([]anthropic.ToolUnionParam, 0, len(tools))

	for i := range tools {
		tool := &tools[i]
		if err := tool.Validate(); err != nil {
			return nil, fmt.Errorf("tool %d (%s): %w", i, tool.Function.Name, err)
		}
		result = append(result, convertCustomTool(tool))
	}

	return result, nil
}

// convertCustomTool converts a function tool to Anthropic custom tool format.
func convertCustomTool(tool *llmprovider.Tool) anthropic.ToolUnionParam {
	// Anthropic format needs:
	// - Type: "object" (elided, marshals as "object")
	// - Properties: just the properties object (not full schema)
	// - Required: list of required property names
	// - ExtraFields: other schema fields like "additionalProperties"
	schema := anthropic.ToolInputSchemaParam{
		Properties:  tool.Function.Parameters["properties"],
		Required:    requiredFields(tool.Function.Parameters["required"]),
		ExtraFields: make(map[string]any),
	}

	for key, value := range tool.Function.Parameters {
		if key != "type" && key != "properties" && key != "required" {
			schema.ExtraFields[key] = value
		}
	}

	toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Function.Name)
	if tool.Function.Description != "" {
		toolParam.OfTool.Description = anthropic.String(tool.Function.Description)
	}

	return toolParam
}

// requiredFields accepts both []string (Go callers) and []interface{} (decoded JSON/YAML).
func requiredFields(v any) []string {
	switch required := v.(type) {
	case []string:
		return required
	case []interface{}:
		out := make([]string, 0, len(required))
		for _, item := range required {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// convertToolChoice converts library ToolChoice to Anthropic format.
// Returns nil if no tool choice specified (lets provider decide).
func convertToolChoice(choice *llmprovider.ToolChoice) (*anthropic.ToolChoiceUnionParam, error) {
	if choice == nil {
		return nil, nil
	}

	if err := choice.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tool choice: %w", err)
	}

	switch choice.Mode {
	case llmprovider.ToolChoiceModeAuto:
		return &anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}, nil

	case llmprovider.ToolChoiceModeRequired:
		// Anthropic calls this "any"
		return &anthropic.ToolChoiceUnionParam{
			OfAny: &anthropic.ToolChoiceAnyParam{},
		}, nil

	case llmprovider.ToolChoiceModeNone:
		noneParam := anthropic.NewToolChoiceNoneParam()
		return &anthropic.ToolChoiceUnionParam{
			OfNone: &noneParam,
		}, nil

	case llmprovider.ToolChoiceModeSpecific:
		// Forced tool: {"type": "tool", "name": ...}
		unionParam := anthropic.ToolChoiceParamOfTool(*choice.ToolName)
		return &unionParam, nil

	default:
		return nil, fmt.Errorf("unsupported tool choice mode: %s", choice.Mode)
	}
}
