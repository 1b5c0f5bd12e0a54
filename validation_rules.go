package llmprovider

import (
	"fmt"
)

// ModelValidationRule checks model-related warnings
type ModelValidationRule struct {
	registry *CapabilityRegistry
}

func (r *ModelValidationRule) Name() string {
	return "Model Validation"
}

func (r *ModelValidationRule) Check(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	var warnings []ValidationWarning

	// Check if model exists in capabilities (might be outdated)
	if !r.registry.SupportsModel(provider.String(), req.Options.Model) {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeModelUnknown,
			Category: "model",
			Field:    "model",
			Value:    req.Options.Model,
			Message:  fmt.Sprintf("Model %s not found in %s capabilities (capabilities may be outdated)", req.Options.Model, provider),
			Severity: SeverityWarning,
		})
	}

	return warnings
}

// ToolValidationRule checks tool-related warnings
type ToolValidationRule struct {
	registry *CapabilityRegistry
}

func (r *ToolValidationRule) Name() string {
	return "Tool Validation"
}

func (r *ToolValidationRule) Check(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	var warnings []ValidationWarning
	opts := req.Options

	if tc := opts.ToolChoice; tc != nil && tc.Mode != ToolChoiceModeNone {
		if len(opts.Tools) == 0 {
			warnings = append(warnings, ValidationWarning{
				Code:     WarningCodeToolChoiceWithoutTools,
				Category: "tool",
				Field:    "tool_choice",
				Value:    tc.Mode,
				Message:  "Tool choice is set but no tools are defined (it will be ignored)",
				Severity: SeverityInfo,
			})
		} else if tc.Mode == ToolChoiceModeSpecific && tc.ToolName != nil && !hasTool(opts.Tools, *tc.ToolName) {
			warnings = append(warnings, ValidationWarning{
				Code:     WarningCodeToolChoiceUnknownTool,
				Category: "tool",
				Field:    "tool_choice",
				Value:    *tc.ToolName,
				Message:  fmt.Sprintf("Forced tool %s is not among the defined tools", *tc.ToolName),
				Severity: SeverityError,
			})
		}
	}

	if len(opts.Tools) == 0 {
		return warnings
	}

	modelCap, err := r.registry.GetModelCapability(provider.String(), opts.Model)
	if err != nil {
		// Can't check without capabilities
		return warnings
	}

	if !modelCap.Features.Tools {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeModelDoesNotSupportTools,
			Category: "tool",
			Field:    "tools",
			Value:    len(opts.Tools),
			Message:  fmt.Sprintf("Model %s does not support tools (tool definitions will be dropped)", opts.Model),
			Severity: SeverityWarning,
		})
	}

	return warnings
}

func hasTool(tools []Tool, name string) bool {
	for _, tool := range tools {
		if tool.Function.Name == name {
			return true
		}
	}
	return false
}

// ThinkingValidationRule checks thinking-related warnings
type ThinkingValidationRule struct {
	registry *CapabilityRegistry
}

func (r *ThinkingValidationRule) Name() string {
	return "Thinking Validation"
}

func (r *ThinkingValidationRule) Check(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	var warnings []ValidationWarning
	opts := req.Options

	if !opts.Reasoning {
		return warnings
	}

	// Check effort level (independent of capabilities, defaults cover unknown models)
	if opts.ReasoningBudgetTokens == 0 && opts.ReasoningEffort != "" {
		_, err := r.registry.ConvertEffortToBudget(provider.String(), opts.Model, opts.ReasoningEffort)
		if err != nil {
			warnings = append(warnings, ValidationWarning{
				Code:     WarningCodeThinkingLevelInvalid,
				Category: "thinking",
				Field:    "reasoning_effort",
				Value:    opts.ReasoningEffort,
				Message:  "Unknown reasoning effort (valid: low, medium, high)",
				Severity: SeverityWarning,
			})
		}
	}

	if budget := opts.ReasoningBudgetTokens; budget > 0 && budget >= opts.GetMaxTokens(DefaultMaxTokens) {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeThinkingExceedsOutput,
			Category: "thinking",
			Field:    "reasoning_budget_tokens",
			Value:    budget,
			Message:  fmt.Sprintf("Thinking budget %d must be less than max_tokens %d", budget, opts.GetMaxTokens(DefaultMaxTokens)),
			Severity: SeverityError,
		})
	}

	modelCap, err := r.registry.GetModelCapability(provider.String(), opts.Model)
	if err != nil {
		// Can't check without capabilities
		return warnings
	}

	if !modelCap.Features.Thinking {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeThinkingUnsupported,
			Category: "thinking",
			Field:    "reasoning",
			Value:    true,
			Message:  fmt.Sprintf("Model %s might not support extended thinking", opts.Model),
			Severity: SeverityWarning,
		})
		return warnings
	}

	// Check explicit budget
	if budget := opts.ReasoningBudgetTokens; budget > 0 {
		min, max := modelCap.Thinking.MinBudget, modelCap.Thinking.MaxBudget

		if budget < min {
			warnings = append(warnings, ValidationWarning{
				Code:     WarningCodeThinkingBudgetTooLow,
				Category: "thinking",
				Field:    "reasoning_budget_tokens",
				Value:    budget,
				Message:  fmt.Sprintf("Thinking budget %d below recommended minimum %d", budget, min),
				Severity: SeverityInfo,
			})
		}

		if max > 0 && budget > max {
			warnings = append(warnings, ValidationWarning{
				Code:     WarningCodeThinkingBudgetTooHigh,
				Category: "thinking",
				Field:    "reasoning_budget_tokens",
				Value:    budget,
				Message:  fmt.Sprintf("Thinking budget %d above maximum %d (will likely fail)", budget, max),
				Severity: SeverityError,
			})
		}
	}

	return warnings
}

// VisionValidationRule checks vision-related warnings
type VisionValidationRule struct {
	registry *CapabilityRegistry
}

func (r *VisionValidationRule) Name() string {
	return "Vision Validation"
}

func (r *VisionValidationRule) Check(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	var warnings []ValidationWarning

	if !hasImageContent(req.Messages) {
		return warnings
	}

	modelCap, err := r.registry.GetModelCapability(provider.String(), req.Options.Model)
	if err != nil {
		// Can't check without capabilities
		return warnings
	}

	if !modelCap.Features.Vision {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeVisionUnsupported,
			Category: "vision",
			Field:    "messages",
			Value:    "contains images",
			Message:  fmt.Sprintf("Model %s might not support vision (check capabilities)", req.Options.Model),
			Severity: SeverityWarning,
		})
	}

	return warnings
}

// ParameterValidationRule checks parameter range warnings
type ParameterValidationRule struct {
	registry *CapabilityRegistry
}

func (r *ParameterValidationRule) Name() string {
	return "Parameter Validation"
}

func (r *ParameterValidationRule) Check(provider ProviderID, req *GenerateRequest) []ValidationWarning {
	var warnings []ValidationWarning
	opts := req.Options

	providerCaps, err := r.registry.GetProviderCapabilities(provider.String())
	if err != nil {
		// Can't check without capabilities
		return warnings
	}

	constraints := providerCaps.Constraints

	// Check temperature
	if opts.Temperature != nil {
		temp := *opts.Temperature
		if temp < constraints.TemperatureMin || temp > constraints.TemperatureMax {
			warnings = append(warnings, ValidationWarning{
				Code:     WarningCodeTemperatureOutOfRange,
				Category: "parameter",
				Field:    "temperature",
				Value:    temp,
				Message:  fmt.Sprintf("Temperature %.2f outside recommended range [%.2f, %.2f]", temp, constraints.TemperatureMin, constraints.TemperatureMax),
				Severity: SeverityWarning,
			})
		}
	}

	// Check top_p
	if opts.TopP != nil {
		topP := *opts.TopP
		if topP < constraints.TopPMin || topP > constraints.TopPMax {
			warnings = append(warnings, ValidationWarning{
				Code:     WarningCodeTopPOutOfRange,
				Category: "parameter",
				Field:    "top_p",
				Value:    topP,
				Message:  fmt.Sprintf("TopP %.2f outside recommended range [%.2f, %.2f]", topP, constraints.TopPMin, constraints.TopPMax),
				Severity: SeverityWarning,
			})
		}
	}

	// Check top_k
	if opts.TopK != nil {
		topK := *opts.TopK
		if topK < constraints.TopKMin || topK > constraints.TopKMax {
			warnings = append(warnings, ValidationWarning{
				Code:     WarningCodeTopKOutOfRange,
				Category: "parameter",
				Field:    "top_k",
				Value:    topK,
				Message:  fmt.Sprintf("TopK %d outside recommended range [%d, %d]", topK, constraints.TopKMin, constraints.TopKMax),
				Severity: SeverityWarning,
			})
		}
	}

	return warnings
}

// hasImageContent checks if any message carries an image part
func hasImageContent(messages []Message) bool {
	for _, msg := range messages {
		if msg.Content.HasImages() {
			return true
		}
	}
	return false
}
