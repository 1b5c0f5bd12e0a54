package llmprovider

// GenerateRequest bundles a conversation with its options.
// It is the unit checked by the ValidationEngine.
type GenerateRequest struct {
	// Messages contains the conversation history.
	Messages []Message

	// Options contains model and generation settings.
	Options CompletionOptions
}
