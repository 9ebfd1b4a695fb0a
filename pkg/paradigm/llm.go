package paradigm

import "context"

// LLMClient is the minimal generation surface the "generate" affordance
// calls into. Grounded on pkg/executor/builtin's LLMProvider interface
// (Execute(ctx, *models.LLMRequest) (*models.LLMResponse, error)),
// narrowed to a single prompt-in/text-out method since Paradigm affordances
// only ever need a rendered prompt and a completion.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EchoLLMClient is the dev-mode default: it performs no network call and
// returns the prompt unchanged, letting a sequence exercise MFP/TVA
// wiring (Scenario 1) without a configured provider.
type EchoLLMClient struct{}

func (EchoLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	return prompt, nil
}
