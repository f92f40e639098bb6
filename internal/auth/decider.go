// ABOUTME: Registration decision policies consulted at the end of the cascade
// ABOUTME: Interactive yes/no prompt or a fixed allow/deny policy for non-interactive use

package auth

import (
	"context"
	"strings"
)

// Decider answers whether the caller wants to register a new account.
type Decider interface {
	Decide(ctx context.Context, question string) (bool, error)
}

// Asker reads one line of input in response to a question.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// PromptDecider asks the question interactively. Only "y" or "yes"
// (any case) count as affirmative; anything else is a no.
type PromptDecider struct {
	Asker Asker
}

// Decide prompts with question and parses the answer.
func (d PromptDecider) Decide(ctx context.Context, question string) (bool, error) {
	answer, err := d.Asker.Ask(ctx, question+" (y/n)")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// StaticDecider always gives the same answer without prompting.
type StaticDecider bool

// Decide returns the fixed answer.
func (d StaticDecider) Decide(context.Context, string) (bool, error) {
	return bool(d), nil
}

// Predefined non-interactive policies.
const (
	AutoAllow = StaticDecider(true)
	AutoDeny  = StaticDecider(false)
)
