// Package inference forwards prompts to a hosted language model.
package inference

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"
)

const (
	ModelClaudeHaiku  = "anthropic.claude-3-haiku-20240307-v1:0"
	ModelClaudeSonnet = "anthropic.claude-3-sonnet-20240229-v1:0"
	ModelClaudeOpus   = "anthropic.claude-3-opus-20240229-v1:0"
)

// Models lists the model ids requests may select.
var Models = []string{ModelClaudeHaiku, ModelClaudeSonnet, ModelClaudeOpus}

const (
	MaxPromptLength = 10000
	MaxTokensLimit  = 4000
)

var ErrNoOutput = errors.New("model returned no text")

type Request struct {
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

type Result struct {
	Text   string
	Model  string
	Tokens int
}

type Model interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Validate returns a message describing the first invalid field, or "".
func (r Request) Validate() string {
	switch {
	case r.Prompt == "":
		return "Prompt is required"
	case utf8.RuneCountInString(r.Prompt) > MaxPromptLength:
		return fmt.Sprintf("Prompt too long (max %d characters)", MaxPromptLength)
	case r.MaxTokens < 1 || r.MaxTokens > MaxTokensLimit:
		return fmt.Sprintf("Max tokens must be between 1 and %d", MaxTokensLimit)
	case r.Temperature < 0 || r.Temperature > 1:
		return "Temperature must be between 0 and 1"
	case !slices.Contains(Models, r.Model):
		return fmt.Sprintf("Invalid model: %s", r.Model)
	}
	return ""
}
