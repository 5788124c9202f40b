package rag

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned by generators when the service answers with no text.
var ErrEmptyResponse = errors.New("empty response from generation service")

// GenerateOptions bounds a single generation call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
}

// DefaultGenerateOptions are the sampling settings used when none are configured.
var DefaultGenerateOptions = GenerateOptions{MaxTokens: 512, Temperature: 0.1}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	ModelName() string
}

// GenerationError is a failed call to the generation service.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation with %s failed: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Message is the text shown to the user in place of an answer.
func (e *GenerationError) Message() string {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return fmt.Sprintf("Error: The generation service (%s) did not answer in time. Please ensure it's running. Details: %v", e.Model, e.Err)
	}
	return fmt.Sprintf("Error: Could not get an answer from the generation service (%s). Please ensure it's running. Details: %v", e.Model, e.Err)
}
