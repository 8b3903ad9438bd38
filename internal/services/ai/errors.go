package ai

import "errors"

var (
	ErrNotConfigured         = errors.New("AI provider is not configured")
	ErrGenerationUnavailable = errors.New("text generation service is unavailable")
	ErrEmbeddingUnavailable  = errors.New("embedding service is unavailable")
)
