package app

import "errors"

// Request validation and orchestration failures surfaced to handlers.
var (
	ErrEmptyPrompt        = errors.New("prompt is required")
	ErrPromptTooLong      = errors.New("prompt exceeds the maximum length")
	ErrInvalidContentType = errors.New("unsupported content type")
	ErrInvalidTemperature = errors.New("temperature must be between 0 and 2")
	ErrInvalidMaxTokens   = errors.New("max tokens must be between 100 and 8000")
	ErrNotConfigured      = errors.New("provider api key is not configured")
)
