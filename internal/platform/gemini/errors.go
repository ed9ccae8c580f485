package gemini

import "errors"

// Common errors returned by the Gemini-backed collaborators.
var (
	// ErrInvalidConfig indicates a problem with the LLM configuration,
	// such as a missing API key or model name.
	ErrInvalidConfig = errors.New("invalid LLM configuration")

	// ErrEmptyInput indicates the caller provided no content to work with.
	ErrEmptyInput = errors.New("input content is empty")

	// ErrInvalidResponse indicates the model returned a response that could
	// not be interpreted (no candidates, empty content, or malformed JSON).
	ErrInvalidResponse = errors.New("invalid response from Gemini API")

	// ErrContentBlocked indicates the model refused the request because of
	// safety filters. This is permanent for the given input.
	ErrContentBlocked = errors.New("content blocked by safety filters")
)
