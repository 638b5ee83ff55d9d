package extractor

import (
	"errors"
	"strings"
)

var (
	// ErrNoRecipe means the model could not produce a recipe from the input.
	ErrNoRecipe = errors.New("extractor: no recipe found")
	// ErrVideoProcessingFailed is reported when the uploaded file ends in the FAILED state.
	ErrVideoProcessingFailed = errors.New("extractor: video processing failed")
)

// IsQuotaError reports whether err signals an exhausted Gemini quota.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "quota")
}
