package constants

import "strings"

// Backend names an inference backend for the extraction pipeline.
type Backend string

const (
	BackendLocal  Backend = "local"  // on-device tokenizer + generation engine
	BackendGemini Backend = "gemini" // hosted generateContent endpoint over plain HTTP
	BackendGenAI  Backend = "genai"  // hosted Gemini through the Google GenAI SDK
	BackendOpenAI Backend = "openai" // OpenAI-compatible chat completions
)

var allBackends = []Backend{BackendLocal, BackendGemini, BackendGenAI, BackendOpenAI}

// ParseBackend maps a configuration value to a Backend. Empty input is not a backend.
func ParseBackend(s string) (Backend, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for _, b := range allBackends {
		if string(b) == normalized {
			return b, true
		}
	}
	return "", false
}

// IsRemote reports whether the backend calls a hosted service.
func (b Backend) IsRemote() bool {
	return b != BackendLocal
}
