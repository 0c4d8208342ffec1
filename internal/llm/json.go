package llm

import "strings"

// ExtractJSONObject returns the text between the first '{' and the last '}'
// inclusive. Models often wrap the object in commentary or code fences.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}
