package tokenizer

import "strings"

// FormatPrompt renders a chat prompt: an optional system turn, the user turn,
// and an opened assistant turn for the model to complete.
func FormatPrompt(user, system string) string {
	var sb strings.Builder
	if system != "" {
		writeTurn(&sb, "system", system)
	}
	writeTurn(&sb, "user", user)
	sb.WriteString(TurnStart)
	sb.WriteString("assistant\n")
	return sb.String()
}

func writeTurn(sb *strings.Builder, role, content string) {
	sb.WriteString(TurnStart)
	sb.WriteString(role)
	sb.WriteByte('\n')
	sb.WriteString(content)
	sb.WriteString(TurnEnd)
	sb.WriteByte('\n')
}
