package llm

import (
	"strings"
	"unicode/utf8"
)

// maxOCRChars bounds the OCR text embedded in a prompt.
const maxOCRChars = 3000

// BuildSystemPrompt returns the extraction rules shared by every backend.
func BuildSystemPrompt() string {
	parts := []string{
		"You are a receipts parser for a canteen. Return ONLY one JSON object and nothing else.",
		"Use exactly these keys: orderNumber (string), dateTime (string, format YYYY-MM-DDTHH:MM:SS),",
		"totalPrice (number, no currency symbols or thousands separators), restaurantName (string),",
		"items (array of objects with name (string) and price (number)), paymentMethod (string).",
		"The order number is printed near the top of the receipt, e.g. POS-080425-110.",
		"If a field is not present, omit it. Never invent values.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the OCR text.
func BuildUserPrompt(ocrText string) string {
	ocr := strings.TrimSpace(ocrText)

	var b strings.Builder
	b.WriteString("OCR text (first ~3k chars):\n")
	if len(ocr) > maxOCRChars {
		cut := maxOCRChars
		for cut > 0 && !utf8.RuneStart(ocr[cut]) {
			cut--
		}
		b.WriteString(ocr[:cut])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(ocr)
	}
	return b.String()
}

// BuildExtractionPrompt is the single-text prompt handed to a Completer.
func BuildExtractionPrompt(ocrText string) string {
	return BuildSystemPrompt() + "\n\n" + BuildUserPrompt(ocrText) + "\n\nJSON:"
}
