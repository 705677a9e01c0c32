// Package chunker bounds text to a token budget before it is sent to a model.
package chunker

import "strings"

// Fit returns the longest prefix of text made of whole sentences whose
// estimated size stays within maxTokens. When even the first sentence is too
// large it is cut at a word boundary. A non-positive budget returns text
// unchanged.
func Fit(text string, maxTokens int) string {
	text = strings.TrimSpace(text)
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return text
	}

	var current strings.Builder
	currentTokens := 0
	for _, sent := range splitSentences(text) {
		sentTokens := EstimateTokens(sent)
		if currentTokens+sentTokens > maxTokens {
			break
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentTokens += sentTokens
	}
	if current.Len() > 0 {
		return current.String()
	}
	return truncateWords(text, maxTokens)
}

// splitSentences does basic sentence splitting on terminal punctuation
// followed by whitespace. Line breaks are kept inside sentences.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n') {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// truncateWords keeps the first words of text that fit in targetTokens.
func truncateWords(text string, targetTokens int) string {
	words := strings.Fields(text)
	// Approximate: 1.33 tokens per word.
	targetWords := int(float64(targetTokens) / 1.33)
	if targetWords <= 0 {
		targetWords = 1
	}
	if len(words) <= targetWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:targetWords], " ")
}
