// Package prompt builds retrieval-augmented prompts.
package prompt

import "strings"

const contextSep = "\n\n"

// Augment splices retrieved chunks into the question-answering template.
// With no chunks the prompt is returned unchanged.
func Augment(userPrompt string, chunks []string) string {
	if len(chunks) == 0 {
		return userPrompt
	}
	var b strings.Builder
	b.WriteString("Based on the following context information, please answer the question:\n\n")
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(chunks, contextSep))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(userPrompt)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
