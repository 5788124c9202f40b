// Package rag assembles prompts from retrieved context and asks a generator for grounded answers.
package rag

import (
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

const promptTemplate = `[INST]
You are an expert technical assistant. Your task is to answer the user's question.
- Use ONLY the information from the CONTEXT below.
- Do not combine information from different topics or services if they seem unrelated.
- If the context contains information from multiple different documents, prioritize the information that seems most directly related to the user's specific question.
- If the context does not contain the answer, state that you cannot find the information in the provided documents.
- Be concise and accurate.
{{history}}CONTEXT:
{{context}}
---
QUESTION:
{{query}}
[/INST]`

// BuildPrompt places context and query into the fixed instruction wrapper.
func BuildPrompt(context, query string) string {
	return render("", context, query)
}

// BuildConversationPrompt is BuildPrompt with the prior turns of conv listed
// ahead of the context. A nil or empty conversation yields BuildPrompt's output.
func BuildConversationPrompt(conv *models.Conversation, context, query string) string {
	if conv.Len() == 0 {
		return BuildPrompt(context, query)
	}
	var b strings.Builder
	b.WriteString("CONVERSATION SO FAR:\n")
	for _, m := range conv.Messages {
		b.WriteString(speaker(m.Role))
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n")
	}
	b.WriteString("---\n")
	return render(b.String(), context, query)
}

func render(history, context, query string) string {
	// Single pass so placeholder text inside context or query is left alone.
	r := strings.NewReplacer(
		"{{history}}", history,
		"{{context}}", context,
		"{{query}}", query,
	)
	return r.Replace(promptTemplate)
}

func speaker(role string) string {
	if role == models.RoleAssistant {
		return "Assistant"
	}
	return "User"
}
