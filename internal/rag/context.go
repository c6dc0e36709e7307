package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lecture-chat/cli/internal/model"
	"github.com/lecture-chat/cli/internal/vectorindex"
)

// ContextBuilder builds the prompt sent to the generative model
type ContextBuilder struct {
	maxTokens    int
	historyTurns int
}

// NewContextBuilder creates a new context builder. historyTurns is how many of
// the most recent conversation turns are included.
func NewContextBuilder(maxTokens, historyTurns int) *ContextBuilder {
	if maxTokens <= 0 {
		maxTokens = 3000 // Default
	}
	if historyTurns < 0 {
		historyTurns = 0
	}
	return &ContextBuilder{
		maxTokens:    maxTokens,
		historyTurns: historyTurns,
	}
}

// BuildContext formats retrieved chunks as time-tagged excerpts
func (cb *ContextBuilder) BuildContext(hits []vectorindex.Hit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, fmt.Sprintf("[%s] %s", h.Chunk.Timestamp(), h.Chunk.Text))
	}

	context := strings.Join(parts, "\n\n")

	// Truncate if too long (simple token estimation: ~4 chars per token)
	maxChars := cb.maxTokens * 4
	if len(context) > maxChars {
		context = truncate(context, maxChars) + "\n\n[Context truncated...]"
	}
	return context
}

// BuildHistory renders the most recent turns as a Human/Assistant transcript
func (cb *ContextBuilder) BuildHistory(history []model.ConversationTurn) string {
	if cb.historyTurns == 0 || len(history) == 0 {
		return ""
	}
	if len(history) > cb.historyTurns {
		history = history[len(history)-cb.historyTurns:]
	}

	var parts []string
	for _, turn := range history {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		switch turn.Role {
		case model.RoleAssistant:
			parts = append(parts, "Assistant: "+content)
		default:
			parts = append(parts, "Human: "+content)
		}
	}
	return strings.Join(parts, "\n")
}

// BuildPrompt creates a complete prompt with lecture context, history and the question
func (cb *ContextBuilder) BuildPrompt(hits []vectorindex.Hit, history []model.ConversationTurn, question string) string {
	var parts []string

	parts = append(parts, "You are an AI teaching assistant helping students understand lecture content. "+
		"Based on the provided lecture transcript excerpts, answer the student's question accurately and helpfully.")
	parts = append(parts, "")

	parts = append(parts, "Lecture Context:")
	parts = append(parts, cb.BuildContext(hits))
	parts = append(parts, "")

	if conv := cb.BuildHistory(history); conv != "" {
		parts = append(parts, "Previous Conversation:")
		parts = append(parts, conv)
		parts = append(parts, "")
	}

	parts = append(parts, "Student Question: "+strings.TrimSpace(question))
	parts = append(parts, "")
	parts = append(parts, "Instructions:")
	parts = append(parts, "1. Answer based ONLY on the information provided in the lecture context")
	parts = append(parts, "2. If the question cannot be answered from the context, say so politely")
	parts = append(parts, "3. Include relevant timestamps in your response when referring to specific parts")
	parts = append(parts, "4. Be educational and explain concepts clearly")
	parts = append(parts, "5. If you reference specific quotes or examples, mention the timestamp")
	parts = append(parts, "6. Keep responses focused and concise but thorough")
	parts = append(parts, "")
	parts = append(parts, "Answer:")

	return strings.Join(parts, "\n")
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
