package generator

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

const (
	// MaxPromptChunks bounds how many context chunks go into a prompt.
	MaxPromptChunks = 5

	// maxSummaryInput caps the raw text handed to the summary prompt.
	maxSummaryInput = 2000

	// minFollowUpLength filters out fragments when parsing generated
	// follow-up questions.
	minFollowUpLength = 10

	// MaxFollowUps is the number of follow-up questions returned.
	MaxFollowUps = 3
)

// BuildAnswerPrompt assembles the grounded question-answering prompt: up to
// MaxPromptChunks context excerpts labeled [Context N], the question, and
// instructions to answer from the context and admit when it is insufficient.
func BuildAnswerPrompt(question, documentTitle string, chunks []models.ScoredChunk) string {
	var context strings.Builder
	n := len(chunks)
	if n > MaxPromptChunks {
		n = MaxPromptChunks
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&context, "[Context %d]\n%s\n\n", i+1, chunks[i].Text)
	}

	return fmt.Sprintf(`You are an AI study assistant that helps students understand their study materials. You have been provided with relevant excerpts from %q to answer the student's question.

Context from the document:
%s
Student's Question: %s

Instructions:
- Provide a clear, accurate answer based on the provided context
- Reference specific information from the context when relevant
- If the context doesn't contain enough information, say so honestly
- Use an educational tone that helps the student learn
- Keep your answer concise but comprehensive

Answer:`, documentTitle, context.String(), question)
}

// BuildFollowUpPrompt asks for follow-up questions deepening the student's
// understanding of a completed question and answer.
func BuildFollowUpPrompt(question, answer string) string {
	return fmt.Sprintf(`Based on this Q&A interaction, generate %d relevant follow-up questions that a student might ask to deepen their understanding:

Original Question: %s
Answer: %s

Generate %d follow-up questions that would help the student learn more about this topic:
1.`, MaxFollowUps, question, answer, MaxFollowUps)
}

// BuildSummaryPrompt asks for a concise summary of document text. Input
// beyond maxSummaryInput characters is dropped.
func BuildSummaryPrompt(documentTitle, text string) string {
	if len(text) > maxSummaryInput {
		text = text[:maxSummaryInput]
	}
	return fmt.Sprintf(`Please provide a concise summary of the following text from %q:

%s

Summary:`, documentTitle, text)
}

// ParseFollowUps extracts questions from a generated follow-up response:
// lines led by a list marker ("1.", "2.", "3.", or "-"), stripped of the
// marker, longer than minFollowUpLength characters, capped at MaxFollowUps.
func ParseFollowUps(response string) []string {
	var questions []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var question string
		switch {
		case strings.HasPrefix(line, "1.") || strings.HasPrefix(line, "2.") || strings.HasPrefix(line, "3."):
			question = strings.TrimSpace(line[2:])
		case strings.HasPrefix(line, "-"):
			question = strings.TrimSpace(strings.TrimPrefix(line, "-"))
		default:
			continue
		}
		if len(question) > minFollowUpLength {
			questions = append(questions, question)
		}
		if len(questions) == MaxFollowUps {
			break
		}
	}
	return questions
}

// FallbackFollowUps returns generic follow-up questions used when
// generation fails or yields nothing parseable.
func FallbackFollowUps() []string {
	return []string{
		"Can you explain this concept in more detail?",
		"What are some related topics I should study?",
		"Can you provide an example to illustrate this?",
	}
}
