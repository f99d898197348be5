package agent

import (
	"fmt"
	"strings"

	"mindvault/types"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

const maxContextLength = 20000 // symbols

const answerSystem = `You are an intelligent study assistant helping a student understand their study material.
Answer clearly and concisely, explain concepts step-by-step, and provide examples when helpful.
Answer strictly from the given context. If the context doesn't contain enough information, say so
and suggest what additional information might be helpful.`

func answerPrompt(context, question string) string {
	return fmt.Sprintf(`Answer the student's question using only the context below.

Context:
%s

Student's Question:
%s

Provide a helpful, educational response:`, context, question)
}

func flashcardPrompt(context string) string {
	return fmt.Sprintf(`Create between 8 and 12 study flashcards from the material below.

Return ONLY a JSON object in exactly this shape, with no prose and no markdown fences:
{"flashcards": [{"front": "question or term", "back": "answer or definition"}]}

Every card must have a non-empty front and back.

Material:
%s`, context)
}

func quizPrompt(context string, count int) string {
	return fmt.Sprintf(`Create exactly %d multiple-choice questions from the material below.

Return ONLY a JSON object in exactly this shape, with no prose and no markdown fences:
{"questions": [{"question": "...", "options": ["A", "B", "C", "D"], "correctIndex": 0}]}

Every question must have exactly 4 options and correctIndex must be an integer between 0 and 3.

Material:
%s`, count, context)
}

// buildContext joins chunk texts in rank order up to the context
// budget. Chunks past the budget are dropped from the prompt and from
// the returned set, so citations always match what the model saw.
func buildContext(scored []types.ScoredChunk) (string, []types.ScoredChunk) {
	var sb strings.Builder
	var used []types.ScoredChunk
	for _, sc := range scored {
		if sb.Len()+len(sc.Chunk.Content) > maxContextLength && sb.Len() > 0 {
			log.Debug().Int("limit", maxContextLength).Int("used", len(used)).
				Msg("context budget reached, dropping remaining chunks")
			break
		}
		sb.WriteString(sc.Chunk.Content)
		sb.WriteString("\n\n")
		used = append(used, sc)
	}
	return sb.String(), used
}

func countTokens(data string) (int, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(data, nil, nil)), nil
}

func logPromptSize(prompt string) {
	count, err := countTokens(prompt)
	if err != nil {
		log.Debug().Err(err).Msg("token count unavailable")
		return
	}
	log.Debug().Int("tokens", count).Int("symbols", len(prompt)).Msg("prompt assembled")
}
