package agent

import (
	"context"
	"math"
	"strings"
	"time"

	"mindvault/loader"
	"mindvault/model"
	"mindvault/store"
	"mindvault/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	answerTopK    = 3
	flashcardTopK = 10
	quizTopK      = 12
	embedBatch    = 5
	excerptLength = 200
	minQuizCount  = 1
	maxQuizCount  = 50
)

// Agent composes chunking, embedding, similarity ranking and
// generation into the retrieval flows. All operations are
// request-scoped; the store is the only shared state.
type Agent struct {
	store     store.DBStorer
	embedder  model.Embedder
	generator model.Generator
	chunker   *loader.Chunker
}

func New(storer store.DBStorer, embedder model.Embedder, generator model.Generator, chunkSize int) *Agent {
	return &Agent{
		store:     storer,
		embedder:  embedder,
		generator: generator,
		chunker:   loader.NewChunker(chunkSize),
	}
}

type AnswerResult struct {
	Answer  string           `json:"answer"`
	Sources []types.Citation `json:"sources"`
}

type AssessResult struct {
	Score          int   `json:"score"`
	Total          int   `json:"total"`
	CorrectAnswers []int `json:"correctAnswers"`
}

// IngestDocument chunks the extracted text, embeds the chunks in
// batches of embedBatch issued concurrently within a batch, and stores
// each batch before the next one starts. Page numbers are derived from
// the chunk's original position before dispatch, so embedding
// completion order never affects them. Ingestion is not transactional
// across batches: chunks stored before a failure stay stored, and
// re-ingesting the same document appends new chunks rather than
// deduplicating.
func (a *Agent) IngestDocument(ctx context.Context, sessionID uuid.UUID, fileName string, pages int, text string) (int, error) {
	texts := a.chunker.Split(text)

	docID := uuid.New()
	now := time.Now()

	chunks := make([]types.Chunk, len(texts))
	for i, content := range texts {
		chunks[i] = types.Chunk{
			ID:         uuid.New(),
			SessionID:  sessionID,
			DocumentID: docID,
			FileName:   fileName,
			Index:      i,
			PageNumber: i/10 + 1, // approximate, ~10 chunks per page
			Content:    content,
			CreatedAt:  now,
		}
	}

	for start := 0; start < len(chunks); start += embedBatch {
		end := start + embedBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		g, gctx := errgroup.WithContext(ctx)
		for i := range batch {
			g.Go(func() error {
				embedding, err := a.embedder.Embed(gctx, batch[i].Content)
				if err != nil {
					return err
				}
				batch[i].Embedding = embedding
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}

		if err := a.store.SaveChunks(ctx, batch); err != nil {
			return 0, err
		}
		log.Debug().Int("from", start).Int("to", end).Str("file", fileName).Msg("chunk batch stored")
	}

	ref := types.DocumentRef{
		ID:         docID,
		FileName:   fileName,
		Pages:      pages,
		UploadedAt: now,
	}
	if err := a.store.AddDocument(ctx, sessionID, ref); err != nil {
		return 0, err
	}

	log.Info().Str("file", fileName).Int("chunks", len(chunks)).Msg("document ingested")
	return len(chunks), nil
}

// AnswerQuestion retrieves the top chunks for the question, asks the
// model to answer from them, and appends the user/assistant message
// pair. On any failure before the append the session history stays
// untouched.
func (a *Agent) AnswerQuestion(ctx context.Context, sessionID uuid.UUID, question string) (*AnswerResult, error) {
	queryVec, err := a.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	chunks, err := a.store.ChunksBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, types.ErrNoContext
	}

	top := Rank(queryVec, chunks, answerTopK)
	contextText, used := buildContext(top)

	prompt := answerPrompt(contextText, question)
	logPromptSize(prompt)

	answer, err := a.generator.Generate(ctx, prompt, model.GenerateOptions{System: answerSystem})
	if err != nil {
		return nil, err
	}

	sources := citations(used)
	now := time.Now()
	userMsg := types.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      types.RoleUser,
		Content:   question,
		CreatedAt: now,
	}
	assistantMsg := types.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      types.RoleAssistant,
		Content:   answer,
		Sources:   sources,
		CreatedAt: now,
	}
	if err := a.store.AppendMessages(ctx, sessionID, userMsg, assistantMsg); err != nil {
		return nil, err
	}

	return &AnswerResult{Answer: answer, Sources: sources}, nil
}

// GenerateFlashcards builds 8-12 front/back cards from session
// context. The context is biased by the most recent user message's
// embedding when the session has one; otherwise the first
// flashcardTopK chunks in stored order are used. Cards are ephemeral.
func (a *Agent) GenerateFlashcards(ctx context.Context, sessionID uuid.UUID) ([]types.Flashcard, error) {
	scored, err := a.selectContext(ctx, sessionID, flashcardTopK)
	if err != nil {
		return nil, err
	}
	contextText, _ := buildContext(scored)

	prompt := flashcardPrompt(contextText)
	logPromptSize(prompt)

	raw, err := a.generator.Generate(ctx, prompt, model.GenerateOptions{JSONFormat: true})
	if err != nil {
		return nil, err
	}

	obj, err := model.ExtractObject(raw)
	if err != nil {
		return nil, err
	}

	var cards []types.Flashcard
	for _, item := range model.PickList(obj, "flashcards", "cards", "items") {
		front := stringField(item, "front")
		back := stringField(item, "back")
		if front == "" || back == "" {
			continue
		}
		cards = append(cards, types.Flashcard{Front: front, Back: back})
	}
	if len(cards) == 0 {
		return nil, types.ErrEmptyResult
	}
	return cards, nil
}

// GenerateQuiz asks for count questions (clamped to [1,50]), validates
// each strictly and persists the surviving set as a new quiz.
func (a *Agent) GenerateQuiz(ctx context.Context, sessionID uuid.UUID, count int) (*types.Quiz, error) {
	if count < minQuizCount {
		count = minQuizCount
	}
	if count > maxQuizCount {
		count = maxQuizCount
	}

	scored, err := a.selectContext(ctx, sessionID, quizTopK)
	if err != nil {
		return nil, err
	}
	contextText, _ := buildContext(scored)

	prompt := quizPrompt(contextText, count)
	logPromptSize(prompt)

	raw, err := a.generator.Generate(ctx, prompt, model.GenerateOptions{JSONFormat: true})
	if err != nil {
		return nil, err
	}

	obj, err := model.ExtractObject(raw)
	if err != nil {
		return nil, err
	}

	var questions []types.QuizQuestion
	for _, item := range model.PickList(obj, "questions", "quiz", "items") {
		q, ok := parseQuestion(item)
		if !ok {
			log.Debug().Interface("item", item).Msg("discarding invalid quiz question")
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, types.ErrEmptyResult
	}

	quiz := types.Quiz{
		ID:        uuid.New(),
		SessionID: sessionID,
		Questions: questions,
		CreatedAt: time.Now(),
	}
	if err := a.store.SaveQuiz(ctx, quiz); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// AssessQuiz scores submitted answers by positional exact match
// against the stored correct indices. Missing or extra answers simply
// don't match.
func (a *Agent) AssessQuiz(ctx context.Context, quizID uuid.UUID, answers []int) (*AssessResult, error) {
	quiz, err := a.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	correct := make([]int, len(quiz.Questions))
	score := 0
	for i, q := range quiz.Questions {
		correct[i] = q.CorrectIndex
		if i < len(answers) && answers[i] == q.CorrectIndex {
			score++
		}
	}

	attempt := types.QuizAttempt{
		Answers:   answers,
		Score:     score,
		CreatedAt: time.Now(),
	}
	if err := a.store.AppendQuizAttempt(ctx, quizID, attempt); err != nil {
		return nil, err
	}

	return &AssessResult{Score: score, Total: len(quiz.Questions), CorrectAnswers: correct}, nil
}

// selectContext picks up to k chunks for study-aid generation. When
// the session has a user message, its embedding biases the selection
// toward recently discussed material; otherwise the first k chunks in
// stored order stand in.
func (a *Agent) selectContext(ctx context.Context, sessionID uuid.UUID, k int) ([]types.ScoredChunk, error) {
	chunks, err := a.store.ChunksBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, types.ErrNoContext
	}

	question, err := a.lastUserMessage(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if question != "" {
		queryVec, err := a.embedder.Embed(ctx, question)
		if err != nil {
			return nil, err
		}
		return Rank(queryVec, chunks, k), nil
	}

	if k > len(chunks) {
		k = len(chunks)
	}
	scored := make([]types.ScoredChunk, k)
	for i := 0; i < k; i++ {
		scored[i] = types.ScoredChunk{Chunk: chunks[i]}
	}
	return scored, nil
}

func (a *Agent) lastUserMessage(ctx context.Context, sessionID uuid.UUID) (string, error) {
	session, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	for i := len(session.Messages) - 1; i >= 0; i-- {
		if session.Messages[i].Role == types.RoleUser {
			return session.Messages[i].Content, nil
		}
	}
	return "", nil
}

func citations(scored []types.ScoredChunk) []types.Citation {
	sources := make([]types.Citation, len(scored))
	for i, sc := range scored {
		excerpt := sc.Chunk.Content
		// cut on a rune boundary, a byte slice can split a multi-byte
		// character
		if runes := []rune(excerpt); len(runes) > excerptLength {
			excerpt = string(runes[:excerptLength]) + "..."
		}
		sources[i] = types.Citation{
			FileName:   sc.Chunk.FileName,
			PageNumber: sc.Chunk.PageNumber,
			Excerpt:    excerpt,
			Similarity: sc.Similarity,
		}
	}
	return sources
}

func stringField(item map[string]any, key string) string {
	s, _ := item[key].(string)
	return strings.TrimSpace(s)
}

// parseQuestion applies the strict schema: exactly 4 options, all
// non-empty strings, and an integral correctIndex in [0,3].
func parseQuestion(item map[string]any) (types.QuizQuestion, bool) {
	question := stringField(item, "question")
	if question == "" {
		return types.QuizQuestion{}, false
	}

	rawOptions, ok := item["options"].([]any)
	if !ok || len(rawOptions) != 4 {
		return types.QuizQuestion{}, false
	}
	options := make([]string, 4)
	for i, o := range rawOptions {
		s, ok := o.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return types.QuizQuestion{}, false
		}
		options[i] = s
	}

	idx, ok := item["correctIndex"].(float64)
	if !ok || idx != math.Trunc(idx) || idx < 0 || idx > 3 {
		return types.QuizQuestion{}, false
	}

	return types.QuizQuestion{
		Question:     question,
		Options:      options,
		CorrectIndex: int(idx),
	}, true
}
