package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"mindvault/model"
	"mindvault/types"

	"github.com/google/uuid"
)

// fakeStore keeps everything in memory and records enough to assert on
// what the agent persisted.
type fakeStore struct {
	sessions map[uuid.UUID]*types.Session
	chunks   map[uuid.UUID][]types.Chunk
	docs     map[uuid.UUID][]types.DocumentRef
	quizzes  map[uuid.UUID]*types.Quiz
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: map[uuid.UUID]*types.Session{},
		chunks:   map[uuid.UUID][]types.Chunk{},
		docs:     map[uuid.UUID][]types.DocumentRef{},
		quizzes:  map[uuid.UUID]*types.Quiz{},
	}
}

func (f *fakeStore) CreateSession(_ context.Context, s types.Session) error {
	f.sessions[s.ID] = &s
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, id uuid.UUID) (*types.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("no such session")
	}
	return s, nil
}

func (f *fakeStore) ListSessions(_ context.Context, userID string, page, limit int) ([]types.Session, int, error) {
	return nil, 0, nil
}

func (f *fakeStore) UpdateSession(_ context.Context, s types.Session) error {
	f.sessions[s.ID] = &s
	return nil
}

func (f *fakeStore) DeleteSession(_ context.Context, id uuid.UUID) error {
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) AddDocument(_ context.Context, sessionID uuid.UUID, ref types.DocumentRef) error {
	f.docs[sessionID] = append(f.docs[sessionID], ref)
	return nil
}

func (f *fakeStore) SaveChunks(_ context.Context, chunks []types.Chunk) error {
	for _, c := range chunks {
		f.chunks[c.SessionID] = append(f.chunks[c.SessionID], c)
	}
	return nil
}

func (f *fakeStore) ChunksBySession(_ context.Context, sessionID uuid.UUID) ([]types.Chunk, error) {
	return f.chunks[sessionID], nil
}

func (f *fakeStore) DeleteChunksBySession(_ context.Context, sessionID uuid.UUID) error {
	delete(f.chunks, sessionID)
	return nil
}

func (f *fakeStore) AppendMessages(_ context.Context, sessionID uuid.UUID, msgs ...types.Message) error {
	s, ok := f.sessions[sessionID]
	if !ok {
		return errors.New("no such session")
	}
	s.Messages = append(s.Messages, msgs...)
	s.TotalMessages = len(s.Messages)
	return nil
}

func (f *fakeStore) SaveQuiz(_ context.Context, q types.Quiz) error {
	f.quizzes[q.ID] = &q
	return nil
}

func (f *fakeStore) GetQuiz(_ context.Context, id uuid.UUID) (*types.Quiz, error) {
	q, ok := f.quizzes[id]
	if !ok {
		return nil, errors.New("no such quiz")
	}
	return q, nil
}

func (f *fakeStore) ListQuizzes(_ context.Context, sessionID uuid.UUID) ([]types.Quiz, error) {
	var out []types.Quiz
	for _, q := range f.quizzes {
		if q.SessionID == sessionID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendQuizAttempt(_ context.Context, quizID uuid.UUID, attempt types.QuizAttempt) error {
	q, ok := f.quizzes[quizID]
	if !ok {
		return errors.New("no such quiz")
	}
	q.Attempts = append(q.Attempts, attempt)
	return nil
}

// fakeEmbedder returns a fixed vector, or a canned error.
type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

// fakeGenerator returns a fixed response and records the prompt.
type fakeGenerator struct {
	response   string
	err        error
	lastPrompt string
	lastOpts   model.GenerateOptions
	calls      int
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, opts model.GenerateOptions) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	f.lastOpts = opts
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newSession(store *fakeStore) uuid.UUID {
	id := uuid.New()
	store.sessions[id] = &types.Session{ID: id, UserID: "u1", Title: "bio", Status: types.StatusActive}
	return id
}

func seedChunks(store *fakeStore, sessionID uuid.UUID, contents ...string) {
	for i, content := range contents {
		store.chunks[sessionID] = append(store.chunks[sessionID], types.Chunk{
			ID:        uuid.New(),
			SessionID: sessionID,
			FileName:  "notes.pdf",
			Index:     i,
			Content:   content,
			Embedding: []float32{1, float32(i)},
		})
	}
}

func TestIngestDocument(t *testing.T) {
	st := newFakeStore()
	emb := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	a := New(st, emb, &fakeGenerator{}, 500)
	sessionID := newSession(st)

	text := strings.Repeat("lorem ipsum dolor sit amet ", 45) // ~1215 chars
	n, err := a.IngestDocument(context.Background(), sessionID, "notes.pdf", 2, text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 chunks, got %d", n)
	}

	stored := st.chunks[sessionID]
	if len(stored) != 3 {
		t.Fatalf("expected 3 stored chunks, got %d", len(stored))
	}
	for i, c := range stored {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.PageNumber != 1 {
			t.Errorf("chunk %d: expected page 1, got %d", i, c.PageNumber)
		}
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %d stored without embedding", i)
		}
	}
	if emb.calls != 3 {
		t.Errorf("expected 3 embed calls, got %d", emb.calls)
	}
	if len(st.docs[sessionID]) != 1 {
		t.Fatalf("expected 1 document ref, got %d", len(st.docs[sessionID]))
	}
	if st.docs[sessionID][0].Pages != 2 {
		t.Errorf("document ref pages = %d", st.docs[sessionID][0].Pages)
	}
}

func TestIngestDocument_EmbedFailure(t *testing.T) {
	st := newFakeStore()
	emb := &fakeEmbedder{err: types.NewEmbeddingServiceError(503, "down")}
	a := New(st, emb, &fakeGenerator{}, 500)
	sessionID := newSession(st)

	_, err := a.IngestDocument(context.Background(), sessionID, "notes.pdf", 1, "some text")
	var embErr *types.EmbeddingServiceError
	if !errors.As(err, &embErr) {
		t.Fatalf("expected embedding error, got %v", err)
	}
	if len(st.docs[sessionID]) != 0 {
		t.Error("document ref recorded despite ingest failure")
	}
}

func TestAnswerQuestion(t *testing.T) {
	st := newFakeStore()
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	gen := &fakeGenerator{response: "Mitochondria produce ATP."}
	a := New(st, emb, gen, 500)
	sessionID := newSession(st)
	seedChunks(st, sessionID, "chunk one", "chunk two", "chunk three", "chunk four", "chunk five")

	res, err := a.AnswerQuestion(context.Background(), sessionID, "what produces ATP?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Answer != "Mitochondria produce ATP." {
		t.Errorf("unexpected answer: %q", res.Answer)
	}
	if len(res.Sources) != 3 {
		t.Fatalf("expected 3 citations, got %d", len(res.Sources))
	}
	for _, src := range res.Sources {
		if src.FileName != "notes.pdf" {
			t.Errorf("citation points at %q", src.FileName)
		}
	}
	if !strings.Contains(gen.lastPrompt, "what produces ATP?") {
		t.Error("prompt does not carry the question")
	}
	if gen.lastOpts.JSONFormat {
		t.Error("free-form answer requested JSON format")
	}

	msgs := st.sessions[sessionID].Messages
	if len(msgs) != 2 {
		t.Fatalf("expected 2 appended messages, got %d", len(msgs))
	}
	if msgs[0].Role != types.RoleUser || msgs[0].Content != "what produces ATP?" {
		t.Errorf("unexpected user message: %+v", msgs[0])
	}
	if msgs[1].Role != types.RoleAssistant || msgs[1].Content != res.Answer {
		t.Errorf("unexpected assistant message: %+v", msgs[1])
	}
	if len(msgs[1].Sources) != 3 {
		t.Errorf("assistant message carries %d sources", len(msgs[1].Sources))
	}
}

func TestAnswerQuestion_ExcerptRuneBoundary(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{response: "ok"}
	a := New(st, &fakeEmbedder{vec: []float32{1, 0}}, gen, 500)
	sessionID := newSession(st)
	st.chunks[sessionID] = []types.Chunk{{
		ID:        uuid.New(),
		SessionID: sessionID,
		FileName:  "notes.pdf",
		Content:   strings.Repeat("é", 300),
		Embedding: []float32{1, 0},
	}}

	res, err := a.AnswerQuestion(context.Background(), sessionID, "q?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	excerpt := res.Sources[0].Excerpt
	if !utf8.ValidString(excerpt) {
		t.Error("excerpt holds invalid UTF-8")
	}
	if !strings.HasSuffix(excerpt, "...") {
		t.Errorf("long excerpt not truncated: %d bytes", len(excerpt))
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(excerpt, "...")); n != 200 {
		t.Errorf("expected 200 runes before the ellipsis, got %d", n)
	}
}

func TestAnswerQuestion_NoContext(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{response: "should never run"}
	a := New(st, &fakeEmbedder{vec: []float32{1}}, gen, 500)
	sessionID := newSession(st)

	_, err := a.AnswerQuestion(context.Background(), sessionID, "anything?")
	if !errors.Is(err, types.ErrNoContext) {
		t.Fatalf("expected ErrNoContext, got %v", err)
	}
	if gen.calls != 0 {
		t.Error("generator invoked for a session with no chunks")
	}
	if len(st.sessions[sessionID].Messages) != 0 {
		t.Error("history modified despite failure")
	}
}

func TestAnswerQuestion_GenerationFailure(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{err: types.NewGenerationServiceError(500, "boom")}
	a := New(st, &fakeEmbedder{vec: []float32{1, 0}}, gen, 500)
	sessionID := newSession(st)
	seedChunks(st, sessionID, "chunk one")

	_, err := a.AnswerQuestion(context.Background(), sessionID, "q?")
	var genErr *types.GenerationServiceError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if len(st.sessions[sessionID].Messages) != 0 {
		t.Error("history modified despite generation failure")
	}
}

func TestGenerateFlashcards(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{response: `{"flashcards":[
		{"front":"What is ATP?","back":"Cell energy currency"},
		{"front":"","back":"dropped"},
		{"front":"dropped","back":""},
		{"front":"Define osmosis","back":"Diffusion of water"}]}`}
	a := New(st, &fakeEmbedder{vec: []float32{1, 0}}, gen, 500)
	sessionID := newSession(st)
	seedChunks(st, sessionID, "chunk one", "chunk two")

	cards, err := a.GenerateFlashcards(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected 2 valid cards, got %d", len(cards))
	}
	if cards[0].Front != "What is ATP?" || cards[1].Back != "Diffusion of water" {
		t.Errorf("unexpected cards: %+v", cards)
	}
	if !gen.lastOpts.JSONFormat {
		t.Error("flashcard generation did not request JSON format")
	}
}

func TestGenerateFlashcards_AllInvalid(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{response: `{"flashcards":[{"front":"","back":""}]}`}
	a := New(st, &fakeEmbedder{vec: []float32{1}}, gen, 500)
	sessionID := newSession(st)
	seedChunks(st, sessionID, "chunk one")

	_, err := a.GenerateFlashcards(context.Background(), sessionID)
	if !errors.Is(err, types.ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
}

func TestGenerateQuiz(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{response: `{"questions":[
		{"question":"Q1?","options":["a","b","c","d"],"correctIndex":2},
		{"question":"Q2?","options":["a","b","c"],"correctIndex":0},
		{"question":"Q3?","options":["a","b","c","d"],"correctIndex":5},
		{"question":"Q4?","options":["a","b","c","d"],"correctIndex":1.5},
		{"question":"Q5?","options":["a","b","c","d"],"correctIndex":0}]}`}
	a := New(st, &fakeEmbedder{vec: []float32{1, 0}}, gen, 500)
	sessionID := newSession(st)
	seedChunks(st, sessionID, "chunk one", "chunk two")

	quiz, err := a.GenerateQuiz(context.Background(), sessionID, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quiz.Questions) != 2 {
		t.Fatalf("expected 2 surviving questions, got %d", len(quiz.Questions))
	}
	if quiz.Questions[0].Question != "Q1?" || quiz.Questions[0].CorrectIndex != 2 {
		t.Errorf("unexpected first question: %+v", quiz.Questions[0])
	}
	if quiz.Questions[1].Question != "Q5?" {
		t.Errorf("unexpected second question: %+v", quiz.Questions[1])
	}
	if _, ok := st.quizzes[quiz.ID]; !ok {
		t.Error("quiz not persisted")
	}
}

func TestGenerateQuiz_CountClamped(t *testing.T) {
	st := newFakeStore()
	gen := &fakeGenerator{response: `{"questions":[{"question":"Q?","options":["a","b","c","d"],"correctIndex":0}]}`}
	a := New(st, &fakeEmbedder{vec: []float32{1}}, gen, 500)
	sessionID := newSession(st)
	seedChunks(st, sessionID, "chunk one")

	if _, err := a.GenerateQuiz(context.Background(), sessionID, 0); err != nil {
		t.Fatalf("count 0 should clamp, got error: %v", err)
	}
	if !strings.Contains(gen.lastPrompt, "1") {
		t.Error("clamped count missing from prompt")
	}

	if _, err := a.GenerateQuiz(context.Background(), sessionID, 500); err != nil {
		t.Fatalf("count 500 should clamp, got error: %v", err)
	}
	if !strings.Contains(gen.lastPrompt, "50") {
		t.Error("clamped count missing from prompt")
	}
}

func TestAssessQuiz(t *testing.T) {
	st := newFakeStore()
	a := New(st, &fakeEmbedder{}, &fakeGenerator{}, 500)
	sessionID := newSession(st)

	quizID := uuid.New()
	st.quizzes[quizID] = &types.Quiz{
		ID:        quizID,
		SessionID: sessionID,
		Questions: []types.QuizQuestion{
			{Question: "Q1?", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1},
			{Question: "Q2?", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 0},
			{Question: "Q3?", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 3},
		},
	}

	res, err := a.AssessQuiz(context.Background(), quizID, []int{1, 0, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Score != 2 || res.Total != 3 {
		t.Errorf("expected 2/3, got %d/%d", res.Score, res.Total)
	}
	want := []int{1, 0, 3}
	for i, c := range res.CorrectAnswers {
		if c != want[i] {
			t.Errorf("correct answer %d: expected %d, got %d", i, want[i], c)
		}
	}

	if len(st.quizzes[quizID].Attempts) != 1 {
		t.Fatalf("expected 1 recorded attempt, got %d", len(st.quizzes[quizID].Attempts))
	}
	if st.quizzes[quizID].Attempts[0].Score != 2 {
		t.Errorf("recorded attempt score = %d", st.quizzes[quizID].Attempts[0].Score)
	}
}

func TestAssessQuiz_ShortAnswerList(t *testing.T) {
	st := newFakeStore()
	a := New(st, &fakeEmbedder{}, &fakeGenerator{}, 500)

	quizID := uuid.New()
	st.quizzes[quizID] = &types.Quiz{
		ID: quizID,
		Questions: []types.QuizQuestion{
			{Question: "Q1?", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 0},
			{Question: "Q2?", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1},
		},
	}

	res, err := a.AssessQuiz(context.Background(), quizID, []int{0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Score != 1 || res.Total != 2 {
		t.Errorf("expected 1/2, got %d/%d", res.Score, res.Total)
	}
}

func TestSelectContext_NoMessages(t *testing.T) {
	st := newFakeStore()
	emb := &fakeEmbedder{vec: []float32{1}}
	a := New(st, emb, &fakeGenerator{}, 500)
	sessionID := newSession(st)
	seedChunks(st, sessionID, "one", "two", "three")

	scored, err := a.selectContext(context.Background(), sessionID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scored) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(scored))
	}
	// Stored order, no embedding call: there is no message to bias by.
	if scored[0].Content != "one" || scored[1].Content != "two" {
		t.Errorf("unexpected selection: %q, %q", scored[0].Content, scored[1].Content)
	}
	if emb.calls != 0 {
		t.Errorf("embedder invoked %d times without a user message", emb.calls)
	}
}

func TestSelectContext_SessionLookupFailure(t *testing.T) {
	st := newFakeStore()
	a := New(st, &fakeEmbedder{vec: []float32{1}}, &fakeGenerator{}, 500)

	// chunks exist but the session row cannot be read
	sessionID := uuid.New()
	seedChunks(st, sessionID, "one", "two")

	if _, err := a.selectContext(context.Background(), sessionID, 2); err == nil {
		t.Fatal("store failure swallowed, expected an error")
	}
}

func TestSelectContext_BiasedByLastMessage(t *testing.T) {
	st := newFakeStore()
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	a := New(st, emb, &fakeGenerator{}, 500)
	sessionID := newSession(st)
	seedChunks(st, sessionID, "one", "two", "three")
	st.sessions[sessionID].Messages = []types.Message{
		{Role: types.RoleUser, Content: "tell me about osmosis"},
		{Role: types.RoleAssistant, Content: "..."},
	}

	scored, err := a.selectContext(context.Background(), sessionID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scored) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(scored))
	}
	if emb.calls != 1 {
		t.Errorf("expected 1 embed call for the bias query, got %d", emb.calls)
	}
}
