package types

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	StatusActive   SessionStatus = "active"
	StatusArchived SessionStatus = "archived"
	StatusPaused   SessionStatus = "paused"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Chunk is one embedded segment of a document's extracted text.
// Chunks are immutable after ingestion; per-query similarity lives in
// ScoredChunk, never on the stored record.
type Chunk struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"sessionId"`
	DocumentID uuid.UUID `json:"documentId"`
	FileName   string    `json:"fileName"`
	Index      int       `json:"index"`
	PageNumber int       `json:"pageNumber"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ScoredChunk pairs a chunk with its cosine similarity for one query.
type ScoredChunk struct {
	Chunk
	Similarity float64
}

type DocumentRef struct {
	ID         uuid.UUID `json:"id"`
	FileName   string    `json:"fileName"`
	Pages      int       `json:"pages"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type Citation struct {
	FileName   string  `json:"fileName"`
	PageNumber int     `json:"pageNumber"`
	Excerpt    string  `json:"excerpt"`
	Similarity float64 `json:"similarity"`
}

type Message struct {
	ID        uuid.UUID   `json:"id"`
	SessionID uuid.UUID   `json:"sessionId"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Sources   []Citation  `json:"sources,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

type Session struct {
	ID            uuid.UUID     `json:"id"`
	UserID        string        `json:"userId"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Status        SessionStatus `json:"status"`
	Documents     []DocumentRef `json:"documents"`
	Messages      []Message     `json:"messages,omitempty"`
	TotalMessages int           `json:"totalMessages"`
	LastActivity  time.Time     `json:"lastActivity"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

type QuizAttempt struct {
	Answers   []int     `json:"answers"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

type Quiz struct {
	ID        uuid.UUID      `json:"id"`
	SessionID uuid.UUID      `json:"sessionId"`
	Questions []QuizQuestion `json:"questions"`
	Attempts  []QuizAttempt  `json:"attempts"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Flashcard is ephemeral: generated, returned, never persisted.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Config is assembled once at process start and handed to the
// component constructors. Components never read the environment.
type Config struct {
	ListenAddr     string
	PostgresDSN    string
	EmbeddingURL   string
	EmbeddingModel string
	GenerateURL    string
	GenerateModel  string
	ChunkSize      int
	UploadDir      string
	RequestTimeout time.Duration
}
