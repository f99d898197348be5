package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mindvault/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
)

type DBStorer interface {
	CreateSession(context.Context, types.Session) error
	GetSession(context.Context, uuid.UUID) (*types.Session, error)
	ListSessions(ctx context.Context, userID string, page, limit int) ([]types.Session, int, error)
	UpdateSession(context.Context, types.Session) error
	DeleteSession(context.Context, uuid.UUID) error
	AddDocument(context.Context, uuid.UUID, types.DocumentRef) error
	SaveChunks(context.Context, []types.Chunk) error
	ChunksBySession(context.Context, uuid.UUID) ([]types.Chunk, error)
	DeleteChunksBySession(context.Context, uuid.UUID) error
	AppendMessages(context.Context, uuid.UUID, ...types.Message) error
	SaveQuiz(context.Context, types.Quiz) error
	GetQuiz(context.Context, uuid.UUID) (*types.Quiz, error)
	ListQuizzes(context.Context, uuid.UUID) ([]types.Quiz, error)
	AppendQuizAttempt(context.Context, uuid.UUID, types.QuizAttempt) error
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

func (p *PostgresStore) CreateSession(ctx context.Context, s types.Session) error {
	query := `INSERT INTO sessions (id, user_id, title, description, status, total_messages, last_activity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := p.pool.Exec(ctx, query,
		s.ID, s.UserID, s.Title, s.Description, s.Status, 0, s.LastActivity, s.CreatedAt,
	)
	return err
}

func (p *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*types.Session, error) {
	s := &types.Session{}
	err := p.pool.QueryRow(ctx,
		`SELECT id, user_id, title, description, status, total_messages, last_activity, created_at
		 FROM sessions WHERE id = $1`, id).
		Scan(&s.ID, &s.UserID, &s.Title, &s.Description, &s.Status, &s.TotalMessages, &s.LastActivity, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, err
	}

	docs, err := p.documentsBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Documents = docs

	msgs, err := p.messagesBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Messages = msgs

	return s, nil
}

func (p *PostgresStore) ListSessions(ctx context.Context, userID string, page, limit int) ([]types.Session, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var total int
	if err := p.pool.QueryRow(ctx,
		`SELECT count(*) FROM sessions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, user_id, title, description, status, total_messages, last_activity, created_at
		 FROM sessions WHERE user_id = $1
		 ORDER BY last_activity DESC
		 LIMIT $2 OFFSET $3`, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []types.Session
	for rows.Next() {
		var s types.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.Description, &s.Status,
			&s.TotalMessages, &s.LastActivity, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, s)
	}
	return sessions, total, rows.Err()
}

func (p *PostgresStore) UpdateSession(ctx context.Context, s types.Session) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE sessions SET title = $2, description = $3, status = $4 WHERE id = $1`,
		s.ID, s.Title, s.Description, s.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteSession removes the session's dependents first and the session
// row last: chunks depend on the session, so the cascade runs
// chunks -> messages -> documents -> quizzes -> session.
func (p *PostgresStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := p.DeleteChunksBySession(ctx, id); err != nil {
		return err
	}
	for _, query := range []string{
		`DELETE FROM messages WHERE session_id = $1`,
		`DELETE FROM session_documents WHERE session_id = $1`,
		`DELETE FROM quiz_attempts WHERE quiz_id IN (SELECT id FROM quizzes WHERE session_id = $1)`,
		`DELETE FROM quizzes WHERE session_id = $1`,
	} {
		if _, err := p.pool.Exec(ctx, query, id); err != nil {
			return err
		}
	}

	tag, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (p *PostgresStore) AddDocument(ctx context.Context, sessionID uuid.UUID, ref types.DocumentRef) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO session_documents (id, session_id, file_name, pages, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		ref.ID, sessionID, ref.FileName, ref.Pages, ref.UploadedAt)
	return err
}

func (p *PostgresStore) documentsBySession(ctx context.Context, sessionID uuid.UUID) ([]types.DocumentRef, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, file_name, pages, uploaded_at FROM session_documents
		 WHERE session_id = $1 ORDER BY uploaded_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []types.DocumentRef
	for rows.Next() {
		var d types.DocumentRef
		if err := rows.Scan(&d.ID, &d.FileName, &d.Pages, &d.UploadedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (p *PostgresStore) SaveChunks(ctx context.Context, chunks []types.Chunk) error {
	query := `INSERT INTO chunks (id, session_id, document_id, file_name, position, page_number, content, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, c := range chunks {
		_, err := p.pool.Exec(ctx, query,
			c.ID, c.SessionID, c.DocumentID, c.FileName, c.Index, c.PageNumber, c.Content,
			pgvector.NewVector(c.Embedding), c.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresStore) ChunksBySession(ctx context.Context, sessionID uuid.UUID) ([]types.Chunk, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, session_id, document_id, file_name, position, page_number, content, embedding, created_at
		 FROM chunks WHERE session_id = $1
		 ORDER BY document_id, position`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var c types.Chunk
		var embedding pgvector.Vector
		if err := rows.Scan(&c.ID, &c.SessionID, &c.DocumentID, &c.FileName,
			&c.Index, &c.PageNumber, &c.Content, &embedding, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Embedding = embedding.Slice()
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (p *PostgresStore) DeleteChunksBySession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM chunks WHERE session_id = $1`, sessionID)
	return err
}

// AppendMessages inserts the messages and refreshes the session's
// last_activity and total_messages in the same transaction, keeping
// the derived counter equal to the stored message count.
func (p *PostgresStore) AppendMessages(ctx context.Context, sessionID uuid.UUID, msgs ...types.Message) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, m := range msgs {
		sources, err := json.Marshal(m.Sources)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO messages (id, session_id, role, content, sources, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			m.ID, sessionID, m.Role, m.Content, sources, m.CreatedAt); err != nil {
			return err
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE sessions SET
			total_messages = (SELECT count(*) FROM messages WHERE session_id = $1),
			last_activity = $2
		 WHERE id = $1`, sessionID, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sql.ErrNoRows
	}

	return tx.Commit(ctx)
}

func (p *PostgresStore) messagesBySession(ctx context.Context, sessionID uuid.UUID) ([]types.Message, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, session_id, role, content, sources, created_at
		 FROM messages WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []types.Message
	for rows.Next() {
		var m types.Message
		var sources []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &sources, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &m.Sources); err != nil {
				return nil, fmt.Errorf("corrupt sources on message %s: %w", m.ID, err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (p *PostgresStore) SaveQuiz(ctx context.Context, quiz types.Quiz) error {
	questions, err := json.Marshal(quiz.Questions)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO quizzes (id, session_id, questions, created_at) VALUES ($1, $2, $3, $4)`,
		quiz.ID, quiz.SessionID, questions, quiz.CreatedAt)
	return err
}

func (p *PostgresStore) GetQuiz(ctx context.Context, quizID uuid.UUID) (*types.Quiz, error) {
	q := &types.Quiz{}
	var questions []byte
	err := p.pool.QueryRow(ctx,
		`SELECT id, session_id, questions, created_at FROM quizzes WHERE id = $1`, quizID).
		Scan(&q.ID, &q.SessionID, &questions, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &q.Questions); err != nil {
		return nil, fmt.Errorf("corrupt questions on quiz %s: %w", q.ID, err)
	}

	attempts, err := p.attemptsByQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	q.Attempts = attempts
	return q, nil
}

func (p *PostgresStore) ListQuizzes(ctx context.Context, sessionID uuid.UUID) ([]types.Quiz, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, session_id, questions, created_at FROM quizzes
		 WHERE session_id = $1 ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []types.Quiz
	for rows.Next() {
		var q types.Quiz
		var questions []byte
		if err := rows.Scan(&q.ID, &q.SessionID, &questions, &q.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(questions, &q.Questions); err != nil {
			return nil, fmt.Errorf("corrupt questions on quiz %s: %w", q.ID, err)
		}
		quizzes = append(quizzes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range quizzes {
		attempts, err := p.attemptsByQuiz(ctx, quizzes[i].ID)
		if err != nil {
			return nil, err
		}
		quizzes[i].Attempts = attempts
	}
	return quizzes, nil
}

func (p *PostgresStore) AppendQuizAttempt(ctx context.Context, quizID uuid.UUID, attempt types.QuizAttempt) error {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO quiz_attempts (id, quiz_id, answers, score, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), quizID, answers, attempt.Score, attempt.CreatedAt)
	return err
}

func (p *PostgresStore) attemptsByQuiz(ctx context.Context, quizID uuid.UUID) ([]types.QuizAttempt, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT answers, score, created_at FROM quiz_attempts
		 WHERE quiz_id = $1 ORDER BY created_at`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []types.QuizAttempt
	for rows.Next() {
		var a types.QuizAttempt
		var answers []byte
		if err := rows.Scan(&answers, &a.Score, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(answers, &a.Answers); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT DEFAULT '',
		status TEXT CHECK (status IN ('active','archived','paused')) DEFAULT 'active',
		total_messages INT NOT NULL DEFAULT 0,
		last_activity TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, last_activity DESC);

	CREATE TABLE IF NOT EXISTS session_documents (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL,
		file_name TEXT NOT NULL,
		pages INT DEFAULT 0,
		uploaded_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_session_documents_session ON session_documents(session_id);

	CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL,
		role TEXT CHECK (role IN ('user','assistant')),
		content TEXT NOT NULL,
		sources JSONB,
		created_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);

	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS chunks (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL,
		document_id UUID NOT NULL,
		file_name TEXT NOT NULL,
		position INT NOT NULL,
		page_number INT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(768),
		created_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_session ON chunks(session_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

	CREATE TABLE IF NOT EXISTS quizzes (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL,
		questions JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_quizzes_session ON quizzes(session_id);

	CREATE TABLE IF NOT EXISTS quiz_attempts (
		id UUID PRIMARY KEY,
		quiz_id UUID NOT NULL,
		answers JSONB NOT NULL,
		score INT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_quiz_attempts_quiz ON quiz_attempts(quiz_id);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Info().Msg("postgres connection pool closed")
	}
	return nil
}
