package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"mindvault/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// stubStore satisfies store.DBStorer; only the listing path matters
// here.
type stubStore struct {
	sessions []types.Session
	total    int
}

func (s *stubStore) CreateSession(context.Context, types.Session) error { return nil }
func (s *stubStore) GetSession(context.Context, uuid.UUID) (*types.Session, error) {
	return nil, nil
}
func (s *stubStore) ListSessions(_ context.Context, _ string, page, limit int) ([]types.Session, int, error) {
	return s.sessions, s.total, nil
}
func (s *stubStore) UpdateSession(context.Context, types.Session) error { return nil }
func (s *stubStore) DeleteSession(context.Context, uuid.UUID) error     { return nil }
func (s *stubStore) AddDocument(context.Context, uuid.UUID, types.DocumentRef) error {
	return nil
}
func (s *stubStore) SaveChunks(context.Context, []types.Chunk) error { return nil }
func (s *stubStore) ChunksBySession(context.Context, uuid.UUID) ([]types.Chunk, error) {
	return nil, nil
}
func (s *stubStore) DeleteChunksBySession(context.Context, uuid.UUID) error { return nil }
func (s *stubStore) AppendMessages(context.Context, uuid.UUID, ...types.Message) error {
	return nil
}
func (s *stubStore) SaveQuiz(context.Context, types.Quiz) error { return nil }
func (s *stubStore) GetQuiz(context.Context, uuid.UUID) (*types.Quiz, error) {
	return nil, nil
}
func (s *stubStore) ListQuizzes(context.Context, uuid.UUID) ([]types.Quiz, error) {
	return nil, nil
}
func (s *stubStore) AppendQuizAttempt(context.Context, uuid.UUID, types.QuizAttempt) error {
	return nil
}

func newListApp(s *stubStore) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	h := NewSessionHandler(s)
	app.Get("/sessions", func(c *fiber.Ctx) error {
		c.Locals("userID", "u1")
		return h.HandleList(c)
	})
	return app
}

type listResponse struct {
	Pagination struct {
		Page       int `json:"page"`
		Limit      int `json:"limit"`
		Total      int `json:"total"`
		TotalPages int `json:"totalPages"`
	} `json:"pagination"`
}

func TestHandleList_ClampsPagination(t *testing.T) {
	app := newListApp(&stubStore{total: 7})

	cases := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
	}{
		{"zero limit", "/sessions?limit=0", 1, 10},
		{"negative limit", "/sessions?limit=-5&page=2", 2, 10},
		{"zero page", "/sessions?page=0", 1, 10},
		{"defaults", "/sessions", 1, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tc.query, nil))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != fiber.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}

			var body listResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("malformed response: %v", err)
			}
			if body.Pagination.Page != tc.wantPage {
				t.Errorf("page = %d, expected %d", body.Pagination.Page, tc.wantPage)
			}
			if body.Pagination.Limit != tc.wantLimit {
				t.Errorf("limit = %d, expected %d", body.Pagination.Limit, tc.wantLimit)
			}
			if body.Pagination.Total != 7 {
				t.Errorf("total = %d, expected 7", body.Pagination.Total)
			}
			if body.Pagination.TotalPages != 1 {
				t.Errorf("totalPages = %d, expected 1", body.Pagination.TotalPages)
			}
		})
	}
}
