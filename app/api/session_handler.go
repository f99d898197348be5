package api

import (
	"database/sql"
	"errors"
	"time"

	"mindvault/store"
	"mindvault/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SessionHandler struct {
	store store.DBStorer
}

func NewSessionHandler(s store.DBStorer) *SessionHandler {
	return &SessionHandler{store: s}
}

func (h *SessionHandler) HandleCreate(c *fiber.Ctx) error {
	var params types.SessionParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	now := time.Now()
	session := types.Session{
		ID:           uuid.New(),
		UserID:       callerID(c),
		Title:        params.Title,
		Description:  params.Description,
		Status:       types.StatusActive,
		LastActivity: now,
		CreatedAt:    now,
	}
	if err := h.store.CreateSession(c.UserContext(), session); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

func (h *SessionHandler) HandleList(c *fiber.Ctx) error {
	// Clamp before use so the pagination math and the echoed values
	// match the query the store actually runs.
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 10)
	if limit < 1 {
		limit = 10
	}

	sessions, total, err := h.store.ListSessions(c.UserContext(), callerID(c), page, limit)
	if err != nil {
		return err
	}

	totalPages := (total + limit - 1) / limit
	return c.JSON(fiber.Map{
		"sessions": sessions,
		"pagination": fiber.Map{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}

func (h *SessionHandler) HandleGet(c *fiber.Ctx) error {
	session, err := h.ownedSession(c)
	if err != nil {
		return err
	}
	return c.JSON(session)
}

func (h *SessionHandler) HandleUpdate(c *fiber.Ctx) error {
	session, err := h.ownedSession(c)
	if err != nil {
		return err
	}

	var params types.SessionParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	session.Title = params.Title
	session.Description = params.Description
	if params.Status != "" {
		session.Status = types.SessionStatus(params.Status)
	}
	if err := h.store.UpdateSession(c.UserContext(), *session); err != nil {
		return err
	}
	return c.JSON(session)
}

// HandleDelete removes the session's chunks first and the session
// itself after: the store documents that cascade direction.
func (h *SessionHandler) HandleDelete(c *fiber.Ctx) error {
	session, err := h.ownedSession(c)
	if err != nil {
		return err
	}
	if err := h.store.DeleteSession(c.UserContext(), session.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "study session deleted"})
}

// ownedSession resolves the :id parameter to a session owned by the
// caller. Foreign sessions produce the same not-found answer as
// missing ones.
func (h *SessionHandler) ownedSession(c *fiber.Ctx) (*types.Session, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, ErrInvalidID()
	}
	return h.owned(c, id)
}

func (h *SessionHandler) owned(c *fiber.Ctx, id uuid.UUID) (*types.Session, error) {
	session, err := h.store.GetSession(c.UserContext(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound(id, "session")
	}
	if err != nil {
		return nil, err
	}
	if session.UserID != callerID(c) {
		return nil, ErrNotFound(id, "session")
	}
	return session, nil
}

func callerID(c *fiber.Ctx) string {
	userID, _ := c.Locals("userID").(string)
	return userID
}
