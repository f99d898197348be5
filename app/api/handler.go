package api

import (
	"mindvault/app/agent"
	"mindvault/store"
	"mindvault/types"

	"github.com/gofiber/fiber/v2"
)

// RequestHandler serves the question-answering flow.
type RequestHandler struct {
	sessions *SessionHandler
	agent    *agent.Agent
}

func NewRequestHandler(s store.DBStorer, a *agent.Agent) *RequestHandler {
	return &RequestHandler{
		sessions: NewSessionHandler(s),
		agent:    a,
	}
}

func (h *RequestHandler) HandleAsk(c *fiber.Ctx) error {
	session, err := h.sessions.ownedSession(c)
	if err != nil {
		return err
	}

	var params types.QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	result, err := h.agent.AnswerQuestion(c.UserContext(), session.ID, params.Question)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
