package api

import (
	"database/sql"
	"errors"

	"mindvault/app/agent"
	"mindvault/store"
	"mindvault/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// QuizHandler serves the study-aid flows: flashcards, quiz generation,
// grading and listing.
type QuizHandler struct {
	sessions *SessionHandler
	store    store.DBStorer
	agent    *agent.Agent
}

func NewQuizHandler(s store.DBStorer, a *agent.Agent) *QuizHandler {
	return &QuizHandler{
		sessions: NewSessionHandler(s),
		store:    s,
		agent:    a,
	}
}

func (h *QuizHandler) HandleGenerateFlashcards(c *fiber.Ctx) error {
	session, err := h.sessions.ownedSession(c)
	if err != nil {
		return err
	}

	cards, err := h.agent.GenerateFlashcards(c.UserContext(), session.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"flashcards": cards})
}

func (h *QuizHandler) HandleGenerateQuiz(c *fiber.Ctx) error {
	session, err := h.sessions.ownedSession(c)
	if err != nil {
		return err
	}

	var params types.QuizParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	quiz, err := h.agent.GenerateQuiz(c.UserContext(), session.ID, params.Count)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"quizId":    quiz.ID,
		"questions": quiz.Questions,
	})
}

func (h *QuizHandler) HandleAssessQuiz(c *fiber.Ctx) error {
	session, err := h.sessions.ownedSession(c)
	if err != nil {
		return err
	}

	quizID, err := uuid.Parse(c.Params("quizId"))
	if err != nil {
		return ErrInvalidID()
	}

	var params types.AssessParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	// the quiz must belong to the addressed session
	quiz, err := h.store.GetQuiz(c.UserContext(), quizID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound(quizID, "quiz")
	}
	if err != nil {
		return err
	}
	if quiz.SessionID != session.ID {
		return ErrNotFound(quizID, "quiz")
	}

	result, err := h.agent.AssessQuiz(c.UserContext(), quizID, params.Answers)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *QuizHandler) HandleListQuizzes(c *fiber.Ctx) error {
	session, err := h.sessions.ownedSession(c)
	if err != nil {
		return err
	}

	quizzes, err := h.store.ListQuizzes(c.UserContext(), session.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"quizzes": quizzes})
}
