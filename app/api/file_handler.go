package api

import (
	"os"
	"path/filepath"
	"strings"

	"mindvault/app/agent"
	"mindvault/loader"
	"mindvault/store"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FileHandler ingests uploaded PDFs: save, validate, extract text,
// chunk and embed via the agent.
type FileHandler struct {
	sessions  *SessionHandler
	agent     *agent.Agent
	uploadDir string
}

func NewFileHandler(s store.DBStorer, a *agent.Agent, uploadDir string) *FileHandler {
	return &FileHandler{
		sessions:  NewSessionHandler(s),
		agent:     a,
		uploadDir: uploadDir,
	}
}

func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.FormValue("session_id"))
	if err != nil {
		return ErrInvalidID()
	}
	session, err := h.sessions.owned(c, sessionID)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		return NewError(fiber.StatusBadRequest, "only PDF files are supported")
	}

	path := filepath.Join(h.uploadDir, uuid.NewString()+".pdf")
	if err := c.SaveFile(fileHeader, path); err != nil {
		return err
	}
	defer os.Remove(path)

	if err := loader.ValidatePDF(path); err != nil {
		return NewError(fiber.StatusBadRequest, "uploaded file is not a valid PDF")
	}

	pages, err := loader.PageCount(path)
	if err != nil {
		return err
	}
	text, err := loader.ExtractText(path)
	if err != nil {
		return err
	}

	created, err := h.agent.IngestDocument(c.UserContext(), session.ID, fileHeader.Filename, pages, text)
	if err != nil {
		return err
	}

	log.Info().Str("file", fileHeader.Filename).Int("chunks", created).Msg("upload processed")
	return c.JSON(fiber.Map{
		"message":       "PDF processed and embeddings stored",
		"fileName":      fileHeader.Filename,
		"chunksCreated": created,
		"success":       true,
	})
}
