package api

import (
	"mindvault/types"

	"github.com/gofiber/fiber/v2"
)

// ConfigHandler reports the active model configuration. The config is
// immutable for the process lifetime, so this surface is read-only.
type ConfigHandler struct {
	cfg types.Config
}

func NewConfigHandler(cfg types.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

func (h *ConfigHandler) HandleGetConfig(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"embeddingModel": h.cfg.EmbeddingModel,
		"generateModel":  h.cfg.GenerateModel,
		"chunkSize":      h.cfg.ChunkSize,
	})
}
