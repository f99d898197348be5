package server

import (
	"context"

	"mindvault/app/agent"
	"mindvault/app/api"
	"mindvault/app/middleware"
	"mindvault/model"
	"mindvault/store"
	"mindvault/types"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Server struct {
	cfg  types.Config
	app  *fiber.App
	pool *store.PostgresStore
}

func NewServer(cfg types.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() {
	ctx := context.Background()

	pool, err := store.NewPostgresStore(ctx, s.cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("error connecting to Postgres")
	}
	s.pool = pool

	if err := pool.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("error creating tables")
	}

	embedder := model.NewOllamaEmbedder(s.cfg)
	generator := model.NewOllamaGenerator(s.cfg)
	ragAgent := agent.New(pool, embedder, generator, s.cfg.ChunkSize)

	var (
		app = fiber.New(fiber.Config{
			ErrorHandler: api.ErrorHandler,
			BodyLimit:    50 * 1024 * 1024, // uploaded PDFs
		})
		checkHandler   = api.NewCheckHandler()
		configHandler  = api.NewConfigHandler(s.cfg)
		sessionHandler = api.NewSessionHandler(pool)
		requestHandler = api.NewRequestHandler(pool, ragAgent)
		fileHandler    = api.NewFileHandler(pool, ragAgent, s.cfg.UploadDir)
		quizHandler    = api.NewQuizHandler(pool, ragAgent)

		check = app.Group("/check")
		apiv1 = app.Group("/api/v1", middleware.RequireIdentity(), middleware.Deadline(s.cfg.RequestTimeout))
	)
	s.app = app

	check.Get("/healthy", checkHandler.HandleHealthy)
	check.Get("/config", configHandler.HandleGetConfig)

	apiv1.Post("/sessions", sessionHandler.HandleCreate)
	apiv1.Get("/sessions", sessionHandler.HandleList)
	apiv1.Get("/sessions/:id", sessionHandler.HandleGet)
	apiv1.Put("/sessions/:id", sessionHandler.HandleUpdate)
	apiv1.Delete("/sessions/:id", sessionHandler.HandleDelete)

	apiv1.Post("/sessions/:id/ask", requestHandler.HandleAsk)
	apiv1.Post("/sessions/:id/flashcards/generate", quizHandler.HandleGenerateFlashcards)
	apiv1.Post("/sessions/:id/quiz/generate", quizHandler.HandleGenerateQuiz)
	apiv1.Post("/sessions/:id/quiz/:quizId/assess", quizHandler.HandleAssessQuiz)
	apiv1.Get("/sessions/:id/quizzes", quizHandler.HandleListQuizzes)

	apiv1.Post("/upload", fileHandler.HandleUpload)

	if err := app.Listen(s.cfg.ListenAddr); err != nil {
		log.Error().Err(err).Msg("error starting server")
	}
}

func (s *Server) Stop() {
	if s.app != nil {
		if err := s.app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("error shutting down server")
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	log.Info().Msg("server stopped")
}
