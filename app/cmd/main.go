package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"mindvault/app/server"
	"mindvault/types"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	mustLoadEnvVariables()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func main() {
	cfg := loadConfig()

	s := server.NewServer(cfg)
	go s.Run()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	log.Info().Msg("received shutdown signal, shutting down server...")
	s.Stop()
}

// loadConfig assembles the process configuration once. Components
// receive this struct and never read the environment themselves.
func loadConfig() types.Config {
	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))

	chunkSize, _ := strconv.Atoi(os.Getenv("CHUNK_SIZE"))
	timeoutSec, _ := strconv.Atoi(os.Getenv("REQUEST_TIMEOUT_SEC"))

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}

	return types.Config{
		ListenAddr:     os.Getenv("SERVER_ADDR"),
		PostgresDSN:    dsn,
		EmbeddingURL:   os.Getenv("OLLAMA_EMBEDDING_URL"),
		EmbeddingModel: os.Getenv("OLLAMA_EMBEDDING_MODEL"),
		GenerateURL:    os.Getenv("LLM_URL"),
		GenerateModel:  os.Getenv("LLM_MODEL"),
		ChunkSize:      chunkSize,
		UploadDir:      uploadDir,
		RequestTimeout: time.Duration(timeoutSec) * time.Second,
	}
}

func mustLoadEnvVariables() {
	err := godotenv.Load()
	if err != nil {
		log.Fatal().Msg("Error loading .env file")
	}
}
