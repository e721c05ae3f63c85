package types

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	ListenAddr string
	UploadDir  string

	PGHost   string
	PGPort   int
	PGUser   string
	PGPass   string
	PGDBName string

	OpenAIBaseURL   string
	OpenAIAPIKey    string
	EmbeddingModel  string
	CompletionModel string
	EmbeddingDim    int

	ChunkSize    int
	ChunkOverlap int
	TopK         int
	MaxFileSize  int64
}

func ConfigFromEnv() Config {
	return Config{
		ListenAddr: getEnv("SERVER_ADDR", ":5000"),
		UploadDir:  getEnv("UPLOAD_DIR", "uploads"),

		PGHost:   getEnv("PG_HOST", "localhost"),
		PGPort:   getEnvInt("PG_PORT", 5432),
		PGUser:   getEnv("PG_USER", "postgres"),
		PGPass:   os.Getenv("PG_PASS"),
		PGDBName: getEnv("PG_DB_NAME", "pdfchat"),

		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		CompletionModel: getEnv("COMPLETION_MODEL", "gpt-4.1-mini"),
		EmbeddingDim:    getEnvInt("EMBEDDING_DIM", 1536),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 100),
		TopK:         getEnvInt("SEARCH_TOP_K", 3),
		MaxFileSize:  int64(getEnvInt("MAX_FILE_SIZE", 10*1024*1024)),
	}
}

func (c Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.PGHost, c.PGPort, c.PGUser, c.PGPass, c.PGDBName)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
