package server

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"pdfchat/app/api"
	"pdfchat/app/middleware"
	"pdfchat/extract"
	"pdfchat/format"
	"pdfchat/model"
	"pdfchat/pipeline"
	"pdfchat/store"
	"pdfchat/types"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
	BodyLimit:    12 * 1024 * 1024,
}

type Server struct {
	cfg    types.Config
	app    *fiber.App
	pool   *store.PostgresStore
	logger *slog.Logger
}

func NewServer(cfg types.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

func (s *Server) Stop() {
	if s.app != nil {
		if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
			s.logger.Error("error to shutdown server", "error", err.Error())
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()

	pool, err := store.NewPostgresStore(ctx, s.cfg.PostgresDSN(), s.cfg.EmbeddingDim)
	if err != nil {
		log.Fatal("error to connect to Postgres database ", err)
		return
	}
	s.pool = pool

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error to create tables ", err)
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		log.Fatal("error to create upload directory ", err)
		return
	}

	var (
		embedder  = model.NewOpenAIEmbedder(s.cfg.OpenAIBaseURL, s.cfg.OpenAIAPIKey, s.cfg.EmbeddingModel)
		completer = model.NewOpenAICompleter(s.cfg.OpenAIBaseURL, s.cfg.OpenAIAPIKey, s.cfg.CompletionModel)
		formatter = format.New()
		extractor = extract.New()

		query     = pipeline.NewQuery(pool, pool, pool, embedder, completer, formatter, s.cfg.TopK)
		summary   = pipeline.NewSummary(completer)
		ingestion = pipeline.NewIngestion(pool, pool, pool, embedder, query, s.cfg.ChunkSize, s.cfg.ChunkOverlap)

		app                 = fiber.New(config)
		checkHandler        = api.NewCheckHandler()
		uploadHandler       = api.NewUploadHandler(pool, extractor, ingestion, summary, formatter, s.cfg)
		chatHandler         = api.NewChatHandler(pool, pool, query)
		conversationHandler = api.NewConversationHandler(pool, extractor, summary, formatter)

		check        = app.Group("/check")
		chat         = app.Group("/chat", middleware.ChatLimiter())
		conversation = app.Group("/conversation")
	)
	s.app = app

	check.Get("/healthy", checkHandler.HandleHealthy)

	app.Post("/upload", middleware.UploadLimiter(), uploadHandler.HandleUpload)

	chat.Get("/:id", chatHandler.HandleGetMessages)
	chat.Post("/:id", chatHandler.HandlePostMessage)

	conversation.Get("/list", conversationHandler.HandleList)
	conversation.Get("/:id", chatHandler.HandleGetMessages)
	conversation.Get("/:id/details", conversationHandler.HandleDetails)
	conversation.Delete("/:id", conversationHandler.HandleDelete)
	conversation.Patch("/:id/rename", conversationHandler.HandleRename)
	conversation.Get("/:id/summary", conversationHandler.HandleGetSummary)
	conversation.Post("/:id/summary/generate", conversationHandler.HandleGenerateSummary)
	conversation.Get("/:id/pdf", conversationHandler.HandlePDF)

	if err := app.Listen(s.cfg.ListenAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return
	}
}
