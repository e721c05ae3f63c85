package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"pdfchat/chunker"
	"pdfchat/extract"
	"pdfchat/format"
	"pdfchat/pipeline"
	"pdfchat/store"
	"pdfchat/types"
)

const processingSummary = "Processing PDF..."

type UploadHandler struct {
	conversations store.ConversationStorer
	extractor     *extract.Extractor
	ingestion     *pipeline.Ingestion
	summary       *pipeline.Summary
	formatter     *format.Formatter
	uploadDir     string
	maxFileSize   int64
	chunkSize     int
	chunkOverlap  int
	logger        *slog.Logger
}

func NewUploadHandler(
	conversations store.ConversationStorer,
	extractor *extract.Extractor,
	ingestion *pipeline.Ingestion,
	summary *pipeline.Summary,
	formatter *format.Formatter,
	cfg types.Config,
) *UploadHandler {
	return &UploadHandler{
		conversations: conversations,
		extractor:     extractor,
		ingestion:     ingestion,
		summary:       summary,
		formatter:     formatter,
		uploadDir:     cfg.UploadDir,
		maxFileSize:   cfg.MaxFileSize,
		chunkSize:     cfg.ChunkSize,
		chunkOverlap:  cfg.ChunkOverlap,
		logger:        slog.Default(),
	}
}

// HandleUpload accepts a PDF, validates and stores it, creates the
// conversation in pending state and responds immediately. Extraction already
// happened by then; chunking, embedding and the quick summary continue in the
// background.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest("No file uploaded")
	}

	if fileHeader.Size > h.maxFileSize {
		return ErrBadRequest(fmt.Sprintf("File too large. Maximum size is %dMB", h.maxFileSize/(1024*1024)))
	}
	if !isPDF(fileHeader.Filename, fileHeader.Header.Get("Content-Type")) {
		return ErrBadRequest("Invalid file type. Only PDF files are allowed")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	text, pages, err := h.extractor.Extract(c.Context(), data)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrNoTextContent):
			return ErrBadRequest("No text content found in PDF")
		case errors.Is(err, extract.ErrInvalidPDF):
			return ErrBadRequest("Invalid or corrupted PDF file")
		}
		return err
	}

	conversationID := uuid.New()
	storedName := fmt.Sprintf("%s-%s", conversationID, filepath.Base(fileHeader.Filename))
	filePath := filepath.Join(h.uploadDir, storedName)
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return err
	}

	conv := &types.Conversation{
		ID:               conversationID,
		Title:            strings.TrimSuffix(fileHeader.Filename, filepath.Ext(fileHeader.Filename)),
		FileName:         fileHeader.Filename,
		FilePath:         filePath,
		Summary:          processingSummary,
		ProcessingStatus: types.ProcessingPending,
		CreatedAt:        time.Now().UTC(),
	}
	if err := h.conversations.CreateConversation(c.Context(), conv); err != nil {
		return err
	}

	h.logger.Info("pdf uploaded",
		"conversation_id", conversationID, "file", fileHeader.Filename, "pages", pages, "bytes", len(data))

	go h.process(conversationID, conv.Title, text)

	return c.JSON(fiber.Map{"conversationId": conversationID})
}

// process runs after the upload response has been sent, so it carries its own
// context.
func (h *UploadHandler) process(conversationID uuid.UUID, title, text string) {
	ctx := context.Background()

	chunks, err := chunker.Chunk(text, h.chunkSize, h.chunkOverlap)
	if err != nil {
		h.logger.Error("quick summary chunking failed", "conversation_id", conversationID, "error", err)
	} else {
		quick := h.summary.Quick(ctx, chunks, title)

		updates := map[string]any{}
		if quick.Summary != "" {
			res := h.formatter.Format(quick.Summary, types.RoleAssistant)
			updates["summary"] = quick.Summary
			updates["summary_formatted"] = res.Formatted
			updates["summary_content_type"] = res.ContentType
		}
		if quick.CommonQuestions != "" {
			res := h.formatter.Format(quick.CommonQuestions, types.RoleAssistant)
			updates["common_questions"] = quick.CommonQuestions
			updates["common_questions_formatted"] = res.Formatted
		}
		if len(updates) > 0 {
			if _, err := h.conversations.UpdateConversation(ctx, conversationID, updates); err != nil {
				h.logger.Error("failed to store quick summary", "conversation_id", conversationID, "error", err)
			}
		}
	}

	h.ingestion.Run(ctx, conversationID, text)
}

func isPDF(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return contentType == "application/pdf"
}
