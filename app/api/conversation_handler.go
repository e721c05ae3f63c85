package api

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"pdfchat/extract"
	"pdfchat/format"
	"pdfchat/pipeline"
	"pdfchat/store"
	"pdfchat/types"
)

const defaultListLimit = 10

type ConversationHandler struct {
	store     store.Storer
	extractor *extract.Extractor
	summary   *pipeline.Summary
	formatter *format.Formatter
	logger    *slog.Logger
}

func NewConversationHandler(
	store store.Storer,
	extractor *extract.Extractor,
	summary *pipeline.Summary,
	formatter *format.Formatter,
) *ConversationHandler {
	return &ConversationHandler{
		store:     store,
		extractor: extractor,
		summary:   summary,
		formatter: formatter,
		logger:    slog.Default(),
	}
}

func (h *ConversationHandler) HandleList(c *fiber.Ctx) error {
	conversations, err := h.store.ListConversations(c.Context(), defaultListLimit)
	if err != nil {
		return err
	}

	list := make([]fiber.Map, len(conversations))
	for i, conv := range conversations {
		list[i] = fiber.Map{
			"id":               conv.ID,
			"title":            conv.Title,
			"fileName":         conv.FileName,
			"processingStatus": conv.ProcessingStatus,
			"createdAt":        conv.CreatedAt,
		}
	}
	return c.JSON(fiber.Map{"conversations": list})
}

func (h *ConversationHandler) HandleDetails(c *fiber.Ctx) error {
	conv, err := h.getConversation(c)
	if err != nil {
		return err
	}
	return c.JSON(conv)
}

// HandleDelete removes the conversation, its messages and its stored file.
// Vector cleanup is best effort: a failure there is reported as a warning but
// never blocks the delete.
func (h *ConversationHandler) HandleDelete(c *fiber.Ctx) error {
	conv, err := h.getConversation(c)
	if err != nil {
		return err
	}

	if err := h.store.DeleteMessagesByConversation(c.Context(), conv.ID); err != nil {
		return err
	}
	if err := h.store.DeleteConversation(c.Context(), conv.ID); err != nil {
		return err
	}

	if conv.FilePath != "" {
		if err := os.Remove(conv.FilePath); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("failed to remove uploaded file", "conversation_id", conv.ID, "error", err)
		}
	}

	resp := fiber.Map{"message": "Conversation deleted successfully"}
	if err := h.store.DeleteChunksByConversation(c.Context(), conv.ID); err != nil {
		h.logger.Warn("failed to delete vectors", "conversation_id", conv.ID, "error", err)
		resp["warning"] = "Note: Some vector embeddings might remain in the index"
	}
	return c.JSON(resp)
}

func (h *ConversationHandler) HandleRename(c *fiber.Ctx) error {
	conv, err := h.getConversation(c)
	if err != nil {
		return err
	}

	var params types.RenameParams
	if err := c.BodyParser(&params); err != nil {
		return ErrBadRequest("invalid JSON request")
	}
	if errs := params.Validate(); errs != nil {
		return NewValidationError(errs)
	}

	updated, err := h.store.UpdateConversation(c.Context(), conv.ID, map[string]any{
		"title": params.NewTitle,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": updated.ID, "title": updated.Title})
}

func (h *ConversationHandler) HandleGetSummary(c *fiber.Ctx) error {
	conv, err := h.getConversation(c)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"summary":            conv.Summary,
		"summaryFormatted":   conv.SummaryFormatted,
		"summaryContentType": conv.SummaryContentType,
		"keyFindings":        conv.KeyFindings,
		"introduction":       conv.Introduction,
		"tableOfContents":    conv.TableOfContents,
		"summaryGeneratedAt": conv.SummaryGeneratedAt,
		"needsGeneration":    conv.SummaryGeneratedAt == nil,
	})
}

// HandleGenerateSummary re-reads the stored PDF and produces the rich summary
// set synchronously. Generation is idempotent: repeating it overwrites the
// previous result.
func (h *ConversationHandler) HandleGenerateSummary(c *fiber.Ctx) error {
	conv, err := h.getConversation(c)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(conv.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound(conv.ID, "pdf file for conversation")
		}
		return err
	}

	text, _, err := h.extractor.Extract(c.Context(), data)
	if err != nil {
		if errors.Is(err, extract.ErrNoTextContent) {
			return ErrBadRequest("No text content found in PDF")
		}
		return err
	}

	result := h.summary.Generate(c.Context(), text, conv.Title)
	formatted := h.formatter.Format(result.Summary, types.RoleAssistant)
	now := time.Now().UTC()

	updated, err := h.store.UpdateConversation(c.Context(), conv.ID, map[string]any{
		"summary":              result.Summary,
		"summary_formatted":    formatted.Formatted,
		"summary_content_type": formatted.ContentType,
		"key_findings":         result.KeyFindings,
		"introduction":         result.Introduction,
		"table_of_contents":    result.TableOfContents,
		"summary_generated_at": now,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"summary":            updated.Summary,
		"summaryFormatted":   updated.SummaryFormatted,
		"summaryContentType": updated.SummaryContentType,
		"keyFindings":        updated.KeyFindings,
		"introduction":       updated.Introduction,
		"tableOfContents":    updated.TableOfContents,
		"summaryGeneratedAt": updated.SummaryGeneratedAt,
	})
}

func (h *ConversationHandler) HandlePDF(c *fiber.Ctx) error {
	conv, err := h.getConversation(c)
	if err != nil {
		return err
	}

	if conv.FilePath == "" {
		return ErrNotFound(conv.ID, "pdf file for conversation")
	}
	if _, err := os.Stat(conv.FilePath); err != nil {
		return ErrNotFound(conv.ID, "pdf file for conversation")
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+conv.FileName+`"`)
	return c.SendFile(conv.FilePath)
}

func (h *ConversationHandler) getConversation(c *fiber.Ctx) (*types.Conversation, error) {
	conversationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, ErrInvalidID()
	}

	conv, err := h.store.GetConversationByID(c.Context(), conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound(conversationID, "conversation")
		}
		return nil, err
	}
	return conv, nil
}
