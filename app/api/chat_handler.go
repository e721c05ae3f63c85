package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"pdfchat/pipeline"
	"pdfchat/store"
	"pdfchat/types"
)

type ChatHandler struct {
	conversations store.ConversationStorer
	messages      store.MessageStorer
	query         *pipeline.Query
}

func NewChatHandler(conversations store.ConversationStorer, messages store.MessageStorer, query *pipeline.Query) *ChatHandler {
	return &ChatHandler{
		conversations: conversations,
		messages:      messages,
		query:         query,
	}
}

func (h *ChatHandler) HandleGetMessages(c *fiber.Ctx) error {
	conversationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	if _, err := h.conversations.GetConversationByID(c.Context(), conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound(conversationID, "conversation")
		}
		return err
	}

	messages, err := h.messages.ListMessagesByConversation(c.Context(), conversationID)
	if err != nil {
		return err
	}

	chat := make([]types.ChatMessage, len(messages))
	for i, msg := range messages {
		chat[i] = msg.ToChatMessage()
	}
	return c.JSON(fiber.Map{"messages": chat})
}

// HandlePostMessage answers a question, or queues it when the document is
// still being processed. The response carries the message status so the
// frontend can tell the two apart.
func (h *ChatHandler) HandlePostMessage(c *fiber.Ctx) error {
	conversationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	var params types.QuestionParams
	if err := c.BodyParser(&params); err != nil {
		return ErrBadRequest("invalid JSON request")
	}
	if errs := params.Validate(); errs != nil {
		return NewValidationError(errs)
	}

	msg, err := h.query.Answer(c.Context(), conversationID, params.Question)
	if err != nil {
		if errors.Is(err, pipeline.ErrConversationNotFound) {
			return ErrNotFound(conversationID, "conversation")
		}
		return err
	}

	return c.JSON(msg.ToChatMessage())
}
