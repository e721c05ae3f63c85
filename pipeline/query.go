package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"pdfchat/format"
	"pdfchat/model"
	"pdfchat/store"
	"pdfchat/types"
)

// ErrConversationNotFound is returned when a question targets an unknown
// conversation.
var ErrConversationNotFound = errors.New("conversation not found")

const noContextFallback = "I couldn't find any relevant information in the document to answer your question. " +
	"Please try asking about something else or rephrase your question."

const upstreamFallback = "I'm sorry, I ran into a problem while answering your question. " +
	"Please try again in a moment."

// Query answers a single question against one conversation's indexed chunks.
type Query struct {
	conversations store.ConversationStorer
	messages      store.MessageStorer
	vectors       store.VectorStorer
	embedder      model.Embedder
	completer     model.Completer
	formatter     *format.Formatter
	topK          int
	logger        *slog.Logger
}

func NewQuery(
	conversations store.ConversationStorer,
	messages store.MessageStorer,
	vectors store.VectorStorer,
	embedder model.Embedder,
	completer model.Completer,
	formatter *format.Formatter,
	topK int,
) *Query {
	if topK <= 0 {
		topK = 3
	}
	return &Query{
		conversations: conversations,
		messages:      messages,
		vectors:       vectors,
		embedder:      embedder,
		completer:     completer,
		formatter:     formatter,
		topK:          topK,
		logger:        slog.Default(),
	}
}

// Answer persists the user's question and, if the conversation has finished
// ingesting, generates and persists the assistant's reply. While ingestion is
// still running the user message is stored as pending and returned as-is; the
// ingestion pipeline drains it later.
func (q *Query) Answer(ctx context.Context, conversationID uuid.UUID, question string) (*types.Message, error) {
	conv, err := q.conversations.GetConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	// Only queue while ingestion can still finish. A failed document is
	// terminal: no drain will ever run, so the question is answered directly
	// and the empty index yields the no-context fallback.
	userStatus := types.MessageCompleted
	if conv.ProcessingStatus == types.ProcessingPending || conv.ProcessingStatus == types.ProcessingInProgress {
		userStatus = types.MessagePending
	}

	userMsg := &types.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           types.RoleUser,
		Text:           question,
		ContentType:    types.ContentText,
		Status:         userStatus,
		CreatedAt:      time.Now().UTC(),
	}
	if err := q.messages.CreateMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	if userStatus == types.MessagePending {
		q.logger.Info("question queued until ingestion completes",
			"conversation_id", conversationID, "message_id", userMsg.ID)
		return userMsg, nil
	}

	return q.respond(ctx, conversationID, question)
}

// respond runs embed, retrieve, complete and persists the assistant message.
// Upstream failures degrade to a fallback answer so the conversation log
// always advances; only store failures propagate.
func (q *Query) respond(ctx context.Context, conversationID uuid.UUID, question string) (*types.Message, error) {
	embedding, err := q.embedder.Embed(ctx, question)
	if err != nil {
		q.logger.Error("question embedding failed", "conversation_id", conversationID, "error", err)
		return q.persistAssistant(ctx, conversationID, upstreamFallback)
	}

	matches, err := q.vectors.SearchChunks(ctx, embedding, q.topK, conversationID)
	if err != nil {
		q.logger.Error("vector search failed", "conversation_id", conversationID, "error", err)
		return q.persistAssistant(ctx, conversationID, upstreamFallback)
	}

	docContext := buildContext(matches)
	if docContext == "" {
		q.logger.Info("no relevant context found", "conversation_id", conversationID)
		return q.persistAssistant(ctx, conversationID, noContextFallback)
	}

	answer, err := q.completer.Complete(ctx, question, docContext, model.DefaultOptions())
	if err != nil {
		q.logger.Error("completion failed", "conversation_id", conversationID, "error", err)
		return q.persistAssistant(ctx, conversationID, upstreamFallback)
	}

	return q.persistAssistant(ctx, conversationID, answer)
}

func (q *Query) persistAssistant(ctx context.Context, conversationID uuid.UUID, text string) (*types.Message, error) {
	res := q.formatter.Format(text, types.RoleAssistant)

	msg := &types.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           types.RoleAssistant,
		Text:           text,
		FormattedText:  res.Formatted,
		ContentType:    res.ContentType,
		Status:         types.MessageCompleted,
		CreatedAt:      time.Now().UTC(),
	}
	if err := q.messages.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func buildContext(matches []types.VectorMatch) string {
	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		texts = append(texts, m.Content)
	}
	return strings.Join(texts, "\n\n")
}
