package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"pdfchat/chunker"
	"pdfchat/model"
	"pdfchat/store"
	"pdfchat/types"
)

const failedSummary = "Processing failed. Please try again."

// Ingestion turns extracted document text into indexed, queryable chunks and
// tracks progress through the conversation's processing status.
type Ingestion struct {
	conversations store.ConversationStorer
	messages      store.MessageStorer
	vectors       store.VectorStorer
	embedder      model.Embedder
	query         *Query
	chunkSize     int
	chunkOverlap  int
	logger        *slog.Logger
}

func NewIngestion(
	conversations store.ConversationStorer,
	messages store.MessageStorer,
	vectors store.VectorStorer,
	embedder model.Embedder,
	query *Query,
	chunkSize, chunkOverlap int,
) *Ingestion {
	if chunkSize <= 0 {
		chunkSize = chunker.DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = chunker.DefaultOverlap
	}
	return &Ingestion{
		conversations: conversations,
		messages:      messages,
		vectors:       vectors,
		embedder:      embedder,
		query:         query,
		chunkSize:     chunkSize,
		chunkOverlap:  chunkOverlap,
		logger:        slog.Default(),
	}
}

// Run executes the full ingestion for one conversation: chunk, embed, index,
// then drain any questions queued while processing. Failures before the drain
// mark the conversation failed; the pipeline never retries on its own.
func (p *Ingestion) Run(ctx context.Context, conversationID uuid.UUID, text string) {
	p.logger.Info("background processing started", "conversation_id", conversationID)

	if err := p.run(ctx, conversationID, text); err != nil {
		p.logger.Error("background processing failed", "conversation_id", conversationID, "error", err)

		if _, err := p.conversations.UpdateConversation(ctx, conversationID, map[string]any{
			"processing_status": types.ProcessingFailed,
			"summary":           failedSummary,
		}); err != nil {
			p.logger.Error("failed to record failed status", "conversation_id", conversationID, "error", err)
		}
		return
	}

	p.logger.Info("background processing completed", "conversation_id", conversationID)
	p.drainPending(ctx, conversationID)
}

func (p *Ingestion) run(ctx context.Context, conversationID uuid.UUID, text string) error {
	if _, err := p.conversations.UpdateConversation(ctx, conversationID, map[string]any{
		"processing_status": types.ProcessingInProgress,
	}); err != nil {
		return fmt.Errorf("set processing status: %w", err)
	}

	chunks, err := chunker.Chunk(text, p.chunkSize, p.chunkOverlap)
	if err != nil {
		return fmt.Errorf("chunk text: %w", err)
	}
	p.logger.Info("created chunks", "conversation_id", conversationID, "count", len(chunks))

	vectors, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	entries := make([]types.VectorEntry, len(chunks))
	for i := range chunks {
		entries[i] = types.VectorEntry{
			ConversationID: conversationID,
			Ordinal:        i,
			Content:        chunks[i],
			Embedding:      vectors[i],
		}
	}
	if err := p.vectors.UpsertChunks(ctx, entries); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	p.logger.Info("upserted vectors", "conversation_id", conversationID, "count", len(entries))

	if _, err := p.conversations.UpdateConversation(ctx, conversationID, map[string]any{
		"processing_status": types.ProcessingCompleted,
	}); err != nil {
		return fmt.Errorf("set completed status: %w", err)
	}
	return nil
}

// drainPending answers questions submitted during ingestion, strictly in
// submission order and one at a time so the conversation log stays
// deterministic. A failed answer marks only its own message and the drain
// moves on.
func (p *Ingestion) drainPending(ctx context.Context, conversationID uuid.UUID) {
	pending, err := p.messages.ListPendingUserMessages(ctx, conversationID)
	if err != nil {
		p.logger.Error("failed to list pending messages", "conversation_id", conversationID, "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	p.logger.Info("processing pending messages", "conversation_id", conversationID, "count", len(pending))

	for _, msg := range pending {
		status := types.MessageCompleted
		if _, err := p.query.respond(ctx, conversationID, msg.Text); err != nil {
			p.logger.Error("failed to answer pending message",
				"conversation_id", conversationID, "message_id", msg.ID, "error", err)
			status = types.MessageFailed
		}

		if err := p.messages.UpdateMessageStatus(ctx, msg.ID, status); err != nil {
			p.logger.Error("failed to update pending message status",
				"conversation_id", conversationID, "message_id", msg.ID, "error", err)
		}
	}
}
