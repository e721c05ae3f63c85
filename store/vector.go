package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"pdfchat/types"
)

// VectorStorer is the nearest-neighbor index over embedded chunks. Search is
// always filtered to a single conversation: retrieval across conversations is
// a correctness bug, not a feature.
type VectorStorer interface {
	UpsertChunks(context.Context, []types.VectorEntry) error
	SearchChunks(ctx context.Context, embedding []float32, topK int, conversationID uuid.UUID) ([]types.VectorMatch, error)
	DeleteChunksByConversation(context.Context, uuid.UUID) error
}

func (p *PostgresStore) UpsertChunks(ctx context.Context, entries []types.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
	INSERT INTO chunks (conversation_id, ordinal, content, embedding)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (conversation_id, ordinal) DO UPDATE SET
		content = EXCLUDED.content,
		embedding = EXCLUDED.embedding
	`
	for _, e := range entries {
		batch.Queue(query, e.ConversationID, e.Ordinal, e.Content, pgvector.NewVector(e.Embedding))
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", entries[i].ChunkID(), err)
		}
	}
	return nil
}

func (p *PostgresStore) SearchChunks(ctx context.Context, embedding []float32, topK int, conversationID uuid.UUID) ([]types.VectorMatch, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("empty query embedding")
	}

	vector := pgvector.NewVector(embedding)

	query := `
	SELECT conversation_id, ordinal, content, 1 - (embedding <=> $1) AS score
	FROM chunks
	WHERE conversation_id = $2 AND embedding IS NOT NULL
	ORDER BY embedding <=> $1
	LIMIT $3
	`
	rows, err := p.pool.Query(ctx, query, vector, conversationID, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []types.VectorMatch
	for rows.Next() {
		var m types.VectorMatch
		if err := rows.Scan(&m.ConversationID, &m.Ordinal, &m.Content, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (p *PostgresStore) DeleteChunksByConversation(ctx context.Context, conversationID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM chunks WHERE conversation_id = $1`, conversationID)
	return err
}
