package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pdfchat/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: record not found")

type ConversationStorer interface {
	CreateConversation(context.Context, *types.Conversation) error
	GetConversationByID(context.Context, uuid.UUID) (*types.Conversation, error)
	UpdateConversation(context.Context, uuid.UUID, map[string]any) (*types.Conversation, error)
	DeleteConversation(context.Context, uuid.UUID) error
	ListConversations(context.Context, int) ([]types.Conversation, error)
}

type MessageStorer interface {
	CreateMessage(context.Context, *types.Message) error
	ListMessagesByConversation(context.Context, uuid.UUID) ([]types.Message, error)
	ListPendingUserMessages(context.Context, uuid.UUID) ([]types.Message, error)
	UpdateMessageStatus(context.Context, uuid.UUID, types.MessageStatus) error
	DeleteMessagesByConversation(context.Context, uuid.UUID) error
}

// Storer is the full persistence surface used by the HTTP layer.
type Storer interface {
	ConversationStorer
	MessageStorer
	VectorStorer
}

type PostgresStore struct {
	pool *pgxpool.Pool
	dim  int
}

func NewPostgresStore(ctx context.Context, connStr string, embeddingDim int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
		dim:  embeddingDim,
	}, nil
}

const conversationColumns = `id, title, file_name, file_path, summary, summary_formatted,
	summary_content_type, key_findings, common_questions, common_questions_formatted,
	introduction, table_of_contents, summary_generated_at, processing_status, created_at`

func (p *PostgresStore) CreateConversation(ctx context.Context, conv *types.Conversation) error {
	query := `INSERT INTO conversations (` + conversationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := p.pool.Exec(ctx, query,
		conv.ID, conv.Title, conv.FileName, conv.FilePath,
		conv.Summary, conv.SummaryFormatted, conv.SummaryContentType,
		conv.KeyFindings, conv.CommonQuestions, conv.CommonQuestionsFormatted,
		conv.Introduction, conv.TableOfContents, conv.SummaryGeneratedAt,
		conv.ProcessingStatus, conv.CreatedAt,
	)
	return err
}

func (p *PostgresStore) GetConversationByID(ctx context.Context, id uuid.UUID) (*types.Conversation, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	return scanConversation(row)
}

// UpdateConversation applies a partial update built from column name to value.
// Only whitelisted columns are accepted so a request body can never reach SQL.
func (p *PostgresStore) UpdateConversation(ctx context.Context, id uuid.UUID, fields map[string]any) (*types.Conversation, error) {
	if len(fields) == 0 {
		return p.GetConversationByID(ctx, id)
	}

	setClauses := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for col, val := range fields {
		if !allowedConversationColumns[col] {
			return nil, fmt.Errorf("store: column %q is not updatable", col)
		}
		args = append(args, val)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE conversations SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), len(args), conversationColumns)

	row := p.pool.QueryRow(ctx, query, args...)
	return scanConversation(row)
}

var allowedConversationColumns = map[string]bool{
	"title":                      true,
	"summary":                    true,
	"summary_formatted":          true,
	"summary_content_type":       true,
	"key_findings":               true,
	"common_questions":           true,
	"common_questions_formatted": true,
	"introduction":               true,
	"table_of_contents":          true,
	"summary_generated_at":       true,
	"processing_status":          true,
}

func (p *PostgresStore) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ListConversations(ctx context.Context, limit int) ([]types.Conversation, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversations ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []types.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *conv)
	}
	return conversations, rows.Err()
}

func scanConversation(row pgx.Row) (*types.Conversation, error) {
	conv := &types.Conversation{}
	err := row.Scan(
		&conv.ID, &conv.Title, &conv.FileName, &conv.FilePath,
		&conv.Summary, &conv.SummaryFormatted, &conv.SummaryContentType,
		&conv.KeyFindings, &conv.CommonQuestions, &conv.CommonQuestionsFormatted,
		&conv.Introduction, &conv.TableOfContents, &conv.SummaryGeneratedAt,
		&conv.ProcessingStatus, &conv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

const messageColumns = `id, conversation_id, role, text, formatted_text, content_type, status, created_at`

func (p *PostgresStore) CreateMessage(ctx context.Context, msg *types.Message) error {
	query := `INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := p.pool.Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.Role, msg.Text,
		msg.FormattedText, msg.ContentType, msg.Status, msg.CreatedAt,
	)
	return err
}

func (p *PostgresStore) ListMessagesByConversation(ctx context.Context, conversationID uuid.UUID) ([]types.Message, error) {
	// id is the insertion-order tiebreak for equal timestamps
	rows, err := p.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (p *PostgresStore) ListPendingUserMessages(ctx context.Context, conversationID uuid.UUID) ([]types.Message, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE conversation_id = $1 AND role = $2 AND status = $3
		 ORDER BY created_at ASC, id ASC`,
		conversationID, types.RoleUser, types.MessagePending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (p *PostgresStore) UpdateMessageStatus(ctx context.Context, id uuid.UUID, status types.MessageStatus) error {
	tag, err := p.pool.Exec(ctx, `UPDATE messages SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteMessagesByConversation(ctx context.Context, conversationID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conversationID)
	return err
}

func scanMessages(rows pgx.Rows) ([]types.Message, error) {
	var messages []types.Message
	for rows.Next() {
		var msg types.Message
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.Role, &msg.Text,
			&msg.FormattedText, &msg.ContentType, &msg.Status, &msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_path TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		summary_formatted TEXT NOT NULL DEFAULT '',
		summary_content_type TEXT NOT NULL DEFAULT 'text',
		key_findings TEXT NOT NULL DEFAULT '',
		common_questions TEXT NOT NULL DEFAULT '',
		common_questions_formatted TEXT NOT NULL DEFAULT '',
		introduction TEXT NOT NULL DEFAULT '',
		table_of_contents TEXT NOT NULL DEFAULT '',
		summary_generated_at TIMESTAMP WITH TIME ZONE,
		processing_status TEXT NOT NULL DEFAULT 'pending'
			CHECK (processing_status IN ('pending','processing','completed','failed')),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		conversation_id UUID NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('user','assistant')),
		text TEXT NOT NULL,
		formatted_text TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT 'text',
		status TEXT NOT NULL DEFAULT 'completed'
			CHECK (status IN ('pending','completed','failed')),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(conversation_id, created_at);

	CREATE TABLE IF NOT EXISTS chunks (
		conversation_id UUID NOT NULL,
		ordinal INT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(%d),
		PRIMARY KEY (conversation_id, ordinal)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops)
	WITH (lists = 100);

	CREATE INDEX IF NOT EXISTS idx_chunks_conversation_id ON chunks(conversation_id);
	`, p.dim)
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
