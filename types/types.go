package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageCompleted MessageStatus = "completed"
	MessageFailed    MessageStatus = "failed"
)

type ContentType string

const (
	ContentText ContentType = "text"
	ContentHTML ContentType = "html"
)

// Conversation is the unit of one uploaded PDF plus its chat history.
type Conversation struct {
	ID                       uuid.UUID        `json:"id"`
	Title                    string           `json:"title"`
	FileName                 string           `json:"fileName"`
	FilePath                 string           `json:"filePath,omitempty"`
	Summary                  string           `json:"summary,omitempty"`
	SummaryFormatted         string           `json:"summaryFormatted,omitempty"`
	SummaryContentType       ContentType      `json:"summaryContentType,omitempty"`
	KeyFindings              string           `json:"keyFindings,omitempty"`
	CommonQuestions          string           `json:"commonQuestions,omitempty"`
	CommonQuestionsFormatted string           `json:"commonQuestionsFormatted,omitempty"`
	Introduction             string           `json:"introduction,omitempty"`
	TableOfContents          string           `json:"tableOfContents,omitempty"`
	SummaryGeneratedAt       *time.Time       `json:"summaryGeneratedAt,omitempty"`
	ProcessingStatus         ProcessingStatus `json:"processingStatus"`
	CreatedAt                time.Time        `json:"createdAt"`
}

// Message is a single turn of a conversation. Messages are append-only:
// after creation only Status may change.
type Message struct {
	ID             uuid.UUID     `json:"id"`
	ConversationID uuid.UUID     `json:"conversationId"`
	Role           Role          `json:"role"`
	Text           string        `json:"text"`
	FormattedText  string        `json:"formattedText,omitempty"`
	ContentType    ContentType   `json:"contentType"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// ChatMessage is the shape the frontend chat panel consumes.
type ChatMessage struct {
	ID            uuid.UUID     `json:"id"`
	Text          string        `json:"text"`
	FormattedText string        `json:"formattedText,omitempty"`
	ContentType   ContentType   `json:"contentType"`
	IsUser        bool          `json:"isUser"`
	Status        MessageStatus `json:"status"`
	Timestamp     time.Time     `json:"timestamp"`
}

func (m Message) ToChatMessage() ChatMessage {
	return ChatMessage{
		ID:            m.ID,
		Text:          m.Text,
		FormattedText: m.FormattedText,
		ContentType:   m.ContentType,
		IsUser:        m.Role == RoleUser,
		Status:        m.Status,
		Timestamp:     m.CreatedAt,
	}
}

// VectorEntry is one embedded chunk bound for the vector index.
type VectorEntry struct {
	ConversationID uuid.UUID
	Ordinal        int
	Content        string
	Embedding      []float32
}

// ChunkID is the content-addressed identifier "{conversationId}-{ordinal}".
func (e VectorEntry) ChunkID() string {
	return fmt.Sprintf("%s-%d", e.ConversationID, e.Ordinal)
}

// VectorMatch is a retrieved chunk with its similarity score.
type VectorMatch struct {
	ConversationID uuid.UUID
	Ordinal        int
	Content        string
	Score          float64
}
