package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/format"
	"pdfchat/types"
)

func newTestQuery(convs *fakeConversations, msgs *fakeMessages, vecs *fakeVectors, emb *fakeEmbedder, comp *fakeCompleter) *Query {
	return NewQuery(convs, msgs, vecs, emb, comp, format.New(), 3)
}

func completedConversation() *types.Conversation {
	return &types.Conversation{
		ID:               uuid.New(),
		Title:            "report",
		FileName:         "report.pdf",
		ProcessingStatus: types.ProcessingCompleted,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestAnswerUnknownConversation(t *testing.T) {
	q := newTestQuery(newFakeConversations(), newFakeMessages(), &fakeVectors{}, &fakeEmbedder{}, &fakeCompleter{})

	_, err := q.Answer(context.Background(), uuid.New(), "anything?")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestAnswerQueuedWhileProcessing(t *testing.T) {
	conv := completedConversation()
	conv.ProcessingStatus = types.ProcessingInProgress
	convs := newFakeConversations(conv)
	msgs := newFakeMessages()
	emb := &fakeEmbedder{}
	comp := &fakeCompleter{reply: "never used"}

	q := newTestQuery(convs, msgs, &fakeVectors{}, emb, comp)

	msg, err := q.Answer(context.Background(), conv.ID, "what is this about?")
	require.NoError(t, err)

	assert.Equal(t, types.MessagePending, msg.Status)
	assert.Equal(t, types.RoleUser, msg.Role)
	assert.Equal(t, 0, emb.embedCalls)
	assert.Equal(t, 0, comp.callCount())
	assert.Empty(t, msgs.byRole(conv.ID, types.RoleAssistant))
}

func TestAnswerFailedConversationNotQueued(t *testing.T) {
	conv := completedConversation()
	conv.ProcessingStatus = types.ProcessingFailed
	convs := newFakeConversations(conv)
	msgs := newFakeMessages()
	comp := &fakeCompleter{reply: "never used"}

	q := newTestQuery(convs, msgs, &fakeVectors{}, &fakeEmbedder{}, comp)

	msg, err := q.Answer(context.Background(), conv.ID, "what is this about?")
	require.NoError(t, err)

	// a failed document has no drain coming, so the question must not wait
	assert.Equal(t, types.RoleAssistant, msg.Role)
	assert.Equal(t, noContextFallback, msg.Text)

	users := msgs.byRole(conv.ID, types.RoleUser)
	require.Len(t, users, 1)
	assert.Equal(t, types.MessageCompleted, users[0].Status)
}

func TestAnswerNoRelevantContext(t *testing.T) {
	conv := completedConversation()
	convs := newFakeConversations(conv)
	msgs := newFakeMessages()
	comp := &fakeCompleter{reply: "never used"}

	q := newTestQuery(convs, msgs, &fakeVectors{}, &fakeEmbedder{}, comp)

	msg, err := q.Answer(context.Background(), conv.ID, "what about chapter 9?")
	require.NoError(t, err)

	assert.Equal(t, types.RoleAssistant, msg.Role)
	assert.Equal(t, noContextFallback, msg.Text)
	assert.Equal(t, 0, comp.callCount(), "no completion call without context")
}

func TestAnswerSuccess(t *testing.T) {
	conv := completedConversation()
	convs := newFakeConversations(conv)
	msgs := newFakeMessages()
	vecs := &fakeVectors{matches: []types.VectorMatch{
		{ConversationID: conv.ID, Ordinal: 0, Content: "chapter one covers basics", Score: 0.9},
		{ConversationID: conv.ID, Ordinal: 3, Content: "chapter two goes deeper", Score: 0.8},
	}}
	comp := &fakeCompleter{reply: "It covers the **basics** first."}

	q := newTestQuery(convs, msgs, vecs, &fakeEmbedder{}, comp)

	msg, err := q.Answer(context.Background(), conv.ID, "what does it cover?")
	require.NoError(t, err)

	assert.Equal(t, types.RoleAssistant, msg.Role)
	assert.Equal(t, types.MessageCompleted, msg.Status)
	assert.Equal(t, "It covers the **basics** first.", msg.Text)
	assert.Equal(t, types.ContentHTML, msg.ContentType)
	assert.Contains(t, msg.FormattedText, "<strong>basics</strong>")

	// both turns were persisted
	assert.Len(t, msgs.byRole(conv.ID, types.RoleUser), 1)
	assert.Len(t, msgs.byRole(conv.ID, types.RoleAssistant), 1)
}

func TestAnswerEmbedderFailureDegradesToFallback(t *testing.T) {
	conv := completedConversation()
	convs := newFakeConversations(conv)
	msgs := newFakeMessages()
	emb := &fakeEmbedder{embedErr: errors.New("embedding service down")}

	q := newTestQuery(convs, msgs, &fakeVectors{}, emb, &fakeCompleter{})

	msg, err := q.Answer(context.Background(), conv.ID, "anything?")
	require.NoError(t, err, "upstream failures must not surface as request errors")

	assert.Equal(t, upstreamFallback, msg.Text)
	assert.Equal(t, types.MessageCompleted, msg.Status)
}

func TestAnswerCompleterFailureDegradesToFallback(t *testing.T) {
	conv := completedConversation()
	convs := newFakeConversations(conv)
	msgs := newFakeMessages()
	vecs := &fakeVectors{matches: []types.VectorMatch{
		{ConversationID: conv.ID, Ordinal: 0, Content: "some context", Score: 0.7},
	}}
	comp := &fakeCompleter{err: errors.New("model overloaded")}

	q := newTestQuery(convs, msgs, vecs, &fakeEmbedder{}, comp)

	msg, err := q.Answer(context.Background(), conv.ID, "anything?")
	require.NoError(t, err)
	assert.Equal(t, upstreamFallback, msg.Text)
}

func TestAnswerRetrievesOnlyOwnConversation(t *testing.T) {
	convA := completedConversation()
	convB := completedConversation()
	convs := newFakeConversations(convA, convB)
	msgs := newFakeMessages()

	// two documents with overlapping vocabulary, indexed side by side
	vecs := &fakeVectors{matches: []types.VectorMatch{
		{ConversationID: convA.ID, Ordinal: 0, Content: "report alpha: revenue grew", Score: 0.9},
		{ConversationID: convB.ID, Ordinal: 0, Content: "report beta: revenue shrank", Score: 0.95},
		{ConversationID: convA.ID, Ordinal: 1, Content: "report alpha: costs were flat", Score: 0.8},
	}}

	var seenContexts []string
	comp := &fakeCompleter{fn: func(_, context string) (string, error) {
		seenContexts = append(seenContexts, context)
		return "an answer", nil
	}}

	q := newTestQuery(convs, msgs, vecs, &fakeEmbedder{}, comp)

	_, err := q.Answer(context.Background(), convA.ID, "what happened to revenue?")
	require.NoError(t, err)
	_, err = q.Answer(context.Background(), convB.ID, "what happened to revenue?")
	require.NoError(t, err)

	require.Len(t, seenContexts, 2)
	assert.Contains(t, seenContexts[0], "report alpha")
	assert.NotContains(t, seenContexts[0], "report beta")
	assert.Contains(t, seenContexts[1], "report beta")
	assert.NotContains(t, seenContexts[1], "report alpha")
}

func TestBuildContextSkipsEmptyMatches(t *testing.T) {
	got := buildContext([]types.VectorMatch{
		{Content: "first"},
		{Content: "   "},
		{Content: "second"},
	})
	assert.Equal(t, "first\n\nsecond", got)
}
