package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"pdfchat/model"
	"pdfchat/store"
	"pdfchat/types"
)

type fakeConversations struct {
	mu      sync.Mutex
	convs   map[uuid.UUID]*types.Conversation
	updates []map[string]any
}

func newFakeConversations(convs ...*types.Conversation) *fakeConversations {
	f := &fakeConversations{convs: map[uuid.UUID]*types.Conversation{}}
	for _, c := range convs {
		f.convs[c.ID] = c
	}
	return f
}

func (f *fakeConversations) CreateConversation(_ context.Context, conv *types.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convs[conv.ID] = conv
	return nil
}

func (f *fakeConversations) GetConversationByID(_ context.Context, id uuid.UUID) (*types.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

func (f *fakeConversations) UpdateConversation(_ context.Context, id uuid.UUID, fields map[string]any) (*types.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	f.updates = append(f.updates, fields)
	if v, ok := fields["processing_status"]; ok {
		conv.ProcessingStatus = v.(types.ProcessingStatus)
	}
	if v, ok := fields["summary"]; ok {
		conv.Summary = v.(string)
	}
	if v, ok := fields["title"]; ok {
		conv.Title = v.(string)
	}
	cp := *conv
	return &cp, nil
}

func (f *fakeConversations) DeleteConversation(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.convs[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.convs, id)
	return nil
}

func (f *fakeConversations) ListConversations(_ context.Context, limit int) ([]types.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Conversation
	for _, c := range f.convs {
		if len(out) == limit {
			break
		}
		out = append(out, *c)
	}
	return out, nil
}

type fakeMessages struct {
	mu              sync.Mutex
	messages        []*types.Message
	statusUpdates   map[uuid.UUID]types.MessageStatus
	failNextCreates int
	createErr       error
}

func newFakeMessages(msgs ...*types.Message) *fakeMessages {
	return &fakeMessages{
		messages:      msgs,
		statusUpdates: map[uuid.UUID]types.MessageStatus{},
	}
}

func (f *fakeMessages) CreateMessage(_ context.Context, msg *types.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextCreates > 0 {
		f.failNextCreates--
		return f.createErr
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeMessages) ListMessagesByConversation(_ context.Context, conversationID uuid.UUID) ([]types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessages) ListPendingUserMessages(_ context.Context, conversationID uuid.UUID) ([]types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID && m.Role == types.RoleUser && m.Status == types.MessagePending {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessages) UpdateMessageStatus(_ context.Context, id uuid.UUID, status types.MessageStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusUpdates[id] = status
	for _, m := range f.messages {
		if m.ID == id {
			m.Status = status
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeMessages) DeleteMessagesByConversation(_ context.Context, conversationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.messages[:0]
	for _, m := range f.messages {
		if m.ConversationID != conversationID {
			kept = append(kept, m)
		}
	}
	f.messages = kept
	return nil
}

// byRole returns stored messages for the conversation with the given role,
// in insertion order.
func (f *fakeMessages) byRole(conversationID uuid.UUID, role types.Role) []*types.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID && m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

type fakeVectors struct {
	mu        sync.Mutex
	entries   []types.VectorEntry
	matches   []types.VectorMatch
	upsertErr error
	searchErr error
	deleteErr error
}

func (f *fakeVectors) UpsertChunks(_ context.Context, entries []types.VectorEntry) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeVectors) SearchChunks(_ context.Context, _ []float32, topK int, conversationID uuid.UUID) ([]types.VectorMatch, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.VectorMatch
	for _, m := range f.matches {
		if m.ConversationID != conversationID {
			continue
		}
		if len(out) == topK {
			break
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeVectors) DeleteChunksByConversation(_ context.Context, _ uuid.UUID) error {
	return f.deleteErr
}

type fakeEmbedder struct {
	mu         sync.Mutex
	embedCalls int
	batchCalls int
	embedErr   error
	batchErr   error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.mu.Lock()
	f.embedCalls++
	f.mu.Unlock()
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batchCalls++
	f.mu.Unlock()
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 0.5}
	}
	return vectors, nil
}

type fakeCompleter struct {
	mu    sync.Mutex
	calls int
	// fn lets a test vary the reply per prompt; when nil, reply/err are used
	fn    func(question, context string) (string, error)
	reply string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, question, context string, _ model.Options) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(question, context)
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
