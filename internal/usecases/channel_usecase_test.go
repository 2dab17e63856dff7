package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasbot/internal/entities"
	"kasbot/internal/infrastructure"
	"kasbot/internal/interfaces"
)

type sentMessage struct {
	to    string
	text  string
	reply *entities.Reply
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (m *fakeMessenger) SendMessage(_ context.Context, to, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{to: to, text: content})
	return nil
}

func (m *fakeMessenger) SendReply(_ context.Context, to string, reply entities.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{to: to, text: reply.Text, reply: &reply})
	return nil
}

func (m *fakeMessenger) last(t *testing.T) sentMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

type failingResponder struct{}

func (failingResponder) Respond(context.Context, entities.Message, entities.ConversationContext) (entities.Reply, error) {
	return entities.Reply{}, errors.New("boom")
}

// gateResponder holds its first turn until gate is closed.
type gateResponder struct {
	next    interfaces.Responder
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func newGateResponder(next interfaces.Responder) *gateResponder {
	return &gateResponder{next: next, entered: make(chan struct{}), gate: make(chan struct{})}
}

func (g *gateResponder) Respond(ctx context.Context, msg entities.Message, c entities.ConversationContext) (entities.Reply, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.gate
	})
	return g.next.Respond(ctx, msg, c)
}

func (m *fakeMessenger) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, s := range m.sent {
		out[i] = s.text
	}
	return out
}

func chatMsg(content string) entities.Message {
	return entities.Message{From: "42", Content: content, Platform: "telegram"}
}

func TestChannelService_KeepsContextPerChat(t *testing.T) {
	sessions := infrastructure.NewSessionManager(time.Hour)
	svc := NewChannelService(newTestDialog(t), sessions, nil, nil)
	out := &fakeMessenger{}
	ctx := context.Background()

	require.NoError(t, svc.HandleMessage(ctx, chatMsg("عنوان"), false, out))
	assert.Contains(t, out.last(t).text, "من فضلك حدّد الفرع")

	require.NoError(t, svc.HandleMessage(ctx, chatMsg("فيصل"), false, out))
	assert.Contains(t, out.last(t).text, "24 شارع فيصل")

	s, ok := sessions.Begin("42")
	require.True(t, ok)
	assert.Equal(t, entities.AwaitingNone, s.Context.Awaiting)
	assert.Equal(t, "فيصل", s.Context.LastBranch)
}

func TestChannelService_NumberPicksSuggestion(t *testing.T) {
	sessions := infrastructure.NewSessionManager(time.Hour)
	svc := NewChannelService(newTestDialog(t), sessions, nil, nil)
	out := &fakeMessenger{}
	ctx := context.Background()

	require.NoError(t, svc.HandleMessage(ctx, chatMsg("عنوان"), false, out))
	// third suggestion is الإسكندرية
	require.NoError(t, svc.HandleMessage(ctx, chatMsg(" 3 "), false, out))
	assert.Contains(t, out.last(t).text, "5 شارع سموحة")
}

func TestChannelService_StartResetsChat(t *testing.T) {
	sessions := infrastructure.NewSessionManager(time.Hour)
	svc := NewChannelService(newTestDialog(t), sessions, nil, nil)
	out := &fakeMessenger{}
	ctx := context.Background()

	require.NoError(t, svc.HandleMessage(ctx, chatMsg("عنوان"), false, out))
	require.NoError(t, svc.HandleMessage(ctx, chatMsg(""), true, out))

	last := out.last(t)
	require.NotNil(t, last.reply)
	assert.Equal(t, "fallback", last.reply.Rule)
	assert.Equal(t, entities.AwaitingNone, last.reply.Context.Awaiting)
}

func TestChannelService_RateLimited(t *testing.T) {
	limiter := infrastructure.NewMessageRateLimiter(0.001, 1)
	svc := NewChannelService(newTestDialog(t), infrastructure.NewSessionManager(time.Hour), limiter, nil)
	out := &fakeMessenger{}
	ctx := context.Background()

	require.NoError(t, svc.HandleMessage(ctx, chatMsg("ازيك"), false, out))
	require.NoError(t, svc.HandleMessage(ctx, chatMsg("ازيك"), false, out))

	assert.Equal(t, slowDownReply, out.last(t).text)
}

func TestChannelService_ResponderErrorKeepsContext(t *testing.T) {
	sessions := infrastructure.NewSessionManager(time.Hour)
	sessions.Finish("42", entities.Reply{Context: entities.ConversationContext{LastBranch: "فيصل"}})

	svc := NewChannelService(failingResponder{}, sessions, nil, nil)
	out := &fakeMessenger{}

	require.NoError(t, svc.HandleMessage(context.Background(), chatMsg("ازيك"), false, out))
	assert.Equal(t, TemporaryErrorReply, out.last(t).text)

	s, ok := sessions.Begin("42")
	require.True(t, ok, "chat must be released after a failed turn")
	assert.Equal(t, "فيصل", s.Context.LastBranch)
}

func TestChannelService_MessageDuringTurnIsAnswered(t *testing.T) {
	resp := newGateResponder(newTestDialog(t))
	svc := NewChannelService(resp, infrastructure.NewSessionManager(time.Hour), nil, nil)
	out := &fakeMessenger{}
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- svc.HandleMessage(ctx, chatMsg("عنوان"), false, out) }()
	<-resp.entered

	second := make(chan error, 1)
	go func() { second <- svc.HandleMessage(ctx, chatMsg("فيصل"), false, out) }()
	assert.Never(t, func() bool { return len(second) > 0 }, 50*time.Millisecond, 5*time.Millisecond,
		"second message waits for the running turn")

	close(resp.gate)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	texts := out.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "من فضلك حدّد الفرع")
	assert.Contains(t, texts[1], "24 شارع فيصل", "second turn continues the first")
}

func TestChannelService_BusyChatGetsSlowDownReply(t *testing.T) {
	resp := newGateResponder(newTestDialog(t))
	svc := NewChannelService(resp, infrastructure.NewSessionManager(time.Hour), nil, nil)
	svc.turnWait = 20 * time.Millisecond
	out := &fakeMessenger{}
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- svc.HandleMessage(ctx, chatMsg("عنوان"), false, out) }()
	<-resp.entered

	require.NoError(t, svc.HandleMessage(ctx, chatMsg("فيصل"), false, out))
	assert.Equal(t, []string{slowDownReply}, out.texts())

	close(resp.gate)
	require.NoError(t, <-first)
	assert.Len(t, out.texts(), 2)
}

func TestPickSuggestion(t *testing.T) {
	sugg := []entities.Suggestion{{Label: "A", Send: "a"}, {Label: "B", Send: "b"}}

	assert.Equal(t, "b", pickSuggestion("2", sugg))
	assert.Equal(t, "3", pickSuggestion("3", sugg))
	assert.Equal(t, "0", pickSuggestion("0", sugg))
	assert.Equal(t, "hello", pickSuggestion("hello", sugg))
	assert.Equal(t, "1", pickSuggestion("1", nil))
}
