package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/chatrelay/internal/database"
	"github.com/edgard/chatrelay/internal/gemini"
	"github.com/edgard/chatrelay/internal/testutil"
)

type fakeClient struct {
	mu      sync.Mutex
	queries []string
	reply   string
	err     error
}

func (c *fakeClient) Complete(_ context.Context, query string) (string, error) {
	c.mu.Lock()
	c.queries = append(c.queries, query)
	c.mu.Unlock()
	return c.reply, c.err
}

func (c *fakeClient) calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

// sink records published messages and emitted events in arrival order.
type sink struct {
	mu        sync.Mutex
	sequence  []string
	published []database.Message
}

func (s *sink) Publish(_ context.Context, msg *database.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence = append(s.sequence, "publish:"+msg.Kind)
	s.published = append(s.published, *msg)
	return nil
}

func (s *sink) Emit(event string, _ any, room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence = append(s.sequence, "emit:"+event+":"+room)
}

func (s *sink) snapshot() ([]string, []database.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sequence...), append([]database.Message(nil), s.published...)
}

func newTestGateway(t *testing.T, client gemini.Client) (*Gateway, *sink) {
	t.Helper()
	out := &sink{}
	gw := NewGateway(testutil.Logger(t), client, out, out, Config{
		RequestTimeout:  time.Second,
		ReplyDelay:      0,
		EmptyQueryReply: "Please type something after @bot.",
		NoResponseReply: "no valid response",
	})
	return gw, out
}

func TestInvokeEmptyQuery(t *testing.T) {
	t.Parallel()

	client := &fakeClient{reply: "should not be used"}
	gw, out := newTestGateway(t, client)

	gw.Invoke(context.Background(), "lab", "")

	sequence, published := out.snapshot()
	assert.Equal(t, []string{"publish:bot"}, sequence, "no typing indicator and no external call for an empty query")
	assert.Empty(t, client.calls())

	require.Len(t, published, 1)
	assert.Equal(t, "Please type something after @bot.", published[0].Body)
	assert.Equal(t, Name, published[0].Username)
	assert.Equal(t, "lab", published[0].Room)
}

func TestInvokeSuccess(t *testing.T) {
	t.Parallel()

	client := &fakeClient{reply: "Go is a programming language."}
	gw, out := newTestGateway(t, client)

	gw.Invoke(context.Background(), "lab", "what is Go?")

	sequence, published := out.snapshot()
	require.Equal(t, []string{"emit:typing:lab", "publish:bot"}, sequence)
	assert.Equal(t, []string{"what is Go?"}, client.calls())

	require.Len(t, published, 1)
	assert.Equal(t, "Go is a programming language.", published[0].Body)
	assert.Equal(t, database.KindBot, published[0].Kind)
	assert.Equal(t, Name, published[0].Username)
	assert.Equal(t, "lab", published[0].Room)
}

func TestInvokeNoContent(t *testing.T) {
	t.Parallel()

	client := &fakeClient{err: gemini.ErrNoContent}
	gw, out := newTestGateway(t, client)

	gw.Invoke(context.Background(), "lab", "hello")

	_, published := out.snapshot()
	require.Len(t, published, 1)
	assert.Equal(t, "no valid response", published[0].Body)
}

func TestInvokeServiceFailure(t *testing.T) {
	t.Parallel()

	client := &fakeClient{err: errors.New("quota exceeded")}
	gw, out := newTestGateway(t, client)

	gw.Invoke(context.Background(), "lab", "hello")

	sequence, published := out.snapshot()
	require.Equal(t, []string{"emit:typing:lab", "publish:bot"}, sequence)

	require.Len(t, published, 1)
	assert.NotEmpty(t, published[0].Body)
	assert.Contains(t, published[0].Body, "quota exceeded")
	assert.Equal(t, database.KindBot, published[0].Kind)
}

func TestInvokeUnconfiguredClientFailsGracefully(t *testing.T) {
	t.Parallel()

	client := &fakeClient{err: gemini.ErrNotConfigured}
	gw, out := newTestGateway(t, client)

	gw.Invoke(context.Background(), "lab", "hello")

	_, published := out.snapshot()
	require.Len(t, published, 1)
	assert.Contains(t, published[0].Body, "Error: ")
}
