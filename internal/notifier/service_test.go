package notifier

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

type fakeSender struct {
	mu    sync.Mutex
	texts []string
	to    []kit.ChatTarget
	err   error
	panic bool
}

func (f *fakeSender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if f.panic {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return kit.MessageRef{}, f.err
	}
	f.texts = append(f.texts, text)
	f.to = append(f.to, to)
	return kit.MessageRef{Chat: to.Chat, MessageID: len(f.texts)}, nil
}

func TestSendDelivers(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	svc := New(Config{Chat: "42", RatePerSec: 100}, fs, logx.Nop())

	assert.True(t, svc.Send(context.Background(), "hello"))
	assert.Equal(t, []string{"hello"}, fs.texts)
	assert.Equal(t, "42", fs.to[0].Chat)
	assert.Equal(t, uint64(1), svc.Stats().Sent)
}

func TestSendSwallowsFailures(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	fs := &fakeSender{err: errors.New("telegram: chat not found (400)")}
	svc := New(Config{Chat: "42"}, fs, logx.NewWriter(&buf, "info"))

	assert.NotPanics(t, func() {
		assert.False(t, svc.Send(context.Background(), "hello"))
	})
	assert.Equal(t, uint64(1), svc.Stats().Failed)
	assert.Contains(t, buf.String(), "chat not found")
	assert.Contains(t, buf.String(), "notify")
}

func TestSendRecoversSenderPanic(t *testing.T) {
	t.Parallel()
	svc := New(Config{Chat: "42"}, &fakeSender{panic: true}, logx.Nop())
	assert.NotPanics(t, func() {
		assert.False(t, svc.Send(context.Background(), "hello"))
	})
}

func TestSendWithoutSender(t *testing.T) {
	t.Parallel()
	svc := New(Config{Chat: "42"}, nil, logx.Nop())
	assert.False(t, svc.Send(context.Background(), "hello"))
}

func TestSendCancelledContext(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	svc := New(Config{Chat: "42", RatePerSec: 1}, fs, logx.Nop())

	// drain the single token so the next send has to wait
	require.True(t, svc.Send(context.Background(), "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, svc.Send(ctx, "second"))
	assert.Equal(t, []string{"first"}, fs.texts)
}
