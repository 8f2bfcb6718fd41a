package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

type botAPI struct {
	mu    sync.Mutex
	sent  []map[string]any
	paths []string
	fail  string
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var params map[string]any
	_ = json.NewDecoder(r.Body).Decode(&params)

	b.mu.Lock()
	b.sent = append(b.sent, params)
	b.paths = append(b.paths, r.URL.Path)
	n := len(b.sent)
	fail := b.fail
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fail != "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 400, "description": fail})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok": true,
		"result": map[string]any{
			"message_id": 100 + n,
			"date":       time.Now().Unix(),
			"chat":       map[string]any{"id": 42, "type": "private"},
			"text":       params["text"],
		},
	})
}

func (b *botAPI) requests() ([]map[string]any, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.sent...), append([]string(nil), b.paths...)
}

func newTestAdapter(t *testing.T, api *botAPI) *Adapter {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	a, err := New(Config{Token: "123:abc", APIURL: srv.URL, Timeout: 2 * time.Second}, logx.Nop())
	require.NoError(t, err)
	return a
}

func TestSendTextNumericChat(t *testing.T) {
	t.Parallel()
	api := &botAPI{}
	a := newTestAdapter(t, api)

	ref, err := a.SendText(context.Background(), kit.ChatTarget{Chat: "42"}, "привет", nil)
	require.NoError(t, err)
	assert.Equal(t, kit.MessageRef{Chat: "42", MessageID: 101}, ref)

	sent, paths := api.requests()
	require.Len(t, sent, 1)
	assert.Equal(t, "/bot123:abc/sendMessage", paths[0])
	assert.Equal(t, "42", sent[0]["chat_id"])
	assert.Equal(t, "привет", sent[0]["text"])
}

func TestSendTextUsernameChat(t *testing.T) {
	t.Parallel()
	api := &botAPI{}
	a := newTestAdapter(t, api)

	_, err := a.SendText(context.Background(), kit.ChatTarget{Chat: "@reviews"}, "hi", nil)
	require.NoError(t, err)
	sent, _ := api.requests()
	require.Len(t, sent, 1)
	assert.Equal(t, "@reviews", sent[0]["chat_id"])
}

func TestSendTextRejectsBadChat(t *testing.T) {
	t.Parallel()
	api := &botAPI{}
	a := newTestAdapter(t, api)

	_, err := a.SendText(context.Background(), kit.ChatTarget{Chat: "reviews"}, "hi", nil)
	assert.Error(t, err)
	sent, _ := api.requests()
	assert.Empty(t, sent)
}

func TestSendTextAPIError(t *testing.T) {
	t.Parallel()
	api := &botAPI{fail: "Bad Request: chat not found"}
	a := newTestAdapter(t, api)

	_, err := a.SendText(context.Background(), kit.ChatTarget{Chat: "42"}, "hi", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSendTextSplitsLongMessages(t *testing.T) {
	t.Parallel()
	api := &botAPI{}
	a := newTestAdapter(t, api)

	long := strings.Repeat("строка\n", 1200)
	ref, err := a.SendText(context.Background(), kit.ChatTarget{Chat: "42"}, long, nil)
	require.NoError(t, err)
	assert.Equal(t, 101, ref.MessageID)
	sent, _ := api.requests()
	assert.Greater(t, len(sent), 1)
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Token: " "}, logx.Nop())
	assert.Error(t, err)
}

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"short"}, splitTelegramText("short", 10, ""))

	parts := splitTelegramText(strings.Repeat("a", 25), 10, "")
	assert.Equal(t, []string{strings.Repeat("a", 10), strings.Repeat("a", 10), strings.Repeat("a", 5)}, parts)

	parts = splitTelegramText("aaaaaa\nbbbbbb\ncccccc", 10, "")
	assert.Equal(t, []string{"aaaaaa", "bbbbbb", "cccccc"}, parts)

	parts = splitTelegramText("aaaa<b>bold</b>", 6, "HTML")
	assert.Equal(t, "aaaa", parts[0])
}
