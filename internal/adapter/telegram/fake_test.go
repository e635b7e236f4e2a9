package telegram

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"newsrelay/internal/retry"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testToken = "123456:test-token"

type sentRequest struct {
	Method string
	Form   map[string]string
}

// fakeBotAPI имитирует Bot API: отвечает на getMe и записывает отправки.
type fakeBotAPI struct {
	mu       sync.Mutex
	requests []sentRequest
	respond  func(method string, call int) (int, string)
	server   *httptest.Server
}

func newFakeBotAPI(t *testing.T, respond func(method string, call int) (int, string)) *fakeBotAPI {
	t.Helper()
	fake := &fakeBotAPI{respond: respond}
	fake.server = httptest.NewServer(http.HandlerFunc(fake.handle))
	t.Cleanup(fake.server.Close)
	return fake
}

func (f *fakeBotAPI) handle(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	w.Header().Set("Content-Type", "application/json")
	if method == "getMe" {
		w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"relay","username":"relay_bot"}}`))
		return
	}
	_ = r.ParseForm()
	form := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	f.mu.Lock()
	f.requests = append(f.requests, sentRequest{Method: method, Form: form})
	call := len(f.requests)
	f.mu.Unlock()

	status, body := http.StatusOK, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":-1001,"type":"channel"}}}`
	if f.respond != nil {
		status, body = f.respond(method, call)
	}
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func (f *fakeBotAPI) sent() []sentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentRequest(nil), f.requests...)
}

func (f *fakeBotAPI) endpoint() string {
	return f.server.URL + "/bot%s/%s"
}

func newTestPublisher(t *testing.T, fake *fakeBotAPI, footer string) *Publisher {
	t.Helper()
	p, err := NewPublisher(Options{
		BotToken:          testToken,
		APIEndpoint:       fake.endpoint(),
		Footer:            footer,
		Timeout:           time.Second,
		MessagesPerMinute: 60000,
	}, retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return p
}
