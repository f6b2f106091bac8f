package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineClientPushesConfirmTemplate(t *testing.T) {
	var gotAuth string
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/push", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewLineClient(srv.URL, "secret", time.Second)
	err := c.Push(context.Background(), "U123", Message{
		Text: "How did the meeting go?",
		Actions: []Action{
			{Label: "Success", Data: "action=outcome&result=success"},
			{Label: "Failure", Data: "action=outcome&result=failure"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "U123", got["to"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	m := msgs[0].(map[string]any)
	assert.Equal(t, "template", m["type"])
	assert.Equal(t, "How did the meeting go?", m["altText"])
	tmpl := m["template"].(map[string]any)
	assert.Equal(t, "confirm", tmpl["type"])
	assert.Len(t, tmpl["actions"], 2)
}

func TestLineClientPlainTextAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"type":"text"`) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"rate limited"}`))
	}))
	defer srv.Close()

	err := NewLineClient(srv.URL, "secret", time.Second).Push(context.Background(), "U1", Message{Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	err = NewLineClient(srv.URL, "", time.Second).Push(context.Background(), "U1", Message{Text: "hi"})
	assert.ErrorIs(t, err, ErrLineTokenMissing)
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", 587, "bot@example.com", "pw", "")

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	require.NoError(t, m.Send(context.Background(), "seller@example.com", "Sold", "Your item sold."))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "bot@example.com", gotFrom)
	assert.Equal(t, []string{"seller@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "To: seller@example.com\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "Your item sold."))

	assert.Error(t, m.Send(context.Background(), " ", "x", "y"))
}

type countingPusher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *countingPusher) Push(ctx context.Context, to string, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func TestDispatcherBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	p := &countingPusher{err: errors.New("unreachable")}
	d := NewDispatcher(p, nil, BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Minute, HalfOpenRequests: 1}, time.Second, nil)

	for i := 0; i < 5; i++ {
		d.Push(context.Background(), "U1", Message{Text: "hi"})
	}
	assert.Equal(t, 2, p.calls)
}

func TestDispatcherIgnoresDisabledChannels(t *testing.T) {
	d := NewDispatcher(nil, nil, DefaultBreakerConfig(), 0, nil)
	assert.NotPanics(t, func() {
		d.Push(context.Background(), "U1", Message{Text: "hi"})
		d.Email(context.Background(), "a@b.c", "s", "b")
	})
}
