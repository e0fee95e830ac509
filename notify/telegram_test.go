package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegram_LoginAttempt(t *testing.T) {
	var gotPath string
	var gotReq sendMessageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("bot-token", "chat-42")
	tg.baseURL = srv.URL

	ev := Event{
		ID:       "ev-1",
		Success:  true,
		ClientID: "203.0.113.5",
		Time:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, tg.LoginAttempt(context.Background(), ev))

	assert.Equal(t, "/botbot-token/sendMessage", gotPath)
	assert.Equal(t, "chat-42", gotReq.ChatID)
	assert.Contains(t, gotReq.Text, "successful")
	assert.Contains(t, gotReq.Text, "203.0.113.5")
	assert.Contains(t, gotReq.Text, "ev-1")
}

func TestTelegram_FailedAttemptWording(t *testing.T) {
	var gotReq sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("tok", "chat")
	tg.baseURL = srv.URL

	require.NoError(t, tg.LoginAttempt(context.Background(), Event{Success: false, Time: time.Now()}))
	assert.Contains(t, gotReq.Text, "failed")
}

func TestTelegram_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tg := NewTelegram("tok", "chat")
	tg.baseURL = srv.URL

	err := tg.LoginAttempt(context.Background(), Event{Time: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestTelegram_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so net/http watches the connection and cancels
		// r.Context() when the client disconnects; otherwise this handler
		// (and srv.Close) would block forever.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	tg := NewTelegram("tok", "chat")
	tg.baseURL = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tg.LoginAttempt(ctx, Event{Time: time.Now()})
	require.Error(t, err)
}
