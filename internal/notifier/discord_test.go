package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordNotifier_Notify(t *testing.T) {
	var got map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := NewDiscordNotifier(server.URL).Notify(context.Background(), "archive run finished")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"content": "archive run finished"}, got)
}

func TestDiscordNotifier_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{name: "missing url", url: "", wantErr: "webhook URL is not set"},
		{name: "non-2xx", url: server.URL, wantErr: "webhook failed with status 429"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDiscordNotifier(tt.url).Notify(context.Background(), "hi")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
