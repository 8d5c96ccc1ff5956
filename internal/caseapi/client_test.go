package caseapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domerrors "github.com/imapex/tacbot-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient spins up a server handling both the token exchange and
// the case endpoint, and returns a client pointed at it.
func newTestClient(t *testing.T, caseHandler http.HandlerFunc) *Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/cases/details/case_ids/", caseHandler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Timeout:      5 * time.Second,
	})
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "/cases/details/case_ids/612345678", r.URL.Path)
		_, _ = w.Write([]byte(legacyDoc))
	})

	detail, err := client.Fetch(context.Background(), "612345678")
	require.NoError(t, err)
	assert.Equal(t, "Router crash", detail.Title)
	assert.Equal(t, "612345678", detail.CaseNumber)
}

func TestFetchNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"RESPONSE":{"COUNT":0}}`))
	})

	_, err := client.Fetch(context.Background(), "687654321")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domerrors.ErrCaseNotFound))
}

func TestFetchUpstreamError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error_description":"API access forbidden"}`))
	})

	_, err := client.Fetch(context.Background(), "612345678")
	require.Error(t, err)

	var upstream *domerrors.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusForbidden, upstream.StatusCode)
	assert.Equal(t, "API access forbidden", upstream.Description)
}

func TestErrorDescription(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"oauth style", `{"error_description":"invalid token"}`, "invalid token"},
		{"legacy envelope", `{"ERROR":{"DESCRIPTION":"backend down"}}`, "backend down"},
		{"raw body fallback", `service unavailable`, "service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, errorDescription([]byte(tt.body)))
		})
	}
}
