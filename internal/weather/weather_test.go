package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghatsafe/ghatsafe/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestCurrent_Live(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Rohtang Pass", r.URL.Query().Get("location"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		w.Write([]byte(`{"condition":" Foggy "}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL + "?units=metric", HTTP: srv.Client()}
	got := c.Current(context.Background(), "Rohtang Pass")
	assert.Equal(t, Report{Location: "Rohtang Pass", Condition: "Foggy", Source: SourceLive}, got)
}

func TestCurrent_Fallbacks(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{`)) }},
		{"empty condition", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"condition":""}`)) }},
		{"slow", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := &Client{BaseURL: srv.URL, Timeout: 50 * time.Millisecond, Fallback: "Rainy"}
			got := c.Current(context.Background(), "Kasara Ghat")
			assert.Equal(t, "Rainy", got.Condition)
			assert.Equal(t, SourceFallback, got.Source)
		})
	}
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("network unreachable")
}

func TestCurrent_TransportErrorAndUnconfigured(t *testing.T) {
	c := &Client{BaseURL: "http://weather.invalid", HTTP: failingDoer{}}
	got := c.Current(context.Background(), "Agumbe Ghat")
	assert.Equal(t, DefaultFallback, got.Condition)

	var nilClient *Client
	got = nilClient.Current(context.Background(), "Agumbe Ghat")
	assert.Equal(t, SourceFallback, got.Source)

	_, err := (&Client{}).Lookup(context.Background(), "x")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestLookup_BadURL(t *testing.T) {
	_, err := (&Client{BaseURL: "://nope"}).Lookup(context.Background(), "x")
	assert.Error(t, err)
}
