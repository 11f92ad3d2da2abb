package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/products/4006381333931", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(Result{
			Name:           "Gauze Pads 10x10",
			Brand:          "Hartmann",
			EnrichedFields: []string{"name", "brand"},
			MediaURLs:      []string{"https://cdn.example.com/a.jpg"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)

	result, err := client.Lookup(context.Background(), "4006381333931")
	require.NoError(t, err)
	require.Equal(t, "Hartmann", result.Brand)
	require.Equal(t, []string{"name", "brand"}, result.EnrichedFields)
	require.Len(t, result.MediaURLs, 1)
}

func TestClientLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Lookup(context.Background(), "04210000526001")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClientLookupServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Lookup(context.Background(), "4006381333931")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 502")
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	require.Error(t, err)
}
