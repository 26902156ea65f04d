package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/backoffice/services/complaints/config"
)

func newTestResolver(baseURL string, timeout time.Duration) *Resolver {
	return NewResolver(config.GeoIPConfig{
		BaseURL: baseURL,
		Timeout: timeout,
	}, nil)
}

func TestResolveCountrySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/1.2.3.4", r.URL.Path)
		require.Equal(t, "countryCode,proxy", r.URL.Query().Get("fields"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"countryCode":"US","proxy":false}`))
	}))
	defer server.Close()

	resolver := newTestResolver(server.URL, time.Second)

	country, ok := resolver.ResolveCountry(context.Background(), "1.2.3.4")
	require.True(t, ok)
	require.Equal(t, "US", country)
}

func TestResolveCountryProxyFlagged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"countryCode":"US","proxy":true}`))
	}))
	defer server.Close()

	resolver := newTestResolver(server.URL, time.Second)

	country, ok := resolver.ResolveCountry(context.Background(), "1.2.3.4")
	require.False(t, ok)
	require.Empty(t, country)
}

func TestResolveCountryMissingCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"proxy":false}`))
	}))
	defer server.Close()

	resolver := newTestResolver(server.URL, time.Second)

	_, ok := resolver.ResolveCountry(context.Background(), "1.2.3.4")
	require.False(t, ok)
}

func TestResolveCountryMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	resolver := newTestResolver(server.URL, time.Second)

	_, ok := resolver.ResolveCountry(context.Background(), "1.2.3.4")
	require.False(t, ok)
}

func TestResolveCountryServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	resolver := newTestResolver(server.URL, time.Second)

	_, ok := resolver.ResolveCountry(context.Background(), "1.2.3.4")
	require.False(t, ok)
}

func TestResolveCountryTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"countryCode":"US","proxy":false}`))
	}))
	defer server.Close()

	resolver := newTestResolver(server.URL, 20*time.Millisecond)

	_, ok := resolver.ResolveCountry(context.Background(), "1.2.3.4")
	require.False(t, ok)
}

func TestResolveCountryUnreachableService(t *testing.T) {
	resolver := newTestResolver("http://127.0.0.1:1", 100*time.Millisecond)

	_, ok := resolver.ResolveCountry(context.Background(), "1.2.3.4")
	require.False(t, ok)
}

func TestResolveCountryEmptyIP(t *testing.T) {
	resolver := newTestResolver("http://127.0.0.1:1", time.Second)

	_, ok := resolver.ResolveCountry(context.Background(), "")
	require.False(t, ok)
}

func TestBuildLookupURL(t *testing.T) {
	url := BuildLookupURL("http://ip-api.com/json", "8.8.8.8")
	require.Equal(t, "http://ip-api.com/json/8.8.8.8?fields=countryCode,proxy", url)
}
