package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg *Config) *httptest.Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	errs := make(chan error, 16)

	mux, _, err := newRouter(cfg, reg, reg, errs)
	require.NoError(t, err)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(body)
}

func TestRouter(t *testing.T) {
	cfg := &Config{
		appID:          "pointbox",
		peerLimit:      8,
		prefix:         "/pointbox",
		sessionTimeout: time.Minute,
		tokenSecret:    "s3cret",
		tokenTTL:       time.Hour,
	}

	srv := newTestServer(t, cfg)

	tests := []struct {
		path        string
		code        int
		contentType string
		contains    string
	}{
		{"/pointbox/", http.StatusOK, "text/html", "pointbox"},
		{"/pointbox/healthz", http.StatusOK, "text/plain", "Ok"},
		{"/pointbox/version", http.StatusOK, "text/plain", "pointbox v" + releaseVersion},
		{"/pointbox/robots.txt", http.StatusOK, "text/plain", "Disallow: /rooms/"},
		{"/pointbox/assets/style.css", http.StatusOK, "text/css", ""},
		{"/pointbox/assets/../main.go", http.StatusNotFound, "", ""},
		{"/pointbox/favicons/favicon.svg", http.StatusOK, "image/svg+xml", "<svg"},
		{"/pointbox/favicons/site.webmanifest", http.StatusOK, "application/manifest+json", "pointbox"},
		{"/pointbox/metrics", http.StatusOK, "text/plain", "pointbox_rooms"},
		{"/pointbox/token", http.StatusMethodNotAllowed, "application/json", "Method not allowed"},
		{"/pointbox/debug/pprof/heap", http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, srv.URL+tt.path)

			assert.Equal(t, tt.code, resp.StatusCode)
			if tt.contentType != "" {
				assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), tt.contentType), resp.Header.Get("Content-Type"))
			}
			assert.Contains(t, body, tt.contains)
		})
	}
}

func TestRouter_Profile(t *testing.T) {
	srv := newTestServer(t, &Config{appID: "pointbox", profile: true, tokenTTL: time.Hour})

	resp, _ := get(t, srv.URL+"/debug/pprof/heap")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_RandomSecret(t *testing.T) {
	srv := newTestServer(t, &Config{appID: "pointbox", tokenTTL: time.Hour})

	resp, err := http.Post(srv.URL+"/token", "application/json",
		strings.NewReader(`{"channelName":"ABC123","memberName":"member_1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", Config{port: 8080, peerLimit: 64, tokenTTL: time.Hour}, true},
		{"tls pair", Config{port: 8443, tlsCert: "c.pem", tlsKey: "k.pem"}, true},
		{"cert only", Config{port: 8443, tlsCert: "c.pem"}, false},
		{"port zero", Config{port: 0}, false},
		{"port high", Config{port: 70000}, false},
		{"negative limit", Config{port: 8080, peerLimit: -1}, false},
		{"negative ttl", Config{port: 8080, tokenTTL: -time.Second}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
