package config_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"fund-directory/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Адрес клиента из заголовков берётся только при доверенном прокси
func TestSetupServer_ProxyHeaders(t *testing.T) {
	tests := []struct {
		name              string
		trustProxyHeaders bool
		wantRemoteAddr    string
	}{
		{name: "заголовки игнорируются", trustProxyHeaders: false, wantRemoteAddr: "10.0.0.1:5000"},
		{name: "доверенный прокси", trustProxyHeaders: true, wantRemoteAddr: "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, router := config.SetupServer(":0", tt.trustProxyHeaders)
			assert.Equal(t, ":0", srv.Addr)

			var remoteAddr string
			router.Get("/ip", func(w http.ResponseWriter, r *http.Request) {
				remoteAddr = r.RemoteAddr
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/ip", nil)
			req.RemoteAddr = "10.0.0.1:5000"
			req.Header.Set("X-Forwarded-For", "203.0.113.7")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.wantRemoteAddr, remoteAddr)
		})
	}
}

func TestLoadConfig_TrustProxyHeaders(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fund_directory")
	t.Setenv("JWT_SECRET", "test-secret-key-that-is-long-enough-0123456789")
	missing := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := config.LoadConfig(missing)
	require.NoError(t, err)
	assert.False(t, cfg.TrustProxyHeaders)

	t.Setenv("TRUST_PROXY_HEADERS", "true")
	cfg, err = config.LoadConfig(missing)
	require.NoError(t, err)
	assert.True(t, cfg.TrustProxyHeaders)
}
