// FILE: tracewisp/src/internal/status/server_test.go
package status

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"tracewisp/src/internal/auth"
	"tracewisp/src/internal/config"
	"tracewisp/src/internal/router"
	ltls "tracewisp/src/internal/tls"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type fakeSource struct{}

func (fakeSource) DiagnosticStatus() string {
	return "router: threaded (running)\nerror count: 2\n"
}

func (fakeSource) Stats() router.Stats {
	return router.Stats{Variant: "threaded", State: "running", ErrorCount: 2, SinkCount: 1}
}

func newTestServer(t *testing.T, cfg *config.StatusConfig) *Server {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = "/status"
	}
	s, err := NewServer(cfg, fakeSource{}, log.NewLogger())
	require.NoError(t, err)
	return s
}

func do(s *Server, method, uri, authHeader, remote string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	addr, _ := net.ResolveTCPAddr("tcp", remote)

	var ctx fasthttp.RequestCtx
	ctx.Init(&req, addr, nil)
	s.requestHandler(&ctx)
	return &ctx
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t, &config.StatusConfig{})

	testCases := []struct {
		name     string
		method   string
		uri      string
		wantCode int
		wantBody string
	}{
		{name: "TextStatus", method: "GET", uri: "/status", wantCode: 200, wantBody: "error count: 2"},
		{name: "Health", method: "GET", uri: "/healthz", wantCode: 200, wantBody: "ok"},
		{name: "Head", method: "HEAD", uri: "/status", wantCode: 200},
		{name: "NotFound", method: "GET", uri: "/other", wantCode: 404},
		{name: "WrongMethod", method: "POST", uri: "/status", wantCode: 405},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := do(s, tc.method, tc.uri, "", "127.0.0.1:1000")
			assert.Equal(t, tc.wantCode, ctx.Response.StatusCode())
			if tc.wantBody != "" {
				assert.Contains(t, string(ctx.Response.Body()), tc.wantBody)
			}
		})
	}
}

func TestServer_JSONReport(t *testing.T) {
	s := newTestServer(t, &config.StatusConfig{})

	ctx := do(s, "GET", "/status?format=json", "", "127.0.0.1:1000")
	require.Equal(t, 200, ctx.Response.StatusCode())
	assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))

	var report Report
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &report))
	assert.Equal(t, "tracewisp", report.Service)
	assert.Equal(t, uint64(2), report.Router.ErrorCount)
	assert.Equal(t, "threaded", report.Router.Variant)
	assert.Contains(t, report.Server, "requests")
	assert.Positive(t, report.Host.Goroutines)
	assert.Positive(t, report.Host.HeapAllocBytes)
}

func TestServer_RateLimit(t *testing.T) {
	s := newTestServer(t, &config.StatusConfig{
		RateLimit: &config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2},
	})
	defer s.limiter.Stop()

	for i := 0; i < 2; i++ {
		assert.Equal(t, 200, do(s, "GET", "/status", "", "10.0.0.1:1").Response.StatusCode())
	}
	ctx := do(s, "GET", "/status", "", "10.0.0.1:2")
	assert.Equal(t, fasthttp.StatusTooManyRequests, ctx.Response.StatusCode())

	// Limits are per client IP and health checks are exempt
	assert.Equal(t, 200, do(s, "GET", "/status", "", "10.0.0.2:1").Response.StatusCode())
	assert.Equal(t, 200, do(s, "GET", "/healthz", "", "10.0.0.1:3").Response.StatusCode())
	assert.Equal(t, 2, s.limiter.ActiveClients())
}

func TestServer_BasicAuth(t *testing.T) {
	hash, err := auth.HashPassword("pw", auth.Params{Time: 1, Memory: 1024, Threads: 1})
	require.NoError(t, err)

	s := newTestServer(t, &config.StatusConfig{
		Auth: &config.AuthConfig{
			Type: "basic",
			BasicAuth: &config.BasicAuthConfig{
				Users: []config.BasicAuthUser{{Username: "ops", PasswordHash: hash}},
			},
		},
	})
	defer s.auth.Close()

	ctx := do(s, "GET", "/status", "", "10.2.0.1:1")
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Equal(t, `Basic realm="tracewisp"`, string(ctx.Response.Header.Peek("WWW-Authenticate")))

	good := "Basic " + base64.StdEncoding.EncodeToString([]byte("ops:pw"))
	ctx = do(s, "GET", "/status", good, "10.2.0.2:1")
	assert.Equal(t, 200, ctx.Response.StatusCode())

	// Health checks never require credentials
	assert.Equal(t, 200, do(s, "GET", "/healthz", "", "10.2.0.3:1").Response.StatusCode())
}

func TestServer_ServeOverListener(t *testing.T) {
	s := newTestServer(t, &config.StatusConfig{
		Auth: &config.AuthConfig{
			Type:       "bearer",
			BearerAuth: &config.BearerAuthConfig{Tokens: []string{"tok"}},
		},
	})

	ln := fasthttputil.NewInmemoryListener()
	s.Serve(ln)
	assert.NotNil(t, s.Addr())

	client := &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://status.local/status")
	req.Header.Set("Authorization", "Bearer tok")
	require.NoError(t, client.DoTimeout(req, resp, 2*time.Second))
	assert.Equal(t, 200, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), "router: threaded")

	require.NoError(t, s.Stop(t.Context()))
}

func TestServer_TLS(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "status.crt")
	keyFile := filepath.Join(dir, "status.key")
	gen, err := ltls.GenerateCert(ltls.CertRequest{
		Kind:       ltls.KindSelfSigned,
		CommonName: "localhost",
		Hosts:      []string{"localhost"},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, gen.WriteFiles(certFile, keyFile))

	s := newTestServer(t, &config.StatusConfig{
		TLS: &config.TLSServerConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile},
	})
	ln := fasthttputil.NewInmemoryListener()
	s.Serve(ln)
	defer s.Stop(t.Context())

	roots := x509.NewCertPool()
	require.True(t, roots.AppendCertsFromPEM(gen.CertPEM))
	client := &fasthttp.Client{
		Dial:      func(string) (net.Conn, error) { return ln.Dial() },
		TLSConfig: &tls.Config{RootCAs: roots, ServerName: "localhost"},
	}

	statusCode, body, err := client.GetTimeout(nil, "https://localhost/status", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 200, statusCode)
	assert.Contains(t, string(body), "router: threaded")
}

func TestNewServer_TLSMissingCert(t *testing.T) {
	_, err := NewServer(&config.StatusConfig{
		Path: "/status",
		TLS:  &config.TLSServerConfig{Enabled: true, CertFile: "/nonexistent.crt", KeyFile: "/nonexistent.key"},
	}, fakeSource{}, log.NewLogger())
	assert.ErrorContains(t, err, "status tls")
}

func TestNewRateLimiter_Disabled(t *testing.T) {
	assert.Nil(t, NewRateLimiter(nil))
	assert.Nil(t, NewRateLimiter(&config.RateLimitConfig{}))

	var rl *RateLimiter
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.Zero(t, rl.ActiveClients())
	rl.Stop()
}

func TestRateLimiter_RemovesIdleClients(t *testing.T) {
	rl := NewRateLimiter(&config.RateLimitConfig{RequestsPerSecond: 10, CleanupIntervalSeconds: 60})
	defer rl.Stop()

	rl.Allow("a")
	rl.Allow("b")
	require.Equal(t, 2, rl.ActiveClients())

	rl.removeOldClients(time.Now().Add(time.Minute))
	assert.Equal(t, 2, rl.ActiveClients(), "recently seen clients are kept")

	rl.removeOldClients(time.Now().Add(3 * time.Minute))
	assert.Zero(t, rl.ActiveClients())
}
