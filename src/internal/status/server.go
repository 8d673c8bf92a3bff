// FILE: tracewisp/src/internal/status/server.go
package status

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"tracewisp/src/internal/auth"
	"tracewisp/src/internal/config"
	"tracewisp/src/internal/router"
	ltls "tracewisp/src/internal/tls"
	"tracewisp/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/valyala/fasthttp"
)

const healthPath = "/healthz"

// Source supplies the diagnostics the endpoint serves
type Source interface {
	DiagnosticStatus() string
	Stats() router.Stats
}

// Server exposes router diagnostics over HTTP
type Server struct {
	config  *config.StatusConfig
	source  Source
	auth    *auth.Authenticator
	limiter *RateLimiter
	tls     *ltls.ServerManager
	server  *fasthttp.Server
	logger  *log.Logger

	listener net.Listener
	wg       sync.WaitGroup

	startTime    time.Time
	requests     atomic.Uint64
	rejectedAuth atomic.Uint64
	rejectedRate atomic.Uint64
}

func NewServer(cfg *config.StatusConfig, source Source, logger *log.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("status configuration required")
	}
	if source == nil {
		return nil, errors.New("status source required")
	}

	authenticator, err := auth.New(cfg.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("status auth: %w", err)
	}
	tlsManager, err := ltls.NewServerManager(cfg.TLS, logger)
	if err != nil {
		return nil, fmt.Errorf("status tls: %w", err)
	}

	s := &Server{
		config:    cfg,
		source:    source,
		auth:      authenticator,
		limiter:   NewRateLimiter(cfg.RateLimit),
		tls:       tlsManager,
		logger:    logger,
		startTime: time.Now(),
	}
	s.server = &fasthttp.Server{
		Name:         fmt.Sprintf("TraceWisp/%s", version.Short()),
		Handler:      s.requestHandler,
		Logger:       compat.NewFastHTTPAdapter(logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s, nil
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("status listen on %s: %w", addr, err)
	}
	s.Serve(ln)
	return nil
}

// Serve serves on an existing listener in the background, terminating TLS
// on it when configured
func (s *Server) Serve(ln net.Listener) {
	if s.tls != nil {
		ln = tls.NewListener(ln, s.tls.GetConfig())
	}
	s.listener = ln
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("msg", "Status server started",
			"component", "status",
			"address", ln.Addr().String(),
			"path", s.config.Path,
			"auth", s.auth.Type(),
			"tls", s.tls != nil)

		if err := s.server.Serve(ln); err != nil {
			s.logger.Error("msg", "Status server failed",
				"component", "status",
				"error", err)
		}
	}()
}

// Addr returns the listening address, nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the server down and waits for the serve loop to exit
func (s *Server) Stop(ctx context.Context) error {
	err := s.server.ShutdownWithContext(ctx)
	s.wg.Wait()
	s.limiter.Stop()
	s.auth.Close()

	s.logger.Info("msg", "Status server stopped",
		"component", "status",
		"requests", s.requests.Load())
	return err
}

func (s *Server) requestHandler(ctx *fasthttp.RequestCtx) {
	s.requests.Add(1)

	path := string(ctx.Path())
	if path != healthPath && path != s.config.Path {
		ctx.Error("Not Found", fasthttp.StatusNotFound)
		return
	}
	if !ctx.IsGet() && !ctx.IsHead() {
		ctx.Response.Header.Set("Allow", "GET, HEAD")
		ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
		return
	}

	if path == healthPath {
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString("ok\n")
		return
	}

	remoteAddr := ctx.RemoteAddr().String()
	if !s.limiter.Allow(ctx.RemoteIP().String()) {
		s.rejectedRate.Add(1)
		ctx.Response.Header.Set("Retry-After", "1")
		ctx.Error("Too Many Requests", fasthttp.StatusTooManyRequests)
		return
	}

	if _, err := s.auth.Authenticate(string(ctx.Request.Header.Peek("Authorization")), remoteAddr); err != nil {
		s.rejectedAuth.Add(1)
		if errors.Is(err, auth.ErrTooManyAttempts) {
			ctx.Error("Too Many Requests", fasthttp.StatusTooManyRequests)
			return
		}
		ctx.Response.Header.Set("WWW-Authenticate", s.auth.Challenge())
		ctx.Error("Unauthorized", fasthttp.StatusUnauthorized)
		return
	}

	if string(ctx.QueryArgs().Peek("format")) == "json" {
		s.writeJSON(ctx)
		return
	}
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString(s.source.DiagnosticStatus())
}

// Report is the JSON form of the status page
type Report struct {
	Service string         `json:"service"`
	Version string         `json:"version"`
	Uptime  string         `json:"uptime"`
	Router  router.Stats   `json:"router"`
	Host    HostStats      `json:"host"`
	Server  map[string]any `json:"server"`
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx) {
	report := Report{
		Service: "tracewisp",
		Version: version.Short(),
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		Router:  s.source.Stats(),
		Host:    collectHostStats(),
		Server: map[string]any{
			"requests":       s.requests.Load(),
			"rejected_auth":  s.rejectedAuth.Load(),
			"rejected_rate":  s.rejectedRate.Load(),
			"active_clients": s.limiter.ActiveClients(),
			"auth":           s.auth.GetStats(),
			"tls":            s.tls.GetStats(),
		},
	}

	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(report); err != nil {
		s.logger.Error("msg", "Failed to encode status report",
			"component", "status",
			"error", err)
		ctx.Error("Internal Server Error", fasthttp.StatusInternalServerError)
	}
}
