// Package server exposes a node's status and relay controls over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/danmuck/packlink/internal/auth"
	logs "github.com/danmuck/packlink/internal/logging"
	"github.com/danmuck/packlink/internal/node"
	"github.com/danmuck/packlink/internal/observability"
)

const Version = "0.1.0"

type Config struct {
	Addr        string
	CORSOrigins []string
	// Token, when set, is required as a bearer token on POST routes.
	Token string
	// TokenFile names a file holding the token, re-read per request.
	TokenFile string
	// Validator overrides Token and TokenFile.
	Validator auth.Validator
	// CallTimeout bounds how long a handler waits for the control loop.
	CallTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"http://localhost:3000"}
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 2 * time.Second
	}
	return c
}

// Server is the admin API for one node.
type Server struct {
	node     *node.Node
	cfg      Config
	router   *gin.Engine
	appeared time.Time
}

func New(n *node.Node, cfg Config) *Server {
	cfg = cfg.withDefaults()
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.InitLogger(n.NodeID())))
	r.Use(observability.RequestMetricsMiddleware(n.NodeID()))
	r.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		node:     n,
		cfg:      cfg,
		router:   r,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logs.Infof("server.Serve node=%s addr=%s", s.node.NodeID(), s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logs.Infof("server.Serve stopped node=%s", s.node.NodeID())
	return nil
}

// call runs fn on the node's control loop.
func (s *Server) call(c *gin.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.CallTimeout)
	defer cancel()
	return s.node.Do(ctx, fn)
}
