package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/danmuck/packlink/internal/auth"
	"github.com/danmuck/packlink/internal/link"
	"github.com/danmuck/packlink/internal/node"
	"github.com/danmuck/packlink/internal/observability"
	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/protocol/catalog"
	"github.com/danmuck/packlink/internal/store"
)

func (s *Server) registerRoutes() {
	r := s.router
	mut := s.mutating()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"node":    s.node.NodeID(),
			"kind":    s.node.Kind(),
			"version": Version,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		ready := false
		for _, l := range s.node.Status().Links {
			if l.PeerPresent || l.State == link.StateStandalone.String() {
				ready = true
				break
			}
		}
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"ready": ready, "node": s.node.NodeID()})
	})

	r.GET("/metrics", gin.WrapH(observability.Handler()))

	r.GET("/links", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"links": s.node.Status().Links})
	})

	r.GET("/links/:link", func(c *gin.Context) {
		id := link.LinkID(c.Param("link"))
		for _, l := range s.node.Status().Links {
			if l.ID == id {
				c.JSON(http.StatusOK, l)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
	})

	r.GET("/state", func(c *gin.Context) {
		st := s.node.Status()
		c.JSON(http.StatusOK, gin.H{"state": st.State, "updated_at": st.UpdatedAt})
	})

	mut.POST("/state/:action", func(c *gin.Context) {
		action, err := catalog.ParseAction(c.Param("action"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		arg, err := parseArg(c.Query("arg"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var changed bool
		err = s.call(c, func() error {
			if !action.StateBearing() {
				return errNotState
			}
			changed = s.node.Apply(action, arg)
			return nil
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"action": action.String(), "arg": arg, "changed": changed})
	})

	mut.POST("/links/:link/trigger/:action", func(c *gin.Context) {
		id := link.LinkID(c.Param("link"))
		action, err := catalog.ParseAction(c.Param("action"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		arg, err := parseArg(c.Query("arg"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := s.call(c, func() error { return s.node.Trigger(id, action, arg) }); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "sent", "link": id, "action": action.String()})
	})

	r.GET("/configs", func(c *gin.Context) {
		st := s.node.Status()
		c.JSON(http.StatusOK, gin.H{"configs": st.Configs, "pending_relays": st.Pending})
	})

	r.GET("/config/:kind", func(c *gin.Context) {
		kind, err := protocol.ParseConfigKind(c.Param("kind"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		body, ok := s.node.Store().Get(kind)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "config not held; request it first"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"kind": kind.String(), "owned": s.node.Store().Owns(kind), "config": body})
	})

	mut.POST("/config/:kind/request", func(c *gin.Context) {
		kind, err := protocol.ParseConfigKind(c.Param("kind"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		from := link.LinkID(c.Query("from"))
		if err := s.call(c, func() error { return s.node.RequestConfig(kind, from) }); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "requested", "kind": kind.String(), "from": from})
	})

	mut.POST("/config/:kind/save", func(c *gin.Context) {
		kind, err := protocol.ParseConfigKind(c.Param("kind"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var result <-chan error
		err = s.call(c, func() (err error) {
			result, err = s.node.SaveConfig(kind)
			return err
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		if result == nil {
			c.JSON(http.StatusOK, gin.H{"status": "forwarded", "kind": kind.String()})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.CallTimeout)
		defer cancel()
		select {
		case err = <-result:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "saved", "kind": kind.String()})
	})
}

func (s *Server) validator() auth.Validator {
	switch {
	case s.cfg.Validator != nil:
		return s.cfg.Validator
	case s.cfg.TokenFile != "":
		return auth.TokenFile(s.cfg.TokenFile)
	case s.cfg.Token != "":
		return auth.StaticToken{Token: s.cfg.Token}
	}
	return nil
}

// mutating returns the route group for state-changing calls, token-guarded
// when a token is configured.
func (s *Server) mutating() gin.IRoutes {
	g := s.router.Group("/")
	v := s.validator()
	if v == nil {
		return g
	}
	g.Use(func(c *gin.Context) {
		if err := auth.CheckHeader(v, c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	})
	return g
}

var errNotState = errors.New("action does not carry shared state")

func parseArg(raw string) (uint16, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func (s *Server) fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errNotState),
		errors.Is(err, node.ErrNotEffect),
		errors.Is(err, protocol.ErrUnknownConfigKind):
		code = http.StatusBadRequest
	case errors.Is(err, node.ErrUnknownLink):
		code = http.StatusNotFound
	case errors.Is(err, node.ErrNoOwner),
		errors.Is(err, store.ErrNotOwned),
		errors.Is(err, link.ErrNotConnected),
		errors.Is(err, link.ErrNotInCatalog):
		code = http.StatusConflict
	case errors.Is(err, node.ErrBusy):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	_ = c.Error(err)
	c.JSON(code, gin.H{"error": err.Error()})
}
