package probe

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/last-emo-boy/infra-core/pkg/auth"
)

// Server exposes a Poller over HTTP (spec.md §6 "Control"). Routes follow
// the teacher's gin grouping convention (pkg/api/middleware, cmd/probe's
// old /api/v1 group); mutating routes are gated by a bearer token the same
// way pkg/api/middleware.AuthMiddleware gates the console API, but without
// the SSO session-table lookup — a poller has no session store of its own,
// only a validated JWT is required.
type Server struct {
	poller *Poller
	store  *Store
	auth   *auth.Auth
}

// NewServer builds a Server backed by poller and store, using authService
// to validate bearer tokens on mutating routes. authService may be nil in
// tests, which disables the auth gate entirely.
func NewServer(poller *Poller, store *Store, authService *auth.Auth) *Server {
	return &Server{poller: poller, store: store, auth: authService}
}

// Register wires the probe control routes onto r, under the conventional
// /api/v1/backends prefix (spec.md §6).
func (s *Server) Register(r gin.IRouter) {
	backends := r.Group("/api/v1/backends")
	backends.GET("", s.list)
	backends.GET("/:id/status", s.status)

	guarded := backends.Group("")
	guarded.Use(s.requireAuth())
	guarded.POST("", s.insert)
	guarded.DELETE("/:id", s.remove)
	guarded.POST("/:id/control", s.control)
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.auth == nil {
			c.Next()
			return
		}
		token := extractBearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization token required"})
			c.Abort()
			return
		}
		claims, err := s.auth.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		c.Set("role", claims.Role)
		c.Next()
	}
}

func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return c.Query("token")
}

type insertRequest struct {
	ID             string `json:"id" binding:"required"`
	DisplayName    string `json:"display_name"`
	Host           string `json:"host" binding:"required"`
	Port           int    `json:"port" binding:"required"`
	URL            string `json:"url"`
	Request        string `json:"request"`
	TimeoutMillis  int    `json:"timeout_ms"`
	IntervalMillis int    `json:"interval_ms"`
	Window         int    `json:"window"`
	Threshold      int    `json:"threshold"`
	Initial        *int   `json:"initial"`
	ExpectedStatus int    `json:"expected_status"`
}

func (req insertRequest) toRawSpec() RawSpec {
	raw := RawSpec{
		URL:            req.URL,
		Request:        req.Request,
		Window:         req.Window,
		Threshold:      req.Threshold,
		Initial:        req.Initial,
		ExpectedStatus: req.ExpectedStatus,
	}
	if req.TimeoutMillis > 0 {
		raw.Timeout = time.Duration(req.TimeoutMillis) * time.Millisecond
	}
	if req.IntervalMillis > 0 {
		raw.Interval = time.Duration(req.IntervalMillis) * time.Millisecond
	}
	return raw
}

func (s *Server) insert(c *gin.Context) {
	var req insertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	spec, err := NewSpec(req.toRawSpec())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	backend := NewBackend(req.ID, req.DisplayName, req.Host, req.Port)
	if err := s.poller.Insert(backend, spec); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if s.store != nil {
		if err := s.store.Save(c.Request.Context(), backend, req.toRawSpec()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusCreated, gin.H{"id": backend.ID})
}

func (s *Server) remove(c *gin.Context) {
	id := c.Param("id")
	backend, ok := s.poller.Backend(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "backend not found"})
		return
	}
	if err := s.poller.Remove(backend); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if s.store != nil {
		if err := s.store.Delete(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) control(c *gin.Context) {
	id := c.Param("id")
	enable := c.Query("enable") != "false"
	backend, ok := s.poller.Backend(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "backend not found"})
		return
	}
	if err := s.poller.Control(backend, enable); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) status(c *gin.Context) {
	id := c.Param("id")
	details := c.Query("details") == "true"

	backend, ok := s.poller.Backend(id)
	if !ok {
		c.String(http.StatusOK, "%s: not under poll\n", id)
		return
	}

	var buf strings.Builder
	s.poller.Status(&buf, backend, details)
	c.String(http.StatusOK, "%s", buf.String())
}

func (s *Server) list(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusOK, gin.H{"backends": []string{}})
		return
	}
	rows, err := s.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"backends": rows})
}
