// Package web provides an HTTP status server for the conveyor monitor.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/cortocircuito/conveyor-monitor/internal/history"
	"github.com/cortocircuito/conveyor-monitor/internal/status"
)

// DefaultHistoryLimit is the number of history entries served when the
// request does not ask for a specific amount.
const DefaultHistoryLimit = 50

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	tracker    *status.Tracker
	history    history.Lister
}

// New creates a Server that reads state from the given tracker. hist may be
// nil, in which case /history.json reports an empty list.
func New(addr string, tracker *status.Tracker, hist history.Lister) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{tracker: tracker, history: hist}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log.StandardLogger()))
	router.SetHTMLTemplate(indexTmpl)
	router.GET("/", s.handleIndex)
	router.GET("/index.html", s.handleIndex)
	router.GET("/index.json", s.handleJSON)
	router.GET("/history.json", s.handleHistory)
	s.router = router

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index", newPage(s.tracker.Snapshot()))
}

func (s *Server) handleJSON(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := DefaultHistoryLimit
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries := []history.Entry{}
	if s.history != nil {
		got, err := s.history.List(c.Request.Context(), limit)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
			return
		}
		if got != nil {
			entries = got
		}
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}
