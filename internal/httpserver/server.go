package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/blackmichael/reader-tagsfeed/internal/config"
	"github.com/blackmichael/reader-tagsfeed/internal/domain"
	"github.com/blackmichael/reader-tagsfeed/internal/stream"
)

const (
	streamBuffer       = 64
	streamWriteTimeout = 10 * time.Second
	maxBodyBytes       = 1 << 20
)

// Server is the HTTP server that exposes the tags feed to displays.
type Server struct {
	cfg         *config.Config
	feedService *domain.TagsFeedService
	tags        domain.TagRepository
	logger      *slog.Logger
	httpServer  *http.Server
	upgrader    websocket.Upgrader
}

// NewServer creates a new HTTP server with the given feed service.
func NewServer(cfg *config.Config, feedService *domain.TagsFeedService, tags domain.TagRepository, logger *slog.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		feedService: feedService,
		tags:        tags,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     withLogging(logger, s.routes()),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/feed", s.handleGetFeed)
	mux.HandleFunc("POST /v1/feed/start", s.handleStartFeed)
	mux.HandleFunc("POST /v1/feed/actions", s.handleAction)
	mux.HandleFunc("GET /v1/feed/stream", s.handleStream)
	mux.HandleFunc("GET /v1/tags", s.handleGetTags)
	mux.HandleFunc("PUT /v1/tags", s.handlePutTags)
	return mux
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server. Hijacked stream
// connections are not tracked by the server; they end when the feed
// service unsubscribes them or the client disconnects.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetFeed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stream.FromSnapshot(s.feedService.Snapshot()))
}

type startRequest struct {
	// Tags nil means "use the followed tags"; an empty list empties the feed.
	Tags []stream.TagMessage `json:"tags"`
}

func (s *Server) handleStartFeed(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.logger.Warn("invalid start request", "error", err)
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	var tags []domain.ReaderTag
	if req.Tags == nil {
		followed, err := s.tags.GetFollowedTags(r.Context())
		if err != nil {
			s.logger.Error("failed to load followed tags", "error", err)
			writeError(w, http.StatusInternalServerError, "InternalError", "failed to load followed tags")
			return
		}
		tags = followed
	} else {
		tags = make([]domain.ReaderTag, len(req.Tags))
		for i, t := range req.Tags {
			tags[i] = t.ToTag()
		}
	}

	s.logger.Info("start feed request", "tags", len(tags), "followed", req.Tags == nil)
	s.feedService.Start(tags)
	writeJSON(w, http.StatusOK, stream.FromSnapshot(s.feedService.Snapshot()))
}

type actionRequest struct {
	Action string `json:"action"`
	Tag    string `json:"tag,omitempty"`
	PostID int64  `json:"post_id,omitempty"`
	BlogID int64  `json:"blog_id,omitempty"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.logger.Warn("invalid action request", "error", err)
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	err := s.feedService.Dispatch(domain.UserAction{
		ID:     domain.UserActionID(req.Action),
		Tag:    req.Tag,
		PostID: req.PostID,
		BlogID: req.BlogID,
	})
	switch {
	case errors.Is(err, domain.ErrUnknownAction):
		writeError(w, http.StatusNotFound, "UnknownAction", err.Error())
		return
	case errors.Is(err, domain.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	case err != nil:
		s.logger.Error("action failed", "action", req.Action, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "action failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleGetTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.tags.GetFollowedTags(r.Context())
	if err != nil {
		s.logger.Error("failed to load followed tags", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to load followed tags")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": toTagMessages(tags)})
}

func (s *Server) handlePutTags(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	tags := make([]domain.ReaderTag, 0, len(req.Tags))
	for _, t := range req.Tags {
		if t.Slug == "" {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "every tag needs a slug")
			return
		}
		tags = append(tags, t.ToTag())
	}

	if err := s.tags.ReplaceFollowedTags(r.Context(), tags); err != nil {
		s.logger.Error("failed to save followed tags", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to save followed tags")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": toTagMessages(tags)})
}

// handleStream upgrades to a websocket and pushes the current snapshot
// followed by every feed event until either side goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// every snapshot event queued on events is newer than snapshot
	snapshot, events, unsubscribe := s.feedService.SubscribeWithSnapshot(streamBuffer)
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// the read loop only notices the client closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	initial := domain.Event{ID: uuid.NewString(), Kind: domain.EventSnapshot, Snapshot: &snapshot}
	if err := writeMessage(conn, stream.FromEvent(initial)); err != nil {
		s.logger.Warn("stream write failed", "error", err)
		return
	}

	s.logger.Info("stream client connected", "remote", r.RemoteAddr)
	for {
		select {
		case <-closed:
			s.logger.Info("stream client disconnected", "remote", r.RemoteAddr)
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeMessage(conn, stream.FromEvent(e)); err != nil {
				s.logger.Warn("stream write failed", "error", err)
				return
			}
		}
	}
}

func writeMessage(conn *websocket.Conn, msg stream.Message) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func toTagMessages(tags []domain.ReaderTag) []stream.TagMessage {
	result := make([]stream.TagMessage, len(tags))
	for i, t := range tags {
		result[i] = stream.TagMessage{Slug: t.Slug, DisplayName: t.DisplayName}
	}
	return result
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	// an empty body is an empty request
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack hands the connection to the websocket upgrader.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.status = http.StatusSwitchingProtocols
	return http.NewResponseController(w.ResponseWriter).Hijack()
}
