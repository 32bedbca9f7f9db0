package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/postfeed/pkg/feed"
	"github.com/Sternrassler/postfeed/pkg/logging"
	"github.com/Sternrassler/postfeed/pkg/metrics"
	"github.com/Sternrassler/postfeed/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCommand(root *options, getenv func(string) string) *cobra.Command {
	port := getEnv(getenv, "PORT", "8080")

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve one feed session over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("server")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := &server{logger: logger}
			sess, cleanup, err := root.openSession(ctx, srv)
			if err != nil {
				return err
			}
			defer cleanup()
			srv.sess = sess
			srv.loadCtx = ctx

			sess.Initialize(ctx)

			httpServer := &http.Server{
				Addr:              ":" + port,
				Handler:           srv.routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", httpServer.Addr).Str("session_id", sess.ID()).Msg("Starting feed server")
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			logger.Info().Msg("Shutting down feed server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&port, "port", port, "listen port (PORT)")
	return cmd
}

// server is the HTTP presentation boundary over a single session.
type server struct {
	sess    *feed.Session
	loadCtx context.Context // outlives requests so background loads are not cut short
	logger  zerolog.Logger
}

// OnCollectionUpdated implements pagination.Listener.
func (s *server) OnCollectionUpdated() {
	s.logger.Debug().Msg("Collection updated")
}

// OnLoadFailed implements pagination.Listener.
func (s *server) OnLoadFailed(err error) {
	s.logger.Warn().Err(err).Msg("Load failed")
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /posts", s.handleList)
	mux.HandleFunc("GET /posts/{index}", s.handleDetail)
	mux.HandleFunc("POST /scroll", s.handleScroll)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

type listResponse struct {
	SessionID string     `json:"session_id"`
	Count     int        `json:"count"`
	NextPage  int        `json:"next_page"`
	Loading   bool       `json:"loading"`
	Exhausted bool       `json:"exhausted"`
	Rows      []feed.Row `json:"rows"`
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	count := s.sess.RecordCount()
	resp := listResponse{
		SessionID: s.sess.ID(),
		Count:     count,
		NextPage:  s.sess.Page(),
		Loading:   s.sess.Loading(),
		Exhausted: s.sess.Exhausted(),
		Rows:      make([]feed.Row, 0, count),
	}

	for i := 0; i < count; i++ {
		row, err := s.sess.Row(i)
		if err != nil {
			break
		}
		resp.Rows = append(resp.Rows, row)
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleDetail(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "index must be an integer"})
		return
	}

	detail, err := s.sess.Detail(index)
	if errors.Is(err, pagination.ErrOutOfRange) {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, detail)
}

type scrollRequest struct {
	Position       float64 `json:"position"`
	ContentExtent  float64 `json:"content_extent"`
	ViewportExtent float64 `json:"viewport_extent"`
}

func (s *server) handleScroll(w http.ResponseWriter, r *http.Request) {
	var req scrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid scroll body"})
		return
	}

	dispatched := s.sess.OnScrollPositionChanged(s.loadCtx, req.Position, req.ContentExtent, req.ViewportExtent)
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"load_dispatched": dispatched,
		"count":           s.sess.RecordCount(),
	})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Int("status", status).Msg("Failed to write response")
	}
}
