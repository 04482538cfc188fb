// Package ws streams job progress over websockets.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/progress"
	"backtest-lab/internal/server/middleware"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds client messages; clients are not expected to send any.
	maxMessageSize = 512
)

// ProgressSource returns the current progress of a job.
type ProgressSource interface {
	Progress(id string) (domain.ProgressUpdate, error)
}

// ProgressStream serves one websocket per job progress subscription.
type ProgressStream struct {
	jobs     ProgressSource
	sub      progress.Subscriber
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewProgressStream creates a ProgressStream accepting the given origins
// (empty or "*" accepts all).
func NewProgressStream(jobs ProgressSource, sub progress.Subscriber, allowedOrigins []string, logger *zap.Logger) *ProgressStream {
	return &ProgressStream{
		jobs: jobs,
		sub:  sub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(allowedOrigins, origin)
			},
		},
		logger: logger.With(zap.String("handler", "progress_ws")),
	}
}

// HandleProgress sends the job's current ProgressUpdate, then every later
// update until a terminal one, then closes the connection.
// GET /api/backtest/progress/{id}
func (s *ProgressStream) HandleProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.jobs.Progress(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before reading the snapshot so no transition is lost in between.
	updates, unsubscribe, err := s.sub.Subscribe(ctx, id)
	if err != nil {
		s.logger.Error("progress subscribe failed", zap.String("job_id", id), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "progress stream unavailable")
		return
	}
	defer unsubscribe()

	current, err := s.jobs.Progress(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Debug("websocket upgrade failed", zap.String("job_id", id), zap.Error(err))
		return
	}
	defer conn.Close()

	observability.UpdateWSClients(1)
	defer observability.UpdateWSClients(-1)

	go s.readPump(conn, cancel)

	last := current
	if err := s.send(conn, current); err != nil || current.Terminal() {
		s.closeNormal(conn)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case u, ok := <-updates:
			if !ok {
				// The subscription ended without a terminal update; report the
				// final state if the job finished meanwhile.
				if cur, err := s.jobs.Progress(id); err == nil && cur.Terminal() {
					_ = s.send(conn, cur)
				}
				s.closeNormal(conn)
				return
			}
			if !u.Terminal() && u.Progress <= last.Progress {
				continue
			}
			if err := s.send(conn, u); err != nil {
				return
			}
			last = u
			if u.Terminal() {
				s.closeNormal(conn)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so control messages are processed, and
// cancels the stream when the client goes away.
func (s *ProgressStream) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (s *ProgressStream) send(conn *websocket.Conn, u domain.ProgressUpdate) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(u); err != nil {
		s.logger.Debug("progress write failed", zap.String("job_id", u.ID), zap.Error(err))
		return err
	}
	return nil
}

func (s *ProgressStream) closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
