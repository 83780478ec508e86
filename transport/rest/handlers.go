package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
)

var heartbeatInterval = 15 * time.Second

type turnRequest struct {
	Cell *int `json:"cell"`
}

type resetRequest struct {
	Hard bool `json:"hard"`
}

type difficultyRequest struct {
	Difficulty string `json:"difficulty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (that *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var settings entity.Settings
	if err := decodeJSON(r, &settings); err != nil {
		that.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	controller, err := that.sessions.Create(r.Context(), settings.WithDefaults())
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, controller.Snapshot())
}

func (that *Server) getSession(w http.ResponseWriter, r *http.Request) {
	snapshot, err := that.sessions.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (that *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := that.sessions.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		that.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (that *Server) turn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		that.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	if req.Cell == nil {
		that.writeError(w, r, fmt.Errorf("%w: cell is required", errBadRequest))
		return
	}

	snapshot, err := that.sessions.Turn(r.Context(), chi.URLParam(r, "id"), *req.Cell)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (that *Server) reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		that.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	snapshot, err := that.sessions.Reset(r.Context(), chi.URLParam(r, "id"), req.Hard)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (that *Server) setDifficulty(w http.ResponseWriter, r *http.Request) {
	var req difficultyRequest
	if err := decodeJSON(r, &req); err != nil {
		that.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	snapshot, err := that.sessions.SetDifficulty(r.Context(), chi.URLParam(r, "id"), req.Difficulty)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// events streams a state event after every change, timer-driven ones included.
func (that *Server) events(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "events")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()

	controller, err := that.sessions.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	updates := make(chan entity.Snapshot, 8)
	unsubscribe := controller.Subscribe(func(snapshot entity.Snapshot) {
		select {
		case updates <- snapshot:
		default:
			log.Warn("dropped state event for slow client", "session", snapshot.SessionID)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err = writeEvent(w, controller.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if controller.IsClosed() {
				// the client reconnects and gets the restored session
				log.Debug("session closed, ending event stream", "session", controller.ID())
				return
			}
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case snapshot := <-updates:
			if err = writeEvent(w, snapshot); err != nil {
				log.Debug("event stream closed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, snapshot entity.Snapshot) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if _, err = fmt.Fprintf(w, "event: state\ndata: %s\n\n", body); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

var errBadRequest = errors.New("bad request")

func (that *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, apperror.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, apperror.ErrUnknownVariant),
		errors.Is(err, apperror.ErrUnknownMode),
		errors.Is(err, apperror.ErrUnknownDifficulty):
		status = http.StatusBadRequest
	default:
		that.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode body: %w", err)
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
