package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/usecase"
)

const shutdownTimeout = 5 * time.Second

type sessionUseCase interface {
	Create(ctx context.Context, settings entity.Settings) (*usecase.RoundController, error)
	Get(ctx context.Context, id string) (*usecase.RoundController, error)
	Snapshot(ctx context.Context, id string) (entity.Snapshot, error)
	Turn(ctx context.Context, id string, cell int) (entity.Snapshot, error)
	Reset(ctx context.Context, id string, hard bool) (entity.Snapshot, error)
	SetDifficulty(ctx context.Context, id, difficulty string) (entity.Snapshot, error)
	Close(ctx context.Context, id string) error
}

type Server struct {
	logger   *slog.Logger
	sessions sessionUseCase
}

func New(logger *slog.Logger, sessions sessionUseCase) *Server {
	return &Server{
		logger:   logger.With("component", "rest"),
		sessions: sessions,
	}
}

// Router wires every route; it is exported so tests can drive it with httptest.
func (that *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ping", pingHandler)

	r.Post("/sessions", that.createSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", that.getSession)
		r.Delete("/", that.closeSession)
		r.Post("/turn", that.turn)
		r.Post("/reset", that.reset)
		r.Put("/difficulty", that.setDifficulty)
		r.Get("/events", that.events)
	})

	return r
}

// Start serves until ctx is cancelled.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // event streams stay open
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down HTTP server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
