package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/usecase"
)

var errNotConnected = errors.New("connect to a session first")

func (that *Server) handleConnect(ctx context.Context, msg *Message, conn *connection) error {
	log := that.logger.With("method", "handleConnect")

	var payloadReq connectPayload
	if err := decodePayload(msg, &payloadReq); err != nil {
		return conn.sendError(msg.Action, err.Error())
	}

	controller, err := that.sessions.Connect(ctx, payloadReq.SessionID, payloadReq.Settings.WithDefaults())
	if isSettingsError(err) {
		return conn.sendError(msg.Action, err.Error())
	}

	if err != nil {
		log.Error("failed to connect to session", "session", payloadReq.SessionID, "error", err)
		return conn.sendError(msg.Action, "failed to connect to session")
	}

	conn.attach(controller)

	if err = conn.sendState(controller.Snapshot()); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	log.Info("successfully connected to session", "session", controller.ID())

	return nil
}

// handleGameTurn applies the human's cell. The resulting state, and the bot's
// answer after its delay, reach the client through the session subscription.
func (that *Server) handleGameTurn(ctx context.Context, msg *Message, conn *connection) error {
	session, err := that.liveSession(ctx, msg, conn)
	if session == nil {
		return err
	}

	var payloadReq turnPayload
	if err := decodePayload(msg, &payloadReq); err != nil {
		return conn.sendError(msg.Action, err.Error())
	}

	if payloadReq.Cell == nil {
		return conn.sendError(msg.Action, "cell is required")
	}

	session.Select(*payloadReq.Cell)

	return nil
}

func (that *Server) handleGameReset(ctx context.Context, msg *Message, conn *connection) error {
	session, err := that.liveSession(ctx, msg, conn)
	if session == nil {
		return err
	}

	var payloadReq resetPayload
	if err := decodePayload(msg, &payloadReq); err != nil {
		return conn.sendError(msg.Action, err.Error())
	}

	session.Reset(payloadReq.Hard)

	return nil
}

// handleGameDifficulty sets the named tier, or cycles to the next one when
// none is given.
func (that *Server) handleGameDifficulty(ctx context.Context, msg *Message, conn *connection) error {
	session, err := that.liveSession(ctx, msg, conn)
	if session == nil {
		return err
	}

	var payloadReq difficultyPayload
	if err := decodePayload(msg, &payloadReq); err != nil {
		return conn.sendError(msg.Action, err.Error())
	}

	if payloadReq.Difficulty == "" {
		session.CycleDifficulty()
		return nil
	}

	if _, err = session.SetDifficulty(payloadReq.Difficulty); err != nil {
		return conn.sendError(msg.Action, err.Error())
	}

	return nil
}

// liveSession returns the connection's session. A session closed underneath
// the socket, by idling out or a REST delete, is reconnected by id and its
// state pushed first. A nil session means the client was already answered.
func (that *Server) liveSession(ctx context.Context, msg *Message, conn *connection) (*usecase.RoundController, error) {
	if conn.session == nil {
		return nil, conn.sendError(msg.Action, errNotConnected.Error())
	}

	if !conn.session.IsClosed() {
		return conn.session, nil
	}

	stale := conn.session.Snapshot()

	controller, err := that.sessions.Connect(ctx, stale.SessionID, stale.Settings)
	if err != nil {
		that.logger.Error("failed to reconnect session", "session", stale.SessionID, "error", err)
		conn.detach()

		return nil, conn.sendError(msg.Action, "failed to connect to session")
	}

	conn.attach(controller)
	that.logger.Info("reconnected closed session", "session", stale.SessionID, "now", controller.ID())

	if err = conn.sendState(controller.Snapshot()); err != nil {
		return nil, fmt.Errorf("failed to send response: %w", err)
	}

	return controller, nil
}

func decodePayload(msg *Message, v any) error {
	if len(msg.Payload) == 0 {
		return nil
	}

	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	return nil
}

func isSettingsError(err error) bool {
	return errors.Is(err, apperror.ErrUnknownVariant) ||
		errors.Is(err, apperror.ErrUnknownMode) ||
		errors.Is(err, apperror.ErrUnknownDifficulty)
}
