package websocket

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/usecase"
)

const actionState = "state"

// connection is one client socket. Reads happen on the handler goroutine;
// writes also come from session timers, so they share mu.
type connection struct {
	logger *slog.Logger

	mu    sync.Mutex
	bufrw *bufio.ReadWriter

	session     *usecase.RoundController
	unsubscribe func()
}

func newConnection(logger *slog.Logger, bufrw *bufio.ReadWriter) *connection {
	return &connection{
		logger: logger,
		bufrw:  bufrw,
	}
}

// attach binds the connection to controller and pushes its state on every change.
func (that *connection) attach(controller *usecase.RoundController) {
	that.detach()

	that.session = controller
	that.unsubscribe = controller.Subscribe(func(snapshot entity.Snapshot) {
		if err := that.sendState(snapshot); err != nil {
			that.logger.Debug("failed to push state", "session", snapshot.SessionID, "error", err)
		}
	})
}

func (that *connection) detach() {
	if that.unsubscribe != nil {
		that.unsubscribe()
	}

	that.session = nil
	that.unsubscribe = nil
}

// readMessage returns the next complete data message, answering pings and
// assembling fragments on the way.
func (that *connection) readMessage() ([]byte, error) {
	var message []byte

	for {
		f, err := readFrame(that.bufrw)
		if err != nil {
			return nil, err
		}

		if !f.isMasked {
			_ = that.write(frame{isFin: true, opCode: opClose, payload: binary.BigEndian.AppendUint16(nil, closeProtocolError)})
			return nil, errUnmaskedFrame
		}

		switch f.opCode {
		case opPing:
			if err = that.write(frame{isFin: true, opCode: opPong, payload: f.payload}); err != nil {
				return nil, err
			}
			continue
		case opPong:
			continue
		case opClose:
			_ = that.write(frame{isFin: true, opCode: opClose, payload: f.payload})
			return nil, errConnectionClosed
		case opText, opBinary, opContinuation:
		default:
			return nil, fmt.Errorf("unknown opcode %#x", f.opCode)
		}

		message = append(message, f.payload...)
		if len(message) > maxPayloadSize {
			return nil, errPayloadTooLarge
		}

		if f.isFin {
			return message, nil
		}
	}
}

func (that *connection) sendState(snapshot entity.Snapshot) error {
	return that.send(actionState, ResponsePayload{State: &snapshot})
}

func (that *connection) sendError(action, errorMsg string) error {
	if err := that.send(action, ResponsePayload{Error: errorMsg}); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}

func (that *connection) send(action string, payload ResponsePayload) error {
	body, err := encodeMessage(action, payload)
	if err != nil {
		return err
	}

	return that.write(frame{isFin: true, opCode: opText, payload: body})
}

func (that *connection) write(f frame) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	return writeFrame(that.bufrw.Writer, f)
}
