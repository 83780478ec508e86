package websocket

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
)

const (
	opContinuation byte = 0x0
	opText         byte = 0x1
	opBinary       byte = 0x2
	opClose        byte = 0x8
	opPing         byte = 0x9
	opPong         byte = 0xA
)

const maxPayloadSize = 1 << 16

// closeProtocolError is the RFC 6455 status sent before dropping a client
// that broke the framing rules.
const closeProtocolError uint16 = 1002

var (
	errConnectionClosed = errors.New("connection closed by peer")
	errPayloadTooLarge  = errors.New("payload too large")
	errUnmaskedFrame    = errors.New("client frame is not masked")
)

// frame represents a WebSocket frame and its metadata.
type frame struct {
	isFin    bool
	isMasked bool
	opCode   byte
	payload  []byte
}

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type connectPayload struct {
	SessionID string `json:"session_id"`
	entity.Settings
}

type turnPayload struct {
	Cell *int `json:"cell"`
}

type resetPayload struct {
	Hard bool `json:"hard"`
}

type difficultyPayload struct {
	Difficulty string `json:"difficulty"`
}

type ResponsePayload struct {
	State *entity.Snapshot `json:"state,omitempty"`
	Error string           `json:"error,omitempty"`
}

func encodeMessage(action string, payload ResponsePayload) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	responseBytes, err := json.Marshal(Message{Action: action, Payload: payloadBytes})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return responseBytes, nil
}

// writeFrame writes an unmasked frame, as servers must.
func writeFrame(w *bufio.Writer, f frame) error {
	header := make([]byte, 2, 10)
	header[0] = f.opCode
	if f.isFin {
		header[0] |= 0x80
	}

	length := uint64(len(f.payload))

	switch {
	case length < 126:
		header[1] = byte(length)
	case length < 1<<16:
		header[1] = 126
		header = binary.BigEndian.AppendUint16(header, uint16(length))
	default:
		header[1] = 127
		header = binary.BigEndian.AppendUint64(header, length)
	}

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}

	if _, err := w.Write(f.payload); err != nil {
		return fmt.Errorf("failed to write frame payload: %w", err)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}

	return nil
}

func readFrame(r io.Reader) (frame, error) {
	header := make([]byte, 2)
	if _, err := io.ReadFull(r, header); err != nil {
		return frame{}, fmt.Errorf("failed to read header: %w", err)
	}

	f := frame{
		isFin:    header[0]&0x80 != 0,
		isMasked: header[1]&0x80 != 0,
		opCode:   header[0] & 0x0f,
	}

	size, err := readPayloadLength(r, header[1]&0x7f)
	if err != nil {
		return frame{}, err
	}

	if size > maxPayloadSize {
		return frame{}, fmt.Errorf("%w: %d bytes", errPayloadTooLarge, size)
	}

	var mask []byte
	if f.isMasked {
		mask = make([]byte, 4)
		if _, err = io.ReadFull(r, mask); err != nil {
			return frame{}, fmt.Errorf("failed to read mask: %w", err)
		}
	}

	f.payload = make([]byte, size)
	if _, err = io.ReadFull(r, f.payload); err != nil {
		return frame{}, fmt.Errorf("failed to read payload: %w", err)
	}

	if mask != nil {
		for i := range f.payload {
			f.payload[i] ^= mask[i%4]
		}
	}

	return f, nil
}

func readPayloadLength(r io.Reader, payloadLen byte) (uint64, error) {
	switch payloadLen {
	case 126:
		length := make([]byte, 2)
		if _, err := io.ReadFull(r, length); err != nil {
			return 0, fmt.Errorf("failed to read payload length: %w", err)
		}
		return uint64(binary.BigEndian.Uint16(length)), nil
	case 127:
		length := make([]byte, 8)
		if _, err := io.ReadFull(r, length); err != nil {
			return 0, fmt.Errorf("failed to read payload length: %w", err)
		}
		return binary.BigEndian.Uint64(length), nil
	default:
		return uint64(payloadLen), nil
	}
}
