// Package modbus reads holding register blocks from the inverter over
// Modbus RTU (serial) or Modbus TCP.
package modbus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"go.uber.org/zap"
)

var ErrTransport = errors.New("modbus transport failure")

const tcpScheme = "tcp://"

type Config struct {
	// Address is a serial device such as /dev/ttyUSB0, or tcp://host:port.
	Address  string
	SlaveID  byte
	BaudRate int
	Timeout  time.Duration
}

type registerReader interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
}

// Source reads register blocks. Reads are serialized; the underlying
// connection is reopened by the handler on the next read after a failure.
type Source struct {
	mu      sync.Mutex
	reader  registerReader
	handler io.Closer
	address string
	logger  *zap.Logger
}

// New builds a source without touching the device; the first read connects.
func New(cfg Config) (*Source, error) {
	if cfg.Address == "" {
		return nil, errors.New("modbus: address required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}

	if strings.HasPrefix(cfg.Address, tcpScheme) {
		h := modbus.NewTCPClientHandler(strings.TrimPrefix(cfg.Address, tcpScheme))
		h.Timeout = cfg.Timeout
		h.SlaveId = cfg.SlaveID
		return newSource(cfg.Address, modbus.NewClient(h), h), nil
	}

	h := modbus.NewRTUClientHandler(cfg.Address)
	h.BaudRate = cfg.BaudRate
	h.DataBits = 8
	h.Parity = "N"
	h.StopBits = 1
	h.SlaveId = cfg.SlaveID
	h.Timeout = cfg.Timeout
	return newSource(cfg.Address, modbus.NewClient(h), h), nil
}

func newSource(address string, reader registerReader, handler io.Closer) *Source {
	return &Source{
		reader:  reader,
		handler: handler,
		address: address,
		logger:  zap.L(),
	}
}

// ReadBlock reads count holding registers starting at base.
func (s *Source) ReadBlock(ctx context.Context, base, count uint16) ([]uint16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.reader.ReadHoldingRegisters(base, count)
	if err != nil {
		s.logger.Debug("register read failed, resetting connection",
			zap.String("address", s.address), zap.Uint16("base", base), zap.Error(err))
		_ = s.handler.Close()
		return nil, fmt.Errorf("%w: read %d registers at %d: %w", ErrTransport, count, base, err)
	}
	words, err := unpackRegisters(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return words, nil
}

// Close releases the serial port or TCP connection.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler.Close()
}

// unpackRegisters converts a big-endian register payload into words.
func unpackRegisters(data []byte) ([]uint16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("modbus: odd register payload length %d", len(data))
	}
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return out, nil
}
