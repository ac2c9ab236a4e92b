package modbus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	payload []byte
	err     error
	calls   int
	base    uint16
	count   uint16
}

func (f *fakeReader) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	f.calls++
	f.base = address
	f.count = quantity
	return f.payload, f.err
}

type fakeCloser struct {
	closed int
}

func (f *fakeCloser) Close() error {
	f.closed++
	return nil
}

func TestReadBlock(t *testing.T) {
	reader := &fakeReader{payload: []byte{0x08, 0xFD, 0xFF, 0x6A, 0x00, 0x00}}
	closer := &fakeCloser{}
	s := newSource("/dev/null", reader, closer)

	words, err := s.ReadBlock(context.Background(), 200, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint16{2301, 0xFF6A, 0}, words)
	assert.Equal(t, uint16(200), reader.base)
	assert.Equal(t, uint16(3), reader.count)
	assert.Zero(t, closer.closed)
}

func TestReadBlock_TransportError(t *testing.T) {
	reader := &fakeReader{err: errors.New("serial: timeout")}
	closer := &fakeCloser{}
	s := newSource("/dev/null", reader, closer)

	_, err := s.ReadBlock(context.Background(), 200, 60)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "serial: timeout")
	assert.Equal(t, 1, closer.closed)
}

func TestReadBlock_OddPayload(t *testing.T) {
	s := newSource("/dev/null", &fakeReader{payload: []byte{0x01, 0x02, 0x03}}, &fakeCloser{})
	_, err := s.ReadBlock(context.Background(), 200, 2)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestReadBlock_CancelledContext(t *testing.T) {
	reader := &fakeReader{}
	s := newSource("/dev/null", reader, &fakeCloser{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ReadBlock(ctx, 200, 60)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, reader.calls)
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	rtu, err := New(Config{Address: "/dev/ttyMoschip", SlaveID: 1, BaudRate: 9600})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyMoschip", rtu.address)

	tcp, err := New(Config{Address: "tcp://127.0.0.1:502", SlaveID: 1})
	require.NoError(t, err)
	assert.Equal(t, "tcp://127.0.0.1:502", tcp.address)
}
