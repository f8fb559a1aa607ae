//go:build !ch347

package adapter

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/sht3x"
	"github.com/mklimuk/sht3x/snsctx"
)

// scriptedHID replays one response report per written request.
type scriptedHID struct {
	requests  [][]byte
	responses [][]byte
	opened    int
	closed    int
}

func (s *scriptedHID) Write(b []byte) (int, error) {
	s.requests = append(s.requests, append([]byte(nil), b...))
	return len(b), nil
}

func (s *scriptedHID) Read(b []byte) (int, error) {
	if len(s.responses) == 0 {
		return 0, errors.New("no response scripted")
	}
	copy(b, s.responses[0])
	s.responses = s.responses[1:]
	return reportSize, nil
}

func (s *scriptedHID) Close() error {
	s.closed++
	return nil
}

func report(prefix ...byte) []byte {
	r := make([]byte, reportSize)
	copy(r, prefix)
	return r
}

func newScripted(h *scriptedHID) *MCP2221 {
	d := NewMCP2221(WithResponseWait(0))
	d.open = func(index int) (hidDevice, error) {
		h.opened++
		return h, nil
	}
	return d
}

func TestMCP2221_WriteToAddr(t *testing.T) {
	h := &scriptedHID{responses: [][]byte{report(0x90, 0x00)}}
	d := newScripted(h)

	require.NoError(t, d.WriteToAddr(context.Background(), 0x44, []byte{0x24, 0x00}))
	require.Len(t, h.requests, 1)
	assert.Equal(t, []byte{0x90, 0x02, 0x00, 0x88, 0x24, 0x00}, h.requests[0][:6])
	assert.Equal(t, h.opened, h.closed)
}

func TestMCP2221_WriteBusy(t *testing.T) {
	h := &scriptedHID{responses: [][]byte{report(0x90, 0x01)}}
	d := newScripted(h)

	err := d.WriteToAddr(context.Background(), 0x45, []byte{0x30, 0xA2})
	assert.ErrorIs(t, err, sht3x.ErrBusBusy)
}

func TestMCP2221_ReadFromAddr(t *testing.T) {
	data := []byte{0x66, 0x66, 0x93, 0x91, 0xEB, 0x42}
	h := &scriptedHID{responses: [][]byte{
		report(0x91, 0x00),
		report(append([]byte{0x40, 0x00, 0x00, 0x06}, data...)...),
	}}
	d := newScripted(h)

	buf := make([]byte, 6)
	require.NoError(t, d.ReadFromAddr(context.Background(), 0x44, buf))
	assert.Equal(t, data, buf)
	require.Len(t, h.requests, 2)
	assert.Equal(t, []byte{0x91, 0x06, 0x00, 0x89}, h.requests[0][:4])
	assert.Equal(t, byte(0x40), h.requests[1][0])
}

func TestMCP2221_ShortRead(t *testing.T) {
	h := &scriptedHID{responses: [][]byte{
		report(0x91, 0x00),
		report(0x40, 0x00, 0x00, 0x02, 0x66, 0x66),
	}}
	d := newScripted(h)

	err := d.ReadFromAddr(context.Background(), 0x44, make([]byte, 6))
	assert.ErrorIs(t, err, sht3x.ErrShortRead)
	assert.Contains(t, err.Error(), "2 of 6 bytes")
}

func TestMCP2221_EngineError(t *testing.T) {
	h := &scriptedHID{responses: [][]byte{
		report(0x91, 0x00),
		report(0x40, 0x41),
	}}
	d := newScripted(h)

	err := d.ReadFromAddr(context.Background(), 0x44, make([]byte, 2))
	assert.ErrorIs(t, err, sht3x.ErrShortRead)
}

func TestMCP2221_ReleaseCancelsTransfer(t *testing.T) {
	resp := report(0x10, 0x00)
	resp[9], resp[10] = 0x02, 0x00
	resp[11], resp[12] = 0x01, 0x00
	resp[16], resp[17] = 0x88, 0x00
	h := &scriptedHID{responses: [][]byte{resp}}
	d := newScripted(h)

	status, err := d.ReleaseBus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x00, 0x10}, h.requests[0][:3])
	assert.Equal(t, uint16(2), status.LastWriteRequestedSize)
	assert.Equal(t, uint16(1), status.LastWriteSentSize)
	assert.Equal(t, "8800", status.CurrentAddress)
}

func TestMCP2221_InitNotFound(t *testing.T) {
	d := NewMCP2221()
	d.open = func(index int) (hidDevice, error) {
		return nil, ErrAdapterNotFound
	}
	err := d.Init(context.Background())
	assert.ErrorIs(t, err, sht3x.ErrDeviceOpen)
	assert.ErrorIs(t, err, ErrAdapterNotFound)
}

func TestMCP2221_CloseReleases(t *testing.T) {
	h := &scriptedHID{responses: [][]byte{report(0x10, 0x00)}}
	d := newScripted(h)

	require.NoError(t, d.Close())
	require.Len(t, h.requests, 1)
	assert.Equal(t, []byte{0x10, 0x00, 0x10}, h.requests[0][:3])
}

func TestMCP2221_InitQuiet(t *testing.T) {
	h := &scriptedHID{}
	d := newScripted(h)

	require.NoError(t, d.Init(context.Background()))
	assert.Equal(t, 1, h.opened)
	assert.Equal(t, 1, h.closed)
	assert.Empty(t, h.requests)
}

func TestMCP2221_InitVerboseLogsStatus(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	resp := report(0x10, 0x00)
	resp[14], resp[15] = 0x1D, 0x05
	resp[16], resp[17] = 0x88, 0x00
	h := &scriptedHID{responses: [][]byte{resp}}
	d := newScripted(h)
	d.index = 1

	require.NoError(t, d.Init(snsctx.SetVerbose(context.Background(), true)))
	require.Len(t, h.requests, 1)
	assert.Equal(t, []byte{0x10, 0x00, 0x00}, h.requests[0][:3], "status query does not cancel transfers")
	assert.Contains(t, logs.String(), "adapter status")
	assert.Contains(t, logs.String(), "index=1 address=8800 speed_divider=29 timeout=5")
}

func TestWithDeviceIndex(t *testing.T) {
	var got int
	d := NewMCP2221(WithDeviceIndex(2))
	d.open = func(index int) (hidDevice, error) {
		got = index
		return &scriptedHID{}, nil
	}
	require.NoError(t, d.Init(context.Background()))
	assert.Equal(t, 2, got)
	assert.Equal(t, -1, NewMCP2221().index)
}
