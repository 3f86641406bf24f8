// Package console provides an interactive operator console for
// submitting TX payloads and observing received ones: either a
// pseudo-terminal (github.com/creack/pty) for a local terminal program
// to attach to, or a real serial line opened in raw mode
// (github.com/pkg/term) for a hardware debug UART, the same split
// samoyed makes between its PTY-based KISS port and its serial_port.go
// for real TNC hardware.
package console

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/creack/pty"
	"github.com/pkg/term"
)

// Console reads hex-encoded payload lines from its backend and echoes
// received payloads back the same way.
type Console struct {
	rwc    io.ReadWriteCloser
	extra  io.Closer // PTY slave end, closed alongside rwc; nil for serial
	name   string
	reader *bufio.Reader
}

// Open allocates a new PTY pair. SlaveName() reports the slave device
// path an operator attaches a terminal program (screen, socat) to.
func Open() (*Console, error) {
	var master, slave, err = pty.Open()
	if err != nil {
		return nil, fmt.Errorf("console: opening pty: %w", err)
	}
	return &Console{
		rwc:    master,
		extra:  slave,
		name:   slave.Name(),
		reader: bufio.NewReader(master),
	}, nil
}

// OpenSerial opens a real serial device in raw mode at baud, for a node
// with a physical debug UART instead of a PTY consumer. baud of 0
// leaves the port's current speed alone.
func OpenSerial(device string, baud int) (*Console, error) {
	var t, err = term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("console: opening serial port %s: %w", device, err)
	}
	if baud != 0 {
		if err := t.SetSpeed(baud); err != nil {
			t.Close()
			return nil, fmt.Errorf("console: setting speed %d on %s: %w", baud, device, err)
		}
	}
	return &Console{rwc: t, name: device, reader: bufio.NewReader(t)}, nil
}

// SlaveName is the device path to hand the operator, e.g. "screen
// /dev/pts/4", or the serial device path when backed by OpenSerial.
func (c *Console) SlaveName() string { return c.name }

// ReadPayload blocks for one line of hex-encoded input and decodes it
// into a TX payload. Blank lines are skipped.
func (c *Console) ReadPayload() ([]byte, error) {
	for {
		var line, err = c.reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("console: reading line: %w", err)
		}
		var trimmed = trimEOL(line)
		if trimmed == "" {
			continue
		}
		var payload, decodeErr = hex.DecodeString(trimmed)
		if decodeErr != nil {
			fmt.Fprintf(c.rwc, "bad hex: %v\r\n", decodeErr)
			continue
		}
		return payload, nil
	}
}

// WritePayload reports a received payload back to the operator as a hex
// line.
func (c *Console) WritePayload(payload []byte) error {
	var _, err = fmt.Fprintf(c.rwc, "rx %s\r\n", hex.EncodeToString(payload))
	return err
}

// Close releases the backend, and the PTY slave end when present.
func (c *Console) Close() error {
	var rwcErr = c.rwc.Close()
	if c.extra != nil {
		if extraErr := c.extra.Close(); extraErr != nil && rwcErr == nil {
			return extraErr
		}
	}
	return rwcErr
}

func trimEOL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
