package sensor

import (
	"bufio"
	"context"
	"io"
	"strings"

	"go.bug.st/serial"

	"github.com/banshee-data/speedtrap/internal/monitoring"
)

// SerialPorter is the minimal interface needed from a serial port. It lets
// tests feed the source from memory instead of hardware.
type SerialPorter interface {
	io.Reader
	io.Closer
}

// OpenSerialPort opens the sensor board's serial port.
func OpenSerialPort(path string, opts PortOptions) (serial.Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	return serial.Open(path, mode)
}

// SerialSource reads pulse tokens from a sensor board, one per line: "A" for
// the first sensor and "B" for the second. Anything else is logged and
// skipped.
type SerialSource struct {
	port   SerialPorter
	pulser Pulser
}

// NewSerialSource creates a source reading from port and driving pulser.
func NewSerialSource(port SerialPorter, pulser Pulser) *SerialSource {
	return &SerialSource{port: port, pulser: pulser}
}

// Run reads lines until the port reaches EOF, fails, or ctx is done.
func (s *SerialSource) Run(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)
	lines := make(chan string)
	scanErr := make(chan error, 1)

	// the blocking Scan runs on its own goroutine so the loop below can
	// still observe cancellation
	go func() {
		defer close(lines)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErr <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			s.handle(line)
		}
	}
}

func (s *SerialSource) handle(line string) {
	switch strings.ToUpper(strings.TrimSpace(line)) {
	case "A":
		s.pulser.PulseA()
	case "B":
		s.pulser.PulseB()
	case "":
	default:
		monitoring.Logf("[sensor] ignoring serial line %q", line)
	}
}

// Close closes the underlying port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}
