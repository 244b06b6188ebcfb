package bluez

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mash-protocol/wifiprov-go/pkg/intake"
)

// Streamer opens a stream of bluetoothctl output lines. Closing the reader
// ends the stream.
type Streamer interface {
	Stream(ctx context.Context) (io.ReadCloser, error)
}

// StreamerFunc adapts a function to the Streamer interface.
type StreamerFunc func(ctx context.Context) (io.ReadCloser, error)

// Stream implements Streamer.
func (f StreamerFunc) Stream(ctx context.Context) (io.ReadCloser, error) { return f(ctx) }

// BluetoothctlStreamer runs an interactive bluetoothctl and streams its output.
type BluetoothctlStreamer struct {
	// Path is the bluetoothctl binary (default "bluetoothctl").
	Path string
}

// Stream starts bluetoothctl. Its stdin is held open so it keeps running
// until the reader is closed or ctx ends.
func (s BluetoothctlStreamer) Stream(ctx context.Context) (io.ReadCloser, error) {
	path := s.Path
	if path == "" {
		path = "bluetoothctl"
	}
	cmd := exec.CommandContext(ctx, path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}
	return &processReader{ReadCloser: stdout, stdin: stdin, cmd: cmd}, nil
}

type processReader struct {
	io.ReadCloser
	stdin io.WriteCloser
	cmd   *exec.Cmd
	once  sync.Once
}

func (p *processReader) Close() error {
	p.once.Do(func() {
		p.stdin.Close()
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
		p.cmd.Wait()
	})
	return nil
}

var (
	ansiEscape  = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]|\x01|\x02`)
	deviceEvent = regexp.MustCompile(`\[(NEW|CHG|DEL)\] Device ([0-9A-Fa-f]{2}(?::[0-9A-Fa-f]{2}){5}) ?(.*)$`)
)

// LineKind classifies a bluetoothctl output line.
type LineKind uint8

// Line kinds reported by ParseLine.
const (
	LineOther LineKind = iota
	LineNewDevice
	LineConnected
	LineDisconnected
	LineName
	LineRemoved
)

// DeviceLine is one parsed bluetoothctl device line.
type DeviceLine struct {
	Kind    LineKind
	Address string
	Value   string
}

// ParseLine parses a bluetoothctl output line. Colour codes and prompts are
// ignored.
func ParseLine(line string) DeviceLine {
	line = strings.TrimSpace(ansiEscape.ReplaceAllString(line, ""))
	m := deviceEvent.FindStringSubmatch(line)
	if m == nil {
		return DeviceLine{Kind: LineOther}
	}
	addr := strings.ToUpper(m[2])
	rest := strings.TrimSpace(m[3])

	switch m[1] {
	case "NEW":
		return DeviceLine{Kind: LineNewDevice, Address: addr, Value: rest}
	case "DEL":
		return DeviceLine{Kind: LineRemoved, Address: addr}
	}

	key, value, ok := strings.Cut(rest, ":")
	if !ok {
		return DeviceLine{Kind: LineOther, Address: addr}
	}
	value = strings.TrimSpace(value)
	switch strings.TrimSpace(key) {
	case "Connected":
		if value == "yes" {
			return DeviceLine{Kind: LineConnected, Address: addr}
		}
		return DeviceLine{Kind: LineDisconnected, Address: addr}
	case "Name", "Alias":
		return DeviceLine{Kind: LineName, Address: addr, Value: value}
	}
	return DeviceLine{Kind: LineOther, Address: addr}
}

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	// Streamer provides bluetoothctl output (default BluetoothctlStreamer).
	Streamer Streamer

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// Monitor reports remote devices connecting to the adapter. It implements
// intake.PairingSource.
type Monitor struct {
	streamer Streamer
	logger   *slog.Logger
	now      func() time.Time
}

// NewMonitor creates a Monitor.
func NewMonitor(config MonitorConfig) *Monitor {
	if config.Streamer == nil {
		config.Streamer = BluetoothctlStreamer{}
	}
	return &Monitor{
		streamer: config.Streamer,
		logger:   config.Logger,
		now:      time.Now,
	}
}

// Events starts streaming and emits one PairingEvent per device connection.
func (m *Monitor) Events(ctx context.Context) (<-chan intake.PairingEvent, error) {
	rc, err := m.streamer.Stream(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan intake.PairingEvent, 4)
	go func() {
		<-ctx.Done()
		rc.Close()
	}()
	go m.scan(ctx, rc, out)
	return out, nil
}

func (m *Monitor) scan(ctx context.Context, rc io.ReadCloser, out chan<- intake.PairingEvent) {
	defer close(out)
	defer rc.Close()

	names := make(map[string]string)
	connected := make(map[string]bool)

	sc := bufio.NewScanner(rc)
	for sc.Scan() {
		dl := ParseLine(sc.Text())
		switch dl.Kind {
		case LineNewDevice, LineName:
			if dl.Value != "" {
				names[dl.Address] = dl.Value
			}
		case LineRemoved:
			delete(names, dl.Address)
			delete(connected, dl.Address)
		case LineDisconnected:
			delete(connected, dl.Address)
		case LineConnected:
			if connected[dl.Address] {
				continue
			}
			connected[dl.Address] = true
			ev := intake.PairingEvent{Address: dl.Address, Name: names[dl.Address], At: m.now()}
			m.debugLog("bluetooth: device connected", "address", ev.Address, "name", ev.Name)
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) && ctx.Err() == nil {
		m.debugLog("bluetooth: monitor stream ended", "error", err)
	}
}

func (m *Monitor) debugLog(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

var _ intake.PairingSource = (*Monitor)(nil)
