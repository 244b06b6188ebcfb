package bluez

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mash-protocol/wifiprov-go/pkg/intake"
)

// Inbox defaults.
const (
	DefaultInboxDir     = "/var/lib/wifiprov/obex"
	DefaultPollInterval = 500 * time.Millisecond

	// maxShareFile bounds how much of a received file is read.
	maxShareFile = 4096
)

// InboxConfig configures an InboxExtractor.
type InboxConfig struct {
	// Dir is the directory obexd stores received files in.
	Dir string

	// PollInterval is how often Dir is scanned (default 500ms).
	PollInterval time.Duration

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// InboxExtractor waits for the paired phone to send a WiFi share code
// ("WIFI:T:WPA;S:<ssid>;P:<pass>;;") as a file over Bluetooth file transfer.
// It implements intake.Extractor.
type InboxExtractor struct {
	dir    string
	poll   time.Duration
	logger *slog.Logger
}

// NewInboxExtractor creates an InboxExtractor.
func NewInboxExtractor(config InboxConfig) *InboxExtractor {
	if config.Dir == "" {
		config.Dir = DefaultInboxDir
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &InboxExtractor{
		dir:    config.Dir,
		poll:   config.PollInterval,
		logger: config.Logger,
	}
}

// Extract scans the inbox until a file received after the pairing holds a
// valid share code, or ctx ends. A consumed file is removed.
func (x *InboxExtractor) Extract(ctx context.Context, ev intake.PairingEvent) (string, string, error) {
	// Files can be written a moment before the connect event is parsed.
	since := ev.At.Add(-5 * time.Second)

	ticker := time.NewTicker(x.poll)
	defer ticker.Stop()

	for {
		if qr, ok := x.scan(since); ok {
			return qr.SSID, qr.Passphrase, nil
		}
		select {
		case <-ctx.Done():
			return "", "", fmt.Errorf("%w: %s sent no wifi share code", intake.ErrNoCredentialsFound, ev.Address)
		case <-ticker.C:
		}
	}
}

func (x *InboxExtractor) scan(since time.Time) (*intake.WiFiQR, bool) {
	entries, err := os.ReadDir(x.dir)
	if err != nil {
		x.debugLog("bluetooth inbox: read dir failed", "dir", x.dir, "error", err)
		return nil, false
	}

	type file struct {
		path string
		mod  time.Time
	}
	var files []file
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().Before(since) {
			continue
		}
		files = append(files, file{filepath.Join(x.dir, e.Name()), info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })

	for _, f := range files {
		qr, err := readShareFile(f.path)
		if err != nil {
			x.debugLog("bluetooth inbox: ignoring file", "path", f.path, "error", err)
			continue
		}
		if err := os.Remove(f.path); err != nil {
			x.debugLog("bluetooth inbox: remove failed", "path", f.path, "error", err)
		}
		return qr, true
	}
	return nil, false
}

func readShareFile(path string) (*intake.WiFiQR, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxShareFile))
	if err != nil {
		return nil, err
	}
	return intake.ParseWiFiQR(strings.TrimSpace(string(data)))
}

func (x *InboxExtractor) debugLog(msg string, args ...any) {
	if x.logger != nil {
		x.logger.Debug(msg, args...)
	}
}

var _ intake.Extractor = (*InboxExtractor)(nil)
