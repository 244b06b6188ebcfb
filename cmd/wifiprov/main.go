// Command wifiprov brings a headless device onto a WiFi network.
//
// With no known network the device hosts a setup access point and waits for
// credentials from the setup page, a paired phone or the operator shell.
// Each candidate is applied as a client and verified; on failure the access
// point comes back until the attempt budget is spent.
//
// Usage:
//
//	wifiprov [flags]
//
// Flags:
//
//	-config string              Configuration file (default "/etc/wifiprov/config.yaml")
//	-interface string           Wireless interface
//	-hotspot-ssid string        Setup access point name
//	-hotspot-passphrase string  Setup access point passphrase (empty for open)
//	-max-attempts int           Failed attempts before giving up
//	-verify-timeout duration    Connectivity verification budget
//	-log-level string           Log level: debug, info, warn, error
//	-log-format string          Log format: text, json
//	-event-log string           CBOR provisioning trace file
//	-journal string             Attempt journal backend: none, bolt, sqlite
//	-journal-path string        Attempt journal file
//	-store string               Credential file
//	-seal                       Seal the saved passphrase to this machine
//	-no-web                     Disable the setup page
//	-no-bluetooth               Disable Bluetooth intake
//	-interactive                Start the operator shell
//	-teardown-on-exit           Stop the access point or client on exit
//	-allow-nonroot              Skip the root check
//	-show-saved                 Print the saved network and exit
//	-forget                     Delete the saved network and exit
//	-history int                Print the last N attempts and exit
//
// Status lines are written to stdout:
//
//	WIFIPROV_STATUS=CONNECTED session=... ssid="..." source=web attempts=1
//	WIFIPROV_STATUS=FAILED_TERMINAL session=... attempts=3 max_attempts=3 last_error="..."
//
// Examples:
//
//	# Provision with the default configuration
//	wifiprov
//
//	# Web only, two attempts, with the shell
//	wifiprov -no-bluetooth -max-attempts 2 -interactive
//
//	# Show the last five attempts
//	wifiprov -history 5
//
// Send SIGHUP to start a new session after the attempts are exhausted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mash-protocol/wifiprov-go/cmd/wifiprov/interactive"
	"github.com/mash-protocol/wifiprov-go/pkg/config"
	"github.com/mash-protocol/wifiprov-go/pkg/credstore"
	"github.com/mash-protocol/wifiprov-go/pkg/journal"
)

// Exit codes.
const (
	exitOK     = 0
	exitError  = 1
	exitFailed = 2
)

var (
	configPath        string
	iface             string
	hotspotSSID       string
	hotspotPassphrase string
	maxAttempts       int
	verifyTimeout     time.Duration
	logLevel          string
	logFormat         string
	eventLogPath      string
	journalBackend    string
	journalPath       string
	storePath         string
	seal              bool
	noWeb             bool
	noBluetooth       bool
	interactiveMode   bool
	teardownOnExit    bool
	allowNonRoot      bool
	showSaved         bool
	forget            bool
	historyCount      int
)

func init() {
	flag.StringVar(&configPath, "config", config.DefaultPath, "Configuration file")
	flag.StringVar(&iface, "interface", "", "Wireless interface")
	flag.StringVar(&hotspotSSID, "hotspot-ssid", "", "Setup access point name")
	flag.StringVar(&hotspotPassphrase, "hotspot-passphrase", "", "Setup access point passphrase (empty for open)")
	flag.IntVar(&maxAttempts, "max-attempts", 0, "Failed attempts before giving up")
	flag.DurationVar(&verifyTimeout, "verify-timeout", 0, "Connectivity verification budget")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&logFormat, "log-format", "", "Log format: text, json")
	flag.StringVar(&eventLogPath, "event-log", "", "CBOR provisioning trace file")
	flag.StringVar(&journalBackend, "journal", "", "Attempt journal backend: none, bolt, sqlite")
	flag.StringVar(&journalPath, "journal-path", "", "Attempt journal file")
	flag.StringVar(&storePath, "store", "", "Credential file")
	flag.BoolVar(&seal, "seal", false, "Seal the saved passphrase to this machine")
	flag.BoolVar(&noWeb, "no-web", false, "Disable the setup page")
	flag.BoolVar(&noBluetooth, "no-bluetooth", false, "Disable Bluetooth intake")
	flag.BoolVar(&interactiveMode, "interactive", false, "Start the operator shell")
	flag.BoolVar(&teardownOnExit, "teardown-on-exit", false, "Stop the access point or client on exit")
	flag.BoolVar(&allowNonRoot, "allow-nonroot", false, "Skip the root check")
	flag.BoolVar(&showSaved, "show-saved", false, "Print the saved network and exit")
	flag.BoolVar(&forget, "forget", false, "Delete the saved network and exit")
	flag.IntVar(&historyCount, "history", 0, "Print the last N attempts and exit")
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wifiprov: %v\n", err)
		return exitError
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "wifiprov: %v\n", err)
		return exitError
	}

	switch {
	case showSaved:
		return printSaved(cfg, os.Stdout)
	case forget:
		return forgetSaved(cfg, os.Stdout)
	case historyCount > 0:
		return printHistory(cfg, os.Stdout, historyCount)
	}

	if !allowNonRoot && os.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "wifiprov: must run as root to manage network services (use -allow-nonroot to override)")
		return exitError
	}

	out := &switchWriter{w: os.Stdout}
	errOut := &switchWriter{w: os.Stderr}
	logger := newLogger(errOut, cfg.Log)

	a, err := newApp(cfg, logger, out)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return exitError
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("received SIGHUP")
				a.requestRestart()
			}
		}
	}()

	if interactiveMode {
		shell, err := interactive.New(a)
		if err != nil {
			logger.Error("failed to start shell", "error", err)
			return exitError
		}
		out.Set(shell.Stdout())
		errOut.Set(shell.Stderr())

		shellCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go shell.Run(shellCtx, stop)
		defer func() {
			out.Set(os.Stdout)
			errOut.Set(os.Stderr)
		}()
	}

	logger.Info("wifiprov starting",
		"interface", cfg.Interface,
		"hotspot", cfg.Hotspot.SSID,
		"max_attempts", cfg.Provisioning.MaxAttempts)

	runErr := a.run(ctx)

	if cfg.Provisioning.TeardownOnExit {
		a.teardown()
	}

	switch {
	case runErr == nil:
		if interactiveMode {
			// Keep the shell available until the operator quits.
			<-ctx.Done()
		}
		return exitOK
	case errors.Is(runErr, context.Canceled):
		logger.Info("shutting down")
		if a.sup.Session().State.Terminal() {
			return exitFailed
		}
		return exitOK
	default:
		logger.Error("provisioning stopped", "error", runErr)
		return exitError
	}
}

// applyFlags overlays explicitly set flags on cfg.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "interface":
			cfg.Interface = iface
		case "hotspot-ssid":
			cfg.Hotspot.SSID = hotspotSSID
		case "hotspot-passphrase":
			cfg.Hotspot.Passphrase = hotspotPassphrase
		case "max-attempts":
			cfg.Provisioning.MaxAttempts = maxAttempts
		case "verify-timeout":
			cfg.Provisioning.VerifyTimeout = config.Duration(verifyTimeout)
		case "log-level":
			cfg.Log.Level = logLevel
		case "log-format":
			cfg.Log.Format = logFormat
		case "event-log":
			cfg.EventLog.Path = eventLogPath
		case "journal":
			cfg.Journal.Backend = journalBackend
		case "journal-path":
			cfg.Journal.Path = journalPath
		case "store":
			cfg.Store.Path = storePath
		case "seal":
			cfg.Store.Seal = seal
		case "no-web":
			cfg.Intake.Web.Enabled = !noWeb
		case "no-bluetooth":
			cfg.Intake.Bluetooth.Enabled = !noBluetooth
		case "teardown-on-exit":
			cfg.Provisioning.TeardownOnExit = teardownOnExit
		}
	})

	// Console credentials can only be typed at the shell.
	cfg.Intake.Console.Enabled = interactiveMode
}

func newLogger(w io.Writer, cfg config.Log) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func printSaved(cfg *config.Config, w io.Writer) int {
	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wifiprov: %v\n", err)
		return exitError
	}
	saved, err := store.LoadLast()
	if errors.Is(err, credstore.ErrNotFound) {
		fmt.Fprintln(w, "No network saved.")
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "wifiprov: %v\n", err)
		return exitError
	}
	fmt.Fprintf(w, "SSID:     %s\n", saved.SSID)
	fmt.Fprintf(w, "Saved at: %s\n", saved.SavedAt.Local().Format(time.RFC3339))
	return exitOK
}

func forgetSaved(cfg *config.Config, w io.Writer) int {
	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wifiprov: %v\n", err)
		return exitError
	}
	if err := store.Clear(); err != nil {
		fmt.Fprintf(os.Stderr, "wifiprov: %v\n", err)
		return exitError
	}
	fmt.Fprintln(w, "Saved network deleted.")
	return exitOK
}

func printHistory(cfg *config.Config, w io.Writer, n int) int {
	j, err := journal.Open(cfg.Journal.Backend, cfg.Journal.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wifiprov: %v\n", err)
		return exitError
	}
	defer j.Close()

	attempts, err := j.List(n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wifiprov: %v\n", err)
		return exitError
	}
	if len(attempts) == 0 {
		fmt.Fprintln(w, "No attempts recorded.")
		return exitOK
	}
	interactive.FormatAttempts(w, attempts)
	return exitOK
}

// switchWriter lets log and status output move to the shell once it starts.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) Set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}
