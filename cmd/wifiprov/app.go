package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"strconv"

	"github.com/mash-protocol/wifiprov-go/pkg/bluez"
	"github.com/mash-protocol/wifiprov-go/pkg/config"
	"github.com/mash-protocol/wifiprov-go/pkg/credstore"
	"github.com/mash-protocol/wifiprov-go/pkg/discovery"
	"github.com/mash-protocol/wifiprov-go/pkg/hostsvc"
	"github.com/mash-protocol/wifiprov-go/pkg/intake"
	"github.com/mash-protocol/wifiprov-go/pkg/journal"
	plog "github.com/mash-protocol/wifiprov-go/pkg/log"
	"github.com/mash-protocol/wifiprov-go/pkg/radio"
	"github.com/mash-protocol/wifiprov-go/pkg/supervisor"
	"github.com/mash-protocol/wifiprov-go/pkg/verify"
)

// app holds the wired provisioning components.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	controller *radio.ModeController
	sup        *supervisor.Supervisor
	console    *intake.ConsoleIntake
	store      *credstore.Store
	journal    journal.Journal
	eventLog   *plog.FileLogger

	restart chan struct{}
}

// openStore opens the credential store, sealing passphrases when configured.
func openStore(cfg *config.Config) (*credstore.Store, error) {
	var opts []credstore.Option
	if cfg.Store.Seal {
		sealer, err := credstore.NewMachineSealer(cfg.Store.MachineIDPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, credstore.WithSealer(sealer))
	}
	return credstore.NewStore(cfg.Store.Path, opts...), nil
}

func newApp(cfg *config.Config, logger *slog.Logger, status io.Writer) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		restart: make(chan struct{}, 1),
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("credential store: %w", err)
	}
	a.store = store

	a.journal, err = journal.Open(cfg.Journal.Backend, cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("attempt journal: %w", err)
	}

	events := []plog.Logger{plog.NewSlogAdapter(logger)}
	if cfg.EventLog.Path != "" {
		a.eventLog, err = plog.NewFileLogger(cfg.EventLog.Path, plog.WithMaxSize(cfg.EventLog.MaxSize))
		if err != nil {
			a.journal.Close()
			return nil, fmt.Errorf("event log: %w", err)
		}
		events = append(events, a.eventLog)
	}

	// Radio
	svcConfig := hostsvc.Config{
		Interface:      cfg.Interface,
		HostapdUnit:    cfg.Services.HostapdUnit,
		DnsmasqUnit:    cfg.Services.DnsmasqUnit,
		SupplicantUnit: cfg.Services.SupplicantUnit,
		DHCPClientUnit: cfg.Services.DHCPClientUnit,
		Logger:         logger,
	}
	if cfg.Services.WriteConfigs {
		svcConfig.ConfigWriter = &hostsvc.FileConfigWriter{
			HostapdPath: cfg.Services.HostapdConf,
			DnsmasqPath: cfg.Services.DnsmasqConf,
		}
	}
	apConfig := cfg.Hotspot.APConfig()
	a.controller = radio.NewModeController(hostsvc.NewSystemdManager(svcConfig), radio.ControllerConfig{
		AccessPoint:      apConfig,
		OperationTimeout: cfg.Provisioning.OperationTimeout.Std(),
		Logger:           logger,
	})

	// Verifier
	lease := verify.NewInterfaceLeaseChecker(cfg.Interface, netip.MustParseAddr(apConfig.Gateway))
	checks := []verify.ReachCheck{verify.NewDNSCheck(cfg.Verify.DNSHost, cfg.Verify.Resolvers)}
	if len(cfg.Verify.TCPTargets) > 0 {
		checks = append(checks, verify.NewTCPCheck(cfg.Verify.TCPTargets...))
	}
	verifier := verify.NewVerifier(lease, checks, verify.Config{Logger: logger})

	// Intakes and advertisers
	var intakes []intake.Intake
	var advertisers []discovery.Advertiser
	if cfg.Intake.Web.Enabled {
		intakes = append(intakes, intake.NewWebFormIntake(intake.WebConfig{
			ListenAddr: cfg.Intake.Web.Listen,
			Title:      cfg.Intake.Web.Title,
			Status:     a.Status,
			Logger:     logger,
		}))
		if cfg.Discovery.MDNS {
			advertisers = append(advertisers, discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
				Interface: cfg.Interface,
				TTL:       discovery.DefaultAdvertiserConfig().TTL,
			}))
		}
	}
	if cfg.Intake.Bluetooth.Enabled {
		intakes = append(intakes, intake.NewBluetoothIntake(
			bluez.NewMonitor(bluez.MonitorConfig{Logger: logger}),
			bluez.NewInboxExtractor(bluez.InboxConfig{Dir: cfg.Intake.Bluetooth.InboxDir, Logger: logger}),
			intake.BluetoothConfig{ExtractTimeout: cfg.Intake.Bluetooth.ExtractTimeout.Std(), Logger: logger},
		))
		advertisers = append(advertisers, bluez.NewController(bluez.ControllerConfig{
			Alias:  cfg.Intake.Bluetooth.Alias,
			Logger: logger,
		}))
	}
	if cfg.Intake.Console.Enabled {
		a.console = intake.NewConsoleIntake()
		intakes = append(intakes, a.console)
	}

	supConfig := supervisor.Config{
		AccessPoint:   apConfig,
		MaxAttempts:   cfg.Provisioning.MaxAttempts,
		VerifyTimeout: cfg.Provisioning.VerifyTimeout.Std(),
		Store:         a.store,
		Journal:       a.journal,
		EventLogger:   plog.NewMultiLogger(events...),
		StatusWriter:  status,
		Logger:        logger,
	}
	if len(advertisers) > 0 {
		supConfig.Advertising = discovery.NewManager(discovery.SetupInfo{
			Name: cfg.Discovery.InstanceName,
			Port: portOf(cfg.Intake.Web.Listen),
			Path: "/",
		}, logger, advertisers...)
	}

	a.sup = supervisor.New(a.controller, verifier, intakes, supConfig)
	a.controller.OnRoleChange(a.sup.ObserveRoleChange)
	return a, nil
}

// run drives sessions until one connects or ctx ends. After an exhausted
// session it waits for a restart request.
func (a *app) run(ctx context.Context) error {
	for {
		sessionCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			select {
			case <-a.restart:
				a.logger.Info("restart requested, ending current session")
				cancel()
			case <-done:
			}
		}()

		outcome, err := a.sup.Run(sessionCtx)
		close(done)
		cancel()

		switch {
		case outcome == supervisor.OutcomeConnected:
			return nil
		case errors.Is(err, supervisor.ErrAttemptsExhausted):
			a.logger.Error("provisioning failed, access point left up; send SIGHUP or use 'restart' to try again",
				"attempts", a.sup.Session().AttemptCount)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-a.restart:
			}
		case ctx.Err() != nil:
			return ctx.Err()
		case outcome == supervisor.OutcomeCancelled:
			// Restart requested mid-session.
		default:
			return err
		}
		a.logger.Info("starting a new provisioning session")
	}
}

// requestRestart asks run to start a new session. Extra requests collapse.
func (a *app) requestRestart() {
	select {
	case a.restart <- struct{}{}:
	default:
	}
}

// teardown stops whichever role is active.
func (a *app) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Provisioning.OperationTimeout.Std())
	defer cancel()
	if err := a.controller.Teardown(ctx); err != nil {
		a.logger.Warn("teardown failed", "error", err)
	}
}

func (a *app) Close() error {
	var errs []error
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	if a.eventLog != nil {
		errs = append(errs, a.eventLog.Close())
	}
	return errors.Join(errs...)
}

// Backend methods for the interactive shell.

func (a *app) Status() intake.PortalStatus { return a.sup.PortalStatus() }

func (a *app) Session() supervisor.Session { return a.sup.Session() }

func (a *app) Submit(ssid, passphrase string) (bool, error) {
	if a.console != nil && a.console.Armed() {
		return false, a.console.Submit(ssid, passphrase)
	}
	c, err := intake.NewCandidate(ssid, passphrase, intake.SourceConsole)
	if err != nil {
		return false, err
	}
	return a.sup.State().InFlight(), a.sup.Enqueue(c)
}

func (a *app) History(limit int) ([]journal.Attempt, error) { return a.journal.List(limit) }

func (a *app) Saved() (*credstore.PersistedCredential, error) { return a.store.LoadLast() }

func (a *app) Forget() error { return a.store.Clear() }

func (a *app) Restart() { a.requestRestart() }

func portOf(addr string) int {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return discovery.DefaultPortalPort
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return discovery.DefaultPortalPort
	}
	return n
}
