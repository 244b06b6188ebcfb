// Package config loads the wifiprov configuration file.
//
// The file is YAML decoded over Default(), so any key may be omitted.
// Durations are written as strings ("30s").
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mash-protocol/wifiprov-go/pkg/bluez"
	"github.com/mash-protocol/wifiprov-go/pkg/credstore"
	"github.com/mash-protocol/wifiprov-go/pkg/hostsvc"
	"github.com/mash-protocol/wifiprov-go/pkg/intake"
	"github.com/mash-protocol/wifiprov-go/pkg/journal"
	"github.com/mash-protocol/wifiprov-go/pkg/radio"
	"github.com/mash-protocol/wifiprov-go/pkg/supervisor"
	"github.com/mash-protocol/wifiprov-go/pkg/verify"
)

// DefaultPath is where wifiprov looks for its configuration file.
const DefaultPath = "/etc/wifiprov/config.yaml"

// DefaultEventLogMaxSize is the trace size that triggers rotation.
const DefaultEventLogMaxSize = 1 << 20

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete wifiprov configuration.
type Config struct {
	Interface    string       `yaml:"interface"`
	Hotspot      Hotspot      `yaml:"hotspot"`
	Provisioning Provisioning `yaml:"provisioning"`
	Verify       Verify       `yaml:"verify"`
	Intake       Intake       `yaml:"intake"`
	Discovery    Discovery    `yaml:"discovery"`
	Services     Services     `yaml:"services"`
	Store        Store        `yaml:"store"`
	Journal      Journal      `yaml:"journal"`
	EventLog     EventLog     `yaml:"event_log"`
	Log          Log          `yaml:"log"`
}

// Hotspot describes the setup access point.
type Hotspot struct {
	SSID           string   `yaml:"ssid"`
	Passphrase     string   `yaml:"passphrase"`
	Channel        int      `yaml:"channel"`
	Gateway        string   `yaml:"gateway"`
	PrefixLen      int      `yaml:"prefix_len"`
	DHCPRangeStart string   `yaml:"dhcp_range_start"`
	DHCPRangeEnd   string   `yaml:"dhcp_range_end"`
	DNS            []string `yaml:"dns,omitempty"`
}

// APConfig converts the hotspot section for the radio package.
func (h Hotspot) APConfig() radio.APConfig {
	return radio.APConfig{
		SSID:           h.SSID,
		Passphrase:     h.Passphrase,
		Channel:        h.Channel,
		Gateway:        h.Gateway,
		PrefixLen:      h.PrefixLen,
		DHCPRangeStart: h.DHCPRangeStart,
		DHCPRangeEnd:   h.DHCPRangeEnd,
		DNS:            h.DNS,
	}
}

// Provisioning configures the supervisor and radio controller.
type Provisioning struct {
	MaxAttempts      int      `yaml:"max_attempts"`
	VerifyTimeout    Duration `yaml:"verify_timeout"`
	OperationTimeout Duration `yaml:"operation_timeout"`
	TeardownOnExit   bool     `yaml:"teardown_on_exit"`
}

// Verify configures the connectivity checks.
type Verify struct {
	DNSHost    string   `yaml:"dns_host"`
	Resolvers  []string `yaml:"resolvers,omitempty"`
	TCPTargets []string `yaml:"tcp_targets,omitempty"`
}

// Intake enables and configures the credential channels.
type Intake struct {
	Web       WebIntake       `yaml:"web"`
	Bluetooth BluetoothIntake `yaml:"bluetooth"`
	Console   ConsoleIntake   `yaml:"console"`
}

// WebIntake configures the setup page.
type WebIntake struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Title   string `yaml:"title"`
}

// BluetoothIntake configures Bluetooth pairing.
type BluetoothIntake struct {
	Enabled        bool     `yaml:"enabled"`
	Alias          string   `yaml:"alias"`
	InboxDir       string   `yaml:"inbox_dir"`
	ExtractTimeout Duration `yaml:"extract_timeout"`
}

// ConsoleIntake enables credentials typed at the operator shell. wifiprov
// sets Enabled from -interactive since nothing else can feed it.
type ConsoleIntake struct {
	Enabled bool `yaml:"enabled"`
}

// Discovery configures the mDNS announcement of the setup page.
type Discovery struct {
	MDNS         bool   `yaml:"mdns"`
	InstanceName string `yaml:"instance_name"`
}

// Services names the host units and configuration files.
type Services struct {
	HostapdUnit    string `yaml:"hostapd_unit"`
	DnsmasqUnit    string `yaml:"dnsmasq_unit"`
	SupplicantUnit string `yaml:"supplicant_unit"`
	DHCPClientUnit string `yaml:"dhcp_client_unit"`
	WriteConfigs   bool   `yaml:"write_configs"`
	HostapdConf    string `yaml:"hostapd_conf"`
	DnsmasqConf    string `yaml:"dnsmasq_conf"`
}

// Store configures the credential file.
type Store struct {
	Path          string `yaml:"path"`
	Seal          bool   `yaml:"seal"`
	MachineIDPath string `yaml:"machine_id_path"`
}

// Journal configures the attempt journal.
type Journal struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// EventLog configures the CBOR provisioning trace. An empty path disables it.
type EventLog struct {
	Path string `yaml:"path"`

	// MaxSize rotates the trace at a session boundary once it holds this
	// many bytes. Zero disables rotation.
	MaxSize int64 `yaml:"max_size"`
}

// Log configures operational logging.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	ap := radio.DefaultAPConfig()
	return &Config{
		Interface: hostsvc.DefaultInterface,
		Hotspot: Hotspot{
			SSID:           ap.SSID,
			Channel:        ap.Channel,
			Gateway:        ap.Gateway,
			PrefixLen:      ap.PrefixLen,
			DHCPRangeStart: ap.DHCPRangeStart,
			DHCPRangeEnd:   ap.DHCPRangeEnd,
		},
		Provisioning: Provisioning{
			MaxAttempts:      supervisor.DefaultMaxAttempts,
			VerifyTimeout:    Duration(verify.DefaultTimeout),
			OperationTimeout: Duration(radio.DefaultOperationTimeout),
		},
		Verify: Verify{
			DNSHost: verify.DefaultCheckHost,
		},
		Intake: Intake{
			Web: WebIntake{
				Enabled: true,
				Listen:  intake.DefaultWebListenAddr,
				Title:   "WiFi Setup",
			},
			Bluetooth: BluetoothIntake{
				Enabled:        true,
				Alias:          bluez.DefaultAlias,
				InboxDir:       bluez.DefaultInboxDir,
				ExtractTimeout: Duration(intake.DefaultExtractTimeout),
			},
		},
		Discovery: Discovery{
			MDNS:         true,
			InstanceName: "WiFi Setup",
		},
		Services: Services{
			HostapdUnit:    hostsvc.DefaultHostapdUnit,
			DnsmasqUnit:    hostsvc.DefaultDnsmasqUnit,
			SupplicantUnit: hostsvc.DefaultSupplicantUnit,
			DHCPClientUnit: hostsvc.DefaultDHCPClientUnit,
			WriteConfigs:   true,
			HostapdConf:    hostsvc.DefaultHostapdConf,
			DnsmasqConf:    hostsvc.DefaultDnsmasqConf,
		},
		Store: Store{
			Path:          credstore.DefaultPath,
			MachineIDPath: credstore.DefaultMachineIDPath,
		},
		Journal: Journal{
			Backend: journal.BackendBolt,
			Path:    "/var/lib/wifiprov/attempts.db",
		},
		EventLog: EventLog{
			MaxSize: DefaultEventLogMaxSize,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path and decodes it over Default(). A missing file at the
// default path yields the defaults; a missing file elsewhere is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			return Default(), nil
		}
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error(), Cause: err}
	}
	return cfg, nil
}

// Parse decodes YAML over Default() and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Message: "validation failed", Cause: err}
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("%w: interface is required", ErrInvalid)
	}
	if err := c.Hotspot.APConfig().Validate(); err != nil {
		return fmt.Errorf("%w: hotspot: %v", ErrInvalid, err)
	}
	if c.Provisioning.MaxAttempts < 1 {
		return fmt.Errorf("%w: provisioning.max_attempts must be at least 1", ErrInvalid)
	}
	if c.Provisioning.VerifyTimeout.Std() <= 0 {
		return fmt.Errorf("%w: provisioning.verify_timeout must be positive", ErrInvalid)
	}
	if c.Provisioning.OperationTimeout.Std() <= 0 {
		return fmt.Errorf("%w: provisioning.operation_timeout must be positive", ErrInvalid)
	}
	if !c.Intake.Web.Enabled && !c.Intake.Bluetooth.Enabled && !c.Intake.Console.Enabled {
		return fmt.Errorf("%w: at least one intake must be enabled", ErrInvalid)
	}
	if c.Intake.Web.Enabled && c.Intake.Web.Listen == "" {
		return fmt.Errorf("%w: intake.web.listen is required", ErrInvalid)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("%w: store.path is required", ErrInvalid)
	}
	switch c.Journal.Backend {
	case journal.BackendNone, "":
	case journal.BackendBolt, journal.BackendSQLite:
		if c.Journal.Path == "" {
			return fmt.Errorf("%w: journal.path is required for backend %q", ErrInvalid, c.Journal.Backend)
		}
	default:
		return fmt.Errorf("%w: journal.backend %q (want none, bolt or sqlite)", ErrInvalid, c.Journal.Backend)
	}
	if c.EventLog.MaxSize < 0 {
		return fmt.Errorf("%w: event_log.max_size must not be negative", ErrInvalid)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// LoadError describes a configuration file that could not be used.
type LoadError struct {
	// File is the configuration path, if known.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.File == "" {
		return msg
	}
	return e.File + ": " + msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Duration is a time.Duration written as a string in YAML.
type Duration time.Duration

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String formats the duration like time.Duration.
func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML parses strings such as "30s" or "1m30s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}
