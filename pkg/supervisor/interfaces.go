package supervisor

import (
	"context"
	"time"

	"github.com/mash-protocol/wifiprov-go/pkg/credstore"
	"github.com/mash-protocol/wifiprov-go/pkg/discovery"
	"github.com/mash-protocol/wifiprov-go/pkg/radio"
	"github.com/mash-protocol/wifiprov-go/pkg/verify"
)

// Radio switches the wireless interface between roles. It is satisfied by
// *radio.ModeController.
type Radio interface {
	EnterAPHost(ctx context.Context, cfg radio.APConfig) (radio.Role, error)
	EnterSTAClient(ctx context.Context, ssid, passphrase string) (radio.Role, error)
	CurrentRole() radio.Role
	ClientSSID() string
}

// Compile-time check: *radio.ModeController implements Radio.
var _ Radio = (*radio.ModeController)(nil)

// Verifier confirms the client role has working connectivity. It is
// satisfied by *verify.Verifier.
type Verifier interface {
	Verify(ctx context.Context, timeout time.Duration) error
}

// Compile-time check: *verify.Verifier implements Verifier.
var _ Verifier = (*verify.Verifier)(nil)

// CredentialStore persists verified credentials. It is satisfied by
// *credstore.Store.
type CredentialStore interface {
	Persist(ssid, passphrase string) error
	LoadLast() (*credstore.PersistedCredential, error)
}

// Compile-time check: *credstore.Store implements CredentialStore.
var _ CredentialStore = (*credstore.Store)(nil)

// Advertising announces the device while it waits for credentials. It is
// satisfied by *discovery.Manager.
type Advertising interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time check: *discovery.Manager implements Advertising.
var _ Advertising = (*discovery.Manager)(nil)
