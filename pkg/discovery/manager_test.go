package discovery_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mash-protocol/wifiprov-go/pkg/discovery"
	"github.com/mash-protocol/wifiprov-go/pkg/discovery/mocks"
	"github.com/stretchr/testify/mock"
)

var setupInfo = discovery.SetupInfo{Name: "PiWiFiSetup", Port: 80}

func TestManagerStartStop(t *testing.T) {
	mdns := mocks.NewMockAdvertiser(t)
	mdns.EXPECT().Advertise(mock.Anything, mock.MatchedBy(func(info *discovery.SetupInfo) bool {
		return info.Name == "PiWiFiSetup"
	})).Return(nil).Once()
	mdns.EXPECT().Stop().Return(nil).Once()

	bt := mocks.NewMockAdvertiser(t)
	bt.EXPECT().Advertise(mock.Anything, mock.Anything).Return(nil).Once()
	bt.EXPECT().Stop().Return(nil).Once()

	m := discovery.NewManager(setupInfo, nil, mdns, bt)

	var transitions []discovery.State
	m.OnStateChange(func(old, new discovery.State) {
		transitions = append(transitions, new)
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if m.State() != discovery.StateAdvertising {
		t.Errorf("State() = %v, want ADVERTISING", m.State())
	}

	// Second Start is a no-op (the mocks would fail on a second Advertise).
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}

	if len(transitions) != 2 || transitions[0] != discovery.StateAdvertising || transitions[1] != discovery.StateIdle {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestManagerPartialFailure(t *testing.T) {
	mdns := mocks.NewMockAdvertiser(t)
	mdns.EXPECT().Name().Return("mdns").Maybe()
	mdns.EXPECT().Advertise(mock.Anything, mock.Anything).Return(errors.New("no multicast")).Once()

	bt := mocks.NewMockAdvertiser(t)
	bt.EXPECT().Advertise(mock.Anything, mock.Anything).Return(nil).Once()
	bt.EXPECT().Stop().Return(nil).Once()

	m := discovery.NewManager(setupInfo, nil, mdns, bt)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil when one advertiser runs", err)
	}
	// Only the advertiser that started is stopped.
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestManagerAllFail(t *testing.T) {
	mdns := mocks.NewMockAdvertiser(t)
	mdns.EXPECT().Name().Return("mdns").Maybe()
	mdns.EXPECT().Advertise(mock.Anything, mock.Anything).Return(errors.New("no multicast")).Once()

	m := discovery.NewManager(setupInfo, nil, mdns)
	err := m.Start(context.Background())
	if !errors.Is(err, discovery.ErrNoAdvertiserRan) {
		t.Fatalf("Start() error = %v, want ErrNoAdvertiserRan", err)
	}
	if m.State() != discovery.StateIdle {
		t.Errorf("State() = %v, want IDLE", m.State())
	}
}

func TestManagerInvalidInfo(t *testing.T) {
	m := discovery.NewManager(discovery.SetupInfo{}, nil, mocks.NewMockAdvertiser(t))
	if err := m.Start(context.Background()); !errors.Is(err, discovery.ErrMissingName) {
		t.Errorf("Start() error = %v, want ErrMissingName", err)
	}
}

func TestEncodeSetupTXT(t *testing.T) {
	got := discovery.EncodeSetupTXT(&discovery.SetupInfo{Name: "PiWiFiSetup"}).Strings()
	want := []string{"path=/", "ssid=PiWiFiSetup", "ver=1"}
	if len(got) != len(want) {
		t.Fatalf("Strings() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Strings()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
