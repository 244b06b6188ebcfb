package radio

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// WPA2 pre-shared key constraints.
const (
	// MaxSSIDBytes is the 802.11 limit on SSID length.
	MaxSSIDBytes = 32

	// MinPassphraseLen is the shortest WPA2 passphrase.
	MinPassphraseLen = 8

	// MaxPassphraseLen is the longest WPA2 passphrase (64 would be a raw hex key).
	MaxPassphraseLen = 63
)

// Validation errors. All of them wrap ErrValidation.
var (
	ErrSSIDEmpty          = fmt.Errorf("%w: ssid is empty", ErrValidation)
	ErrSSIDTooLong        = fmt.Errorf("%w: ssid longer than %d bytes", ErrValidation, MaxSSIDBytes)
	ErrPassphraseLength   = fmt.Errorf("%w: passphrase must be %d-%d characters", ErrValidation, MinPassphraseLen, MaxPassphraseLen)
	ErrPassphraseEncoding = fmt.Errorf("%w: passphrase contains non-printable characters", ErrValidation)
)

// ValidateCredentials checks an SSID and passphrase against the WPA2-PSK
// constraints. It touches nothing; intakes use it to reject malformed input
// before it ever reaches the supervisor.
func ValidateCredentials(ssid, passphrase string) error {
	if ssid == "" {
		return ErrSSIDEmpty
	}
	if len(ssid) > MaxSSIDBytes {
		return ErrSSIDTooLong
	}

	n := utf8.RuneCountInString(passphrase)
	if n < MinPassphraseLen || n > MaxPassphraseLen {
		return ErrPassphraseLength
	}
	for _, c := range passphrase {
		if c < 0x20 || c == 0x7f {
			return ErrPassphraseEncoding
		}
	}
	return nil
}

// IsValidationError reports whether err is a credential validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}
