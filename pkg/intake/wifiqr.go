package intake

import (
	"errors"
	"strings"
)

// WiFiQRPrefix starts a WiFi network share payload.
const WiFiQRPrefix = "WIFI:"

// Share payload errors.
var (
	ErrInvalidWiFiQR       = errors.New("invalid WIFI share payload")
	ErrUnsupportedSecurity = errors.New("unsupported network security")
)

// WiFiQR is a parsed WiFi network share payload, the format phones encode in
// "share network" QR codes and text.
//
// Format: WIFI:T:<WPA|WPA2|SAE|nopass>;S:<ssid>;P:<passphrase>;H:<true|false>;;
//
// Fields may appear in any order. The characters \ ; , : and " are escaped
// with a backslash.
type WiFiQR struct {
	Security   string
	SSID       string
	Passphrase string
	Hidden     bool
}

// ParseWiFiQR parses a share payload. Only WPA personal networks are
// accepted; other security types return ErrUnsupportedSecurity.
//
// Example: WIFI:T:WPA;S:HomeNet;P:testpass123;;
func ParseWiFiQR(content string) (*WiFiQR, error) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(strings.ToUpper(content), WiFiQRPrefix) {
		return nil, ErrInvalidWiFiQR
	}

	fields, err := splitWiFiFields(content[len(WiFiQRPrefix):])
	if err != nil {
		return nil, err
	}

	qr := &WiFiQR{Security: "WPA"}
	seenSSID := false
	for _, f := range fields {
		key, value, ok := strings.Cut(f, ":")
		if !ok {
			return nil, ErrInvalidWiFiQR
		}
		value = unescapeWiFi(value)
		switch strings.ToUpper(key) {
		case "T":
			qr.Security = strings.ToUpper(value)
		case "S":
			qr.SSID = value
			seenSSID = true
		case "P":
			qr.Passphrase = value
		case "H":
			qr.Hidden = strings.EqualFold(value, "true")
		}
	}

	if !seenSSID || qr.SSID == "" {
		return nil, ErrInvalidWiFiQR
	}
	switch qr.Security {
	case "WPA", "WPA2", "SAE", "":
		qr.Security = "WPA"
	default:
		return nil, ErrUnsupportedSecurity
	}
	return qr, nil
}

// String returns the payload in share format.
func (qr *WiFiQR) String() string {
	var b strings.Builder
	b.WriteString(WiFiQRPrefix)
	b.WriteString("T:")
	b.WriteString(qr.Security)
	b.WriteString(";S:")
	b.WriteString(escapeWiFi(qr.SSID))
	b.WriteString(";P:")
	b.WriteString(escapeWiFi(qr.Passphrase))
	if qr.Hidden {
		b.WriteString(";H:true")
	}
	b.WriteString(";;")
	return b.String()
}

// splitWiFiFields splits on unescaped semicolons. The payload must end with
// the empty field that the closing ";;" produces.
func splitWiFiFields(s string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	escaped := false
	terminated := false

	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune('\\')
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ';':
			if cur.Len() == 0 {
				terminated = true
				continue
			}
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			if terminated {
				return nil, ErrInvalidWiFiQR
			}
			cur.WriteRune(r)
		}
	}
	if escaped || cur.Len() > 0 || !terminated {
		return nil, ErrInvalidWiFiQR
	}
	return fields, nil
}

func unescapeWiFi(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

func escapeWiFi(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', ';', ',', ':', '"':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
