package supervisor

import (
	"fmt"
	"io"
	"strconv"
)

// StatusPrefix starts every status line.
const StatusPrefix = "WIFIPROV_STATUS="

// ConnectedLine formats the status line for a connected session.
func ConnectedLine(s Session) string {
	c := s.ActiveCandidate
	return fmt.Sprintf("%sCONNECTED session=%s ssid=%s source=%s attempts=%d",
		StatusPrefix, s.ID, strconv.Quote(c.SSID()), c.Source(), s.AttemptCount)
}

// FailedLine formats the status line for an exhausted session.
func FailedLine(s Session, maxAttempts int) string {
	lastErr := ""
	if s.LastError != nil {
		lastErr = s.LastError.Error()
	}
	return fmt.Sprintf("%sFAILED_TERMINAL session=%s attempts=%d max_attempts=%d last_error=%s",
		StatusPrefix, s.ID, s.AttemptCount, maxAttempts, strconv.Quote(lastErr))
}

func writeStatusLine(w io.Writer, line string) error {
	if w == nil {
		return nil
	}
	_, err := io.WriteString(w, line+"\n")
	return err
}
