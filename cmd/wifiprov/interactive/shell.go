// Package interactive provides the operator shell of wifiprov.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/mash-protocol/wifiprov-go/pkg/credstore"
	"github.com/mash-protocol/wifiprov-go/pkg/intake"
	"github.com/mash-protocol/wifiprov-go/pkg/journal"
	"github.com/mash-protocol/wifiprov-go/pkg/supervisor"
)

// Backend is what the shell operates on.
type Backend interface {
	// Session returns the current provisioning session.
	Session() supervisor.Session

	// Status returns the portal status summary.
	Status() intake.PortalStatus

	// Submit offers credentials. queued reports that an attempt is in
	// flight and the credentials wait for the next one.
	Submit(ssid, passphrase string) (queued bool, err error)

	// History returns up to limit journaled attempts, newest first.
	History(limit int) ([]journal.Attempt, error)

	// Saved returns the persisted credential.
	Saved() (*credstore.PersistedCredential, error)

	// Forget deletes the persisted credential.
	Forget() error

	// Restart starts a new session.
	Restart()
}

// Shell is a readline-driven command loop.
type Shell struct {
	backend Backend
	rl      *readline.Instance
}

// New creates a shell on the terminal.
func New(backend Backend) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "wifiprov> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("status"),
			readline.PcItem("submit"),
			readline.PcItem("history"),
			readline.PcItem("saved"),
			readline.PcItem("forget"),
			readline.PcItem("restart"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{backend: backend, rl: rl}, nil
}

// Stdout returns a writer that does not garble the prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Stderr returns a writer that does not garble the prompt.
func (s *Shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

// Close releases the terminal.
func (s *Shell) Close() error {
	return s.rl.Close()
}

// Run reads commands until quit, EOF or ctx ends. quit and EOF call cancel.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	go func() {
		<-ctx.Done()
		s.rl.Close()
	}()

	out := s.rl.Stdout()
	PrintHelp(out)

	for {
		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) && ctx.Err() == nil {
				continue
			}
			if ctx.Err() == nil {
				fmt.Fprintln(out, "Exiting...")
				cancel()
			}
			return
		}
		if Execute(s.backend, out, line) {
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one command line and reports whether the shell should exit.
func Execute(b Backend, out io.Writer, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		PrintHelp(out)
	case "status", "s":
		cmdStatus(b, out)
	case "submit":
		cmdSubmit(b, out, rawArgs(line))
	case "history", "h":
		cmdHistory(b, out, args)
	case "saved":
		cmdSaved(b, out)
	case "forget":
		if err := b.Forget(); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		} else {
			fmt.Fprintln(out, "Saved network deleted.")
		}
	case "restart":
		b.Restart()
		fmt.Fprintln(out, "Restart requested.")
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

// PrintHelp writes the command summary.
func PrintHelp(out io.Writer) {
	fmt.Fprintln(out, `
WiFi Provisioning Commands:
  status                 - Show the provisioning session
  submit <ssid> <pass>   - Offer credentials (quote names with spaces)
  history [n]            - Show the last n attempts (default 10)
  saved                  - Show the saved network
  forget                 - Delete the saved network
  restart                - Start a new session
  help                   - Show this help
  quit                   - Exit`)
}

func cmdStatus(b Backend, out io.Writer) {
	sess := b.Session()
	st := b.Status()

	fmt.Fprintf(out, "Session:  %s\n", sess.ID)
	fmt.Fprintf(out, "State:    %s\n", sess.State)
	fmt.Fprintf(out, "Radio:    %s\n", st.Role)
	if st.Joined != "" {
		fmt.Fprintf(out, "Joined:   %s\n", st.Joined)
	}
	fmt.Fprintf(out, "Attempts: %d/%d\n", sess.AttemptCount, st.MaxAttempts)
	if !sess.ActiveCandidate.IsZero() {
		fmt.Fprintf(out, "Network:  %s (%s)\n", sess.ActiveCandidate.SSID(), sess.ActiveCandidate.Source())
	}
	if sess.Queued > 0 {
		fmt.Fprintf(out, "Queued:   %d\n", sess.Queued)
	}
	if sess.LastError != nil {
		fmt.Fprintf(out, "Last error: %v\n", sess.LastError)
	}
	if !sess.StartedAt.IsZero() {
		fmt.Fprintf(out, "Running for %s\n", time.Since(sess.StartedAt).Round(time.Second))
	}
}

func cmdSubmit(b Backend, out io.Writer, args string) {
	ssid, pass, err := parseSubmitArgs(args)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		fmt.Fprintln(out, "Usage: submit <ssid> <passphrase>")
		return
	}

	queued, err := b.Submit(ssid, pass)
	switch {
	case err != nil:
		fmt.Fprintf(out, "Error: %v\n", err)
	case queued:
		fmt.Fprintf(out, "Queued %q for the next attempt.\n", ssid)
	default:
		fmt.Fprintf(out, "Submitted %q.\n", ssid)
	}
}

// rawArgs returns line after the command word, untouched.
func rawArgs(line string) string {
	line = strings.TrimLeft(line, " \t")
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return ""
	}
	return line[i+1:]
}

// parseSubmitArgs splits "submit" arguments into ssid and passphrase. Either
// may be double-quoted to keep spaces; an unquoted passphrase is the rest of
// the line with surrounding blanks removed. Inner spacing is kept as typed.
func parseSubmitArgs(args string) (string, string, error) {
	ssid, rest, err := nextToken(strings.TrimLeft(args, " \t"))
	if err != nil {
		return "", "", err
	}
	if ssid == "" {
		return "", "", errors.New("missing ssid")
	}

	rest = strings.TrimLeft(rest, " \t")
	if strings.HasPrefix(rest, `"`) {
		pass, tail, err := nextToken(rest)
		if err != nil {
			return "", "", err
		}
		if strings.TrimSpace(tail) != "" {
			return "", "", errors.New("unexpected text after passphrase")
		}
		rest = pass
	} else {
		rest = strings.TrimRight(rest, " \t\r\n")
	}
	if rest == "" {
		return "", "", errors.New("missing passphrase")
	}
	return ssid, rest, nil
}

// nextToken cuts one token from s: a double-quoted string (with Go escapes)
// or a run of non-blank characters.
func nextToken(s string) (string, string, error) {
	if !strings.HasPrefix(s, `"`) {
		i := strings.IndexAny(s, " \t")
		if i < 0 {
			return s, "", nil
		}
		return s[:i], s[i:], nil
	}
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			tok, err := strconv.Unquote(s[:i+1])
			if err != nil {
				return "", "", fmt.Errorf("bad quoting: %w", err)
			}
			return tok, s[i+1:], nil
		}
	}
	return "", "", errors.New("unterminated quote")
}

func cmdHistory(b Backend, out io.Writer, args []string) {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fmt.Fprintf(out, "Invalid count: %s\n", args[0])
			return
		}
		limit = n
	}

	attempts, err := b.History(limit)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	if len(attempts) == 0 {
		fmt.Fprintln(out, "No attempts recorded.")
		return
	}
	FormatAttempts(out, attempts)
}

// FormatAttempts writes attempts as a table.
func FormatAttempts(out io.Writer, attempts []journal.Attempt) {
	fmt.Fprintf(out, "%-20s %-8s %-3s %-10s %-24s %-14s %s\n",
		"TIME", "SESSION", "#", "SOURCE", "SSID", "OUTCOME", "DURATION")
	for _, a := range attempts {
		session := a.SessionID
		if len(session) > 8 {
			session = session[:8]
		}
		fmt.Fprintf(out, "%-20s %-8s %-3d %-10s %-24s %-14s %s\n",
			a.StartedAt.Local().Format("2006-01-02 15:04:05"),
			session, a.Number, a.Source, a.SSID, a.Outcome,
			a.Duration().Round(time.Millisecond))
		if a.Error != "" {
			fmt.Fprintf(out, "    %s\n", a.Error)
		}
	}
}

func cmdSaved(b Backend, out io.Writer) {
	saved, err := b.Saved()
	if errors.Is(err, credstore.ErrNotFound) {
		fmt.Fprintln(out, "No network saved.")
		return
	}
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "SSID:     %s\n", saved.SSID)
	fmt.Fprintf(out, "Saved at: %s\n", saved.SavedAt.Local().Format(time.RFC3339))
}
