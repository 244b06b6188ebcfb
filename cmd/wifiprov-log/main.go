// Command wifiprov-log views and analyzes wifiprov trace files.
//
// Trace files are written by wifiprov when event_log.path is configured or
// the -event-log flag is given.
//
// Usage:
//
//	wifiprov-log <command> [flags] <file.plog>
//
// Commands:
//
//	view     View the trace in human-readable format
//	export   Export the trace to JSON lines or CSV
//	filter   Copy matching events to a new trace file
//	stats    Show per-session statistics
//
// Examples:
//
//	# View all events
//	wifiprov-log view /var/log/wifiprov/trace.plog
//
//	# View attempt outcomes only
//	wifiprov-log view -category attempt trace.plog
//
//	# Export one session to CSV
//	wifiprov-log export -format csv -session 3f2a... trace.plog
//
//	# Show statistics
//	wifiprov-log stats trace.plog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mash-protocol/wifiprov-go/cmd/wifiprov-log/commands"
)

const usage = `wifiprov-log - WiFi Provisioning Trace Analyzer

Usage:
  wifiprov-log <command> [flags] <file.plog>

Commands:
  view     View the trace in human-readable format
  export   Export the trace to JSON lines or CSV
  filter   Copy matching events to a new trace file
  stats    Show per-session statistics

Use "wifiprov-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func newFlagSet(name, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "wifiprov-log %s - %s\n\nUsage:\n  wifiprov-log %s [flags] <file.plog>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

func addFilterFlags(fs *flag.FlagSet, f *commands.FilterFlags) {
	fs.StringVar(&f.SessionID, "session", "", "Filter by session ID")
	fs.StringVar(&f.Component, "component", "", "Filter by component (supervisor, radio, intake, verifier, store)")
	fs.StringVar(&f.Category, "category", "", "Filter by category (state, candidate, attempt, error, status)")
	fs.StringVar(&f.SSID, "ssid", "", "Filter by network name")
	fs.StringVar(&f.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&f.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
}

// parse parses args and returns the required trace path.
func parse(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	var flags commands.FilterFlags
	fs := newFlagSet("view", "View the trace in human-readable format")
	addFilterFlags(fs, &flags)
	path := parse(fs, args)

	filter, err := flags.Build()
	if err != nil {
		fail(err)
	}
	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	var flags commands.FilterFlags
	fs := newFlagSet("export", "Export the trace to JSON lines or CSV")
	addFilterFlags(fs, &flags)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := parse(fs, args)

	filter, err := flags.Build()
	if err != nil {
		fail(err)
	}
	if err := commands.RunExport(path, filter, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	var flags commands.FilterFlags
	fs := newFlagSet("filter", "Copy matching events to a new trace file")
	addFilterFlags(fs, &flags)
	output := fs.String("o", "", "Output file (required)")
	path := parse(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}
	filter, err := flags.Build()
	if err != nil {
		fail(err)
	}
	n, err := commands.RunFilter(path, filter, *output)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show per-session statistics")
	path := parse(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
