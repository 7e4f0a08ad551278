// Command wedo-log views and analyzes BLE protocol capture files.
//
// Capture files are created by running wedo with the -capture flag.
//
// Usage:
//
//	wedo-log <command> [flags] <file.blog>
//
// Commands:
//
//	view     View a capture in human-readable format
//	export   Export a capture as JSON lines
//	stats    Show statistics about a capture
//
// Examples:
//
//	# View all events
//	wedo-log view scan.blog
//
//	# View only the engine state transitions
//	wedo-log view -layer engine scan.blog
//
//	# View what was sent to the dongle
//	wedo-log view -direction out scan.blog
//
//	# Export to JSONL
//	wedo-log export scan.blog > scan.jsonl
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/wedo-robotics/wedo-go/pkg/blelog"
)

const usage = `wedo-log - BLE protocol capture analyzer

Usage:
  wedo-log <command> [flags] <file.blog>

Commands:
  view     View a capture in human-readable format
  export   Export a capture as JSON lines
  stats    Show statistics about a capture

Use "wedo-log <command> -help" for more information about a command.
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

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	layer := fs.String("layer", "", "Filter by layer (link, command, engine)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, state, error)")
	peer := fs.String("peer", "", "Filter by peer hardware address")
	scanID := fs.String("scan-id", "", "Filter by scan pass ID")

	filter, path := parseFilter(fs, args, layer, direction, category, peer, scanID)

	reader, err := blelog.NewFilteredReader(path, filter)
	if err != nil {
		fatal(err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			fatal(err)
		}
		fmt.Println(formatEvent(event))
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fatal(fmt.Errorf("capture file path required"))
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		out = f
	}

	reader, err := blelog.NewReader(fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	defer reader.Close()

	enc := json.NewEncoder(out)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			fatal(err)
		}
		if err := enc.Encode(event); err != nil {
			fatal(err)
		}
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fatal(fmt.Errorf("capture file path required"))
	}

	reader, err := blelog.NewReader(fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	defer reader.Close()

	events, err := reader.All()
	if err != nil {
		fatal(err)
	}
	if len(events) == 0 {
		fmt.Println("Empty capture.")
		return
	}

	layers := make(map[blelog.Layer]int)
	categories := make(map[blelog.Category]int)
	scans := make(map[string]bool)
	peers := make(map[string]bool)
	errorCount := 0

	for _, e := range events {
		layers[e.Layer]++
		categories[e.Category]++
		if e.ScanID != "" {
			scans[e.ScanID] = true
		}
		if e.PeerAddr != "" {
			peers[e.PeerAddr] = true
		}
		if e.Category == blelog.CategoryError {
			errorCount++
		}
	}

	first := events[0].Timestamp
	last := events[len(events)-1].Timestamp

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Events:\t%d\n", len(events))
	fmt.Fprintf(w, "Duration:\t%s\n", last.Sub(first))
	fmt.Fprintf(w, "Scan passes:\t%d\n", len(scans))
	fmt.Fprintf(w, "Peers:\t%d\n", len(peers))
	fmt.Fprintf(w, "Errors:\t%d\n", errorCount)
	for layer, n := range layers {
		fmt.Fprintf(w, "Layer %s:\t%d\n", layer, n)
	}
	for category, n := range categories {
		fmt.Fprintf(w, "Category %s:\t%d\n", category, n)
	}
	w.Flush()
}

// parseFilter parses shared filter flags and the trailing file argument.
func parseFilter(fs *flag.FlagSet, args []string, layer, direction, category, peer, scanID *string) (blelog.Filter, string) {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fatal(fmt.Errorf("capture file path required"))
	}

	var filter blelog.Filter
	filter.ScanID = *scanID
	filter.PeerAddr = *peer

	if *layer != "" {
		l, err := parseLayer(*layer)
		if err != nil {
			fatal(err)
		}
		filter.Layer = &l
	}
	if *direction != "" {
		d, err := parseDirection(*direction)
		if err != nil {
			fatal(err)
		}
		filter.Direction = &d
	}
	if *category != "" {
		c, err := parseCategory(*category)
		if err != nil {
			fatal(err)
		}
		filter.Category = &c
	}

	return filter, fs.Arg(0)
}

func parseLayer(s string) (blelog.Layer, error) {
	switch strings.ToLower(s) {
	case "link":
		return blelog.LayerLink, nil
	case "command":
		return blelog.LayerCommand, nil
	case "engine":
		return blelog.LayerEngine, nil
	default:
		return 0, fmt.Errorf("unknown layer %q (use: link, command, engine)", s)
	}
}

func parseDirection(s string) (blelog.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return blelog.DirectionIn, nil
	case "out":
		return blelog.DirectionOut, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (use: in, out)", s)
	}
}

func parseCategory(s string) (blelog.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return blelog.CategoryMessage, nil
	case "state":
		return blelog.CategoryState, nil
	case "error":
		return blelog.CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category %q (use: message, state, error)", s)
	}
}

// formatEvent renders one event as a single log line.
func formatEvent(e blelog.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %-3s %-7s %-7s",
		e.Timestamp.Format("15:04:05.000"), e.Direction, e.Layer, e.Category)
	if e.PeerAddr != "" {
		fmt.Fprintf(&sb, " peer=%s", e.PeerAddr)
	}

	switch {
	case e.Frame != nil:
		fmt.Fprintf(&sb, " frame class=0x%02x id=0x%02x size=%d",
			e.Frame.Class, e.Frame.MessageID, e.Frame.Size)
		if len(e.Frame.Data) > 0 {
			fmt.Fprintf(&sb, " data=%x", e.Frame.Data)
		}
		if e.Frame.Truncated {
			sb.WriteString(" (truncated)")
		}
	case e.Command != nil:
		fmt.Fprintf(&sb, " %s", e.Command.Name)
		if e.Command.Connection != nil {
			fmt.Fprintf(&sb, " connection=%d", *e.Command.Connection)
		}
		if e.Command.Handle != nil {
			fmt.Fprintf(&sb, " handle=0x%02x", *e.Command.Handle)
		}
	case e.StateChange != nil:
		fmt.Fprintf(&sb, " %s -> %s", e.StateChange.OldState, e.StateChange.NewState)
		if e.StateChange.Reason != "" {
			fmt.Fprintf(&sb, " (%s)", e.StateChange.Reason)
		}
	case e.Error != nil:
		fmt.Fprintf(&sb, " error: %s", e.Error.Message)
		if e.Error.Context != "" {
			fmt.Fprintf(&sb, " (%s)", e.Error.Context)
		}
		if e.Error.Code != nil {
			fmt.Fprintf(&sb, " code=0x%04x", *e.Error.Code)
		}
	}
	return sb.String()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
