// Package interactive provides the interactive command-line interface for
// the wedo command.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/wedo-robotics/wedo-go/pkg/hub"
)

// Controller is the hub surface the interactive session drives. This
// interface lets the session talk to the main package's wiring without
// depending on its config structure.
type Controller interface {
	// ScanSBricks runs one BLE discovery pass on the dongle.
	ScanSBricks(ctx context.Context) ([]hub.Hub, error)

	// ListWeDo snapshots the WeDo hubs on the USB bus.
	ListWeDo() ([]hub.Hub, error)

	// Motor drives the motors on the given connector of every hub; port 0
	// drives both connectors.
	Motor(port byte, speed int8) error

	// Light sets the light brightness on the given connector of every
	// hub; port 0 drives both connectors.
	Light(port byte, intensity byte) error

	// Reset stops all motors and lights.
	Reset() error
}

// Session is one interactive command loop.
type Session struct {
	ctrl Controller
	rl   *readline.Instance
}

// New creates an interactive session on the given controller.
func New(ctrl Controller) (*Session, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "wedo> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Session{ctrl: ctrl, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline input. Use it
// for log output to avoid interfering with the command prompt.
func (s *Session) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run starts the interactive command loop.
func (s *Session) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "scan":
			s.cmdScan(ctx)

		case "list", "ls":
			s.cmdList()

		case "motor", "m":
			s.cmdMotor(args)

		case "light", "l":
			s.cmdLight(args)

		case "stop":
			s.cmdStop()

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Session) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
WeDo Commands:
  scan                      - Scan for SBrick hubs on the BLE dongle
  list                      - List WeDo hubs on the USB bus
  motor <speed> [a|b]       - Run motors (-127..127, 0 stops)
  light <brightness> [a|b]  - Set lights (0..127)
  stop                      - Stop all motors and lights
  help                      - Show this help
  quit                      - Exit`)
}

func (s *Session) cmdScan(ctx context.Context) {
	fmt.Fprintln(s.rl.Stdout(), "Scanning for SBrick hubs...")

	hubs, err := s.ctrl.ScanSBricks(ctx)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Scan failed: %v\n", err)
		return
	}
	s.printHubs(hubs)
}

func (s *Session) cmdList() {
	hubs, err := s.ctrl.ListWeDo()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "List failed: %v\n", err)
		return
	}
	s.printHubs(hubs)
}

func (s *Session) printHubs(hubs []hub.Hub) {
	if len(hubs) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No hubs found.")
		return
	}
	for _, h := range hubs {
		fmt.Fprintln(s.rl.Stdout(), h.String())
	}
}

func (s *Session) cmdMotor(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: motor <speed> [a|b]")
		return
	}
	speed, err := strconv.ParseInt(args[0], 10, 8)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Bad speed %q: must be -127..127\n", args[0])
		return
	}
	port, ok := parsePort(args[1:])
	if !ok {
		fmt.Fprintln(s.rl.Stdout(), "Bad port: use 'a' or 'b'")
		return
	}

	if err := s.ctrl.Motor(port, int8(speed)); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Motor failed: %v\n", err)
	}
}

func (s *Session) cmdLight(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: light <brightness> [a|b]")
		return
	}
	brightness, err := strconv.ParseUint(args[0], 10, 7)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Bad brightness %q: must be 0..127\n", args[0])
		return
	}
	port, ok := parsePort(args[1:])
	if !ok {
		fmt.Fprintln(s.rl.Stdout(), "Bad port: use 'a' or 'b'")
		return
	}

	if err := s.ctrl.Light(port, byte(brightness)); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Light failed: %v\n", err)
	}
}

func (s *Session) cmdStop() {
	if err := s.ctrl.Reset(); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Stop failed: %v\n", err)
	}
}

// parsePort maps an optional trailing port argument to a connector letter,
// 0 meaning both.
func parsePort(args []string) (byte, bool) {
	if len(args) == 0 {
		return 0, true
	}
	switch strings.ToLower(args[0]) {
	case "a":
		return 'A', true
	case "b":
		return 'B', true
	default:
		return 0, false
	}
}
