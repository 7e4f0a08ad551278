// Command wedo drives LEGO WeDo hubs on USB and scans for SBrick hubs
// through a BlueGiga BLE112 dongle.
//
// Usage:
//
//	wedo [flags]
//
// Flags:
//
//	-config string       Configuration file path (YAML)
//	-port string         Serial port of the BLE112 dongle (default "/dev/ttyACM0")
//	-log-level string    Log level: debug, info, warn, error (default "info")
//	-capture string      Write a protocol capture (.blog) to this file
//	-window duration     BLE discovery window (default 3s)
//	-settle duration     Settle delay after the scan drains (default 1s)
//	-read-timeout duration  Per-peer interrogation timeout, 0 disables
//	-announce            Publish the scanned inventory over mDNS
//	-list                List WeDo hubs on the USB bus and exit
//	-alligator           Run the hungry alligator demo on the USB hubs
//	-interactive         Enable interactive command mode
//	-reset               Reset the dongle and exit
//
// Examples:
//
//	# Scan for SBricks with a protocol capture
//	wedo -port /dev/ttyACM0 -capture scan.blog
//
//	# Scan and announce the inventory on the LAN
//	wedo -announce
//
//	# List wired WeDo hubs
//	wedo -list
//
//	# Drive hubs interactively
//	wedo -interactive
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/wedo-robotics/wedo-go/cmd/wedo/interactive"
	"github.com/wedo-robotics/wedo-go/pkg/activities"
	"github.com/wedo-robotics/wedo-go/pkg/announce"
	"github.com/wedo-robotics/wedo-go/pkg/bgapi"
	"github.com/wedo-robotics/wedo-go/pkg/bgapi/serial"
	"github.com/wedo-robotics/wedo-go/pkg/blelog"
	"github.com/wedo-robotics/wedo-go/pkg/hub"
	"github.com/wedo-robotics/wedo-go/pkg/sbrick"
	"github.com/wedo-robotics/wedo-go/pkg/wedo"
)

// Config holds the command configuration, from flags and the optional
// config file.
type Config struct {
	ConfigFile  string
	Port        string
	LogLevel    string
	CaptureFile string

	DiscoveryWindow time.Duration
	SettleDelay     time.Duration
	ReadTimeout     time.Duration

	Announce    bool
	List        bool
	Alligator   bool
	Interactive bool
	Reset       bool
}

// fileConfig mirrors the YAML config file. Durations are strings in
// time.ParseDuration syntax.
type fileConfig struct {
	Port            string `yaml:"port"`
	DiscoveryWindow string `yaml:"discovery_window"`
	SettleDelay     string `yaml:"settle_delay"`
	ReadTimeout     string `yaml:"read_timeout"`
	Capture         string `yaml:"capture"`
	Announce        bool   `yaml:"announce"`
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&config.Port, "port", "/dev/ttyACM0", "Serial port of the BLE112 dongle")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.CaptureFile, "capture", "", "Write a protocol capture (.blog) to this file")
	flag.DurationVar(&config.DiscoveryWindow, "window", sbrick.DefaultDiscoveryWindow, "BLE discovery window")
	flag.DurationVar(&config.SettleDelay, "settle", sbrick.DefaultSettleDelay, "Settle delay after the scan drains")
	flag.DurationVar(&config.ReadTimeout, "read-timeout", 0, "Per-peer interrogation timeout, 0 disables")
	flag.BoolVar(&config.Announce, "announce", false, "Publish the scanned inventory over mDNS")
	flag.BoolVar(&config.List, "list", false, "List WeDo hubs on the USB bus and exit")
	flag.BoolVar(&config.Alligator, "alligator", false, "Run the hungry alligator demo on the USB hubs")
	flag.BoolVar(&config.Interactive, "interactive", false, "Enable interactive command mode")
	flag.BoolVar(&config.Reset, "reset", false, "Reset the dongle and exit")
}

func main() {
	flag.Parse()

	logger, err := setupLogging(config.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if config.ConfigFile != "" {
		if err := loadConfigFile(config.ConfigFile); err != nil {
			logger.Error("failed to load config file", "path", config.ConfigFile, "err", err)
			os.Exit(1)
		}
	}

	if err := run(logger); err != nil {
		logger.Error("wedo failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case config.Reset:
		return resetDongle(logger)
	case config.List:
		return listWeDoHubs(logger)
	case config.Alligator:
		return runAlligator(ctx, logger)
	case config.Interactive:
		return runInteractive(ctx, cancel, logger)
	default:
		return scanAndReport(ctx, logger)
	}
}

func setupLogging(level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (use: debug, info, warn, error)", level)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger, nil
}

// loadConfigFile applies file values for settings the command line left at
// their defaults; explicit flags win.
func loadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if fc.Port != "" && !set["port"] {
		config.Port = fc.Port
	}
	if fc.Capture != "" && !set["capture"] {
		config.CaptureFile = fc.Capture
	}
	if fc.Announce && !set["announce"] {
		config.Announce = true
	}

	durations := []struct {
		value string
		name  string
		out   *time.Duration
	}{
		{fc.DiscoveryWindow, "window", &config.DiscoveryWindow},
		{fc.SettleDelay, "settle", &config.SettleDelay},
		{fc.ReadTimeout, "read-timeout", &config.ReadTimeout},
	}
	for _, d := range durations {
		if d.value == "" || set[d.name] {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("bad duration for %s: %w", d.name, err)
		}
		*d.out = parsed
	}
	return nil
}

// scanAndReport runs one SBrick discovery pass, prints the inventory and
// optionally announces it until interrupted.
func scanAndReport(ctx context.Context, logger *slog.Logger) error {
	hubs, err := scanOnce(ctx, logger)
	if err != nil {
		return err
	}

	if len(hubs) == 0 {
		fmt.Println("No SBrick hubs found.")
	}
	for _, h := range hubs {
		fmt.Println(h.String())
	}

	if config.Announce {
		adv := announce.NewAdvertiser(announce.Config{})
		if err := adv.Announce(hubs); err != nil {
			return fmt.Errorf("failed to announce inventory: %w", err)
		}
		defer adv.Stop()

		logger.Info("announcing inventory, interrupt to stop",
			"service", announce.ServiceType, "hubs", len(hubs))
		<-ctx.Done()
	}
	return nil
}

// scanOnce opens the dongle, runs one discovery pass and closes the dongle
// again.
func scanOnce(ctx context.Context, logger *slog.Logger) ([]hub.Hub, error) {
	port, err := serial.Open(config.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to open dongle port %s: %w", config.Port, err)
	}

	capture := blelog.Logger(blelog.NoopLogger{})
	if config.CaptureFile != "" {
		fileLogger, err := blelog.NewFileLogger(config.CaptureFile)
		if err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to open capture file: %w", err)
		}
		defer fileLogger.Close()
		capture = fileLogger
	}

	scanID := uuid.NewString()
	conn := bgapi.NewConn(port, bgapi.Config{
		Capture: capture,
		ScanID:  scanID,
		Log:     logger,
	})
	scanner := sbrick.New(conn, sbrick.Config{
		DiscoveryWindow: config.DiscoveryWindow,
		SettleDelay:     config.SettleDelay,
		ReadTimeout:     config.ReadTimeout,
		Capture:         capture,
		Log:             logger,
		ScanID:          scanID,
	})
	conn.SetHandlers(scanner.Handlers())

	// Canceling the context stops Run and closes the serial port.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := conn.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("dongle link failed", "err", err)
		}
	}()

	logger.Info("scanning for SBrick hubs", "port", config.Port, "scan_id", scanID)
	return scanner.Scan()
}

// resetDongle sends a system reset and exits.
func resetDongle(logger *slog.Logger) error {
	port, err := serial.Open(config.Port)
	if err != nil {
		return fmt.Errorf("failed to open dongle port %s: %w", config.Port, err)
	}
	defer port.Close()

	conn := bgapi.NewConn(port, bgapi.Config{Log: logger})
	if err := conn.SystemReset(0); err != nil {
		return fmt.Errorf("failed to reset dongle: %w", err)
	}

	// give the dongle a moment to drop off the bus before the port closes
	time.Sleep(time.Second)
	logger.Info("dongle reset")
	return nil
}

func listWeDoHubs(logger *slog.Logger) error {
	usb, err := wedo.OpenUSB(logger)
	if err != nil {
		return err
	}
	defer usb.Close()

	bricks := wedo.NewBricks(usb, logger)
	hubs, err := bricks.Read()
	if err != nil {
		return err
	}

	if len(hubs) == 0 {
		fmt.Println("No WeDo hubs found.")
	}
	for _, h := range hubs {
		fmt.Println(h.String())
	}
	return nil
}

func runAlligator(ctx context.Context, logger *slog.Logger) error {
	usb, err := wedo.OpenUSB(logger)
	if err != nil {
		return err
	}
	defer usb.Close()

	bricks := wedo.NewBricks(usb, logger)
	if err := bricks.Reset(); err != nil {
		return err
	}

	alligator := activities.NewAlligator(bricks, activities.AlligatorConfig{Log: logger})
	logger.Info("hungry alligator running, interrupt to stop")
	if err := alligator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runInteractive(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) error {
	ctrl := &controller{log: logger}
	defer ctrl.close()

	session, err := interactive.New(ctrl)
	if err != nil {
		return err
	}

	// Route log output through readline so it does not mangle the prompt.
	slog.SetDefault(slog.New(slog.NewTextHandler(session.Stdout(), nil)))

	session.Run(ctx, cancel)
	return nil
}

// controller wires the interactive session to the USB bricks and the BLE
// scanner. The USB layer opens lazily so the session works with no hub
// plugged in yet.
type controller struct {
	log *slog.Logger

	usb    *wedo.USB
	bricks *wedo.Bricks
}

func (c *controller) wedoBricks() (*wedo.Bricks, error) {
	if c.bricks != nil {
		return c.bricks, nil
	}
	usb, err := wedo.OpenUSB(c.log)
	if err != nil {
		return nil, err
	}
	c.usb = usb
	c.bricks = wedo.NewBricks(usb, c.log)
	return c.bricks, nil
}

func (c *controller) close() {
	if c.usb != nil {
		c.usb.Close()
	}
}

// ScanSBricks implements interactive.Controller.
func (c *controller) ScanSBricks(ctx context.Context) ([]hub.Hub, error) {
	return scanOnce(ctx, c.log)
}

// ListWeDo implements interactive.Controller.
func (c *controller) ListWeDo() ([]hub.Hub, error) {
	bricks, err := c.wedoBricks()
	if err != nil {
		return nil, err
	}
	return bricks.Read()
}

// Motor implements interactive.Controller.
func (c *controller) Motor(port byte, speed int8) error {
	bricks, err := c.wedoBricks()
	if err != nil {
		return err
	}
	switch port {
	case 'A':
		return bricks.MotorA(speed)
	case 'B':
		return bricks.MotorB(speed)
	default:
		return bricks.Motor(speed)
	}
}

// Light implements interactive.Controller.
func (c *controller) Light(port byte, intensity byte) error {
	bricks, err := c.wedoBricks()
	if err != nil {
		return err
	}
	switch port {
	case 'A':
		return bricks.LightA(intensity)
	case 'B':
		return bricks.LightB(intensity)
	default:
		return bricks.Light(intensity)
	}
}

// Reset implements interactive.Controller.
func (c *controller) Reset() error {
	bricks, err := c.wedoBricks()
	if err != nil {
		return err
	}
	return bricks.Reset()
}
