package announce

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/wedo-robotics/wedo-go/pkg/hub"
)

// Service identity of the inventory announcement.
const (
	// ServiceType is the mDNS service type.
	ServiceType = "_wedo._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is advertised when the config names none. The service
	// carries its payload in TXT records; the port exists to satisfy the
	// SRV record.
	DefaultPort = 5354

	// MaxInstanceNameLen caps the service instance name per DNS-SD.
	MaxInstanceNameLen = 63
)

// Config configures an Advertiser.
type Config struct {
	// Instance is the service instance name. Empty means "wedo-<hostname>".
	Instance string

	// Port is the advertised SRV port. Zero means DefaultPort.
	Port int

	// Interface restricts advertising to one network interface by name.
	// Empty means all interfaces.
	Interface string

	// TTL overrides the record time-to-live. Zero keeps the library
	// default.
	TTL time.Duration
}

// Advertiser publishes the hub inventory as one mDNS service.
type Advertiser struct {
	config Config

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser; nothing is published until Announce.
func NewAdvertiser(config Config) *Advertiser {
	return &Advertiser{config: config}
}

// getInterfaces returns the network interfaces to advertise on. Nil means
// all interfaces.
func (a *Advertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// instanceName returns the configured or derived service instance name,
// capped to the DNS-SD limit.
func (a *Advertiser) instanceName() string {
	name := a.config.Instance
	if name == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "dongle"
		}
		name = "wedo-" + strings.ToLower(host)
	}
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// Announce publishes the inventory, replacing any earlier announcement.
func (a *Advertiser) Announce(hubs []hub.Hub) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	txtStrings := TXTRecordsToStrings(EncodeInventoryTXT(hubs))

	port := a.config.Port
	if port == 0 {
		port = DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		a.instanceName(),
		ServiceType,
		Domain,
		port,
		txtStrings,
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register inventory service: %w", err)
	}

	a.server = server
	return nil
}

// Update replaces the TXT records of a running announcement without
// re-registering the service.
func (a *Advertiser) Update(hubs []hub.Hub) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return fmt.Errorf("no announcement active")
	}
	a.server.SetText(TXTRecordsToStrings(EncodeInventoryTXT(hubs)))
	return nil
}

// Stop withdraws the announcement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
