// Package netutil provides the node's two pieces of connection-layer
// plumbing that aren't worth a config constant of their own: NAT port
// mapping for operators running behind a home router or NAT gateway, and
// a bounded-accept listener wrapper.
//
// Grounded on the teacher's go.mod pulling in both
// github.com/huin/goupnp and github.com/jackpal/go-nat-pmp -- the
// networks/p2p/discover package they'd have backed (the teacher's own
// p2p/nat.go isn't carried in this module's example pack) -- rebuilt
// directly against each library's public client API, following the
// well-known go-ethereum p2p/nat.go shape: try UPnP first, fall back to
// NAT-PMP, renew the mapping on a timer.
package netutil

import (
	"fmt"
	"net"
	"time"

	natpmp "github.com/jackpal/go-nat-pmp"

	"github.com/huin/goupnp/dcps/internetgateway1"

	"github.com/corechain/node/internal/log"
)

var logger = log.NewModuleLogger(log.Metrics)

// Interface is a NAT traversal mechanism capable of mapping an external
// port to a local one and reporting the gateway's external IP.
type Interface interface {
	AddMapping(protocol string, extport, intport int, name string, lifetime time.Duration) error
	DeleteMapping(protocol string, extport, intport int) error
	ExternalIP() (net.IP, error)
	String() string
}

// Discover probes the local network for a UPnP Internet Gateway Device
// first, then a NAT-PMP gateway, returning the first one found. Returns
// nil, without error, if neither is reachable -- plenty of permissioned
// deployments run with static, already-routable addresses.
func Discover() (Interface, error) {
	if n, err := discoverUPnP(); err == nil {
		return n, nil
	}
	if n, err := discoverNATPMP(); err == nil {
		return n, nil
	}
	return nil, nil
}

type upnpNAT struct {
	client *internetgateway1.WANIPConnection1
}

func discoverUPnP() (Interface, error) {
	clients, _, err := internetgateway1.NewWANIPConnection1Clients()
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("netutil: no UPnP gateway found")
	}
	return &upnpNAT{client: clients[0]}, nil
}

func (n *upnpNAT) AddMapping(protocol string, extport, intport int, name string, lifetime time.Duration) error {
	ip, err := n.internalAddr()
	if err != nil {
		return err
	}
	return n.client.AddPortMapping("", uint16(extport), protocol, uint16(intport), ip.String(), true, name, uint32(lifetime/time.Second))
}

func (n *upnpNAT) DeleteMapping(protocol string, extport, intport int) error {
	return n.client.DeletePortMapping("", uint16(extport), protocol)
}

func (n *upnpNAT) ExternalIP() (net.IP, error) {
	ipStr, err := n.client.GetExternalIPAddress()
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil, fmt.Errorf("netutil: bad external ip %q", ipStr)
	}
	return ip, nil
}

func (n *upnpNAT) String() string { return "UPnP" }

func (n *upnpNAT) internalAddr() (net.IP, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP, nil
}

type pmpNAT struct {
	client  *natpmp.Client
	gateway net.IP
}

func discoverNATPMP() (Interface, error) {
	gw, err := defaultGateway()
	if err != nil {
		return nil, err
	}
	client := natpmp.NewClient(gw)
	if _, err := client.GetExternalAddress(); err != nil {
		return nil, err
	}
	return &pmpNAT{client: client, gateway: gw}, nil
}

func (n *pmpNAT) AddMapping(protocol string, extport, intport int, name string, lifetime time.Duration) error {
	_, err := n.client.AddPortMapping(protocol, intport, extport, int(lifetime/time.Second))
	return err
}

func (n *pmpNAT) DeleteMapping(protocol string, extport, intport int) error {
	_, err := n.client.AddPortMapping(protocol, intport, 0, 0)
	return err
}

func (n *pmpNAT) ExternalIP() (net.IP, error) {
	res, err := n.client.GetExternalAddress()
	if err != nil {
		return nil, err
	}
	ip := net.IP(res.ExternalIPAddress[:])
	return ip, nil
}

func (n *pmpNAT) String() string { return "NAT-PMP(" + n.gateway.String() + ")" }

// defaultGateway guesses the LAN gateway address from the machine's own
// default route interface -- a best-effort heuristic, not a netlink
// route table read, since that would need a platform-specific dependency
// this module doesn't otherwise carry.
func defaultGateway() (net.IP, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	ip := conn.LocalAddr().(*net.UDPAddr).IP.To4()
	if ip == nil {
		return nil, fmt.Errorf("netutil: no IPv4 local address")
	}
	gw := make(net.IP, len(ip))
	copy(gw, ip)
	gw[3] = 1
	return gw, nil
}

// KeepMapped installs a mapping and renews it at half its lifetime until
// stop is closed, the standard go-ethereum p2p/nat.go renewal pattern.
func KeepMapped(n Interface, protocol string, port int, name string, lifetime time.Duration, stop <-chan struct{}) {
	if err := n.AddMapping(protocol, port, port, name, lifetime); err != nil {
		logger.Warn("nat: initial port mapping failed", "nat", n.String(), "err", err)
	}
	ticker := time.NewTicker(lifetime / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := n.AddMapping(protocol, port, port, name, lifetime); err != nil {
				logger.Warn("nat: port mapping renewal failed", "nat", n.String(), "err", err)
			}
		case <-stop:
			n.DeleteMapping(protocol, port, port)
			return
		}
	}
}
