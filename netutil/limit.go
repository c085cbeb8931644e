package netutil

import (
	"net"

	xnetutil "golang.org/x/net/netutil"
)

// LimitListener caps concurrent accepted-but-not-yet-closed connections
// at n, the enforcement point for spec.md §6.2's PendingConnectionCap --
// a permissioned node must not let an unbounded pile of half-handshaked
// connections exhaust file descriptors before each one even reaches the
// session handshake. The per-tier peer caps in config.PeerCaps are not
// enforced, here or in package session.
func LimitListener(l net.Listener, n int) net.Listener {
	return xnetutil.LimitListener(l, n)
}
