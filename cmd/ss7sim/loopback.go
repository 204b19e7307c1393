package main

import (
	"fmt"

	ss7 "github.com/iti/ss7net"
)

// loopbackNetwork is a minimal, fully in-process ss7.Network: it hands any
// transmitted MSU straight to the Router's own ReceivedMSU (as if a peer
// had echoed it back over a real link), so a demo can exercise the
// transmit/receive round trip without sockets. Grounded on iti/mrnes's
// habit of keeping a runnable example's I/O layer as small as possible
// while the library does the real work (net.go's endptDev wraps a real
// channel; this wraps none).
type loopbackNetwork struct {
	name      string
	local     map[ss7.Family]ss7.PointCode
	ni        byte
	operState bool
	inhibited ss7.InhibitMask
	seq       map[int]int32
	router    *ss7.Router
	routes    []*ss7.Route
	now       ss7.Millis
}

// SetNow records the driver's current clock, used as the timestamp for any
// NetworkNotify call this network raises between ticks.
func (n *loopbackNetwork) SetNow(now ss7.Millis) { n.now = now }

// SetOperational flips the link up/down and raises notify(sls) upward to
// the attached router (§2's control flow), the way a real link driver
// would on carrier loss/recovery.
func (n *loopbackNetwork) SetOperational(oper bool) {
	if n.operState == oper {
		return
	}
	n.operState = oper
	if n.router != nil {
		n.router.NetworkNotify(n, ss7.AnySLS, n.now)
	}
}

func newLoopbackNetwork(name string, local map[ss7.Family]ss7.PointCode) *loopbackNetwork {
	return &loopbackNetwork{
		name:      name,
		local:     local,
		ni:        0,
		operState: true,
		seq:       make(map[int]int32),
	}
}

// addRoute advertises a reachable destination over this network, priority
// 0 (direct adjacent link), so Router.updateRoutes picks it up on Attach.
func (n *loopbackNetwork) addRoute(family ss7.Family, packedDPC uint32) {
	route := ss7.NewRoute(family, packedDPC)
	n.routes = append(n.routes, route)
	route.Attach(n)
}

func (n *loopbackNetwork) Name() string { return n.name }

func (n *loopbackNetwork) Operational(sls int) bool {
	return n.operState && n.inhibited == 0
}

func (n *loopbackNetwork) GetLocal(family ss7.Family) ss7.PointCode { return n.local[family] }

func (n *loopbackNetwork) GetNI(family ss7.Family, def byte) byte { return n.ni }

func (n *loopbackNetwork) GetRoutePriority(family ss7.Family, packedDPC uint32) uint32 {
	if n.FindRoute(family, packedDPC) != nil {
		return 0
	}
	return ss7.NoRoutePriority
}

func (n *loopbackNetwork) FindRoute(family ss7.Family, packedDPC uint32) *ss7.Route {
	for _, r := range n.routes {
		if r.Family == family && r.PackedDPC == packedDPC {
			return r
		}
	}
	return nil
}

func (n *loopbackNetwork) TransmitMSU(msu ss7.MSU, label ss7.Label, sls int) int {
	if !n.Operational(sls) {
		return -1
	}
	n.seq[sls] = n.seq[sls] + 1
	if n.router == nil {
		return -1
	}
	result := n.router.ReceivedMSU(msu, label, n, sls)
	fmt.Printf("[%s] loopback delivered sls=%d sif=%v -> %v\n", n.name, sls, msu.SIF, result)
	return 0
}

func (n *loopbackNetwork) Inhibit(sls int, set, clr ss7.InhibitMask) bool {
	before := n.inhibited
	n.inhibited = (n.inhibited &^ clr) | set
	if n.inhibited != before && n.router != nil {
		n.router.NetworkNotify(n, sls, n.now)
	}
	return true
}

func (n *loopbackNetwork) Inhibited(sls int, mask ss7.InhibitMask) bool {
	return n.inhibited&mask != 0
}

func (n *loopbackNetwork) GetSequence(sls int) int32 {
	if v, ok := n.seq[sls]; ok {
		return v
	}
	return 0
}

func (n *loopbackNetwork) RecoverMSU(sls int, seq int32) {}

func (n *loopbackNetwork) Attach(r *ss7.Router) { n.router = r }

func (n *loopbackNetwork) GetRoutes(family ss7.Family) []*ss7.Route {
	return n.routes
}
