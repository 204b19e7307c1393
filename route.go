package ss7

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slices"
)

// RouteState is the reachability state of a Route, lattice-ordered
// Prohibited < Unknown < Restricted < Congestion < Allowed (§3). It is a
// tagged sum type, not an overloaded integer range (§9): the ordering is
// the only arithmetic ever done on it, via Max.
type RouteState int

const (
	Prohibited RouteState = iota
	Unknown
	Restricted
	Congestion
	Allowed
)

func (s RouteState) String() string {
	switch s {
	case Prohibited:
		return "prohibited"
	case Unknown:
		return "unknown"
	case Restricted:
		return "restricted"
	case Congestion:
		return "congestion"
	case Allowed:
		return "allowed"
	default:
		return "invalid"
	}
}

// MaxState returns the greater of a and b in the lattice order.
func MaxState(a, b RouteState) RouteState {
	if a > b {
		return a
	}
	return b
}

// routeNetwork is one entry in a Route's ordered network list: the network
// itself (a weak back-reference, §9), its advertised priority, and the
// sub-state most recently reported by that specific adjacent network
// (§4.4's setRouteSpecificState).
type routeNetwork struct {
	network  Network
	priority uint32
	subState RouteState
}

// Route holds the reachability state and ordered network list for one
// destination point code. Every Route carries its own lock (§5's
// fine-grained per-route mutex) so that transmit selection never blocks
// on unrelated destinations.
type Route struct {
	mu sync.Mutex

	Family    Family
	PackedDPC uint32
	Shift     uint

	state RouteState
	nets  []routeNetwork
}

// NewRoute creates an empty route for the given family/destination. The
// caller must Attach at least one network before the route is usable;
// spec.md §3's invariant ("a route contains at least one network at all
// times") is enforced by the owning RouteTable, which deletes a Route the
// moment its last network detaches.
func NewRoute(family Family, packedDPC uint32) *Route {
	return &Route{Family: family, PackedDPC: packedDPC, state: Unknown}
}

// State returns the route's current aggregate reachability state.
func (r *Route) State() RouteState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetState overwrites the route's aggregate state directly (used by
// Router.checkRoutes and Router.ForceRouteState).
func (r *Route) SetState(s RouteState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Attach inserts network into the route's ordered list at its advertised
// priority, replacing any prior entry for the same network (§4.3). It
// returns false if the network reports no route to this destination
// (NoRoutePriority), in which case the route is left unchanged.
func (r *Route) Attach(network Network) bool {
	priority := network.GetRoutePriority(r.Family, r.PackedDPC)
	if priority == NoRoutePriority {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(network)

	idx := len(r.nets)
	for i, rn := range r.nets {
		if priority < rn.priority {
			idx = i
			break
		}
	}
	entry := routeNetwork{network: network, priority: priority, subState: Unknown}
	r.nets = slices.Insert(r.nets, idx, entry)
	return true
}

// Detach removes network from the route. It returns whether any network
// remains — the caller (the RouteTable) deletes the route from its map
// once this returns false.
func (r *Route) Detach(network Network) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(network)
	return len(r.nets) > 0
}

func (r *Route) removeLocked(network Network) {
	for i, rn := range r.nets {
		if rn.network == network {
			r.nets = slices.Delete(r.nets, i, i+1)
			return
		}
	}
}

// HasNetwork reports whether network is attached to this route.
func (r *Route) HasNetwork(network Network) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rn := range r.nets {
		if rn.network == network {
			return true
		}
	}
	return false
}

// Networks returns a snapshot copy of the route's attached networks in
// priority order.
func (r *Route) Networks() []Network {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Network, len(r.nets))
	for i, rn := range r.nets {
		out[i] = rn.network
	}
	return out
}

// Operational reports whether at least one attached network is
// operational for sls (§4.3).
func (r *Route) Operational(sls int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rn := range r.nets {
		if rn.network.Operational(sls) {
			return true
		}
	}
	return false
}

// TransmitMSU attempts delivery through the route's attached networks in
// priority order, starting at index (sls>>Shift) mod N to spread load
// across equal-priority networks (§4.3, §8's "Transmit selection"
// property), skipping source to prevent reflecting traffic back the way
// it came. It returns the first non-negative result from a network's own
// TransmitMSU, or -1 if none accepted it.
func (r *Route) TransmitMSU(msu MSU, label Label, sls int, source Network) int {
	r.mu.Lock()
	nets := make([]Network, len(r.nets))
	for i, rn := range r.nets {
		nets[i] = rn.network
	}
	r.mu.Unlock()

	n := len(nets)
	if n == 0 {
		return -1
	}
	start := (sls >> r.Shift) % n
	for i := 0; i < n; i++ {
		net := nets[(start+i)%n]
		if net == source {
			continue
		}
		res := net.TransmitMSU(msu, label, sls)
		if res >= 0 {
			return res
		}
	}
	return -1
}

// setSpecificState updates the sub-state recorded for srcNetwork (the
// network that raised the notification, whatever its priority) and
// recomputes the route's aggregate state as the maximum
// sub-state among currently-operational networks (§4.4). It returns
// whether the aggregate state changed.
func (r *Route) setSpecificState(srcNetwork Network, newState RouteState) (changed bool, old, cur RouteState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old = r.state
	found := false
	for i := range r.nets {
		if r.nets[i].network == srcNetwork {
			r.nets[i].subState = newState
			found = true
			break
		}
	}
	if !found {
		return false, old, old
	}

	agg := Prohibited
	any := false
	for _, rn := range r.nets {
		if !rn.network.Operational(AnySLS) {
			continue
		}
		any = true
		agg = MaxState(agg, rn.subState)
	}
	if !any {
		agg = Prohibited
	}
	r.state = agg
	return agg != old, old, agg
}

// RouteTable is the per-family ordered map from packed DPC to Route (§3).
// It is guarded by a single non-recursive mutex per family, per §5;
// individual Route locks below it protect per-destination network lists.
type RouteTable struct {
	mu    sync.RWMutex
	byDPC map[uint32]*Route
}

// NewRouteTable creates an empty route table for one point code family.
func NewRouteTable() *RouteTable {
	return &RouteTable{byDPC: make(map[uint32]*Route)}
}

// Attach adds network to the route for (family, packedDPC), creating the
// route if it does not yet exist. It returns false (and creates nothing)
// if the network reports no route to that destination.
func (rt *RouteTable) Attach(family Family, packedDPC uint32, network Network) bool {
	rt.mu.Lock()
	route, ok := rt.byDPC[packedDPC]
	if !ok {
		route = NewRoute(family, packedDPC)
	}
	rt.mu.Unlock()

	if !route.Attach(network) {
		return false
	}

	rt.mu.Lock()
	rt.byDPC[packedDPC] = route
	rt.mu.Unlock()
	return true
}

// Detach removes network from the route for packedDPC, deleting the route
// entirely once its last network is gone (§3's invariant).
func (rt *RouteTable) Detach(packedDPC uint32, network Network) {
	rt.mu.RLock()
	route, ok := rt.byDPC[packedDPC]
	rt.mu.RUnlock()
	if !ok {
		return
	}
	if !route.Detach(network) {
		rt.mu.Lock()
		delete(rt.byDPC, packedDPC)
		rt.mu.Unlock()
	}
}

// DetachNetwork removes network from every route in the table, deleting
// routes that end up with no networks left.
func (rt *RouteTable) DetachNetwork(network Network) {
	rt.mu.RLock()
	dpcs := make([]uint32, 0, len(rt.byDPC))
	for dpc := range rt.byDPC {
		dpcs = append(dpcs, dpc)
	}
	rt.mu.RUnlock()
	for _, dpc := range dpcs {
		rt.Detach(dpc, network)
	}
}

// Find looks up the route to packedDPC, if any.
func (rt *RouteTable) Find(packedDPC uint32) *Route {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.byDPC[packedDPC]
}

// Routes returns every route in the table, sorted by ascending packed DPC
// (§3's "iteration order defines advertisement order and route-test
// order").
func (rt *RouteTable) Routes() []*Route {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	dpcs := make([]uint32, 0, len(rt.byDPC))
	for dpc := range rt.byDPC {
		dpcs = append(dpcs, dpc)
	}
	slices.Sort(dpcs)
	out := make([]*Route, len(dpcs))
	for i, dpc := range dpcs {
		out[i] = rt.byDPC[dpc]
	}
	return out
}

// RouteStatus is a point-in-time snapshot of one route, used by the
// supplemented Router.DumpRoutes introspection (SPEC_FULL.md,
// "Supplemented features" #1).
type RouteStatus struct {
	Family    Family
	PackedDPC uint32
	State     RouteState
	Networks  []string
}

func (rs RouteStatus) String() string {
	return fmt.Sprintf("%s %s state=%s networks=%v", rs.Family, PointCode{Family: rs.Family, Packed: rs.PackedDPC}, rs.State, rs.Networks)
}
