package ss7

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// RestartState is the router's MTP restart phase (§4.4).
type RestartState int

const (
	Disabled RestartState = iota
	Restarting1
	Restarting2
	Started
)

func (s RestartState) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Restarting1:
		return "restarting1"
	case Restarting2:
		return "restarting2"
	case Started:
		return "started"
	default:
		return "invalid"
	}
}

// NetworkStats are the per-network traffic counters supplemented from
// router.cpp's SS7Layer3::resetStats beyond the router-wide rx/tx/fwd
// triple spec.md §4.4 names (SPEC_FULL.md "Supplemented features" #3).
type NetworkStats struct {
	RxMSU    uint64
	TxMSU    uint64
	Restarts uint64
}

// RouterConfig holds the configuration parameters spec.md §6 names.
type RouterConfig struct {
	Transfer       bool // STP mode
	SendUPU        bool
	SendTFP        bool
	SendProhibited bool
	SendUnavail    bool
	StartTime      Millis // restart timer; 0 selects the mode default (10s SN / 60s STP)
	Isolation      Millis
	TestRoutes     Millis // route-test period; 0 disables
	TestRestricted bool
	Local          map[Family]PointCode
}

// defaultRouterConfig fills the zero-value defaults spec.md §4.4/§6 names.
func defaultRouterConfig(c RouterConfig) RouterConfig {
	if c.Local == nil {
		c.Local = make(map[Family]PointCode)
	}
	return c
}

// Router is the message-transfer core (C4): it attaches/detaches
// networks and user parts, routes outbound MSUs, dispatches inbound
// MSUs, and drives the MTP restart state machine. It exposes the same
// TransmitMSU/ReceivedMSU shape its neighbours do (§9's "recursive
// polymorphism": the abstraction a router and a user part/network share
// is transmit/receive, not a shared Go type), but does not implement the
// full Network or UserPart interfaces — a sub-router has no GetRoutePriority
// or Notify of its own to report, since it is not itself one of its
// parent's attached networks or user parts. Chaining two Routers would
// need a thin adapter satisfying Network/UserPart on the child's behalf;
// nothing in this module needs that adapter today.
//
// The source uses one recursive mutex per router; Go has no built-in
// recursive mutex, so this type uses a single plain sync.Mutex and is
// structured so that no method re-enters it while already held (every
// internal helper that needs the lock already held takes a "Locked"
// name and is only ever called with mu held). The invariant §5 actually
// requires — list mutation is atomic, callbacks never run under the lock
// — is preserved either way.
type Router struct {
	mu sync.Mutex

	networks  []Network
	userParts []UserPart
	changes   atomic.Uint64

	routes  map[Family]*RouteTable
	localPC map[Family]PointCode

	cfg RouterConfig

	state          RestartState
	restartTimer   *Timer
	isolationTimer *Timer
	routeTestTimer *Timer
	timers         *TimerQueue

	rxMsu, txMsu, fwdMsu uint64

	netStats map[string]*NetworkStats

	trace *Trace
}

// NewRouter creates a Router in the Disabled state.
func NewRouter(cfg RouterConfig, timers *TimerQueue, trace *Trace) *Router {
	cfg = defaultRouterConfig(cfg)
	r := &Router{
		routes:   map[Family]*RouteTable{ITU: NewRouteTable(), ANSI: NewRouteTable()},
		localPC:  make(map[Family]PointCode),
		cfg:      cfg,
		timers:   timers,
		netStats: make(map[string]*NetworkStats),
		trace:    trace,
	}
	for f, pc := range cfg.Local {
		r.localPC[f] = pc
	}
	return r
}

func (r *Router) bumpChanges() {
	r.changes.Add(1)
}

// restartTimeout returns the configured restart timer duration, or when
// the caller has not set one, the mode default: 60s for an STP, 10s for
// an SN (STP gets the longer default because it must wait for more
// neighbours to re-announce).
func (r *Router) restartTimeout() Millis {
	if r.cfg.StartTime > 0 {
		return r.cfg.StartTime
	}
	if r.cfg.Transfer {
		return 60000
	}
	return 10000
}

// --- attach/detach (§4.4) ---

// Attach adds network to the router's ordered network list, imports its
// advertised routes, and calls back network.Attach(r).
func (r *Router) Attach(network Network) {
	r.mu.Lock()
	r.networks = append(r.networks, network)
	r.bumpChanges()
	r.netStats[network.Name()] = &NetworkStats{}
	r.mu.Unlock()

	r.updateRoutes(network)
	network.Attach(r)
}

// Detach removes network from the router and its routes.
func (r *Router) Detach(network Network) {
	r.mu.Lock()
	for i, n := range r.networks {
		if n == network {
			r.networks = append(r.networks[:i], r.networks[i+1:]...)
			break
		}
	}
	r.bumpChanges()
	delete(r.netStats, network.Name())
	r.mu.Unlock()

	r.removeRoutes(network)
}

// AttachUserPart adds up to the router's ordered user-part list.
func (r *Router) AttachUserPart(up UserPart) {
	r.mu.Lock()
	r.userParts = append(r.userParts, up)
	r.bumpChanges()
	r.mu.Unlock()
}

// DetachUserPart removes up from the router's user-part list.
func (r *Router) DetachUserPart(up UserPart) {
	r.mu.Lock()
	for i, p := range r.userParts {
		if p == up {
			r.userParts = append(r.userParts[:i], r.userParts[i+1:]...)
			break
		}
	}
	r.bumpChanges()
	r.mu.Unlock()
}

// updateRoutes imports network's advertised routes for every family and
// destination it offers a priority for. Real route discovery in this
// module is operator/advertisement driven (§3), so this walks the
// network's own GetRoutes rather than any topology computation.
func (r *Router) updateRoutes(network Network) {
	for _, family := range []Family{ITU, ANSI} {
		for _, route := range network.GetRoutes(family) {
			r.routes[family].Attach(family, route.PackedDPC, network)
		}
	}
}

// removeRoutes detaches network from every route it participated in.
func (r *Router) removeRoutes(network Network) {
	for _, family := range []Family{ITU, ANSI} {
		r.routes[family].DetachNetwork(network)
	}
}

// SetLocalPC records the immutable local point code for a family (parsed
// from repeated `local=TYPE,PC` configuration entries, §4.4).
func (r *Router) SetLocalPC(family Family, pc PointCode) {
	r.mu.Lock()
	r.localPC[family] = pc
	r.mu.Unlock()
}

// LocalPC returns the configured local point code for family, or None.
func (r *Router) LocalPC(family Family) PointCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.localPC[family]
}

// isLocal reports whether pc matches this router's configured local PC
// for its family.
func (r *Router) isLocal(pc PointCode) bool {
	local := r.LocalPC(pc.Family)
	return !local.IsNone() && local.Packed == pc.Packed
}

// --- outbound path (§4.4) ---

func allowedStateSet(sif ServiceIndicator) func(RouteState) bool {
	switch sif {
	case SIManagement, SIMaintenance, SIMaintenanceSpecial:
		return func(RouteState) bool { return true } // AnyState
	default:
		return func(s RouteState) bool { return s != Prohibited } // NotProhibited
	}
}

// TransmitMSU is the router's outbound path: locate the route to
// label.DPC, check its state against the service-indicator-appropriate
// allowed-state set, and delegate to Route.TransmitMSU.
func (r *Router) TransmitMSU(msu MSU, label Label, sls int) int {
	return r.routeMSU(msu, label, nil, sls, allowedStateSet(msu.SIF))
}

// routeMSU is TransmitMSU's implementation, parameterized by an explicit
// allowed-state predicate and an optional source network to exclude
// (transit forwarding passes the inbound network here to prevent
// reflection, §4.3/§4.4).
func (r *Router) routeMSU(msu MSU, label Label, source Network, sls int, allowed func(RouteState) bool) int {
	rt := r.routes[label.Type]
	route := rt.Find(label.DPC.Packed)
	if route == nil {
		return -1
	}
	if !allowed(route.State()) {
		return -1
	}

	res := route.TransmitMSU(msu, label, sls, source)
	if res >= 0 {
		atomic.AddUint64(&r.txMsu, 1)
		if source != nil {
			atomic.AddUint64(&r.fwdMsu, 1)
		}
	}
	return res
}

// --- inbound path (§4.4) ---

// ReceivedMSU is the router's inbound path: dispatch to attached user
// parts in order, with the multi-value disposition escalation rules of
// §4.4, retrying the whole scan if the user-part list mutates mid-scan
// (the `changes` generation-counter retry loop, §5).
func (r *Router) ReceivedMSU(msu MSU, label Label, network Network, sls int) HandledMSU {
	atomic.AddUint64(&r.rxMsu, 1)
	r.mu.Lock()
	if st, ok := r.netStats[network.Name()]; ok {
		st.RxMSU++
	}
	r.mu.Unlock()

	var tentative HandledMSU
	haveTentative := false

rescan:
	before := r.changes.Load()
	r.mu.Lock()
	parts := make([]UserPart, len(r.userParts))
	copy(parts, r.userParts)
	r.mu.Unlock()

	for _, up := range parts {
		result := up.ReceivedMSU(msu, label, network, sls)

		if r.changes.Load() != before {
			goto rescan
		}

		switch result {
		case Accepted, Failure:
			return result
		case Rejected:
			continue
		case Unequipped, Inaccessible, NoAddress:
			tentative = result
			haveTentative = true
			continue
		}
	}

	if haveTentative {
		if r.cfg.SendUnavail {
			return tentative
		}
		return Failure
	}

	if r.isLocal(label.DPC) {
		if r.cfg.SendUnavail {
			return Unequipped
		}
		return Failure
	}

	if r.cfg.Transfer {
		res := r.routeMSU(msu, label, network, int(label.SLS), func(s RouteState) bool { return s != Prohibited })
		if res >= 0 {
			return Accepted
		}
		if r.cfg.SendProhibited {
			return NoAddress
		}
		return Failure
	}

	return Failure
}

// --- restart state machine (§4.4) ---

// Restart moves the router to Restarting1 regardless of its prior state
// and (re)arms the restart timer.
func (r *Router) Restart(now Millis) {
	r.mu.Lock()
	r.state = Restarting1
	r.mu.Unlock()

	if r.restartTimer == nil {
		r.restartTimer = &Timer{}
	}
	r.restartTimer.Interval = r.restartTimeout()
	r.timers.Schedule(r.restartTimer, now)
	r.trace.Logf("restart", "router entering restarting1, timeout=%dms", r.restartTimer.Interval)
}

// Disable moves the router to Disabled and stops every timer.
func (r *Router) Disable() {
	r.mu.Lock()
	r.state = Disabled
	r.mu.Unlock()
	if r.restartTimer != nil {
		r.timers.Cancel(r.restartTimer)
	}
	if r.isolationTimer != nil {
		r.timers.Cancel(r.isolationTimer)
	}
	if r.routeTestTimer != nil {
		r.timers.Cancel(r.routeTestTimer)
	}
	r.trace.Logf("restart", "router disabled")
}

// State returns the router's current restart phase.
func (r *Router) State() RestartState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// restartPhase2Deadline is how much time must remain on the restart timer
// before an STP router escalates from Restarting1 to Restarting2 (§4.4:
// "if transfer and the timer has 5s remaining").
const restartPhase2Deadline Millis = 5000

// TimerTick drains the router's own timers (restart/isolation/route-test)
// plus the generic timer queue, and should be called periodically by the
// host from wherever it already drives a scheduling loop (§4.6, §5).
func (r *Router) TimerTick(now Millis, management *ManagementEntity) {
	r.timers.Tick(now, func(t *Timer) {
		switch t {
		case r.restartTimer:
			r.onRestartTimer(now)
		case r.isolationTimer:
			r.onIsolationTimer()
		case r.routeTestTimer:
			r.runRouteTests(management)
		}
	})

	if management != nil {
		management.Tick(now)
	}

	if r.State() == Restarting1 && r.cfg.Transfer && r.restartTimer != nil &&
		r.restartTimer.Running() && r.restartTimer.Expiry()-now <= restartPhase2Deadline {
		r.mu.Lock()
		r.state = Restarting2
		r.mu.Unlock()
		r.advertiseAll(management, func(s RouteState) bool { return s == Prohibited })
	}
}

func (r *Router) onRestartTimer(now Millis) {
	r.mu.Lock()
	r.state = Started
	r.mu.Unlock()

	r.mu.Lock()
	nets := make([]Network, len(r.networks))
	copy(nets, r.networks)
	r.mu.Unlock()
	for _, n := range nets {
		if !n.Operational(AnySLS) {
			continue
		}
		for _, family := range []Family{ITU, ANSI} {
			local := r.LocalPC(family)
			if local.IsNone() {
				continue
			}
			label := Label{Type: family, OPC: local, DPC: local, SLS: 0}
			n.TransmitMSU(NewMSU(SIManagement, 0, label, BuildCodeOnly(TRA)), label, 0)
		}
	}

	r.mu.Lock()
	parts := make([]UserPart, len(r.userParts))
	copy(parts, r.userParts)
	r.mu.Unlock()
	for _, up := range parts {
		up.Notify(nil, -1)
	}

	if r.cfg.TestRoutes > 0 {
		if r.routeTestTimer == nil {
			r.routeTestTimer = &Timer{Interval: r.cfg.TestRoutes, Period: true}
		}
		// Stagger the first burst so routers restarting in lockstep don't
		// all fire their route tests on the same tick; the timer's own
		// Interval drives every fire after this one.
		offset := r.timers.JitterMillis(r.cfg.TestRoutes)
		r.timers.Schedule(r.routeTestTimer, now+offset-r.cfg.TestRoutes)
	}

	r.checkRoutes(now)
	r.trace.Logf("restart", "router started")
}

// checkRoutes demotes any route with no operational network to Prohibited
// and, if no route has any operational network left, starts the
// isolation timer (§4.4).
func (r *Router) checkRoutes(now Millis) {
	anyOperational := false
	for _, family := range []Family{ITU, ANSI} {
		for _, route := range r.routes[family].Routes() {
			if !route.Operational(AnySLS) {
				route.SetState(Prohibited)
			} else {
				anyOperational = true
			}
		}
	}

	if anyOperational {
		if r.isolationTimer != nil {
			r.timers.Cancel(r.isolationTimer)
		}
		return
	}
	if r.cfg.Isolation <= 0 {
		return
	}
	if r.isolationTimer == nil {
		r.isolationTimer = &Timer{Interval: r.cfg.Isolation}
	}
	if !r.isolationTimer.Running() {
		r.timers.Schedule(r.isolationTimer, now)
		r.isolate()
	}
}

// NetworkNotify is the upward half of §2's control flow ("each network ...
// raises notify(sls) upward to C4 on link state change"): an attached
// Network calls this whenever its own operational state changes.
// Mirrors router.cpp's SS7Router::notify — a disabled router auto-restarts
// on the first link coming up, checkRoutes re-evaluates isolation either
// way (cancelling the isolation timer once any route has an operational
// network again), and the notification is passed down to every attached
// user part.
func (r *Router) NetworkNotify(network Network, sls int, now Millis) {
	if network.Operational(sls) && r.State() == Disabled {
		r.Restart(now)
	}
	r.checkRoutes(now)

	r.mu.Lock()
	parts := make([]UserPart, len(r.userParts))
	copy(parts, r.userParts)
	r.mu.Unlock()
	for _, up := range parts {
		up.Notify(network, sls)
	}
}

// isolate sends an emergency resume to every attached network, forcing
// links back up while the isolation timer is still running (§4.4, §5).
// No network is excluded, including one whose notification triggered the
// check.
func (r *Router) isolate() {
	r.mu.Lock()
	nets := make([]Network, len(r.networks))
	copy(nets, r.networks)
	r.mu.Unlock()
	for _, n := range nets {
		n.Inhibit(AnySLS, 0, InhibitRemote|InhibitLocal|InhibitChangeover)
	}
	r.trace.Logf("isolation", "emergency resume sent to %d networks", len(nets))
}

func (r *Router) onIsolationTimer() {
	r.mu.Lock()
	r.state = Disabled
	r.mu.Unlock()
	r.trace.Logf("isolation", "isolation timer expired, router shut down")
}

func (r *Router) runRouteTests(management *ManagementEntity) {
	if management == nil {
		return
	}
	for _, family := range []Family{ITU, ANSI} {
		for _, route := range r.routes[family].Routes() {
			state := route.State()
			test := state == Prohibited || (r.cfg.TestRestricted && state == Restricted)
			if !test {
				continue
			}
			code := RST
			if state == Restricted {
				code = RSR
			}
			management.SendRouteTest(family, route.PackedDPC, code)
		}
	}
}

// --- route-state updates and advertisement (§4.4) ---

// SetRouteSpecificState updates the sub-state the adjacent srcNetwork
// reported for the route to packedDPC and, if the aggregate state
// changed, advertises the change (routeChanged).
func (r *Router) SetRouteSpecificState(family Family, packedDPC uint32, srcNetwork Network, state RouteState, management *ManagementEntity) {
	route := r.routes[family].Find(packedDPC)
	if route == nil {
		return
	}
	changed, old, cur := route.setSpecificState(srcNetwork, state)
	if changed {
		r.routeChanged(family, route, old, cur, management)
	}
}

// ForceRouteState overwrites a route's aggregate state directly, bypassing
// the per-network sub-state aggregation SetRouteSpecificState performs —
// the operator-driven "just set it" commands of §6 (prohibit/restrict/
// allow/congest), as opposed to a state change derived from a specific
// neighbor's advertisement.
func (r *Router) ForceRouteState(family Family, packedDPC uint32, state RouteState, management *ManagementEntity) {
	route := r.routes[family].Find(packedDPC)
	if route == nil {
		return
	}
	old := route.State()
	if old == state {
		return
	}
	route.SetState(state)
	r.routeChanged(family, route, old, state, management)
}

// routeChanged advertises a route's new state to adjacent nodes of the
// same family, split-horizon (skipping any network the changed route
// itself traverses), subject to the restart-phase gating §4.4 describes.
func (r *Router) routeChanged(family Family, changed *Route, old, cur RouteState, management *ManagementEntity) {
	if management == nil {
		return
	}
	st := r.State()
	if !(r.cfg.Transfer && (st == Started || st == Restarting2)) {
		return
	}
	if cur == Unknown {
		return
	}
	if st == Restarting2 && cur != Prohibited {
		return
	}

	code, _ := StateCode(cur)
	changedNets := changed.Networks()

	for _, route := range r.routes[family].Routes() {
		if route == changed {
			continue
		}
		for _, adjacentNet := range route.Networks() {
			if networkTraverses(changedNets, adjacentNet) {
				continue
			}
			if !adjacentNet.Operational(AnySLS) {
				continue
			}
			management.SendTFx(family, code, PointCode{Family: family, Packed: changed.PackedDPC}, adjacentNet)
		}
	}
}

func networkTraverses(nets []Network, n Network) bool {
	for _, x := range nets {
		if x == n {
			return true
		}
	}
	return false
}

// advertiseAll sends the given advertisement for every route whose state
// passes the filter, to every operational network on every other route of
// the same family, skipping any network the advertised route itself
// traverses (used for the restart-phase full advertisement, §4.4).
func (r *Router) advertiseAll(management *ManagementEntity, filter func(RouteState) bool) {
	if management == nil {
		return
	}
	for _, family := range []Family{ITU, ANSI} {
		routes := r.routes[family].Routes()
		for _, route := range routes {
			state := route.State()
			if !filter(state) {
				continue
			}
			code, _ := StateCode(state)
			routeNets := route.Networks()
			for _, other := range routes {
				if other == route {
					continue
				}
				for _, net := range other.Networks() {
					if networkTraverses(routeNets, net) || !net.Operational(AnySLS) {
						continue
					}
					management.SendTFx(family, code, PointCode{Family: family, Packed: route.PackedDPC}, net)
				}
			}
		}
	}
}

// --- inhibit/uninhibit/sequence/recover delegation (§4.4) ---

// firstNonAdjacentNetwork returns the first network (in ascending
// priority order) attached to the route for packedDPC whose priority is
// not zero, per §4.4's "delegate to the first non-zero-priority network".
func (r *Router) firstNonAdjacentNetwork(family Family, packedDPC uint32) Network {
	route := r.routes[family].Find(packedDPC)
	if route == nil {
		return nil
	}
	route.mu.Lock()
	defer route.mu.Unlock()
	for _, rn := range route.nets {
		if rn.priority != 0 {
			return rn.network
		}
	}
	return nil
}

// Inhibit delegates to the first non-zero-priority network for dpc.
func (r *Router) Inhibit(family Family, packedDPC uint32, sls int, set, clr InhibitMask) bool {
	n := r.firstNonAdjacentNetwork(family, packedDPC)
	if n == nil {
		return false
	}
	return n.Inhibit(sls, set, clr)
}

// Sequence delegates to the first non-zero-priority network for dpc.
func (r *Router) Sequence(family Family, packedDPC uint32, sls int) int32 {
	n := r.firstNonAdjacentNetwork(family, packedDPC)
	if n == nil {
		return -1
	}
	return n.GetSequence(sls)
}

// Recover delegates to the first non-zero-priority network for dpc.
func (r *Router) Recover(family Family, packedDPC uint32, sls int, seq int32) {
	if n := r.firstNonAdjacentNetwork(family, packedDPC); n != nil {
		n.RecoverMSU(sls, seq)
	}
}

// --- UPU rebroadcast (§4.5) ---

// HandleReceivedUPU re-broadcasts a User Part Unavailable notification to
// every attached user part, per §4.5's "the router re-broadcasts to all
// user parts".
func (r *Router) HandleReceivedUPU(family Family, node PointCode, part, cause byte, label Label, sls int) {
	r.mu.Lock()
	parts := make([]UserPart, len(r.userParts))
	copy(parts, r.userParts)
	r.mu.Unlock()
	for _, up := range parts {
		up.ReceivedUPU(family, node, part, cause, label, sls)
	}
}

// --- counters and introspection (supplemented features) ---

// Counters returns the router-wide rx/tx/fwd MSU counters (§4.4).
func (r *Router) Counters() (rx, tx, fwd uint64) {
	return atomic.LoadUint64(&r.rxMsu), atomic.LoadUint64(&r.txMsu), atomic.LoadUint64(&r.fwdMsu)
}

// NetworkStats returns a snapshot of the per-network traffic counters for
// name (SUPPLEMENTED FEATURES #3), or false if no such network is
// attached.
func (r *Router) NetworkStats(name string) (NetworkStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.netStats[name]
	if !ok {
		return NetworkStats{}, false
	}
	return *st, true
}

// DumpRoutes renders every route in every family as a RouteStatus
// snapshot, for offline/debug inspection only (SUPPLEMENTED FEATURES #1,
// grounded on router.cpp's printroutes/status diagnostic).
func (r *Router) DumpRoutes() []RouteStatus {
	var out []RouteStatus
	for _, family := range []Family{ITU, ANSI} {
		for _, route := range r.routes[family].Routes() {
			nets := route.Networks()
			names := make([]string, len(nets))
			for i, n := range nets {
				names[i] = n.Name()
			}
			out = append(out, RouteStatus{Family: family, PackedDPC: route.PackedDPC, State: route.State(), Networks: names})
		}
	}
	return out
}

// Name returns a diagnostic identifier for this router instance.
func (r *Router) Name() string {
	return fmt.Sprintf("router@%p", r)
}
