package ss7

import (
	"fmt"
	"sync/atomic"
)

// changeoverRetryLimit caps how many times an ECO/ECA changeover
// acknowledgment may be postponed (§4.5's "postpone the acknowledgment"
// path) before the entity gives up and leaves the link marked Inactive
// unconditionally (SUPPLEMENTED FEATURES #4).
const changeoverRetryLimit = 2

// changeoverPostponeMillis is how long an acknowledgment is postponed
// while message buffers are still draining (§4.5).
const changeoverPostponeMillis Millis = 200

// ManagementEntity is the SNM management entity (C5): it parses inbound
// management-plane MSUs, drives the router's route-state table from
// TFx advertisements, answers RST/RSR route tests, runs the changeover/changeback handshake,
// answers LIN/LUN/SLTM peer requests, and issues route tests. It
// implements UserPart so the router dispatches SNM traffic to it exactly
// like any other user part (§4.5, §9).
type ManagementEntity struct {
	router  *Router
	pending *PendingTable
	timers  *TimerQueue
	trace   *Trace

	// clock is the last "now" this entity has seen from the host's
	// polling loop (via Tick). Message-triggered handlers that need a
	// deadline but have no "now" of their own — the module threads time
	// explicitly rather than reading a wall clock, §4.6 — fall back to
	// this; it is only ever as stale as the gap since the last Tick.
	clock atomic.Int64
}

// NewManagementEntity creates the SNM entity bound to router.
func NewManagementEntity(router *Router, timers *TimerQueue, trace *Trace) *ManagementEntity {
	return &ManagementEntity{
		router:  router,
		pending: NewPendingTable(),
		timers:  timers,
		trace:   trace,
	}
}

// Name identifies this user part on the router's dispatch list.
func (m *ManagementEntity) Name() string { return "SNM" }

// Notify is called by the router when a network's operational status
// changes or a restart completes broadly (network == nil signals the
// latter, §4.4's onRestartTimer). There is nothing for the SNM entity to
// react to beyond what ReceivedMSU and Router.checkRoutes already handle.
func (m *ManagementEntity) Notify(network Network, sls int) {}

// ReceivedUPU is invoked by the router's UPU rebroadcast (§4.5); the SNM
// entity itself has no independent reaction to a peer's UPU.
func (m *ManagementEntity) ReceivedUPU(family Family, node PointCode, part, cause byte, label Label, sls int) {
}

// Tick drains the pending-message table, retrying or finalizing
// outstanding changeover acknowledgments (§4.5).
func (m *ManagementEntity) Tick(now Millis) {
	m.clock.Store(int64(now))
	m.pending.Tick(now, func(p *PendingMessage, final bool) {
		m.retransmit(p, final, now)
	})
}

// now returns the entity's best-effort current time (see clock's doc).
func (m *ManagementEntity) now() Millis {
	return Millis(m.clock.Load())
}

func (m *ManagementEntity) retransmit(p *PendingMessage, final bool, now Millis) {
	peer := p.Label.DPC.Packed
	if p.Kind == PendingAckPostponed {
		peer = p.Label.OPC.Packed // stored label is the peer's inbound request
	}
	network := m.findNetwork(p.Label.Type, peer, p.TxSls)
	if network == nil {
		return
	}

	switch p.Kind {
	case PendingAckPostponed:
		if final {
			m.trace.Logf("changeover", "ack postponement for %s expired unresolved", p.Label.DPC)
			return
		}
		if m.tryAcknowledgeChangeover(p.Code, p.Label, network, p.TxSls, p.Slc) {
			m.pending.Remove(p)
		}
	case PendingRequestRetry:
		network.TransmitMSU(p.MSU, p.Label, p.TxSls)
		if final {
			m.pending.Remove(p)
		}
	}
}

// findNetwork resolves the first (lowest priority value) network carrying
// the route to (family, packedDPC), as opposed to
// Router.firstNonAdjacentNetwork's backup-route delegation. sls is not
// consulted.
func (m *ManagementEntity) findNetwork(family Family, packedDPC uint32, sls int) Network {
	route := m.router.routes[family].Find(packedDPC)
	if route == nil {
		return nil
	}
	nets := route.Networks()
	if len(nets) == 0 {
		return nil
	}
	return nets[0]
}

// ReceivedMSU implements UserPart: it only accepts SIManagement traffic,
// parses it via ParseSNM, and dispatches by code (§4.5).
func (m *ManagementEntity) ReceivedMSU(msu MSU, label Label, network Network, sls int) HandledMSU {
	if msu.SIF != SIManagement && msu.SIF != SIMaintenance {
		return Rejected
	}

	msg, err := ParseSNM(label.Type, msu.Payload)
	if err != nil {
		m.trace.Logf("snm", "parse error from %s: %v", network.Name(), err)
		return Failure
	}

	switch msg.Code {
	case TFP, TFR, TFA:
		m.router.SetRouteSpecificState(label.Type, msg.DestPC.Packed, network, RouteStateFor(msg.Code), m)
		return Accepted
	case TFC:
		m.router.SetRouteSpecificState(label.Type, msg.DestPC.Packed, network, Congestion, m)
		return Accepted
	case RST, RSR:
		m.handleRouteTest(label.Type, msg.DestPC, network, sls)
		return Accepted
	case COO, XCO, ECO:
		m.handleChangeoverRequest(msg.Code, label, network, sls, msg)
		return Accepted
	case COA, XCA, ECA:
		m.handleChangeoverAck(msg.Code, label, network, sls, msg)
		return Accepted
	case CBD:
		m.handleChangebackRequest(label, network, sls, msg)
		return Accepted
	case CBA:
		m.handleChangebackAck(label, network, sls, msg)
		return Accepted
	case LIN:
		m.handleInhibitRequest(label, network, sls, true)
		return Accepted
	case LUN, LFU:
		m.handleInhibitRequest(label, network, sls, false)
		return Accepted
	case TRA:
		m.router.SetRouteSpecificState(label.Type, label.OPC.Packed, network, Allowed, m)
		return Accepted
	case UPU:
		m.router.HandleReceivedUPU(label.Type, msg.DestPC, msg.Part, msg.Cause, label, sls)
		return Accepted
	case sltm:
		reply := BuildSLTA(msg.Pattern)
		network.TransmitMSU(NewMSU(SIMaintenance, msu.SSF, reverseLabel(label), reply), reverseLabel(label), sls)
		return Accepted
	case slta:
		return Accepted
	default:
		return Rejected
	}
}

func reverseLabel(l Label) Label {
	return Label{Type: l.Type, OPC: l.DPC, DPC: l.OPC, SLS: l.SLS, Spare: l.Spare}
}

// handleRouteTest answers a received RST/RSR with this router's own
// current knowledge of the tested route (TFP/TFR/TFA), the standard
// Q.704 reply to a route-test query.
func (m *ManagementEntity) handleRouteTest(family Family, destPC PointCode, network Network, sls int) {
	route := m.router.routes[family].Find(destPC.Packed)
	state := Prohibited
	if route != nil {
		state = route.State()
	}
	code, _ := StateCode(state)
	local := m.router.LocalPC(family)
	reply := Label{Type: family, OPC: local, DPC: PointCode{Family: family, Packed: destPC.Packed}, SLS: byte(sls)}
	network.TransmitMSU(NewMSU(SIManagement, 0, reply, BuildTFx(code, destPC)), reply, sls)
}

// SendRouteTest sends an RST/RSR toward destPC on every operational
// network attached to its route, called periodically by
// Router.runRouteTests for any route the router still distrusts (§4.4).
func (m *ManagementEntity) SendRouteTest(family Family, packedDPC uint32, code SNMCode) {
	route := m.router.routes[family].Find(packedDPC)
	if route == nil {
		return
	}
	local := m.router.LocalPC(family)
	destPC := PointCode{Family: family, Packed: packedDPC}
	for _, net := range route.Networks() {
		if !net.Operational(AnySLS) {
			continue
		}
		label := Label{Type: family, OPC: local, DPC: destPC}
		net.TransmitMSU(NewMSU(SIManagement, 0, label, BuildRouteTest(code, destPC)), label, 0)
	}
}

// SendTFx sends a route-state advertisement for packedDPC to a single
// adjacent network, used by Router.routeChanged and Router.advertiseAll
// for the split-horizon broadcast (§4.4).
func (m *ManagementEntity) SendTFx(family Family, code SNMCode, destPC PointCode, to Network) {
	local := m.router.LocalPC(family)
	label := Label{Type: family, OPC: local, DPC: destPC}
	if code == TFC {
		to.TransmitMSU(NewMSU(SIManagement, 0, label, BuildTFC(destPC, 0)), label, 0)
		return
	}
	to.TransmitMSU(NewMSU(SIManagement, 0, label, BuildTFx(code, destPC)), label, 0)
}

// --- changeover / changeback (§4.5) ---

func ackCodeFor(req SNMCode) SNMCode {
	switch req {
	case COO:
		return COA
	case XCO:
		return XCA
	case ECO:
		return ECA
	default:
		return req
	}
}

// handleChangeoverRequest implements the COO/XCO/ECO receiver side: mark
// the link Inactive, recover buffered MSUs at the reported sequence, and
// either acknowledge immediately with this side's own send sequence or
// postpone the acknowledgment if that sequence is not yet known.
func (m *ManagementEntity) handleChangeoverRequest(code SNMCode, label Label, network Network, sls int, msg SNMMessage) {
	network.Inhibit(sls, InhibitChangeover, 0)
	network.RecoverMSU(sls, int32(msg.Sequence))

	if m.tryAcknowledgeChangeover(code, label, network, sls, msg.Slc) {
		return
	}
	now := m.now()
	m.pending.Add(&PendingMessage{
		Kind:     PendingAckPostponed,
		Code:     code,
		Label:    label,
		Slc:      msg.Slc,
		TxSls:    sls,
		Interval: changeoverPostponeMillis,
		Global:   now + changeoverPostponeMillis*Millis(changeoverRetryLimit),
	}, now)
}

// tryAcknowledgeChangeover attempts to send the ack for a received
// COO/XCO/ECO immediately. It returns false (without side effects beyond
// the attempt itself) when this side's own send sequence for sls is not
// yet known and the caller should postpone.
func (m *ManagementEntity) tryAcknowledgeChangeover(reqCode SNMCode, label Label, network Network, sls int, slc byte) bool {
	ackSeq := network.GetSequence(sls)
	if ackSeq < 0 {
		return false
	}
	reply := reverseLabel(label)
	payload := BuildChangeover(ackCodeFor(reqCode), label.Type, uint16(ackSeq), slc)
	network.TransmitMSU(NewMSU(SIManagement, 0, reply, payload), reply, sls)
	return true
}

// handleChangeoverAck implements the COA/XCA/ECA receiver side: the
// far end has acknowledged our own changeover request, so mark the link
// Inactive on our side too and recover at the reported sequence.
func (m *ManagementEntity) handleChangeoverAck(code SNMCode, label Label, network Network, sls int, msg SNMMessage) {
	matched := m.pending.FindMatch(func(p *PendingMessage) bool {
		return p.Label.DPC.Packed == label.OPC.Packed && ackCodeFor(p.Code) == code
	})
	if matched != nil {
		m.pending.Remove(matched)
	}
	network.Inhibit(sls, InhibitChangeover, 0)
	network.RecoverMSU(sls, int32(msg.Sequence))
}

// handleChangebackRequest implements the CBD receiver side: clear the
// Inactive mark and echo the same code field back as a CBA.
func (m *ManagementEntity) handleChangebackRequest(label Label, network Network, sls int, msg SNMMessage) {
	network.Inhibit(sls, 0, InhibitChangeover)
	reply := reverseLabel(label)
	payload := BuildChangeback(CBA, label.Type, msg.Code2, msg.Slc)
	network.TransmitMSU(NewMSU(SIManagement, 0, reply, payload), reply, sls)
}

// handleChangebackAck implements the CBA receiver side: our own CBD was
// acknowledged, clear the Inactive mark and drop the retransmit entry.
func (m *ManagementEntity) handleChangebackAck(label Label, network Network, sls int, msg SNMMessage) {
	matched := m.pending.FindMatch(func(p *PendingMessage) bool {
		return p.Label.DPC.Packed == label.OPC.Packed && p.Code == CBD
	})
	if matched != nil {
		m.pending.Remove(matched)
	}
	network.Inhibit(sls, 0, InhibitChangeover)
}

// --- inhibit / uninhibit peer handshake (§4.5) ---

func (m *ManagementEntity) handleInhibitRequest(label Label, network Network, sls int, inhibit bool) {
	var ok bool
	var ackCode SNMCode
	if inhibit {
		ok = network.Inhibit(sls, InhibitRemote, 0)
		ackCode = LIA
		if !ok {
			ackCode = LID
		}
	} else {
		ok = network.Inhibit(sls, 0, InhibitRemote)
		ackCode = LUA
	}
	reply := reverseLabel(label)
	network.TransmitMSU(NewMSU(SIManagement, 0, reply, BuildCodeOnly(ackCode)), reply, sls)
}

// --- control-surface operations (§6) ---

// Changeover issues a COO toward destPC on sls and blocks the link on
// this side pending acknowledgment (a control-surface entry point,
// distinct from handleChangeoverRequest which reacts to a peer's own
// COO). now is the caller's current time, used to arm the retry entry if
// the far end never sends an ack in time.
func (m *ManagementEntity) Changeover(family Family, packedDPC uint32, sls int, emergency bool, now Millis) error {
	network := m.findNetwork(family, packedDPC, sls)
	if network == nil {
		return fmt.Errorf("ss7: no network for changeover to %s", PointCode{Family: family, Packed: packedDPC})
	}
	code := COO
	if emergency {
		code = ECO
	}
	seq := network.GetSequence(sls)
	local := m.router.LocalPC(family)
	label := Label{Type: family, OPC: local, DPC: PointCode{Family: family, Packed: packedDPC}, SLS: byte(sls)}
	payload := BuildChangeover(code, family, uint16(seq), 0)
	msu := NewMSU(SIManagement, 0, label, payload)
	network.Inhibit(sls, InhibitChangeover, 0)
	network.TransmitMSU(msu, label, sls)

	m.pending.Add(&PendingMessage{
		Kind:     PendingRequestRetry,
		Code:     code,
		MSU:      msu,
		Label:    label,
		TxSls:    sls,
		Interval: changeoverPostponeMillis,
		Global:   now + changeoverPostponeMillis*Millis(changeoverRetryLimit+1),
	}, now)
	return nil
}

// Changeback issues a CBD toward destPC on sls to bring a previously
// inhibited link back into service.
func (m *ManagementEntity) Changeback(family Family, packedDPC uint32, sls int, now Millis) error {
	network := m.findNetwork(family, packedDPC, sls)
	if network == nil {
		return fmt.Errorf("ss7: no network for changeback to %s", PointCode{Family: family, Packed: packedDPC})
	}
	local := m.router.LocalPC(family)
	label := Label{Type: family, OPC: local, DPC: PointCode{Family: family, Packed: packedDPC}, SLS: byte(sls)}
	payload := BuildChangeback(CBD, family, 0, 0)
	msu := NewMSU(SIManagement, 0, label, payload)
	network.TransmitMSU(msu, label, sls)

	m.pending.Add(&PendingMessage{
		Kind:     PendingRequestRetry,
		Code:     CBD,
		MSU:      msu,
		Label:    label,
		TxSls:    sls,
		Interval: changeoverPostponeMillis,
		Global:   now + changeoverPostponeMillis*Millis(changeoverRetryLimit+1),
	}, now)
	return nil
}

// LinkInhibit issues an administrative LIN toward the given link.
func (m *ManagementEntity) LinkInhibit(family Family, packedDPC uint32, sls int) error {
	network := m.findNetwork(family, packedDPC, sls)
	if network == nil {
		return fmt.Errorf("ss7: no network for link-inhibit to %s", PointCode{Family: family, Packed: packedDPC})
	}
	local := m.router.LocalPC(family)
	label := Label{Type: family, OPC: local, DPC: PointCode{Family: family, Packed: packedDPC}, SLS: byte(sls)}
	network.TransmitMSU(NewMSU(SIManagement, 0, label, BuildCodeOnly(LIN)), label, sls)
	return nil
}

// LinkUninhibit issues an administrative LUN toward the given link.
func (m *ManagementEntity) LinkUninhibit(family Family, packedDPC uint32, sls int) error {
	network := m.findNetwork(family, packedDPC, sls)
	if network == nil {
		return fmt.Errorf("ss7: no network for link-uninhibit to %s", PointCode{Family: family, Packed: packedDPC})
	}
	local := m.router.LocalPC(family)
	label := Label{Type: family, OPC: local, DPC: PointCode{Family: family, Packed: packedDPC}, SLS: byte(sls)}
	network.TransmitMSU(NewMSU(SIManagement, 0, label, BuildCodeOnly(LUN)), label, sls)
	return nil
}

// LinkForceUninhibit issues LFU, the non-negotiated forced uninhibit
// (§4.5's inhibit family — no LID/LIA handshake, always effective).
func (m *ManagementEntity) LinkForceUninhibit(family Family, packedDPC uint32, sls int) error {
	network := m.findNetwork(family, packedDPC, sls)
	if network == nil {
		return fmt.Errorf("ss7: no network for link-force-uninhibit to %s", PointCode{Family: family, Packed: packedDPC})
	}
	network.Inhibit(sls, 0, InhibitRemote|InhibitLocal)
	local := m.router.LocalPC(family)
	label := Label{Type: family, OPC: local, DPC: PointCode{Family: family, Packed: packedDPC}, SLS: byte(sls)}
	network.TransmitMSU(NewMSU(SIManagement, 0, label, BuildCodeOnly(LFU)), label, sls)
	return nil
}

// Advertise sends an explicit TFP/TFR/TFA/TFC for packedDPC to every
// operational adjacent network, the control-surface "advertise" command
// (§6).
func (m *ManagementEntity) Advertise(family Family, packedDPC uint32, state RouteState) {
	route := m.router.routes[family].Find(packedDPC)
	if route == nil {
		return
	}
	code, _ := StateCode(state)
	destPC := PointCode{Family: family, Packed: packedDPC}
	for _, net := range route.Networks() {
		if net.Operational(AnySLS) {
			m.SendTFx(family, code, destPC, net)
		}
	}
}
