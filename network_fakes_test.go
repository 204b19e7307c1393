package ss7

// testNetwork is a configurable Network double shared by router_test.go
// and management_test.go: it tracks every MSU handed to TransmitMSU and
// lets a test pre-seed the routes it advertises via GetRoutes.
type testNetwork struct {
	name       string
	operState  bool
	local      map[Family]PointCode
	routePrios map[uint32]uint32 // packedDPC -> advertised priority, per family ITU only unless noted
	transmits  []MSU
	transmitRC int
	inhibited  InhibitMask
	sendSeq    int32
	recovered  []int32
}

func newTestNetwork(name string) *testNetwork {
	return &testNetwork{name: name, operState: true, local: map[Family]PointCode{}, routePrios: map[uint32]uint32{}, sendSeq: -1}
}

func (n *testNetwork) Name() string                    { return n.name }
func (n *testNetwork) Operational(sls int) bool         { return n.operState }
func (n *testNetwork) GetLocal(family Family) PointCode { return n.local[family] }
func (n *testNetwork) GetNI(family Family, def byte) byte { return def }

func (n *testNetwork) GetRoutePriority(family Family, packedDPC uint32) uint32 {
	if family != ITU {
		return NoRoutePriority
	}
	if p, ok := n.routePrios[packedDPC]; ok {
		return p
	}
	return NoRoutePriority
}

func (n *testNetwork) FindRoute(family Family, packedDPC uint32) *Route { return nil }

func (n *testNetwork) TransmitMSU(msu MSU, label Label, sls int) int {
	n.transmits = append(n.transmits, msu)
	return n.transmitRC
}

func (n *testNetwork) Inhibit(sls int, set, clr InhibitMask) bool {
	n.inhibited = (n.inhibited | set) &^ clr
	return true
}

func (n *testNetwork) Inhibited(sls int, mask InhibitMask) bool { return n.inhibited&mask != 0 }
func (n *testNetwork) GetSequence(sls int) int32                { return n.sendSeq }
func (n *testNetwork) RecoverMSU(sls int, seq int32)            { n.recovered = append(n.recovered, seq) }
func (n *testNetwork) Attach(r *Router)                         {}

func (n *testNetwork) GetRoutes(family Family) []*Route {
	if family != ITU {
		return nil
	}
	out := make([]*Route, 0, len(n.routePrios))
	for dpc := range n.routePrios {
		out = append(out, &Route{Family: family, PackedDPC: dpc})
	}
	return out
}

// testUserPart is a configurable UserPart double: it accepts only the
// configured ServiceIndicator and reports the configured disposition.
type testUserPart struct {
	name     string
	accept   ServiceIndicator
	result   HandledMSU
	received []MSU
	notified int
}

func (u *testUserPart) Name() string { return u.name }

func (u *testUserPart) ReceivedMSU(msu MSU, label Label, network Network, sls int) HandledMSU {
	u.received = append(u.received, msu)
	if msu.SIF != u.accept {
		return Rejected
	}
	return u.result
}

func (u *testUserPart) Notify(network Network, sls int)                                     { u.notified++ }
func (u *testUserPart) ReceivedUPU(family Family, node PointCode, part, cause byte, label Label, sls int) {
}
