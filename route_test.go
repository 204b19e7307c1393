package ss7

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeNetwork is a minimal Network stand-in for exercising Route/RouteTable
// in isolation from the router.
type fakeNetwork struct {
	name       string
	priority   uint32
	operState  bool
	transmits  []MSU
	transmitRC int
}

func (n *fakeNetwork) Name() string                    { return n.name }
func (n *fakeNetwork) Operational(sls int) bool         { return n.operState }
func (n *fakeNetwork) GetLocal(family Family) PointCode { return None }
func (n *fakeNetwork) GetNI(family Family, def byte) byte { return def }
func (n *fakeNetwork) GetRoutePriority(family Family, packedDPC uint32) uint32 {
	return n.priority
}
func (n *fakeNetwork) FindRoute(family Family, packedDPC uint32) *Route { return nil }
func (n *fakeNetwork) TransmitMSU(msu MSU, label Label, sls int) int {
	n.transmits = append(n.transmits, msu)
	return n.transmitRC
}
func (n *fakeNetwork) Inhibit(sls int, set, clr InhibitMask) bool { return false }
func (n *fakeNetwork) Inhibited(sls int, mask InhibitMask) bool   { return false }
func (n *fakeNetwork) GetSequence(sls int) int32                  { return -1 }
func (n *fakeNetwork) RecoverMSU(sls int, seq int32)              {}
func (n *fakeNetwork) Attach(r *Router)                           {}
func (n *fakeNetwork) GetRoutes(family Family) []*Route           { return nil }

func TestRouteAttachOrdersByPriority(t *testing.T) {
	route := NewRoute(ITU, 0x010203)
	n3 := &fakeNetwork{name: "n3", priority: 3, operState: true}
	n1 := &fakeNetwork{name: "n1", priority: 1, operState: true}
	n5 := &fakeNetwork{name: "n5", priority: 5, operState: true}
	n1b := &fakeNetwork{name: "n1b", priority: 1, operState: true}

	require.True(t, route.Attach(n3))
	require.True(t, route.Attach(n1))
	require.True(t, route.Attach(n5))
	require.True(t, route.Attach(n1b))

	nets := route.Networks()
	require.Len(t, nets, 4)
	got := make([]string, len(nets))
	for i, n := range nets {
		got[i] = n.(*fakeNetwork).name
	}
	require.Equal(t, []string{"n1", "n1b", "n3", "n5"}, got)
}

func TestRouteAttachRejectsNoRoute(t *testing.T) {
	route := NewRoute(ITU, 0x010203)
	n := &fakeNetwork{name: "n", priority: NoRoutePriority}
	require.False(t, route.Attach(n))
	require.Empty(t, route.Networks())
}

func TestRouteDetachRemovesLastNetwork(t *testing.T) {
	route := NewRoute(ITU, 0x010203)
	n := &fakeNetwork{name: "n", priority: 1, operState: true}
	route.Attach(n)
	require.True(t, route.HasNetwork(n))
	remaining := route.Detach(n)
	require.False(t, remaining)
	require.False(t, route.HasNetwork(n))
}

func TestRouteTransmitMSUSelectsBySLS(t *testing.T) {
	route := NewRoute(ITU, 0x010203)
	a := &fakeNetwork{name: "a", priority: 1, operState: true, transmitRC: 0}
	b := &fakeNetwork{name: "b", priority: 1, operState: true, transmitRC: 0}
	route.Attach(a)
	route.Attach(b)

	msu := NewMSU(SIISUP, 0, Label{}, nil)
	route.TransmitMSU(msu, Label{}, 0, nil)
	route.TransmitMSU(msu, Label{}, 1, nil)

	require.Len(t, a.transmits, 1)
	require.Len(t, b.transmits, 1)
}

func TestRouteTransmitMSUSkipsSourceAndFails(t *testing.T) {
	route := NewRoute(ITU, 0x010203)
	a := &fakeNetwork{name: "a", priority: 1, operState: true, transmitRC: 0}
	route.Attach(a)

	msu := NewMSU(SIISUP, 0, Label{}, nil)
	rc := route.TransmitMSU(msu, Label{}, 0, a)
	require.Equal(t, -1, rc)
	require.Empty(t, a.transmits)
}

func TestRouteTableAttachDetachLifecycle(t *testing.T) {
	rt := NewRouteTable()
	n := &fakeNetwork{name: "n", priority: 1, operState: true}
	require.True(t, rt.Attach(ITU, 0x010203, n))
	require.NotNil(t, rt.Find(0x010203))

	rt.Detach(0x010203, n)
	require.Nil(t, rt.Find(0x010203))
}

func TestRouteTableRoutesSortedByDPC(t *testing.T) {
	rt := NewRouteTable()
	n := &fakeNetwork{name: "n", priority: 1, operState: true}
	rt.Attach(ITU, 0x030000, n)
	rt.Attach(ITU, 0x010000, n)
	rt.Attach(ITU, 0x020000, n)

	routes := rt.Routes()
	require.Len(t, routes, 3)
	require.Equal(t, uint32(0x010000), routes[0].PackedDPC)
	require.Equal(t, uint32(0x020000), routes[1].PackedDPC)
	require.Equal(t, uint32(0x030000), routes[2].PackedDPC)
}

func TestRouteTableDetachNetworkClearsAllRoutes(t *testing.T) {
	rt := NewRouteTable()
	n := &fakeNetwork{name: "n", priority: 1, operState: true}
	rt.Attach(ITU, 0x010000, n)
	rt.Attach(ITU, 0x020000, n)

	rt.DetachNetwork(n)
	require.Nil(t, rt.Find(0x010000))
	require.Nil(t, rt.Find(0x020000))
}

func TestRouteSetSpecificStateAggregatesMax(t *testing.T) {
	route := NewRoute(ITU, 0x010203)
	a := &fakeNetwork{name: "a", priority: 1, operState: true}
	b := &fakeNetwork{name: "b", priority: 2, operState: true}
	route.Attach(a)
	route.Attach(b)

	changed, old, cur := route.setSpecificState(a, Allowed)
	require.True(t, changed)
	require.Equal(t, Unknown, old)
	require.Equal(t, Allowed, cur)

	changed, old, cur = route.setSpecificState(b, Restricted)
	require.False(t, changed)
	require.Equal(t, Allowed, old)
	require.Equal(t, Allowed, cur)
}

func TestMaxStateLatticeOrder(t *testing.T) {
	require.Equal(t, Allowed, MaxState(Allowed, Prohibited))
	require.Equal(t, Congestion, MaxState(Restricted, Congestion))
	require.Equal(t, Unknown, MaxState(Unknown, Prohibited))
}
