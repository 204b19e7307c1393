package ss7

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRouter(cfg RouterConfig) (*Router, *TimerQueue) {
	timers := NewTimerQueue("test")
	trace := NewTrace("test", false)
	local, _ := ParsePointCode(ITU, "1-2-3")
	if cfg.Local == nil {
		cfg.Local = map[Family]PointCode{ITU: local}
	}
	return NewRouter(cfg, timers, trace), timers
}

func TestReceivedMSUInboundAccepted(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{})
	up := &testUserPart{name: "isup", accept: SIISUP, result: Accepted}
	router.AttachUserPart(up)

	opc, _ := ParsePointCode(ITU, "3-4-5")
	dpc, _ := ParsePointCode(ITU, "1-2-3")
	label := Label{Type: ITU, OPC: opc, DPC: dpc, SLS: 0}
	msu := NewMSU(SIISUP, 0, label, []byte("IAM"))

	m := newTestNetwork("M")
	result := router.ReceivedMSU(msu, label, m, 0)
	require.Equal(t, Accepted, result)

	rx, tx, fwd := router.Counters()
	require.Equal(t, uint64(1), rx)
	require.Equal(t, uint64(0), tx)
	require.Equal(t, uint64(0), fwd)
}

func TestReceivedMSUSTPForward(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{Transfer: true})

	dpc, _ := ParsePointCode(ITU, "5-5-5")
	n := newTestNetwork("N")
	n.routePrios[dpc.Packed] = 1
	router.Attach(n)

	opc, _ := ParsePointCode(ITU, "3-4-5")
	label := Label{Type: ITU, OPC: opc, DPC: dpc, SLS: 0}
	msu := NewMSU(SIISUP, 0, label, []byte("IAM"))

	m := newTestNetwork("M")
	result := router.ReceivedMSU(msu, label, m, 0)
	require.Equal(t, Accepted, result)
	require.Len(t, n.transmits, 1)

	_, _, fwd := router.Counters()
	require.Equal(t, uint64(1), fwd)
}

func TestReceivedMSUUnknownDPCSNMode(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{Transfer: false})

	dpc, _ := ParsePointCode(ITU, "9-9-9")
	opc, _ := ParsePointCode(ITU, "3-4-5")
	label := Label{Type: ITU, OPC: opc, DPC: dpc, SLS: 0}
	msu := NewMSU(SIISUP, 0, label, []byte("IAM"))

	m := newTestNetwork("M")
	result := router.ReceivedMSU(msu, label, m, 0)
	require.Equal(t, Failure, result)
}

func TestReceivedMSUUnknownDPCTransferSendsNoAddress(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{Transfer: true, SendProhibited: true})

	dpc, _ := ParsePointCode(ITU, "9-9-9")
	opc, _ := ParsePointCode(ITU, "3-4-5")
	label := Label{Type: ITU, OPC: opc, DPC: dpc, SLS: 0}
	msu := NewMSU(SIISUP, 0, label, []byte("IAM"))

	m := newTestNetwork("M")
	result := router.ReceivedMSU(msu, label, m, 0)
	require.Equal(t, NoAddress, result)
}

func TestReceivedMSUTransitBlockedByProhibitedRoute(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{Transfer: true})

	dpc, _ := ParsePointCode(ITU, "5-5-5")
	n := newTestNetwork("N")
	n.routePrios[dpc.Packed] = 1
	router.Attach(n)
	router.routes[ITU].Find(dpc.Packed).SetState(Prohibited)

	opc, _ := ParsePointCode(ITU, "3-4-5")
	label := Label{Type: ITU, OPC: opc, DPC: dpc, SLS: 0}
	msu := NewMSU(SIISUP, 0, label, []byte("IAM"))

	m := newTestNetwork("M")
	result := router.ReceivedMSU(msu, label, m, 0)
	require.Equal(t, Failure, result)
	require.Empty(t, n.transmits)
}

func TestReceivedMSUUnequipedEscalatesToTentative(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{SendUnavail: true})
	up := &testUserPart{name: "isup", accept: SIISUP, result: Unequipped}
	router.AttachUserPart(up)

	dpc, _ := ParsePointCode(ITU, "1-2-3")
	opc, _ := ParsePointCode(ITU, "3-4-5")
	label := Label{Type: ITU, OPC: opc, DPC: dpc, SLS: 0}
	msu := NewMSU(SIISUP, 0, label, []byte("IAM"))

	m := newTestNetwork("M")
	result := router.ReceivedMSU(msu, label, m, 0)
	require.Equal(t, Unequipped, result)
}

func TestRouterAttachImportsRoutesFromNetwork(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{})
	dpc, _ := ParsePointCode(ITU, "5-5-5")
	n := newTestNetwork("N")
	n.routePrios[dpc.Packed] = 1
	router.Attach(n)

	require.NotNil(t, router.routes[ITU].Find(dpc.Packed))

	router.Restart(0)
	require.Equal(t, Restarting1, router.State())

	router.TimerTick(router.restartTimer.Expiry(), nil)
	require.Equal(t, Started, router.State())
	require.NotEmpty(t, n.transmits, "restart completion should transmit a TRA on every operational network")
}

func TestRouterRestartToStartedViaTimerTick(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{})
	router.Restart(0)

	var now Millis
	for router.State() != Started && now < 20000 {
		now += 500
		router.TimerTick(now, nil)
	}
	require.Equal(t, Started, router.State())
}

func TestRouterSTPRestartEscalatesToRestarting2(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{Transfer: true})
	router.Restart(0)
	require.Equal(t, Restarting1, router.State())

	router.TimerTick(56000, nil) // inside the last 5s before the 60s default expiry
	require.Equal(t, Restarting2, router.State())
}

func TestRouterCheckRoutesStartsIsolationWhenNoOperationalNetwork(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{Isolation: 1000})
	dpc, _ := ParsePointCode(ITU, "5-5-5")
	n := newTestNetwork("N")
	n.routePrios[dpc.Packed] = 1
	n.operState = false
	router.Attach(n)

	router.checkRoutes(0)
	require.NotNil(t, router.isolationTimer)
	require.True(t, router.isolationTimer.Running())

	router.onIsolationTimer()
	require.Equal(t, Disabled, router.State())
}

func TestRouteChangedSplitHorizonSkipsTraversingNetwork(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{Transfer: true})
	timers := NewTimerQueue("mgmt-test")
	trace := NewTrace("mgmt-test", false)
	management := NewManagementEntity(router, timers, trace)

	changedDPC, _ := ParsePointCode(ITU, "5-5-5")
	otherDPC, _ := ParsePointCode(ITU, "6-6-6")

	shared := newTestNetwork("shared") // carries both routes
	shared.routePrios[changedDPC.Packed] = 1
	shared.routePrios[otherDPC.Packed] = 1
	router.Attach(shared)

	onlyOther := newTestNetwork("onlyOther")
	onlyOther.routePrios[otherDPC.Packed] = 1
	router.Attach(onlyOther)

	router.Restart(0)
	var now Millis
	for router.State() != Started && now < 200000 {
		now += 1000
		router.TimerTick(now, management)
	}

	shared.transmits = nil
	onlyOther.transmits = nil

	router.SetRouteSpecificState(ITU, changedDPC.Packed, shared, Prohibited, management)

	require.Empty(t, shared.transmits, "split horizon must skip the network the changed route itself traverses")
	require.Len(t, onlyOther.transmits, 1)
}

func TestNetworkNotifyCancelsIsolationWhenNetworkBecomesOperational(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{Isolation: 1000})
	dpc, _ := ParsePointCode(ITU, "5-5-5")
	n := newTestNetwork("N")
	n.routePrios[dpc.Packed] = 1
	n.operState = false
	router.Attach(n)

	router.checkRoutes(0)
	require.True(t, router.isolationTimer.Running())

	n.operState = true
	router.NetworkNotify(n, AnySLS, 100)
	require.False(t, router.isolationTimer.Running())
}

func TestNetworkNotifyRestartsDisabledRouter(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{})
	require.Equal(t, Disabled, router.State())

	n := newTestNetwork("N")
	n.operState = true
	router.Attach(n)

	router.NetworkNotify(n, AnySLS, 0)
	require.Equal(t, Restarting1, router.State())
}

func TestNetworkNotifyDrivesDownwardUserPartNotify(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{})
	up := &testUserPart{name: "isup", accept: SIISUP}
	router.AttachUserPart(up)

	n := newTestNetwork("N")
	router.Attach(n)

	router.NetworkNotify(n, 3, 0)
	require.Equal(t, 1, up.notified)
}

func TestRouterDumpRoutesAndNetworkStats(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{})
	dpc, _ := ParsePointCode(ITU, "5-5-5")
	n := newTestNetwork("N")
	n.routePrios[dpc.Packed] = 1
	router.Attach(n)

	statuses := router.DumpRoutes()
	require.Len(t, statuses, 1)
	require.Equal(t, dpc.Packed, statuses[0].PackedDPC)
	require.Contains(t, statuses[0].Networks, "N")

	stats, ok := router.NetworkStats("N")
	require.True(t, ok)
	require.Equal(t, uint64(0), stats.RxMSU)

	_, ok = router.NetworkStats("nonexistent")
	require.False(t, ok)
}

func TestRouterDetachRemovesRoutes(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{})
	dpc, _ := ParsePointCode(ITU, "5-5-5")
	n := newTestNetwork("N")
	n.routePrios[dpc.Packed] = 1
	router.Attach(n)
	require.NotNil(t, router.routes[ITU].Find(dpc.Packed))

	router.Detach(n)
	require.Nil(t, router.routes[ITU].Find(dpc.Packed))
}
