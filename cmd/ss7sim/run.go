package main

import (
	"fmt"

	ss7 "github.com/iti/ss7net"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Attach a loopback network and user part, restart, and transmit one MSU",
	RunE:  runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	local, err := ss7.ParsePointCode(ss7.ITU, "1-2-3")
	if err != nil {
		return err
	}
	remote, err := ss7.ParsePointCode(ss7.ITU, "5-5-5")
	if err != nil {
		return err
	}

	trace := ss7.NewTrace("ss7sim", true)
	timers := ss7.NewTimerQueue("ss7sim")
	router := ss7.NewRouter(ss7.RouterConfig{
		Transfer: false,
		SendUPU:  true,
		SendTFP:  true,
		Local:    map[ss7.Family]ss7.PointCode{ss7.ITU: local},
	}, timers, trace)
	management := ss7.NewManagementEntity(router, timers, trace)

	net0 := newLoopbackNetwork("net0", map[ss7.Family]ss7.PointCode{ss7.ITU: local})
	net0.addRoute(ss7.ITU, remote.Packed)

	router.SetLocalPC(ss7.ITU, local)
	router.Attach(net0)
	router.AttachUserPart(management)

	isup := &toyUserPart{name: "isup"}
	router.AttachUserPart(isup)

	var now ss7.Millis
	net0.SetNow(now)
	router.Restart(now)
	for state := router.State(); state != ss7.Started; state = router.State() {
		now += 100
		net0.SetNow(now)
		router.TimerTick(now, management)
	}
	fmt.Printf("router state: %s\n", router.State())

	label := ss7.Label{Type: ss7.ITU, OPC: local, DPC: remote, SLS: 0}
	outbound := ss7.NewMSU(ss7.SIISUP, 0, label, []byte("IAM"))
	if n := router.TransmitMSU(outbound, label, 0); n < 0 {
		return fmt.Errorf("ss7sim: transmit to %s failed", remote)
	}

	inLabel := ss7.Label{Type: ss7.ITU, OPC: remote, DPC: local, SLS: 0}
	inbound := ss7.NewMSU(ss7.SIISUP, 0, inLabel, []byte("ACM"))
	result := router.ReceivedMSU(inbound, inLabel, net0, 0)
	fmt.Printf("direct inbound dispatch result: %s\n", result)

	rx, tx, fwd := router.Counters()
	fmt.Printf("counters: rx=%d tx=%d fwd=%d\n", rx, tx, fwd)
	return nil
}
