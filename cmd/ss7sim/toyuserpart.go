package main

import (
	"fmt"

	ss7 "github.com/iti/ss7net"
)

// toyUserPart is a Layer-4 stand-in: it accepts any ISUP-tagged MSU handed
// to it and prints the payload, the simplest possible UserPart
// implementation exercising the router's dispatch path.
type toyUserPart struct {
	name string
}

func (u *toyUserPart) Name() string { return u.name }

func (u *toyUserPart) ReceivedMSU(msu ss7.MSU, label ss7.Label, network ss7.Network, sls int) ss7.HandledMSU {
	if msu.SIF != ss7.SIISUP {
		return ss7.Rejected
	}
	fmt.Printf("[%s] received %d byte(s) from %s sls=%d\n", u.name, len(msu.Payload), label.OPC, sls)
	return ss7.Accepted
}

func (u *toyUserPart) Notify(network ss7.Network, sls int) {
	if network == nil {
		fmt.Printf("[%s] restart complete\n", u.name)
		return
	}
	fmt.Printf("[%s] notify from %s sls=%d\n", u.name, network.Name(), sls)
}

func (u *toyUserPart) ReceivedUPU(family ss7.Family, node ss7.PointCode, part, cause byte, label ss7.Label, sls int) {
	fmt.Printf("[%s] UPU for %s part=%d cause=%d\n", u.name, node, part, cause)
}
