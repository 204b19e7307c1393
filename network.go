package ss7

// HandledMSU is the disposition a user part reports back from
// ReceivedMSU. It is a tagged sum type (§9): each value means exactly one
// thing, never a range of related outcomes packed into one int.
type HandledMSU int

const (
	Accepted HandledMSU = iota
	Rejected
	Unequipped
	Inaccessible
	NoAddress
	Failure
)

func (h HandledMSU) String() string {
	switch h {
	case Accepted:
		return "Accepted"
	case Rejected:
		return "Rejected"
	case Unequipped:
		return "Unequipped"
	case Inaccessible:
		return "Inaccessible"
	case NoAddress:
		return "NoAddress"
	case Failure:
		return "Failure"
	default:
		return "Unknown"
	}
}

// InhibitMask carries the set/clear bit flags Network.Inhibit and
// Network.Inhibited operate on (§4.5's LIN/LUN family).
type InhibitMask byte

const (
	InhibitLocal  InhibitMask = 1 << 0
	InhibitRemote InhibitMask = 1 << 1
	// InhibitChangeover marks a link "Inactive" for the duration of a
	// changeover/changeback cycle (§4.5's COO/CBD family) — a distinct
	// sub-state from the administrative Local/Remote inhibit bits above,
	// carried in the same mask so Network.Inhibit stays a single call.
	InhibitChangeover InhibitMask = 1 << 2
)

// NoRoutePriority is returned by Network.GetRoutePriority when the network
// has no route to the requested destination (spec.md §3's "MAX means no
// route").
const NoRoutePriority = ^uint32(0)

// AnySLS requests Network.Operational for the network as a whole rather
// than a specific signalling link.
const AnySLS = -1

// Network is the Layer 3 external interface a router attaches to (§3).
// Implementations are owned by the caller; the router only holds a
// reference to them (a "weak" back-reference per §9 — Go's GC makes the
// handle/slot-table indirection unnecessary, but Detach must still remove
// every reference the router holds before the caller discards a Network).
type Network interface {
	Name() string
	Operational(sls int) bool
	GetLocal(family Family) PointCode
	GetNI(family Family, def byte) byte
	GetRoutePriority(family Family, packedDPC uint32) uint32
	FindRoute(family Family, packedDPC uint32) *Route
	TransmitMSU(msu MSU, label Label, sls int) int
	Inhibit(sls int, set, clr InhibitMask) bool
	Inhibited(sls int, mask InhibitMask) bool
	GetSequence(sls int) int32
	RecoverMSU(sls int, seq int32)
	Attach(r *Router)
	GetRoutes(family Family) []*Route
}

// UserPart is the Layer 4 external interface a router dispatches inbound
// traffic to (§3).
type UserPart interface {
	Name() string
	ReceivedMSU(msu MSU, label Label, network Network, sls int) HandledMSU
	Notify(network Network, sls int)
	ReceivedUPU(family Family, node PointCode, part byte, cause byte, label Label, sls int)
}
