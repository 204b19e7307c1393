package ss7

import (
	"fmt"
	"strconv"
	"strings"
)

// Family identifies a point code addressing plan. Only ITU and ANSI are
// implemented; other Q.704 national variants are a Non-goal (spec.md §1).
type Family byte

const (
	ITU Family = iota
	ANSI
)

func (f Family) String() string {
	switch f {
	case ITU:
		return "ITU"
	case ANSI:
		return "ANSI"
	default:
		return "unknown"
	}
}

// FamilyFromString parses the TYPE token used in control-surface addresses
// and configuration (`local=TYPE,PC`).
func FamilyFromString(s string) (Family, error) {
	switch strings.ToUpper(s) {
	case "ITU":
		return ITU, nil
	case "ANSI":
		return ANSI, nil
	default:
		return 0, fmt.Errorf("ss7: unknown point code family %q", s)
	}
}

// Bits reports the width of a packed point code in this family: 14 for
// ITU, 24 for ANSI.
func (f Family) Bits() int {
	if f == ANSI {
		return 24
	}
	return 14
}

// LabelBits reports the total width of a serialized label in this family:
// 32 bits for ITU, 56 for ANSI (§6).
func (f Family) LabelBits() int {
	if f == ANSI {
		return 56
	}
	return 32
}

// PointCode is a packed point code together with the family it belongs to.
// Zero is reserved to mean "none" (§3).
type PointCode struct {
	Family Family
	Packed uint32
}

// None is the reserved "no point code" value for any family.
var None = PointCode{}

// IsNone reports whether pc is the zero/"none" point code.
func (pc PointCode) IsNone() bool {
	return pc.Packed == 0
}

// ITUPointCode packs a {network, cluster, member} triple into a 14-bit ITU
// point code: 3 bits network, 8 bits cluster, 3 bits member.
func ITUPointCode(network, cluster, member byte) PointCode {
	packed := uint32(network&0x07)<<11 | uint32(cluster)<<3 | uint32(member&0x07)
	return PointCode{Family: ITU, Packed: packed}
}

// ANSIPointCode packs a {network, cluster, member} triple into a 24-bit
// ANSI point code: 8 bits network, 8 bits cluster, 8 bits member.
func ANSIPointCode(network, cluster, member byte) PointCode {
	packed := uint32(network)<<16 | uint32(cluster)<<8 | uint32(member)
	return PointCode{Family: ANSI, Packed: packed}
}

// Triple unpacks pc into its {network, cluster, member} components.
func (pc PointCode) Triple() (network, cluster, member byte) {
	if pc.Family == ANSI {
		return byte(pc.Packed >> 16), byte(pc.Packed >> 8), byte(pc.Packed)
	}
	return byte((pc.Packed >> 11) & 0x07), byte((pc.Packed >> 3) & 0xFF), byte(pc.Packed & 0x07)
}

func (pc PointCode) String() string {
	n, c, m := pc.Triple()
	return fmt.Sprintf("%d-%d-%d", n, c, m)
}

// ParsePointCode parses the dash-separated "N-C-M" triple notation used in
// configuration and control-surface addresses (spec.md §8's "1-2-3" style).
func ParsePointCode(family Family, s string) (PointCode, error) {
	fields := strings.Split(s, "-")
	if len(fields) != 3 {
		return PointCode{}, fmt.Errorf("ss7: malformed point code %q", s)
	}
	vals := make([]byte, 3)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 || n > 255 {
			return PointCode{}, fmt.Errorf("ss7: malformed point code %q", s)
		}
		vals[i] = byte(n)
	}
	if family == ANSI {
		return ANSIPointCode(vals[0], vals[1], vals[2]), nil
	}
	return ITUPointCode(vals[0], vals[1], vals[2]), nil
}

// Label is the routing header carried in every MSU: origin/destination
// point codes, the signalling link selector, and the spare bits family
// variants reserve alongside it (§3).
type Label struct {
	Type  Family
	OPC   PointCode
	DPC   PointCode
	SLS   byte
	Spare byte
}

// Serialize renders l into its family-dependent wire layout: 4 bytes for
// ITU (14-bit DPC, 14-bit OPC, 4-bit SLS), 7 bytes for ANSI (24-bit DPC,
// 24-bit OPC, 5-bit SLS, 3-bit spare) — §6.
func (l Label) Serialize() []byte {
	if l.Type == ANSI {
		out := make([]byte, 7)
		out[0] = byte(l.DPC.Packed)
		out[1] = byte(l.DPC.Packed >> 8)
		out[2] = byte(l.DPC.Packed >> 16)
		out[3] = byte(l.OPC.Packed)
		out[4] = byte(l.OPC.Packed >> 8)
		out[5] = byte(l.OPC.Packed >> 16)
		out[6] = (l.SLS & 0x1F) | (l.Spare&0x07)<<5
		return out
	}
	out := make([]byte, 4)
	dpc := l.DPC.Packed & 0x3FFF
	opc := l.OPC.Packed & 0x3FFF
	v := dpc | opc<<14 | uint32(l.SLS&0x0F)<<28
	out[0] = byte(v)
	out[1] = byte(v >> 8)
	out[2] = byte(v >> 16)
	out[3] = byte(v >> 24)
	return out
}

// ParseLabel decodes a wire-format label of the given family from buf.
func ParseLabel(family Family, buf []byte) (Label, int, error) {
	if family == ANSI {
		if len(buf) < 7 {
			return Label{}, 0, fmt.Errorf("ss7: ANSI label truncated")
		}
		dpc := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16
		opc := uint32(buf[3]) | uint32(buf[4])<<8 | uint32(buf[5])<<16
		return Label{
			Type:  ANSI,
			DPC:   PointCode{Family: ANSI, Packed: dpc},
			OPC:   PointCode{Family: ANSI, Packed: opc},
			SLS:   buf[6] & 0x1F,
			Spare: (buf[6] >> 5) & 0x07,
		}, 7, nil
	}
	if len(buf) < 4 {
		return Label{}, 0, fmt.Errorf("ss7: ITU label truncated")
	}
	v := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	return Label{
		Type:  ITU,
		DPC:   PointCode{Family: ITU, Packed: v & 0x3FFF},
		OPC:   PointCode{Family: ITU, Packed: (v >> 14) & 0x3FFF},
		SLS:   byte((v >> 28) & 0x0F),
	}, 4, nil
}
