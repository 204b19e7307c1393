package ss7

import "fmt"

// SNMCode is an SNM management message type, numbered with its Q.704
// message group in the top nibble (CHM/ECM/FCM/TFM/RSM/MIM/TRM/DLM/UFC)
// and the specific message in the low nibble, per §4.5.
type SNMCode byte

const (
	// CHM — changeover.
	COO SNMCode = 0x11
	COA SNMCode = 0x12
	XCO SNMCode = 0x13
	XCA SNMCode = 0x14
	CBD SNMCode = 0x15
	CBA SNMCode = 0x16
	CSS SNMCode = 0x17
	CNS SNMCode = 0x18
	CNP SNMCode = 0x19

	// ECM — emergency changeover.
	ECO SNMCode = 0x21
	ECA SNMCode = 0x22

	// FCM — flow control.
	TFC SNMCode = 0x31

	// TFM — transfer.
	TFP SNMCode = 0x41
	TFR SNMCode = 0x42
	TFA SNMCode = 0x43

	// RSM — route/signalling-link test.
	RST SNMCode = 0x51
	RSR SNMCode = 0x52

	// MIM — management inhibiting.
	LIN SNMCode = 0x61
	LUN SNMCode = 0x62
	LIA SNMCode = 0x63
	LUA SNMCode = 0x64
	LID SNMCode = 0x65
	LFU SNMCode = 0x66
	LLT SNMCode = 0x67
	LRT SNMCode = 0x68

	// TRM — traffic restart.
	TRA SNMCode = 0x71

	// DLM — data link.
	RCT SNMCode = 0x81

	// UFC — user part flow control.
	UPU SNMCode = 0x91
)

var snmCodeNames = map[SNMCode]string{
	COO: "COO", COA: "COA", XCO: "XCO", XCA: "XCA", CBD: "CBD", CBA: "CBA",
	CSS: "CSS", CNS: "CNS", CNP: "CNP", ECO: "ECO", ECA: "ECA", TFC: "TFC",
	TFP: "TFP", TFR: "TFR", TFA: "TFA", RST: "RST", RSR: "RSR",
	LIN: "LIN", LUN: "LUN", LIA: "LIA", LUA: "LUA", LID: "LID", LFU: "LFU",
	LLT: "LLT", LRT: "LRT", TRA: "TRA", RCT: "RCT", UPU: "UPU",
}

func (c SNMCode) String() string {
	if n, ok := snmCodeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("SNM(0x%02X)", byte(c))
}

// RouteStateFor maps the management codes that carry route-state
// information onto the RouteState they assert (router.cpp's
// getStateFromCmd).
func RouteStateFor(code SNMCode) RouteState {
	switch code {
	case TFP, RST:
		return Prohibited
	case TFR, RSR:
		return Restricted
	case TFC:
		return Congestion
	case TFA, TRA:
		return Allowed
	default:
		return Unknown
	}
}

// StateCode returns the TFx code that advertises state for family-level
// route-state notification (routeChanged's "prohibit"/"restrict"/
// "congest"/"allow" choice, §4.4).
func StateCode(state RouteState) (SNMCode, string) {
	switch state {
	case Prohibited:
		return TFP, "prohibit"
	case Restricted:
		return TFR, "restrict"
	case Congestion:
		return TFC, "congest"
	case Allowed:
		return TFA, "allow"
	default:
		return TFP, "prohibit"
	}
}

// SNMMessage is a decoded SNM management payload. Not every field applies
// to every Code; ParseSNM only populates the ones that code's layout
// defines (§4.5).
type SNMMessage struct {
	Code SNMCode

	DestPC PointCode // TFP/TFR/TFA/TFC, RST/RSR, UPU
	Level  byte      // TFC only (SUPPLEMENTED FEATURES #2)

	Sequence uint16 // COO/COA/ECO/ECA/XCO/XCA
	Slc      byte   // ANSI changeover slc nibble

	Code2 uint16 // CBD/CBA "code" field, same layout as Sequence

	Cause byte // UPU
	Part  byte // UPU

	Pattern []byte // SLTM/SLTA test pattern
}

func packPC(pc PointCode) []byte {
	if pc.Family == ANSI {
		return []byte{byte(pc.Packed), byte(pc.Packed >> 8), byte(pc.Packed >> 16)}
	}
	return []byte{byte(pc.Packed), byte(pc.Packed >> 8)}
}

func unpackPC(family Family, buf []byte) (PointCode, int, error) {
	if family == ANSI {
		if len(buf) < 3 {
			return PointCode{}, 0, fmt.Errorf("ss7: SNM payload too short for ANSI PC")
		}
		return PointCode{Family: ANSI, Packed: uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16}, 3, nil
	}
	if len(buf) < 2 {
		return PointCode{}, 0, fmt.Errorf("ss7: SNM payload too short for ITU PC")
	}
	return PointCode{Family: ITU, Packed: uint32(buf[0]) | uint32(buf[1])<<8}, 2, nil
}

// BuildTFx encodes a TFP/TFR/TFA message: code, destination PC, one spare
// byte (§4.5).
func BuildTFx(code SNMCode, destPC PointCode) []byte {
	out := []byte{byte(code)}
	out = append(out, packPC(destPC)...)
	out = append(out, 0x00)
	return out
}

// BuildTFC encodes a TFC message: code, destination PC, spare byte,
// congestion level (SUPPLEMENTED FEATURES #2).
func BuildTFC(destPC PointCode, level byte) []byte {
	out := []byte{byte(TFC)}
	out = append(out, packPC(destPC)...)
	out = append(out, 0x00, level)
	return out
}

// ParseTFC parses a TFC payload, recovering the congestion level alongside
// the destination PC.
func ParseTFC(family Family, payload []byte) (SNMMessage, error) {
	if len(payload) < 1 || SNMCode(payload[0]) != TFC {
		return SNMMessage{}, fmt.Errorf("ss7: not a TFC payload")
	}
	pc, n, err := unpackPC(family, payload[1:])
	if err != nil {
		return SNMMessage{}, err
	}
	pos := 1 + n + 1 // spare byte
	if len(payload) <= pos {
		return SNMMessage{}, fmt.Errorf("ss7: TFC payload missing congestion level")
	}
	return SNMMessage{Code: TFC, DestPC: pc, Level: payload[pos]}, nil
}

// BuildRouteTest encodes an RST/RSR message: code, destination PC.
func BuildRouteTest(code SNMCode, destPC PointCode) []byte {
	out := []byte{byte(code)}
	return append(out, packPC(destPC)...)
}

func encodeSeqField(seq uint16, slc byte, family Family) []byte {
	if family == ANSI {
		b0 := (slc & 0x0F) | byte(seq&0x0F)<<4
		b1 := byte(seq >> 4)
		return []byte{b0, b1}
	}
	return []byte{byte(seq & 0x7F)}
}

func decodeSeqField(family Family, buf []byte) (seq uint16, slc byte, n int, err error) {
	if family == ANSI {
		if len(buf) < 2 {
			return 0, 0, 0, fmt.Errorf("ss7: ANSI changeover payload too short")
		}
		slc = buf[0] & 0x0F
		seq = uint16(buf[0]>>4) | uint16(buf[1])<<4
		return seq, slc, 2, nil
	}
	if len(buf) < 1 {
		return 0, 0, 0, fmt.Errorf("ss7: ITU changeover payload too short")
	}
	return uint16(buf[0] & 0x7F), 0, 1, nil
}

// BuildChangeover encodes COO/COA/ECO/ECA/XCO/XCA: code plus the
// family-dependent sequence layout (§4.5).
func BuildChangeover(code SNMCode, family Family, sequence uint16, slc byte) []byte {
	out := []byte{byte(code)}
	return append(out, encodeSeqField(sequence, slc, family)...)
}

// ParseChangeover decodes a changeover-family payload.
func ParseChangeover(family Family, payload []byte) (SNMMessage, error) {
	if len(payload) < 1 {
		return SNMMessage{}, fmt.Errorf("ss7: empty SNM payload")
	}
	code := SNMCode(payload[0])
	seq, slc, _, err := decodeSeqField(family, payload[1:])
	if err != nil {
		return SNMMessage{}, err
	}
	return SNMMessage{Code: code, Sequence: seq, Slc: slc}, nil
}

// BuildChangeback encodes CBD/CBA: code plus the same field layout as
// changeover, carrying a changeback "code" value instead of a sequence.
func BuildChangeback(code SNMCode, family Family, cbCode uint16, slc byte) []byte {
	out := []byte{byte(code)}
	return append(out, encodeSeqField(cbCode, slc, family)...)
}

// ParseChangeback decodes a CBD/CBA payload.
func ParseChangeback(family Family, payload []byte) (SNMMessage, error) {
	if len(payload) < 1 {
		return SNMMessage{}, fmt.Errorf("ss7: empty SNM payload")
	}
	code := SNMCode(payload[0])
	seq, slc, _, err := decodeSeqField(family, payload[1:])
	if err != nil {
		return SNMMessage{}, err
	}
	return SNMMessage{Code: code, Code2: seq, Slc: slc}, nil
}

// BuildUPU encodes a User Part Unavailable message: code, destination PC,
// then cause (high nibble) + part (low nibble), §4.5.
func BuildUPU(destPC PointCode, part, cause byte) []byte {
	out := []byte{byte(UPU)}
	out = append(out, packPC(destPC)...)
	out = append(out, (cause<<4)|(part&0x0F))
	return out
}

// ParseUPU decodes a UPU payload.
func ParseUPU(family Family, payload []byte) (SNMMessage, error) {
	if len(payload) < 1 || SNMCode(payload[0]) != UPU {
		return SNMMessage{}, fmt.Errorf("ss7: not a UPU payload")
	}
	pc, n, err := unpackPC(family, payload[1:])
	if err != nil {
		return SNMMessage{}, err
	}
	pos := 1 + n
	if len(payload) <= pos {
		return SNMMessage{}, fmt.Errorf("ss7: UPU payload missing cause/part byte")
	}
	b := payload[pos]
	return SNMMessage{Code: UPU, DestPC: pc, Cause: b >> 4, Part: b & 0x0F}, nil
}

// BuildCodeOnly encodes a message whose body is just its code byte (TRA,
// the inhibit family LIN/LUN/LIA/LUA/LID/LFU/LLT/LRT, and RCT/CSS/CNS/CNP
// — §4.5 gives these no further payload fields).
func BuildCodeOnly(code SNMCode) []byte {
	return []byte{byte(code)}
}

// BuildSLTM encodes a Signalling Link Test Message with the given test
// pattern (§4.5's SLTM/SLTA maintenance peer).
func BuildSLTM(pattern []byte) []byte {
	out := append([]byte{byte(sltm)}, pattern...)
	return out
}

// BuildSLTA echoes pattern back as an SLTA.
func BuildSLTA(pattern []byte) []byte {
	out := append([]byte{byte(slta)}, pattern...)
	return out
}

// sltm/slta are MTN-group maintenance codes, distinct from the SNM
// vocabulary proper but parsed through the same dispatcher, since
// ManagementEntity accepts both the SNM and the MTN service indicators
// (§4.5).
const (
	sltm SNMCode = 0xA1
	slta SNMCode = 0xA2
)

// ParseSLT decodes an SLTM/SLTA payload, returning its test pattern.
func ParseSLT(payload []byte) (SNMMessage, error) {
	if len(payload) < 1 {
		return SNMMessage{}, fmt.Errorf("ss7: empty maintenance payload")
	}
	code := SNMCode(payload[0])
	if code != sltm && code != slta {
		return SNMMessage{}, fmt.Errorf("ss7: not an SLT payload")
	}
	pattern := make([]byte, len(payload)-1)
	copy(pattern, payload[1:])
	return SNMMessage{Code: code, Pattern: pattern}, nil
}

// ParseSNM dispatches a management-plane MSU payload to the right parser
// by its leading code byte (§4.5: "Parsing. Keyed by the first payload
// byte.").
func ParseSNM(family Family, payload []byte) (SNMMessage, error) {
	if len(payload) < 1 {
		return SNMMessage{}, fmt.Errorf("ss7: empty SNM payload")
	}
	switch SNMCode(payload[0]) {
	case TFP, TFR, TFA:
		pc, _, err := unpackPC(family, payload[1:])
		if err != nil {
			return SNMMessage{}, err
		}
		return SNMMessage{Code: SNMCode(payload[0]), DestPC: pc}, nil
	case TFC:
		return ParseTFC(family, payload)
	case RST, RSR:
		pc, _, err := unpackPC(family, payload[1:])
		if err != nil {
			return SNMMessage{}, err
		}
		return SNMMessage{Code: SNMCode(payload[0]), DestPC: pc}, nil
	case COO, COA, ECO, ECA, XCO, XCA:
		return ParseChangeover(family, payload)
	case CBD, CBA:
		return ParseChangeback(family, payload)
	case UPU:
		return ParseUPU(family, payload)
	case sltm, slta:
		return ParseSLT(payload)
	default:
		return SNMMessage{Code: SNMCode(payload[0])}, nil
	}
}
