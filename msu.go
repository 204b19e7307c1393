package ss7

import "fmt"

// ServiceIndicator identifies the payload's owning protocol, carried in
// the low nibble of the MSU's Service Information Octet (SIO).
type ServiceIndicator byte

// Service indicators this module needs to distinguish (§4.4's allowed-state
// selection, §4.5's SNM). The full Q.704 repertoire beyond these is a
// Non-goal (spec.md §1).
const (
	SIManagement ServiceIndicator = 0x0 // SNM
	SIMaintenance ServiceIndicator = 0x1 // MTN
	SIMaintenanceSpecial ServiceIndicator = 0x2 // MTNS
	SISCCP        ServiceIndicator = 0x3
	SITUP         ServiceIndicator = 0x4
	SIISUP        ServiceIndicator = 0x5
)

// SubService carries the network indicator and message priority (top
// nibble of the SIO).
type SubService byte

// NetworkIndicator extracts the 2-bit network indicator from a SubService.
func (s SubService) NetworkIndicator() byte { return byte(s) & 0x03 }

// Priority extracts the 2-bit message priority from a SubService.
func (s SubService) Priority() byte { return (byte(s) >> 2) & 0x03 }

// MSU is a Message Signal Unit: an opaque byte buffer exposing the service
// indicator, sub-service field, routing label, and payload (§3). The codec
// only needs to know where the label ends; everything past it belongs to
// the user part.
type MSU struct {
	SIF     ServiceIndicator
	SSF     SubService
	Label   Label
	Payload []byte
}

// NewMSU builds an MSU from its component fields.
func NewMSU(sif ServiceIndicator, ssf SubService, label Label, payload []byte) MSU {
	return MSU{SIF: sif, SSF: ssf, Label: label, Payload: payload}
}

// Encode renders m into wire bytes: one SIO byte, the family-dependent
// label, then the payload verbatim.
func (m MSU) Encode() []byte {
	labelBytes := m.Label.Serialize()
	out := make([]byte, 0, 1+len(labelBytes)+len(m.Payload))
	sio := byte(m.SIF)&0x0F | byte(m.SSF)<<4
	out = append(out, sio)
	out = append(out, labelBytes...)
	out = append(out, m.Payload...)
	return out
}

// DecodeMSU parses buf as an MSU of the given point code family.
func DecodeMSU(family Family, buf []byte) (MSU, error) {
	if len(buf) < 1 {
		return MSU{}, fmt.Errorf("ss7: MSU too short")
	}
	sio := buf[0]
	label, n, err := ParseLabel(family, buf[1:])
	if err != nil {
		return MSU{}, err
	}
	return MSU{
		SIF:     ServiceIndicator(sio & 0x0F),
		SSF:     SubService(sio >> 4),
		Label:   label,
		Payload: buf[1+n:],
	}, nil
}
