package ss7

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Access is the SNMP-style access level of a MIB entry.
type Access int

const (
	AccessibleForNotify Access = iota
	ReadOnly
	ReadWrite
	ReadCreate
)

// AccessFromString parses the access token used in MIB config files.
func AccessFromString(s string) (Access, error) {
	switch s {
	case "accessible-for-notify":
		return AccessibleForNotify, nil
	case "read-only":
		return ReadOnly, nil
	case "read-write":
		return ReadWrite, nil
	case "read-create":
		return ReadCreate, nil
	default:
		return 0, fmt.Errorf("ss7: unknown MIB access %q", s)
	}
}

func (a Access) String() string {
	switch a {
	case AccessibleForNotify:
		return "accessible-for-notify"
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	case ReadCreate:
		return "read-create"
	default:
		return "unknown"
	}
}

// MIBEntryConfig is one section of the MIB definition file, keyed by its
// numeric OID (§4.2).
type MIBEntryConfig struct {
	Name     string `json:"name" yaml:"name"`
	Access   string `json:"access" yaml:"access"`
	Type     string `json:"type" yaml:"type"`
	Revision string `json:"revision" yaml:"revision"`
}

// MIBFile is the on-disk MIB definition, an OID-keyed map of entries.
// Loaded with either YAML or JSON depending on file extension, mirroring
// desc-topo.go's ReadDevExecList dual-format pattern.
type MIBFile struct {
	Entries map[string]MIBEntryConfig `json:"entries" yaml:"entries"`
}

// MIBEntry is one resolved node in the MIB tree: its OID, symbolic name,
// access level, type name, revision string, and its position in
// insertion order (the index byOID maps its OID to).
type MIBEntry struct {
	OID      string
	Name     string
	Access   Access
	Type     string
	Revision string
	order    int
}

// MIB is the ordered OID→metadata dictionary (C2). Entries are kept in
// AddEntry order. LoadMIBFile adds them in Go map iteration order, so a
// MIB loaded from a file does not keep the file's definition order.
type MIB struct {
	entries []MIBEntry
	byOID   map[string]int
}

// NewMIB creates an empty MIB tree.
func NewMIB() *MIB {
	return &MIB{byOID: make(map[string]int)}
}

// LoadMIBFile reads a MIB definition file, selecting YAML or JSON
// unmarshalling by extension (desc-topo.go's ReadDevExecList pattern).
func LoadMIBFile(filename string) (*MIB, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("ss7: reading MIB file: %w", err)
	}

	var file MIBFile
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".json":
		err = json.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("ss7: unrecognized MIB file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("ss7: parsing MIB file: %w", err)
	}

	m := NewMIB()
	oids := make([]string, 0, len(file.Entries))
	for oid := range file.Entries {
		oids = append(oids, oid)
	}
	// Definition order is not recoverable from a decoded Go map; callers
	// that care about a specific walk order should use AddEntry directly
	// in the order they want (e.g. from a pre-sorted config source).
	for _, oid := range oids {
		cfg := file.Entries[oid]
		access, aerr := AccessFromString(cfg.Access)
		if aerr != nil {
			return nil, aerr
		}
		m.AddEntry(MIBEntry{OID: oid, Name: cfg.Name, Access: access, Type: cfg.Type, Revision: cfg.Revision})
	}
	return m, nil
}

// AddEntry appends e to the MIB in definition order.
func (m *MIB) AddEntry(e MIBEntry) {
	e.order = len(m.entries)
	m.entries = append(m.entries, e)
	m.byOID[e.OID] = e.order
}

// FindByName does a linear scan for the entry with the given symbolic
// name (§4.2).
func (m *MIB) FindByName(name string) (MIBEntry, bool) {
	for _, e := range m.entries {
		if e.Name == name {
			return e, true
		}
	}
	return MIBEntry{}, false
}

// FindByOID does an exact match; failing that, strips one trailing ".N"
// component and retries, up to two strips, setting Index on a match found
// after stripping (models scalar-vs-table lookup, §4.2).
func (m *MIB) FindByOID(oid string) (entry MIBEntry, index int, ok bool) {
	cur := oid
	for strips := 0; strips <= 2; strips++ {
		if i, present := m.byOID[cur]; present {
			e := m.entries[i]
			if strips == 0 {
				return e, 0, true
			}
			idx, parseErr := oidTrailingIndex(oid, cur)
			if parseErr != nil {
				return MIBEntry{}, 0, false
			}
			return e, idx, true
		}
		next, stripped := stripLastComponent(cur)
		if !stripped {
			break
		}
		cur = next
	}
	return MIBEntry{}, 0, false
}

func stripLastComponent(oid string) (string, bool) {
	i := strings.LastIndexByte(oid, '.')
	if i < 0 {
		return oid, false
	}
	return oid[:i], true
}

// oidTrailingIndex extracts the numeric suffix of full relative to base
// (full = base + "." + N [+ ...]), returning just the first stripped
// component's value as the table index.
func oidTrailingIndex(full, base string) (int, error) {
	if !strings.HasPrefix(full, base+".") {
		return 0, fmt.Errorf("ss7: %q is not a suffix of %q", full, base)
	}
	rest := full[len(base)+1:]
	first := rest
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		first = rest[:i]
	}
	return strconv.Atoi(first)
}

// FindNext returns the lexicographically-next entry after oid whose
// access is strictly greater than AccessibleForNotify (§4.2's
// GETNEXT-style walk).
func (m *MIB) FindNext(oid string) (MIBEntry, bool) {
	best := -1
	for i, e := range m.entries {
		if e.Access <= AccessibleForNotify {
			continue
		}
		if e.OID <= oid {
			continue
		}
		if best == -1 || e.OID < m.entries[best].OID {
			best = i
		}
	}
	if best == -1 {
		return MIBEntry{}, false
	}
	return m.entries[best], true
}

// FindRevision walks OID ancestors (stripping one trailing component at a
// time) starting at name's entry, returning the first non-empty Revision
// found (§4.2).
func (m *MIB) FindRevision(name string) (string, bool) {
	e, ok := m.FindByName(name)
	if !ok {
		return "", false
	}
	oid := e.OID
	for {
		if idx, present := m.byOID[oid]; present && m.entries[idx].Revision != "" {
			return m.entries[idx].Revision, true
		}
		next, stripped := stripLastComponent(oid)
		if !stripped {
			return "", false
		}
		oid = next
	}
}
