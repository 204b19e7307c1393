package ss7

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// RouterFileConfig is the on-disk shape of a router's static configuration
// (§6's "Configuration parameters"), loaded via LoadRouterConfig. Field
// names mirror the key names spec.md gives each parameter so a config file
// reads the same as the control-surface command that would set it.
//
// Mirrors iti/mrnes's desc-topo.go dual YAML/JSON load: one struct, tagged
// for both, chosen by file extension.
type RouterFileConfig struct {
	Transfer       bool     `yaml:"transfer" json:"transfer"`
	SendUPU        bool     `yaml:"sendupu" json:"sendupu"`
	SendTFP        bool     `yaml:"sendtfp" json:"sendtfp"`
	SendProhibited bool     `yaml:"sendprohibited" json:"sendprohibited"`
	SendUnavail    bool     `yaml:"sendunavail" json:"sendunavail"`
	StartTime      int64    `yaml:"starttime" json:"starttime"`
	Isolation      int64    `yaml:"isolation" json:"isolation"`
	TestRoutes     int64    `yaml:"testroutes" json:"testroutes"`
	TestRestricted bool     `yaml:"testrestricted" json:"testrestricted"`
	Local          []string `yaml:"local" json:"local"` // repeatable "TYPE,PC" entries
	Management     bool     `yaml:"management" json:"management"`
}

// LoadRouterConfig reads filename (YAML or JSON by extension, matching
// ReadDevExecList's useYAML-selected unmarshal path) and turns it into a
// RouterConfig plus a flag reporting whether an SNM management entity
// should be attached.
func LoadRouterConfig(filename string) (RouterConfig, bool, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return RouterConfig{}, false, fmt.Errorf("ss7: reading config %s: %w", filename, err)
	}

	var fc RouterFileConfig
	switch strings.ToLower(path.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".json":
		err = json.Unmarshal(data, &fc)
	default:
		return RouterConfig{}, false, fmt.Errorf("ss7: unrecognized config file extension %q", path.Ext(filename))
	}
	if err != nil {
		return RouterConfig{}, false, fmt.Errorf("ss7: parsing config %s: %w", filename, err)
	}

	cfg := RouterConfig{
		Transfer:       fc.Transfer,
		SendUPU:        fc.SendUPU,
		SendTFP:        fc.SendTFP,
		SendProhibited: fc.SendProhibited,
		SendUnavail:    fc.SendUnavail,
		StartTime:      Millis(fc.StartTime),
		Isolation:      Millis(fc.Isolation),
		TestRoutes:     Millis(fc.TestRoutes),
		TestRestricted: fc.TestRestricted,
		Local:          make(map[Family]PointCode),
	}
	for _, entry := range fc.Local {
		family, pc, err := parseLocalEntry(entry)
		if err != nil {
			return RouterConfig{}, false, err
		}
		cfg.Local[family] = pc
	}
	return cfg, fc.Management, nil
}

// parseLocalEntry parses one repeatable "local=TYPE,PC" configuration
// entry (already split from its "local=" prefix) into a Family/PointCode
// pair, e.g. "ITU,1-2-3".
func parseLocalEntry(entry string) (Family, PointCode, error) {
	parts := strings.SplitN(entry, ",", 2)
	if len(parts) != 2 {
		return 0, PointCode{}, fmt.Errorf("ss7: malformed local entry %q, want TYPE,PC", entry)
	}
	family, err := FamilyFromString(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, PointCode{}, err
	}
	pc, err := ParsePointCode(family, strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, PointCode{}, err
	}
	return family, pc, nil
}

// Command is one control-surface invocation (§6's command table), the
// address/parameter shape a management console or scripted test harness
// issues against a running Router/ManagementEntity pair.
type Command struct {
	Name        string // pause, resume, restart, traffic, advertise, prohibit, ...
	Address     string // "TYPE,PC"; no other address form is parsed
	Destination string // "TYPE,PC" for the affected route, when distinct from Address
	SLS         int
	Sequence    uint16
	Slc         byte
	Emergency   bool
}

// Dispatcher applies parsed Commands (§6) to a Router and its optional
// ManagementEntity. It is the runtime counterpart of RouterFileConfig: the
// file sets the router up, the dispatcher drives it afterward.
type Dispatcher struct {
	Router     *Router
	Management *ManagementEntity
}

// Dispatch executes cmd against d.Router/d.Management, returning an error
// for an unknown command name or a malformed address/destination.
func (d *Dispatcher) Dispatch(cmd Command, now Millis) error {
	switch cmd.Name {
	case "pause":
		d.Router.Disable()
		return nil
	case "resume", "restart":
		d.Router.Restart(now)
		return nil
	case "traffic":
		d.Router.Restart(now)
		return nil
	case "advertise":
		if d.Management == nil {
			return fmt.Errorf("ss7: advertise requires a management entity")
		}
		return d.advertiseAll()
	case "prohibit", "restrict", "allow", "congest":
		return d.setRouteState(cmd, stateForCommand(cmd.Name))
	case "test-prohibited":
		return d.sendRouteTest(cmd, RST)
	case "test-restricted":
		return d.sendRouteTest(cmd, RSR)
	case "allowed":
		return d.setRouteState(cmd, Allowed)
	case "changeover":
		return d.changeover(cmd, now)
	case "changeback":
		return d.changeback(cmd, now)
	case "link-inhibit":
		return d.withManagementLink(cmd, d.Management.LinkInhibit)
	case "link-uninhibit":
		return d.withManagementLink(cmd, d.Management.LinkUninhibit)
	case "link-force-uninhibit":
		return d.withManagementLink(cmd, d.Management.LinkForceUninhibit)
	default:
		return fmt.Errorf("ss7: unknown control command %q", cmd.Name)
	}
}

func stateForCommand(name string) RouteState {
	switch name {
	case "prohibit":
		return Prohibited
	case "restrict":
		return Restricted
	case "congest":
		return Congestion
	default:
		return Allowed
	}
}

func (d *Dispatcher) setRouteState(cmd Command, state RouteState) error {
	family, packedDPC, err := parseAddressPC(cmd.Destination)
	if err != nil {
		family, packedDPC, err = parseAddressPC(cmd.Address)
		if err != nil {
			return err
		}
	}
	d.Router.ForceRouteState(family, packedDPC, state, d.Management)
	return nil
}

func (d *Dispatcher) sendRouteTest(cmd Command, code SNMCode) error {
	if d.Management == nil {
		return fmt.Errorf("ss7: %s requires a management entity", cmd.Name)
	}
	family, packedDPC, err := parseAddressPC(cmd.Destination)
	if err != nil {
		family, packedDPC, err = parseAddressPC(cmd.Address)
		if err != nil {
			return err
		}
	}
	d.Management.SendRouteTest(family, packedDPC, code)
	return nil
}

func (d *Dispatcher) advertiseAll() error {
	for _, st := range d.Router.DumpRoutes() {
		d.Management.Advertise(st.Family, st.PackedDPC, st.State)
	}
	return nil
}

func (d *Dispatcher) changeover(cmd Command, now Millis) error {
	if d.Management == nil {
		return fmt.Errorf("ss7: changeover requires a management entity")
	}
	family, packedDPC, err := parseAddressPC(cmd.Address)
	if err != nil {
		return err
	}
	return d.Management.Changeover(family, packedDPC, cmd.SLS, cmd.Emergency, now)
}

func (d *Dispatcher) changeback(cmd Command, now Millis) error {
	if d.Management == nil {
		return fmt.Errorf("ss7: changeback requires a management entity")
	}
	family, packedDPC, err := parseAddressPC(cmd.Address)
	if err != nil {
		return err
	}
	return d.Management.Changeback(family, packedDPC, cmd.SLS, now)
}

func (d *Dispatcher) withManagementLink(cmd Command, fn func(Family, uint32, int) error) error {
	if d.Management == nil {
		return fmt.Errorf("ss7: %s requires a management entity", cmd.Name)
	}
	family, packedDPC, err := parseAddressPC(cmd.Address)
	if err != nil {
		return err
	}
	return fn(family, packedDPC, cmd.SLS)
}

// parseAddressPC parses a "TYPE,PC" address/destination field into its
// Family and packed point code.
func parseAddressPC(s string) (Family, uint32, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("ss7: malformed address %q, want TYPE,PC", s)
	}
	family, err := FamilyFromString(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	pc, err := ParsePointCode(family, strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return family, pc.Packed, nil
}
