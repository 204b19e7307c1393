package ss7

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadRouterConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	contents := "transfer: true\nsendupu: true\ntestroutes: 5000\nlocal:\n  - \"ITU,1-2-3\"\nmanagement: true\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, management, err := LoadRouterConfig(path)
	require.NoError(t, err)
	require.True(t, cfg.Transfer)
	require.True(t, cfg.SendUPU)
	require.Equal(t, Millis(5000), cfg.TestRoutes)
	require.True(t, management)

	pc, ok := cfg.Local[ITU]
	require.True(t, ok)
	require.Equal(t, "1-2-3", pc.String())
}

func TestLoadRouterConfigJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.json")
	contents := `{"transfer": false, "sendtfp": true, "local": ["ANSI,5-5-5"]}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, management, err := LoadRouterConfig(path)
	require.NoError(t, err)
	require.False(t, cfg.Transfer)
	require.True(t, cfg.SendTFP)
	require.False(t, management)

	pc, ok := cfg.Local[ANSI]
	require.True(t, ok)
	require.Equal(t, "5-5-5", pc.String())
}

func TestLoadRouterConfigUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.txt")
	require.NoError(t, os.WriteFile(path, []byte("transfer: true"), 0o644))
	_, _, err := LoadRouterConfig(path)
	require.Error(t, err)
}

func TestLoadRouterConfigMalformedLocalEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte("local:\n  - \"not-a-valid-entry\"\n"), 0o644))
	_, _, err := LoadRouterConfig(path)
	require.Error(t, err)
}

func TestDispatcherProhibitRestrictAllowCongest(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{Transfer: true})
	timers := NewTimerQueue("dispatch-test")
	trace := NewTrace("dispatch-test", false)
	management := NewManagementEntity(router, timers, trace)

	dpc, _ := ParsePointCode(ITU, "5-5-5")
	n := newTestNetwork("N")
	n.routePrios[dpc.Packed] = 1
	router.Attach(n)

	d := &Dispatcher{Router: router, Management: management}

	err := d.Dispatch(Command{Name: "prohibit", Destination: "ITU,5-5-5"}, 0)
	require.NoError(t, err)
	require.Equal(t, Prohibited, router.routes[ITU].Find(dpc.Packed).State())

	err = d.Dispatch(Command{Name: "allow", Destination: "ITU,5-5-5"}, 0)
	require.NoError(t, err)
	require.Equal(t, Allowed, router.routes[ITU].Find(dpc.Packed).State())

	err = d.Dispatch(Command{Name: "congest", Destination: "ITU,5-5-5"}, 0)
	require.NoError(t, err)
	require.Equal(t, Congestion, router.routes[ITU].Find(dpc.Packed).State())
}

func TestDispatcherPauseResume(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{})
	d := &Dispatcher{Router: router}

	require.NoError(t, d.Dispatch(Command{Name: "resume"}, 0))
	require.Equal(t, Restarting1, router.State())

	require.NoError(t, d.Dispatch(Command{Name: "pause"}, 0))
	require.Equal(t, Disabled, router.State())
}

func TestDispatcherChangeoverRequiresManagement(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{})
	d := &Dispatcher{Router: router}
	err := d.Dispatch(Command{Name: "changeover", Address: "ITU,5-5-5"}, 0)
	require.Error(t, err)
}

func TestDispatcherLinkInhibit(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{})
	timers := NewTimerQueue("dispatch-test")
	trace := NewTrace("dispatch-test", false)
	management := NewManagementEntity(router, timers, trace)

	dpc, _ := ParsePointCode(ITU, "5-5-5")
	n := newTestNetwork("N")
	n.routePrios[dpc.Packed] = 1
	router.Attach(n)

	d := &Dispatcher{Router: router, Management: management}
	err := d.Dispatch(Command{Name: "link-inhibit", Address: "ITU,5-5-5"}, 0)
	require.NoError(t, err)
	require.Len(t, n.transmits, 1)
}

func TestDispatcherUnknownCommand(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{})
	d := &Dispatcher{Router: router}
	err := d.Dispatch(Command{Name: "bogus"}, 0)
	require.Error(t, err)
}

func TestDispatcherAdvertiseAll(t *testing.T) {
	router, _ := newTestRouter(RouterConfig{})
	timers := NewTimerQueue("dispatch-test")
	trace := NewTrace("dispatch-test", false)
	management := NewManagementEntity(router, timers, trace)

	dpc, _ := ParsePointCode(ITU, "5-5-5")
	n := newTestNetwork("N")
	n.routePrios[dpc.Packed] = 1
	router.Attach(n)

	d := &Dispatcher{Router: router, Management: management}
	require.NoError(t, d.Dispatch(Command{Name: "advertise"}, 0))
	require.Len(t, n.transmits, 1)
}
