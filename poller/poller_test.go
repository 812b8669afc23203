package poller

import (
	"context"
	"encoding/json"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatewayipsync/client/gateway"
	"gatewayipsync/client/provider"
	"gatewayipsync/reconciler"
)

type scriptedDiscoverer struct {
	mu    sync.Mutex
	ips   []string
	calls int
}

// Discover hands out the scripted ips in order, "" meaning a failed lookup,
// and repeats the last one once the script runs out.
func (d *scriptedDiscoverer) Discover(context.Context) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := min(d.calls, len(d.ips)-1)
	d.calls++
	ip := d.ips[i]
	return ip, ip != ""
}

type scriptedReporter struct {
	results  []error
	reported []string
}

func (r *scriptedReporter) Report(_ context.Context, ip string) error {
	r.reported = append(r.reported, ip)
	if len(r.results) == 0 {
		return nil
	}
	err := r.results[0]
	r.results = r.results[1:]
	return err
}

func TestTick_AdvancesOnlyOnSuccess(t *testing.T) {
	d := &scriptedDiscoverer{ips: []string{"10.0.0.2"}}
	r := &scriptedReporter{results: []error{errors.New("503"), nil}}
	l := New(d, r, time.Minute)

	l.Tick(context.Background())
	assert.Empty(t, l.LastApplied())

	l.Tick(context.Background())
	assert.Equal(t, "10.0.0.2", l.LastApplied())

	l.Tick(context.Background())
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.2"}, r.reported)
}

func TestTick_AbsentDiscoveryReportsNothing(t *testing.T) {
	d := &scriptedDiscoverer{ips: []string{"", "10.0.0.1"}}
	r := &scriptedReporter{}
	l := New(d, r, time.Minute)

	l.Tick(context.Background())
	assert.Empty(t, r.reported)

	l.Tick(context.Background())
	assert.Equal(t, []string{"10.0.0.1"}, r.reported)
	assert.Equal(t, "10.0.0.1", l.LastApplied())
}

func TestTick_ReportsChanges(t *testing.T) {
	d := &scriptedDiscoverer{ips: []string{"10.0.0.1", "10.0.0.1", "10.0.0.2", "", "10.0.0.2"}}
	r := &scriptedReporter{}
	l := New(d, r, time.Minute)

	for range 5 {
		l.Tick(context.Background())
	}
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, r.reported)
	assert.Equal(t, "10.0.0.2", l.LastApplied())
}

func TestTick_PanickingReporterIsContained(t *testing.T) {
	d := &scriptedDiscoverer{ips: []string{"10.0.0.2"}}
	l := New(d, ReporterFunc(func(context.Context, string) error { panic("boom") }), time.Minute)

	assert.NotPanics(t, func() { l.Tick(context.Background()) })
	assert.Empty(t, l.LastApplied())
}

type recordingMirror struct {
	got []netip.Addr
	err error
}

func (m *recordingMirror) Update(ip netip.Addr) error {
	m.got = append(m.got, ip)
	return m.err
}

func TestTick_MirrorsAfterConfirmedReport(t *testing.T) {
	ok := &recordingMirror{}
	broken := &recordingMirror{err: errors.New("throttled")}
	d := &scriptedDiscoverer{ips: []string{"10.0.0.2"}}
	r := &scriptedReporter{results: []error{errors.New("down"), nil}}
	l := New(d, r, time.Minute,
		provider.Mirror{Name: "broken", DDNSProvider: broken},
		provider.Mirror{Name: "ok", DDNSProvider: ok},
	)

	l.Tick(context.Background())
	assert.Empty(t, ok.got)

	l.Tick(context.Background())
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.0.0.2")}, ok.got)
	assert.Len(t, broken.got, 1)
	assert.Equal(t, "10.0.0.2", l.LastApplied())
}

func TestRun_StopsOnCancel(t *testing.T) {
	d := &scriptedDiscoverer{ips: []string{"10.0.0.1"}}
	l := New(d, &scriptedReporter{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.calls == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on cancel")
	}
}

func TestRun_TicksEveryInterval(t *testing.T) {
	d := &scriptedDiscoverer{ips: []string{"10.0.0.1"}}
	l := New(d, &scriptedReporter{}, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.calls >= 3
	}, time.Second, time.Millisecond)
}

type fakeGateway struct {
	ip        string
	writes    int
	submitErr error
}

func (f *fakeGateway) Fetch(context.Context) (*gateway.LocalNetworkGateway, error) {
	return &gateway.LocalNetworkGateway{
		Properties: gateway.Properties{GatewayIPAddress: f.ip},
		Extra:      map[string]json.RawMessage{"name": json.RawMessage(`"home"`)},
	}, nil
}

func (f *fakeGateway) Submit(_ context.Context, gw *gateway.LocalNetworkGateway) (*gateway.LocalNetworkGateway, error) {
	f.writes++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.ip = gw.Properties.GatewayIPAddress
	return gw, nil
}

func TestInProcess_Scenario(t *testing.T) {
	gw := &fakeGateway{ip: "10.0.0.1"}
	d := &scriptedDiscoverer{ips: []string{"10.0.0.1", "10.0.0.2", "10.0.0.2"}}
	l := New(d, InProcess(reconciler.New(gw)), time.Minute)

	l.Tick(context.Background())
	assert.Equal(t, "10.0.0.1", l.LastApplied())
	assert.Equal(t, 0, gw.writes)

	l.Tick(context.Background())
	assert.Equal(t, "10.0.0.2", l.LastApplied())
	assert.Equal(t, 1, gw.writes)

	l.Tick(context.Background())
	assert.Equal(t, 1, gw.writes)
}

func TestInProcess_SubmitFailureRetriesNextTick(t *testing.T) {
	gw := &fakeGateway{ip: "10.0.0.1", submitErr: &gateway.TransportError{Op: "submit", Err: errors.New("reset")}}
	d := &scriptedDiscoverer{ips: []string{"10.0.0.2"}}
	l := New(d, InProcess(reconciler.New(gw)), time.Minute)

	l.Tick(context.Background())
	assert.Empty(t, l.LastApplied())
	assert.Equal(t, 1, gw.writes)

	gw.submitErr = nil
	l.Tick(context.Background())
	assert.Equal(t, "10.0.0.2", l.LastApplied())
	assert.Equal(t, 2, gw.writes)
	assert.Equal(t, "10.0.0.2", gw.ip)
}
