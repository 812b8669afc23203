package poller

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/rs/zerolog/log"

	"gatewayipsync/client/provider"
	"gatewayipsync/metrics"
	"gatewayipsync/reconciler"
)

type Discoverer interface {
	Discover(ctx context.Context) (string, bool)
}

// Reporter hands a new address to whoever applies it. A nil error means the
// gateway is known to carry ip.
type Reporter interface {
	Report(ctx context.Context, ip string) error
}

// ReporterFunc adapts a plain function to Reporter.
type ReporterFunc func(ctx context.Context, ip string) error

func (f ReporterFunc) Report(ctx context.Context, ip string) error {
	return f(ctx, ip)
}

// InProcess reports straight into a reconciler, for running both roles in
// one process.
func InProcess(r *reconciler.Reconciler) Reporter {
	return ReporterFunc(func(ctx context.Context, ip string) error {
		out := r.Reconcile(ctx, ip)
		if out.Succeeded() {
			return nil
		}
		return out.Err
	})
}

// Loop polls the public address and reports it whenever it differs from the
// last address that was applied successfully. lastApplied only moves forward
// on a confirmed report, so a failed tick is retried on the next one.
type Loop struct {
	discoverer Discoverer
	reporter   Reporter
	mirrors    []provider.Mirror
	interval   time.Duration

	lastApplied string
}

func New(discoverer Discoverer, reporter Reporter, interval time.Duration, mirrors ...provider.Mirror) *Loop {
	return &Loop{
		discoverer: discoverer,
		reporter:   reporter,
		mirrors:    mirrors,
		interval:   interval,
	}
}

// LastApplied returns the last successfully reported address, empty when
// nothing has been applied since start.
func (l *Loop) LastApplied() string {
	return l.lastApplied
}

// Run ticks immediately and then every interval until ctx is cancelled.
// Cancellation interrupts the wait; an in-flight tick is left to finish.
func (l *Loop) Run(ctx context.Context) {
	for ctx.Err() == nil {
		l.Tick(ctx)
		if !l.sleep(ctx) {
			break
		}
	}
	log.Info().Msg("[poller]: stopped")
}

func (l *Loop) sleep(ctx context.Context) bool {
	log.Info().Msgf("[poller]: waiting %s", l.interval)
	timer := time.NewTimer(l.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Tick runs one discover, compare, report round. It never panics.
func (l *Loop) Tick(ctx context.Context) {
	result := metrics.TickReportFailed
	defer func() {
		if p := recover(); p != nil {
			log.Error().Msgf("[poller]: tick panicked: %v", p)
			result = metrics.TickReportFailed
		}
		metrics.PollTicksTotal.WithLabelValues(result).Inc()
	}()

	ip, ok := l.discoverer.Discover(ctx)
	if !ok {
		log.Info().Msg("[poller]: unable to retrieve the current ip address")
		result = metrics.TickAbsent
		return
	}
	log.Info().Msgf("[poller]: current ip is %s", ip)

	if ip == l.lastApplied {
		log.Info().Msg("[poller]: ip address is unchanged")
		result = metrics.TickUnchanged
		return
	}

	log.Info().Msgf("[poller]: checking local gateway is up to date with %s", ip)
	if err := l.reporter.Report(ctx, ip); err != nil {
		log.Error().Err(err).Msg("[poller]: failed to report ip change, will retry next tick")
		return
	}
	l.lastApplied = ip
	result = metrics.TickReported

	l.pushMirrors(ip)
}

func (l *Loop) pushMirrors(ip string) {
	if len(l.mirrors) == 0 {
		return
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		log.Error().Err(err).Msg("[poller]: not mirroring unparsable address")
		return
	}
	for _, m := range l.mirrors {
		if err := safeUpdate(m, addr); err != nil {
			log.Error().Err(err).Msgf("[poller]: dns mirror %s failed", m.Name)
			metrics.MirrorUpdatesTotal.WithLabelValues(m.Name, "error").Inc()
			continue
		}
		metrics.MirrorUpdatesTotal.WithLabelValues(m.Name, "success").Inc()
	}
}

func safeUpdate(m provider.Mirror, addr netip.Addr) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return m.Update(addr)
}
