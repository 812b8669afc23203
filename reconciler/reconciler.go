package reconciler

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/rs/zerolog/log"

	"gatewayipsync/client/gateway"
	"gatewayipsync/metrics"
)

type GatewayClient interface {
	Fetch(ctx context.Context) (*gateway.LocalNetworkGateway, error)
	Submit(ctx context.Context, gw *gateway.LocalNetworkGateway) (*gateway.LocalNetworkGateway, error)
}

// Reconciler brings the gateway's peer address in line with a requested IP.
// It keeps no state between calls, so concurrent use is fine; racing writers
// resolve as last-write-wins on the remote side.
type Reconciler struct {
	client GatewayClient
}

func New(client GatewayClient) *Reconciler {
	return &Reconciler{client: client}
}

func (r *Reconciler) Reconcile(ctx context.Context, requestedIP string) (out Outcome) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			log.Error().Msgf("[reconciler]: panic while reconciling %q: %v", requestedIP, p)
			out = Outcome{
				Status: Failed,
				IP:     requestedIP,
				Err:    fmt.Errorf("%w: %v", ErrUnexpected, p),
			}
		}
		metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
		metrics.ReconcileTotal.WithLabelValues(out.Status.String(), out.Reason()).Inc()
	}()

	if _, err := netip.ParseAddr(requestedIP); err != nil {
		log.Warn().Msgf("[reconciler]: rejected %q: not an ip address", requestedIP)
		return Outcome{
			Status: Failed,
			IP:     requestedIP,
			Err:    fmt.Errorf("%w: %w", ErrInvalidInput, err),
		}
	}
	log.Info().Msgf("[reconciler]: requested ip address is %s", requestedIP)

	current, err := r.client.Fetch(ctx)
	if err != nil {
		log.Error().Err(err).Msg("[reconciler]: failed to fetch local gateway")
		return Outcome{
			Status: Failed,
			IP:     requestedIP,
			Err:    fmt.Errorf("%w: %w", ErrFetchFailed, err),
		}
	}
	currentIP := current.Properties.GatewayIPAddress
	log.Info().Msgf("[reconciler]: current local gateway ip address is %s", currentIP)

	// exact string match, no normalisation of equivalent forms
	if currentIP == requestedIP {
		return Outcome{Status: Unchanged, IP: requestedIP, Previous: currentIP}
	}

	log.Info().Msgf("[reconciler]: ip addresses differ, updating local gateway %s -> %s", currentIP, requestedIP)
	result, err := r.client.Submit(ctx, current.WithGatewayIP(requestedIP))
	if err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			log.Error().
				Int("status", apiErr.StatusCode).
				Str("body", apiErr.Body).
				Msg("[reconciler]: local gateway was not updated, non-success response")
		} else {
			log.Error().Err(err).Msg("[reconciler]: local gateway was not updated")
		}
		return Outcome{
			Status:   Failed,
			IP:       requestedIP,
			Previous: currentIP,
			Err:      fmt.Errorf("%w: %w", ErrRequestRejected, err),
		}
	}

	if got := result.Properties.GatewayIPAddress; got != requestedIP {
		log.Warn().Msgf("[reconciler]: update accepted but gateway ip is %s, expected %s", got, requestedIP)
		return Outcome{
			Status:   Failed,
			IP:       requestedIP,
			Previous: currentIP,
			Err:      fmt.Errorf("%w: got %s", ErrVerificationMismatch, got),
		}
	}

	log.Info().Msgf("[reconciler]: local gateway updated to %s", requestedIP)
	return Outcome{Status: Updated, IP: requestedIP, Previous: currentIP}
}
