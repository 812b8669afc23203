package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gatewayipsync/client/credential"
	"gatewayipsync/client/gateway"
	"gatewayipsync/client/httpretry"
	"gatewayipsync/client/ipecho"
	"gatewayipsync/client/provider"
	"gatewayipsync/client/reporter"
	"gatewayipsync/client/ros"
	"gatewayipsync/config"
	"gatewayipsync/poller"
	"gatewayipsync/reconciler"
	"gatewayipsync/server"
)

const httpTimeout = 30 * time.Second

func loggerLevelFromString(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "error":
		return zerolog.ErrorLevel
	case "warn":
		return zerolog.WarnLevel
	case "info":
		return zerolog.InfoLevel
	case "debug":
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conf, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read app config")
	}
	log.Logger = log.Level(loggerLevelFromString(conf.LoggerLevel))

	if err := conf.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid app config")
	}
	log.Info().Msgf("running in %s mode", conf.Mode)

	switch conf.Mode {
	case config.ModeUpdater:
		rec := newReconciler(conf)
		if err := server.Run(ctx, conf.ListenAddr, server.NewHandler(rec)); err != nil {
			log.Fatal().Err(err).Msg("updater server failed")
		}
	case config.ModePoller:
		// no client timeout here, the transport bounds each attempt on its own
		client := &http.Client{
			Transport: httpretry.NewTransport(http.DefaultTransport, conf.ReportAttempts, conf.ReportDelay, httpTimeout),
		}
		newLoop(conf, reporter.New(client, conf.FunctionURI)).Run(ctx)
	case config.ModeStandalone:
		rec := newReconciler(conf)
		serverErr := make(chan error, 1)
		go func() {
			serverErr <- server.Run(ctx, conf.ListenAddr, server.NewHandler(rec))
		}()
		newLoop(conf, poller.InProcess(rec)).Run(ctx)
		if err := <-serverErr; err != nil {
			log.Error().Err(err).Msg("updater server failed")
		}
	}
	log.Info().Msg("shutdown complete")
}

func newReconciler(conf *config.Config) *reconciler.Reconciler {
	identity, err := gateway.NewIdentity(conf.SubscriptionID, conf.ResourceGroup, conf.LocalGatewayName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve gateway identity")
	}
	tokens, err := credential.NewAzure()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init credential provider")
	}
	log.Info().Msgf("managing local gateway %s", identity)
	client := gateway.NewClient(&http.Client{Timeout: httpTimeout}, tokens, identity, conf.ManagementEndpoint)
	return reconciler.New(client)
}

func newLoop(conf *config.Config, rep poller.Reporter) *poller.Loop {
	mirrors, err := provider.FromConfig(conf.DNSMirror)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init dns mirrors")
	}

	var discoverer poller.Discoverer
	switch conf.Discovery {
	case config.DiscoveryRouterOS:
		discoverer = ros.NewClient(conf.RouterOS)
	default:
		discoverer = ipecho.New(&http.Client{Timeout: httpTimeout}, conf.IPEchoURI)
	}
	return poller.New(discoverer, rep, conf.PollInterval, mirrors...)
}
