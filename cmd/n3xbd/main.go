// Package main provides n3xbd - a minimal OTC-trading relay node,
// demonstrating identity, relay transport, and Maker actor wiring.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/n3xb-core/internal/comms"
	"github.com/klingon-exchange/n3xb-core/internal/config"
	"github.com/klingon-exchange/n3xb-core/internal/identity"
	"github.com/klingon-exchange/n3xb-core/internal/maker"
	"github.com/klingon-exchange/n3xb-core/internal/relay"
	"github.com/klingon-exchange/n3xb-core/internal/relaylog"
	"github.com/klingon-exchange/n3xb-core/internal/router"
	"github.com/klingon-exchange/n3xb-core/internal/trade"
	"github.com/klingon-exchange/n3xb-core/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.n3xb", "Data directory")
		relayURLs   = flag.String("relays", "", "Comma-separated relay URLs, overrides config")
		transport   = flag.String("transport", "", "Relay transport: websocket or swarm, overrides config")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		postSample  = flag.Bool("post-sample-order", false, "Post a sample BTC/USD order on startup")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		logging.Infof("n3xbd %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*dataDir)
	if err != nil {
		logging.Fatal("failed to load config", "error", err)
	}

	if *relayURLs != "" {
		cfg.Relay.Relays = parseRelayURLs(*relayURLs)
	}
	if *transport != "" {
		cfg.Relay.Transport = config.RelayTransport(*transport)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logCfg, err := cfg.LoggerConfig()
	if err != nil {
		logging.Fatal("failed to build logger config", "error", err)
	}
	log := logging.New(logCfg)
	logging.SetDefault(log)

	dataDirPath := expandPath(cfg.Storage.DataDir)

	id, err := identity.LoadOrCreate(filepath.Join(dataDirPath, cfg.Identity.KeyFile))
	if err != nil {
		log.Fatal("failed to load identity", "error", err)
	}
	log.Info("identity loaded", "pubkey", id.Pubkey().String())

	seenLog, err := relaylog.Open(filepath.Join(dataDirPath, "seen.db"))
	if err != nil {
		log.Fatal("failed to open relaylog", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var client relay.Client
	switch cfg.Relay.Transport {
	case config.TransportSwarm:
		swarmClient, err := relay.NewSwarmClient(ctx, id, log.Component("relay"), seenLog, cfg.Relay.ListenAddrs)
		if err != nil {
			log.Fatal("failed to start swarm client", "error", err)
		}
		client = swarmClient
	default:
		client = relay.NewWSClient(id, log.Component("relay"), seenLog)
	}

	for _, r := range cfg.Relay.Relays {
		if err := client.AddRelay(ctx, relay.RelayURL{URL: r.URL, Proxy: r.Proxy}, true); err != nil {
			log.Warn("failed to add relay", "url", r.URL, "error", err)
		}
	}

	rtr := router.New()
	identityDir := filepath.Join(dataDirPath, id.Pubkey().String())
	commsPath := filepath.Join(identityDir, "comms.json")
	commsAccess, err := comms.New(ctx, id, client, rtr, commsPath, cfg.Engine.Name, cfg.Relay.PowDifficulty)
	if err != nil {
		log.Fatal("failed to start comms actor", "error", err)
	}
	log.Info("comms actor started", "engine", cfg.Engine.Name, "relays", client.Relays())

	if *postSample {
		if err := postSampleOrder(ctx, commsAccess, log, identityDir); err != nil {
			log.Error("failed to post sample order", "error", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down...")
	cancel()
	commsAccess.Shutdown()
	if err := client.Shutdown(context.Background()); err != nil {
		log.Error("error stopping relay client", "error", err)
	}
	log.Info("goodbye")
}

// postSampleOrder demonstrates a complete Maker actor lifecycle: create,
// post, and register for notifications.
func postSampleOrder(ctx context.Context, commsAccess *comms.Access, log *logging.Logger, dataDirPath string) error {
	order := trade.Order{
		TradeUUID: trade.NewTradeUUID(),
		MakerObligation: trade.MakerObligationTerms{
			Kinds:  trade.NewObligationSet(trade.Bitcoin("")),
			Amount: decimal.NewFromInt(1000000),
		},
		TakerObligation: trade.TakerObligationTerms{
			Kinds: trade.NewObligationSet(trade.Fiat("USD", "")),
		},
		EngineName: "n3xb-simple-escrow",
	}

	makerPath := filepath.Join(dataDirPath, order.TradeUUID.String()+"-maker.json")
	makerAccess, err := maker.New(ctx, commsAccess, order, makerPath)
	if err != nil {
		return err
	}

	notifCh := make(chan maker.Notif, 8)
	makerAccess.RegisterNotifTx(notifCh)
	go func() {
		for n := range notifCh {
			switch notif := n.(type) {
			case maker.OfferNotif:
				log.Info("offer received", "event_id", notif.Envelope.EventID)
			case maker.PeerNotif:
				log.Info("peer message received", "from", notif.Envelope.Pubkey.String())
			}
		}
	}()

	if err := makerAccess.PostNewOrder(); err != nil {
		return err
	}
	log.Info("sample order posted", "trade_uuid", order.TradeUUID.String())
	return nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}

func parseRelayURLs(s string) []config.RelayEntryConfig {
	var out []config.RelayEntryConfig
	for _, url := range strings.Split(s, ",") {
		url = strings.TrimSpace(url)
		if url != "" {
			out = append(out, config.RelayEntryConfig{URL: url})
		}
	}
	return out
}
