// Command engine is the momentum trading engine's long-running process:
// it wires config, logging, persistence, the broker, the quote provider,
// the alert service, and the admin API together and runs until signaled,
// grounded on the teacher's `cmd/` entrypoint wiring style.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"momentum-engine/alert"
	"momentum-engine/api"
	"momentum-engine/broker"
	"momentum-engine/config"
	"momentum-engine/engine"
	"momentum-engine/logger"
	"momentum-engine/metrics"
	"momentum-engine/quote"
	"momentum-engine/store"
	"momentum-engine/strategy"
)

// fillSinkProxy breaks the broker<->engine construction cycle: the broker
// needs a FillSink at construction time, but the Engine (the real sink)
// can't be built until the broker it wraps already exists. The proxy is
// wired to the real engine immediately after construction and is never
// touched again.
type fillSinkProxy struct{ eng *engine.Engine }

func (p *fillSinkProxy) OnFill(ev broker.FillEvent) {
	if p.eng != nil {
		p.eng.OnFill(ev)
	}
}

// quoteDeliveryProxy is the same indirection for quote.Provider, which
// needs a Delivery at construction time before the Engine exists.
type quoteDeliveryProxy struct{ eng *engine.Engine }

func (p *quoteDeliveryProxy) OnQuote(t quote.Tick) {
	if p.eng != nil {
		p.eng.OnQuote(t)
	}
}

func main() {
	metrics.Init()

	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config: ", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Errorf("❌ failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	sinkProxy := &fillSinkProxy{}
	brokerC := broker.NewAlpacaBroker(cfg.AlpacaKeyID, cfg.AlpacaSecretKey, cfg.AlpacaPaper, sinkProxy, log.With("broker"))

	deliveryProxy := &quoteDeliveryProxy{}
	quoteP := quote.NewProvider(cfg.QuoteVendorKeyURL, cfg.QuoteVendorWSURL, deliveryProxy, log.With("quote"),
		quote.WithSubscriptionCap(cfg.SubscriptionCap))

	eng := engine.New(db, brokerC, quoteP, cfg.AlpacaPaper, cfg.ReconcileInterval, log.With("engine"))
	sinkProxy.eng = eng
	deliveryProxy.eng = eng

	if err := seedDefaultStrategy(db); err != nil {
		log.Errorf("❌ failed to seed default strategy: %v", err)
		os.Exit(1)
	}

	cfgs, err := db.ListStrategies()
	if err != nil {
		log.Errorf("❌ failed to list strategies: %v", err)
		os.Exit(1)
	}
	for _, sc := range cfgs {
		if !sc.Enabled {
			continue
		}
		if err := eng.LoadStrategy(sc); err != nil {
			log.Errorf("❌ failed to load strategy %s: %v", sc.Name, err)
			os.Exit(1)
		}
		log.Infof("📈 loaded strategy %s (priority=%d)", sc.Name, sc.Priority)
	}

	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Errorf("❌ failed to load America/New_York timezone: %v", err)
		os.Exit(1)
	}

	alertSvc := alert.NewService(db, eng, newYork, log.With("alert"))
	adminSvc := api.NewServer(eng, brokerC, cfg, log.With("admin"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	brokerC.StartFillPolling(ctx, 5*time.Second)
	eng.Start(ctx)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.AlertPort)
		log.Infof("🚀 alert service listening on %s", addr)
		if err := alertSvc.Router().Run(addr); err != nil {
			log.Errorf("❌ alert service stopped: %v", err)
		}
	}()

	go func() {
		log.Infof("🛡️  admin API listening on :%d", cfg.AdminPort)
		if err := adminSvc.ListenAndServe(); err != nil {
			log.Errorf("❌ admin API stopped: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Infof("🛑 received %v, shutting down", sig)

	eng.Stop()
	cancel()
}

// seedDefaultStrategy inserts a single conservative default strategy the
// first time the engine runs against a fresh database, so there is
// something enabled out of the box rather than an empty, silently-idle
// engine. Operators edit or replace it via the admin API afterward.
func seedDefaultStrategy(db *store.DB) error {
	existing, err := db.ListStrategies()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	return db.SaveStrategy(strategy.Config{
		ID:       "default",
		Name:     "default-momentum",
		Priority: 100,
		Enabled:  true,
		Filters: strategy.FilterSet{
			MinPrice:            1.0,
			MaxPrice:            20.0,
			MaxIntradayMentions: 3,
			ExcludeFinancing:    true,
		},
		Entry: strategy.EntryRules{
			ConsecGreenCandles: 2,
			MinCandleVolume:    5000,
			EntryWindowMinutes: 5,
		},
		Exit: strategy.ExitRules{
			TakeProfitPct:    10,
			StopLossPct:      5,
			StopLossFromOpen: true,
			TrailingStopPct:  3,
			TimeoutMinutes:   30,
		},
		Sizing: strategy.SizingRules{
			Mode:       strategy.SizingFixed,
			FixedStake: 500,
			MaxStake:   2000,
		},
	})
}
