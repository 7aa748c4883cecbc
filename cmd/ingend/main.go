// Command ingend is a reference server binary: it wires an Engine to a
// ticker-driven stand-in audio driver, exposes the control surface over
// WebSocket (internal/wstransport), and serves Prometheus metrics,
// following justyntemme-clapgo's cmd/build pattern of a small flag-free
// main that constructs its collaborators and blocks on signal.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/polyeffects/ingen/internal/wstransport"
	"github.com/polyeffects/ingen/pkg/engine"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/iplug"
	"github.com/polyeffects/ingen/pkg/rtproc"
	"github.com/polyeffects/ingen/pkg/telemetry"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "ingend").Logger()

	cfg := rtproc.DefaultConfig()
	driver := newTickerDriver(cfg.SampleRate, cfg.BlockSize)

	internals := iplug.NewRegistry()
	eng := engine.New(internals, driver, cfg, log)
	eng.SetMetrics(telemetry.NewMetrics(prometheus.DefaultRegisterer))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng.Start(ctx)
	go driver.run(ctx, eng.RunCycle)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/ws", wstransport.NewServer(eng, log))

	srv := &http.Server{Addr: ":8787", Handler: mux}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	eng.Stop()
}

var _ hostapi.AudioHostDriver = (*tickerDriver)(nil)
