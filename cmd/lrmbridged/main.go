// Command lrmbridged runs the Pacemaker LRM bridge as a standalone
// daemon: it loads configuration, builds the executor/CIB capability
// handles, wires an LrmBridge, and holds the connection until a
// termination signal arrives.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/clustercore/lrmbridge/internal/config"
	"github.com/clustercore/lrmbridge/internal/logging"
	"github.com/clustercore/lrmbridge/pkg/bridge"
	"github.com/clustercore/lrmbridge/pkg/cib"
	"github.com/clustercore/lrmbridge/pkg/dispatch"
	"github.com/clustercore/lrmbridge/pkg/executor"
	"github.com/clustercore/lrmbridge/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to the bridge's YAML configuration file")
	flag.Parse()

	watcher, err := config.NewWatcher(*configPath)
	if err != nil {
		os.Stderr.WriteString("lrmbridged: loading configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer watcher.Close()
	cfg := watcher.Current()

	log := logging.New(cfg.LogLevel)
	watcher.OnChange(func(updated *config.Config) {
		log.Info("configuration reloaded", "log_level", updated.LogLevel, "reconnect_max_attempts", updated.ReconnectMaxAttempts)
	})

	// The executor and CIB connections are external collaborators
	// (§1 "explicitly out of scope"); until a transport is wired in,
	// the in-memory capability implementations stand in so the bridge
	// itself can be started, drained, and shut down end to end.
	exec := executor.NewInMemory()
	cibClient := cib.NewInMemory()

	b := bridge.New(cfg, exec, cibClient, cibClient, exec, log)
	b.AckSink = func(ack *dispatch.Ack) {
		log.V(1).Info("direct ack", "resource", ack.RscID, "status", ack.Status, "message", ack.Message)
	}

	meterProvider := sdkmetric.NewMeterProvider()
	if rec, err := metrics.NewRecorder(meterProvider, "lrmbridge"); err != nil {
		log.Error(err, "failed to initialise metrics, continuing without instrumentation")
	} else {
		b.SetMetrics(rec)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Connect(ctx); err != nil {
		log.Error(err, "failed to connect to executor")
		os.Exit(1)
	}
	log.Info("lrmbridge connected", "state", b.FSM.State().String())

	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := b.Shutdown(shutdownCtx, 1); err != nil {
		log.Error(err, "shutdown did not complete cleanly")
		os.Exit(1)
	}
	log.Info("lrmbridge stopped")
}
