// Command vfsd runs the Mount Tracker daemon : the
// well-known bus service that owns the sorted mount list, the volume/
// drive aggregation union monitor, and the trash aggregator.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vfsfabric/corevfs/internal/config"
	"github.com/vfsfabric/corevfs/internal/logging"
	"github.com/vfsfabric/corevfs/internal/metrics"
	"github.com/vfsfabric/corevfs/trash"
	"github.com/vfsfabric/corevfs/tracker"
	"github.com/vfsfabric/corevfs/volume"
)

func main() {
	cfg := config.Defaults()

	root := &cobra.Command{
		Use:   "vfsd",
		Short: "Mount Tracker daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}
	cfg.BindFlags(root)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New("vfsd", logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	if err != nil {
		return err
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, log)
	}

	bus, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("vfsd: connecting to session bus: %w", err)
	}
	defer bus.Close()

	reply, err := bus.RequestName(tracker.BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("vfsd: requesting %s: %w", tracker.BusName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("vfsd: %s is already owned by another process", tracker.BusName)
	}

	t := tracker.New(bus, builtinMountableInfo)
	if err := t.Export(); err != nil {
		return fmt.Errorf("vfsd: exporting tracker: %w", err)
	}
	if err := watchOwners(bus, t); err != nil {
		return fmt.Errorf("vfsd: subscribing to NameOwnerChanged: %w", err)
	}

	agg, err := trash.NewAggregator(log)
	if err != nil {
		return fmt.Errorf("vfsd: starting trash aggregator: %w", err)
	}
	defer agg.Close()
	if err := agg.Rescan(); err != nil {
		log.WithError(err).Warn("vfsd: initial trash rescan failed")
	}

	union := volume.New()
	trashSrc := volume.NewTrashSource(agg)
	union.AddSource(trashSrc)
	go rescanTrashLoop(agg, trashSrc, cfg)

	log.WithField("volumes", len(union.Volumes())).Info("vfsd ready")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("vfsd shutting down")
	return nil
}

// watchOwners subscribes to org.freedesktop.DBus's NameOwnerChanged
// signal and feeds every owner-gone notification to t.OnOwnerGone,
// driving the same per-backend cleanup RegisterMount's caller relies
// on when a backend process crashes without calling UnregisterMount.
func watchOwners(bus *dbus.Conn, t *tracker.Tracker) error {
	if err := bus.AddMatchSignal(
		dbus.WithMatchObjectPath("/org/freedesktop/DBus"),
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		return err
	}

	signals := make(chan *dbus.Signal, 16)
	bus.Signal(signals)

	go func() {
		for sig := range signals {
			if sig.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(sig.Body) != 3 {
				continue
			}
			newOwner, _ := sig.Body[2].(string)
			if newOwner == "" {
				if name, ok := sig.Body[0].(string); ok {
					t.OnOwnerGone(name)
				}
			}
		}
	}()

	return nil
}

func rescanTrashLoop(agg *trash.Aggregator, src *volume.TrashSource, cfg config.Config) {
	ticker := time.NewTicker(cfg.TrashRescanInterval)
	defer ticker.Stop()
	for range ticker.C {
		if err := agg.Rescan(); err != nil {
			continue
		}
		src.RescanEvents()
	}
}

// builtinMountableInfo is the static list the tracker answers
// ListMountableInfo with; protocol backends are expected to register
// themselves here as they're linked into a vfsbackend binary.
var builtinMountableInfo = []tracker.MountableInfo{
	{Type: "local", DisplayName: "Local filesystem", Icon: "drive-harddisk"},
	{Type: "trash", DisplayName: "Trash", Icon: "user-trash"},
}

func serveMetrics(addr string, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.WithField("addr", addr).Info("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics server exited")
	}
}
