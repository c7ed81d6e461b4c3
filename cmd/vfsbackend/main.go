// Command vfsbackend hosts one protocol backend and exports its vtable
// over a peer D-Bus connection, the reference process other backends
// (rclone remotes translated to this fabric, say) would be modeled on.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vfsfabric/corevfs/backend"
	_ "github.com/vfsfabric/corevfs/backend/local"
	_ "github.com/vfsfabric/corevfs/backend/trashd"
	"github.com/vfsfabric/corevfs/internal/config"
	"github.com/vfsfabric/corevfs/internal/fds"
	"github.com/vfsfabric/corevfs/internal/logging"
	"github.com/vfsfabric/corevfs/internal/metrics"
	"github.com/vfsfabric/corevfs/jobs"
	"github.com/vfsfabric/corevfs/monitor"
	"github.com/vfsfabric/corevfs/mount"
	"github.com/vfsfabric/corevfs/peer"
	"github.com/vfsfabric/corevfs/tracker"
)

const (
	objectPath = dbus.ObjectPath("/org/vfsfabric/Backend")
	iface      = "org.vfsfabric.Backend"
)

// monitorWirer is implemented by backends that can host
// CreateDirMonitor/CreateFileMonitor once handed a monitor.Server.
type monitorWirer interface {
	SetMonitorServer(*monitor.Server)
}

// displayMetadata is the protocol -> user-facing metadata table this
// process fills RegisterMount's Info from, the same role
// cmd/vfsd's builtinMountableInfo plays for the tracker's own static
// ListMountableInfo table.
var displayMetadata = map[string]struct{ DisplayName, Icon string }{
	"local": {"Local Files", "drive-harddisk"},
	"trash": {"Trash", "user-trash"},
}

func main() {
	cfg := config.Defaults()
	var protocol string
	var specPairs []string
	var workers int

	root := &cobra.Command{
		Use:   "vfsbackend",
		Short: "Protocol backend host",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg, protocol, specPairs, workers)
		},
	}
	cfg.BindFlags(root)
	root.Flags().StringVar(&protocol, "protocol", "local", "registered protocol name to host (local, trash)")
	root.Flags().StringArrayVar(&specPairs, "spec", nil, "key=value mount spec entry, repeatable")
	root.Flags().IntVar(&workers, "workers", 8, "size of the job dispatcher's worker pool")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config.Config, protocol string, specPairs []string, workers int) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New("vfsbackend", logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	if err != nil {
		return err
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	spec, err := parseSpec(protocol, specPairs)
	if err != nil {
		return err
	}

	be, err := backend.New(spec)
	if err != nil {
		return fmt.Errorf("vfsbackend: %w", err)
	}
	log.WithField("protocol", protocol).Info("backend constructed")

	bus, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("vfsbackend: connecting to session bus: %w", err)
	}
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon := monitor.NewServer(bus, string(objectPath)+"/monitor")
	if wirer, ok := be.(monitorWirer); ok {
		wirer.SetMonitorServer(mon)
	}

	pool := jobs.NewPool(workers)
	defer pool.Close()

	host := NewHost(ctx, be, pool)

	// Every real caller — the tracker, the Mount Info Cache — reaches
	// this backend through the peer bootstrap protocol peer.Conn.bootstrap
	// drives: dial GetConnection on the session bus, then dial the peer
	// and side-channel addresses it returns. Host's vtable itself is
	// exported only on the resulting per-caller peer connection, never
	// directly on the session bus, so nothing can reach it without going
	// through that handshake (and the fd side channel it sets up).
	socketDir := filepath.Join(filepath.Dir(cfg.SocketPath), "peers")
	listener := peer.NewListener(socketDir, func(peerBus *dbus.Conn, _ *fds.Channel) {
		if err := peerBus.Export(host, objectPath, iface); err != nil {
			log.WithError(err).Error("exporting backend vtable on peer connection")
			_ = peerBus.Close()
		}
	})
	if err := bus.ExportMethodTable(map[string]any{"GetConnection": listener.GetConnection}, objectPath, iface); err != nil {
		return fmt.Errorf("vfsbackend: exporting GetConnection: %w", err)
	}

	info := buildMountInfo(protocol, spec)
	trackerClient := tracker.NewClient(bus)
	if err := trackerClient.RegisterMount(ctx, info); err != nil {
		return fmt.Errorf("vfsbackend: registering mount with tracker: %w", err)
	}
	log.WithField("object_path", objectPath).Info("registered with tracker")

	log.WithField("object_path", objectPath).Info("vfsbackend ready")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("vfsbackend shutting down")
	if err := trackerClient.UnregisterMount(context.Background(), string(objectPath)); err != nil {
		log.WithError(err).Warn("unregistering mount from tracker")
	}
	return be.Unmount(context.Background(), 0)
}

// buildMountInfo assembles the Info RegisterMount sends the tracker,
// filling display metadata from displayMetadata (falling back to the
// bare protocol name for a backend this table doesn't know about).
func buildMountInfo(protocol string, spec *mount.Spec) *mount.Info {
	info := mount.NewInfo("", string(objectPath), spec)
	if md, ok := displayMetadata[protocol]; ok {
		info.DisplayName = md.DisplayName
		info.Icon = md.Icon
	} else {
		info.DisplayName = protocol
	}
	info.UserVisible = true
	info.PreferredEncoding = "utf8"
	return info
}

func parseSpec(protocol string, pairs []string) (*mount.Spec, error) {
	spec := mount.New(protocol)
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("vfsbackend: malformed --spec entry %q, want key=value", pair)
		}
		spec.Set(k, v)
	}
	return spec, nil
}
