// Command maintkeeper runs the offline-first maintenance tracking
// core and its local WebSocket bridge.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"maintkeeper/internal/config"
	"maintkeeper/internal/connectivity"
	"maintkeeper/internal/logging"
	"maintkeeper/internal/manager"
	"maintkeeper/internal/models"
	"maintkeeper/internal/proxy"
	"maintkeeper/internal/session"
	"maintkeeper/internal/store"
	"maintkeeper/internal/syncer"
	"maintkeeper/internal/transport"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "maintkeeper",
		Short: "Offline-first maintenance tracking core",
	}

	var configPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the core and its local event bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	serve.Flags().StringVar(&configPath, "config", config.DefaultPath(), "config file path")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("maintkeeper v%s\n", Version)
		},
	}

	root.AddCommand(serve, version)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logging.Init(os.Stdout, logging.LevelInfo)

	global, err := store.OpenGlobal(cfg.DataDir)
	if err != nil {
		return err
	}
	defer global.Close()

	sess := session.New(cfg.DataDir, global)
	tp := transport.New(cfg.BaseURL, sess.Token)
	queue := store.NewActionQueue(tp)
	sess.AttachQueue(queue)

	monitor := connectivity.NewMonitor(tp, queue, cfg.ProbeTimeout)
	sync := syncer.NewSyncer(queue, monitor)

	writeProxy := proxy.New(tp, monitor, queue, sess.Store)
	images := manager.NewImageProxy(writeProxy, sess.Store)

	assets := manager.NewAssetManager(writeProxy, images)
	equipments := manager.NewEquipmentManager(writeProxy, images, assets, sess.Store)
	tasks := manager.NewTaskManager(writeProxy, images, equipments, sess.Store)
	entries := manager.NewEntryManager(writeProxy, images, tasks, sess.Store)

	assets.AttachChildren(equipments)
	equipments.AttachChildren(tasks, entries)
	tasks.AttachChildren(entries)

	hub := NewWSHub()
	bridgeEvents(hub, sess, monitor, queue, sync, assets, equipments, tasks, entries)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Periodic liveness probing keeps the connectivity signal honest;
	// the probe itself is bounded so it never blocks anything.
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		monitor.Probe(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				monitor.Probe(ctx)
			}
		}
	}()

	if user, err := sess.RestoreRemembered(); err != nil {
		logging.Warn("Could not restore remembered user", map[string]interface{}{"error": err.Error()})
	} else if user != nil {
		if err := assets.Refresh(ctx); err != nil {
			logging.Error("Initial asset fetch failed", err)
		}
	}

	server := &http.Server{Addr: cfg.ListenAddr, Handler: hub}
	go func() {
		logging.Info("Event bridge listening", map[string]interface{}{"addr": cfg.ListenAddr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Event bridge failed", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// bridgeEvents forwards every core signal to the WebSocket hub.
func bridgeEvents(hub *WSHub, sess *session.Session, monitor *connectivity.Monitor,
	queue *store.ActionQueue, sync *syncer.Syncer,
	assets *manager.AssetManager, equipments *manager.EquipmentManager,
	tasks *manager.TaskManager, entries *manager.EntryManager) {

	sess.OnUserChanged(func(user *models.User) {
		hub.Broadcast(EventUserChanged, user)
	})
	monitor.OnConnectivityChanged(func(online bool) {
		hub.Broadcast(EventConnectivityChanged, map[string]interface{}{"isOnline": online})
	})
	queue.OnCountChanged(func(count int) {
		hub.Broadcast(EventQueueCountChanged, map[string]interface{}{"count": count})
	})
	sync.OnProgress(func(p syncer.Progress) {
		hub.Broadcast(EventSyncProgressChanged, p)
	})

	assets.OnCurrentChanged(func(a *models.Asset) {
		hub.Broadcast(EventCurrentChanged, map[string]interface{}{"level": "asset", "entity": a})
	})
	assets.OnListChanged(func(items []*models.Asset) {
		hub.Broadcast(EventListChanged, map[string]interface{}{"level": "asset", "items": items})
	})
	equipments.OnCurrentChanged(func(e *models.Equipment) {
		hub.Broadcast(EventCurrentChanged, map[string]interface{}{"level": "equipment", "entity": e})
	})
	equipments.OnListChanged(func(items []*models.Equipment) {
		hub.Broadcast(EventListChanged, map[string]interface{}{"level": "equipment", "items": items})
	})
	tasks.OnCurrentChanged(func(t *models.Task) {
		hub.Broadcast(EventCurrentChanged, map[string]interface{}{"level": "task", "entity": t})
	})
	tasks.OnListChanged(func(items []*models.Task) {
		hub.Broadcast(EventListChanged, map[string]interface{}{"level": "task", "items": items})
	})
	entries.OnCurrentChanged(func(e *models.Entry) {
		hub.Broadcast(EventCurrentChanged, map[string]interface{}{"level": "entry", "entity": e})
	})
	entries.OnListChanged(func(items []*models.Entry) {
		hub.Broadcast(EventListChanged, map[string]interface{}{"level": "entry", "items": items})
	})
}
