// Command tankserver runs one tank-combat simulation server: it loads a
// landscape and configuration, opens a UDP socket, and serves the client,
// viewer, and admin HTTP protocols until signalled to stop.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ironclad-sim/tankserver/internal/adminhttp"
	"github.com/ironclad-sim/tankserver/internal/config"
	"github.com/ironclad-sim/tankserver/internal/network"
	"github.com/ironclad-sim/tankserver/internal/server"
	"github.com/ironclad-sim/tankserver/internal/storage/sqlite"
	"github.com/ironclad-sim/tankserver/internal/telemetry"
	"github.com/ironclad-sim/tankserver/internal/world"
)

var configPath = flag.String("config", "", "path to a JSON config file (defaults built in if omitted)")

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("tankserver: %v", err)
	}

	landscape, err := loadLandscape(cfg)
	if err != nil {
		log.Fatalf("tankserver: %v", err)
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("tankserver: resolve %s: %v", cfg.ListenAddr, err)
	}
	sock, err := network.RealSocketFactory{}.ListenUDP("udp", addr)
	if err != nil {
		log.Fatalf("tankserver: listen %s: %v", cfg.ListenAddr, err)
	}
	defer sock.Close()

	var store *sqlite.DB
	if cfg.PersistenceEnabled() {
		store, err = sqlite.Open(*cfg.DBPath)
		if err != nil {
			log.Fatalf("tankserver: open database: %v", err)
		}
		defer store.Close()
	}

	srv := server.New(cfg, landscape, sock, matchStore(store))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	admin := &adminhttp.Server{Clients: srv.Clients(), Viewers: srv.Viewers(), History: adminHistory(store)}
	httpSrv := &http.Server{Addr: cfg.AdminAddrOrDefault(), Handler: admin.Mux()}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logf("tankserver: admin http server: %v", err)
		}
	}()

	telemetry.Logf("tankserver: listening on %s, admin on %s", cfg.ListenAddr, cfg.AdminAddrOrDefault())
	srv.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		telemetry.Logf("tankserver: admin http shutdown: %v", err)
	}
	<-done
	telemetry.Logf("tankserver: shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func loadLandscape(cfg *config.Config) (*world.Landscape, error) {
	if cfg.LandscapePath == "" {
		return flatDefaultLandscape(cfg), nil
	}
	raw, err := os.ReadFile(cfg.LandscapePath)
	if err != nil {
		return nil, err
	}
	return world.LoadLandscape(raw, cfg.TileSize, cfg.LandscapeScale)
}

// flatDefaultLandscape builds a small flat landscape so the server can
// start even without a configured heightmap file, useful for smoke-testing
// a fresh deployment.
func flatDefaultLandscape(cfg *config.Config) *world.Landscape {
	const size = 64
	heights := make([]float64, size*size)
	l, _ := world.NewLandscape(size, cfg.TileSize, heights)
	return l
}

// matchStore adapts a possibly-nil *sqlite.DB to server.MatchStore: a nil
// *sqlite.DB must become a nil interface, not a non-nil interface wrapping
// a nil pointer, so the tick loop's "if s.store != nil" check works.
func matchStore(db *sqlite.DB) server.MatchStore {
	if db == nil {
		return nil
	}
	return db
}

func adminHistory(db *sqlite.DB) adminhttp.MatchHistory {
	if db == nil {
		return nil
	}
	return db
}
