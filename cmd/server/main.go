package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/umfhero/pixel-agents/internal/office"
	"github.com/umfhero/pixel-agents/internal/office/assets"
	"github.com/umfhero/pixel-agents/internal/office/catalogs"
	"github.com/umfhero/pixel-agents/internal/office/presence"
	"github.com/umfhero/pixel-agents/internal/persistence/journal"
	"github.com/umfhero/pixel-agents/internal/persistence/sharedstore"
	"github.com/umfhero/pixel-agents/internal/transport/ws"
	"github.com/umfhero/pixel-agents/internal/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		layoutPath = flag.String("layout", "", "shared layout file (overrides tuning layout_file)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (roster + audit log)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp, *dataDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
	}
	if lp := strings.TrimSpace(*layoutPath); lp != "" {
		tune.LayoutFile = tuning.ExpandHome(lp)
	}

	cat, err := catalogs.Load(tune.CatalogFile)
	if err != nil {
		logger.Fatalf("load furniture catalog: %v", err)
	}
	sprites, problems := assets.Load(tune.SpritesDir, logger)
	if len(problems) > 0 {
		logger.Printf("%d sprite assets skipped; affected tiles render without sprites", len(problems))
	}

	idx, err := openRuntimeIndex(tune.RosterDB, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := upsertCatalog(idx, tune.CatalogFile, cat); err != nil {
			logger.Printf("index backend: upsert catalog: %v", err)
		}
	}

	jw := journal.New(tune.JournalDir, "office")
	defer jw.Close()

	store := sharedstore.New(tune.LayoutFile)
	deps := office.Deps{
		Catalog: cat,
		Sprites: sprites,
		Store:   store,
		Journal: jw,
		Logger:  log.New(os.Stdout, "[office] ", log.LstdFlags|log.Lmicroseconds),

		AssetProblems: problems,
	}
	if idx != nil {
		deps.Roster = idx
		deps.Index = idx
	}
	o, err := office.New(office.Config{
		Presence: presence.Config{
			IdleWindow:             tune.IdleWindow(),
			SelectionLineThreshold: tune.SelectionLineThreshold,
		},
		BackupsDir:  tune.Backups.Dir,
		BackupsKeep: tune.Backups.Keep,
	}, deps)
	if err != nil {
		logger.Fatalf("office: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	// The watcher starts before Boot so the echo of a seeding write is
	// consumed as our own.
	if err := sharedstore.Watch(ctx, store.Path(), tune.WatchDebounce(), o.FileChanged); err != nil {
		logger.Fatalf("watch %s: %v", store.Path(), err)
	}
	bootCtx, bootCancel := context.WithTimeout(ctx, 10*time.Second)
	o.Boot(bootCtx)
	bootCancel()

	go func() {
		if err := o.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("office stopped: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(o, ws.NewServer(o, logger), idx),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("layout=%s listening on %s", store.Path(), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-o.Done()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
