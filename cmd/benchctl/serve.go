package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/benchlink/internal/config"
	"github.com/banshee-data/benchlink/internal/db"
	"github.com/banshee-data/benchlink/internal/debugserver"
	"github.com/banshee-data/benchlink/internal/visa"
)

func handleServe(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cf := registerCommonFlags(fs)
	registerScopeFlags(fs)
	listen := fs.String("listen", "", "HTTP listen address (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := cf.load(fs)
	if err != nil {
		return err
	}
	addr := *listen
	if addr == "" {
		addr = cfg.GetDebugListen()
	}

	link, closeLink, err := openLink(cfg, cf.dev)
	if err != nil {
		return err
	}
	defer closeLink()

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return err
	}
	defer database.Close()

	mux, err := newServeMux(link, database, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("got request %q", r.URL.Path)
			mux.ServeHTTP(w, r)
		}),
	}

	errc := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()
	fmt.Fprintf(out, "debug server listening on http://%s/debug/\n", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

// newServeMux mounts the instrument and capture database routes.
func newServeMux(link visa.Link, database *db.DB, cfg *config.AcquisitionConfig) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	debugserver.Attach(mux, debugserver.Options{
		Instrument:  instrumentName(link),
		Link:        link,
		Scope:       newScope(link, cfg),
		DB:          database,
		Channels:    cfg.GetChannels(),
		MemoryDepth: cfg.GetMemoryDepth(),
	})
	if err := database.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	return mux, nil
}
