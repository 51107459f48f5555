// Command fakeapi serves the demo channel on a local port so the client can
// run without the real API:
//
//	fakeapi -clips ~/Videos &
//	SOFA_API_URL=http://127.0.0.1:8080/v1/ sofa 42
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/njyeung/sofa/backend/backendtest"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "listen address")
	clip := flag.String("clip", "", "media url the demo video plays")
	clips := flag.String("clips", "", "directory to take the first .mp4 from when -clip is empty")
	flag.Parse()

	logger := log.With(log.NewStdLogger(os.Stdout), "ts", log.DefaultTimestamp)
	helper := log.NewHelper(log.With(logger, "module", "fakeapi"))

	clipURL := *clip
	if clipURL == "" && *clips != "" {
		path, err := firstClip(*clips)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		clipURL = "file://" + path
	}
	if clipURL == "" {
		fmt.Fprintln(os.Stderr, "Error: pass -clip or -clips")
		os.Exit(2)
	}

	store := backendtest.NewStore()
	backendtest.Seed(store, clipURL)
	h := backendtest.NewHandler(store)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Route("/v1", h.RegisterRoutes)

	server := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		helper.Infof("serving video %s on http://%s/v1/ (sign in as %s / %s)",
			backendtest.DemoVideoID, *addr, backendtest.DemoEmail, backendtest.DemoPassword)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			helper.Errorf("listen: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		helper.Errorf("shutdown: %v", err)
	}
}

// firstClip returns the first .mp4 in dir
func firstClip(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read clips dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".mp4" {
			return filepath.Abs(filepath.Join(dir, entry.Name()))
		}
	}
	return "", fmt.Errorf("no .mp4 files in %s", dir)
}
