package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/barvelocity/internal/annotate"
	"github.com/banshee-data/barvelocity/internal/api"
	"github.com/banshee-data/barvelocity/internal/config"
	"github.com/banshee-data/barvelocity/internal/db"
	"github.com/banshee-data/barvelocity/internal/detector"
	"github.com/banshee-data/barvelocity/internal/httputil"
	"github.com/banshee-data/barvelocity/internal/lift"
	"github.com/banshee-data/barvelocity/internal/rpc"
	"github.com/banshee-data/barvelocity/internal/videoio"
)

type serveFlags struct {
	listen      string
	grpcListen  string
	dbPath      string
	configPath  string
	detectorURL string
	replay      string
	scratch     string
}

func parseServeFlags(args []string, stderr io.Writer) (serveFlags, error) {
	var f serveFlags
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.listen, "listen", ":8080", "HTTP listen address")
	fs.StringVar(&f.grpcListen, "grpc-listen", "", "gRPC listen address (disabled when empty)")
	fs.StringVar(&f.dbPath, "db", defaultDBPath, "SQLite database path")
	fs.StringVar(&f.configPath, "config", "", "Tuning config JSON (defaults to "+config.DefaultConfigPath+" when present)")
	fs.StringVar(&f.detectorURL, "detector-url", "http://127.0.0.1:9000", "Object detection service base URL")
	fs.StringVar(&f.replay, "replay", "", "Serve detections from a recorded JSONL file instead of the detection service")
	fs.StringVar(&f.scratch, "scratch", filepath.Join(os.TempDir(), "barvelocity"), "Directory for per-upload scratch files")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.listen == "" {
		return f, errors.New("listen address is required")
	}
	return f, nil
}

func runServe(args []string, stderr io.Writer) error {
	f, err := parseServeFlags(args, stderr)
	if err != nil {
		return err
	}
	tuning, err := loadTuning(f.configPath)
	if err != nil {
		return err
	}

	var det lift.Detector
	if f.replay != "" {
		rd, err := detector.OpenReplay(f.replay)
		if err != nil {
			return err
		}
		log.Printf("replaying %d recorded frames from %s", rd.Frames(), f.replay)
		det = rd
	} else {
		det = detector.NewHTTPDetector(f.detectorURL, httputil.NewStandardClient(tuning.GetDetectorTimeout()))
	}

	if err := os.MkdirAll(f.scratch, 0o700); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	store, err := db.NewDB(f.dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	server := api.NewServer(api.Options{
		Tuning:      tuning,
		Detector:    det,
		Annotator:   annotate.New(annotate.DefaultOptions()),
		Opener:      videoio.Opener{Root: f.scratch},
		Store:       store,
		ScratchRoot: f.scratch,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	if f.grpcListen != "" {
		lis, err := net.Listen("tcp", f.grpcListen)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("gRPC listening on %s", lis.Addr())
			if err := rpc.Serve(ctx, rpc.NewGRPCServer(store), lis); err != nil {
				log.Printf("gRPC server error: %v", err)
			}
			log.Printf("gRPC server routine stopped")
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := server.ServeMux()
		// admin debugging routes, reachable only from localhost or over Tailscale
		if err := store.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach database admin routes: %v", err)
		}
		server.AttachAdminRoutes(mux)

		httpServer := &http.Server{
			Addr:              f.listen,
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Printf("HTTP listening on %s", f.listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("failed to start server: %v", err)
				stop()
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := httpServer.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
	return nil
}
