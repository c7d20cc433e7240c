// Command hlssinkd is the reference binary: it wires a synthetic
// internal/ingest source into an internal/sink.Controller, backed by one or
// more internal/storage adapters and serialized with internal/serialize's
// HLS dialect. Grounded on the teacher's cmd/rtmp-server/main.go: flag
// parsing then validation, version flag short-circuit, structured logger
// init, signal-based graceful shutdown with a timeout select.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alxayo/hlssink/internal/ingest"
	"github.com/alxayo/hlssink/internal/logger"
	"github.com/alxayo/hlssink/internal/manifest"
	"github.com/alxayo/hlssink/internal/notify"
	"github.com/alxayo/hlssink/internal/serialize"
	"github.com/alxayo/hlssink/internal/sink"
	"github.com/alxayo/hlssink/internal/storage"
	"github.com/alxayo/hlssink/internal/storage/azblob"
	"github.com/alxayo/hlssink/internal/storage/fs"
	"github.com/alxayo/hlssink/internal/storage/memory"
	"github.com/alxayo/hlssink/internal/storage/multi"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("Warning: invalid log level, using default: %v\n", err)
	}

	store, err := buildStorage(cfg)
	if err != nil {
		logger.Error("failed to build storage backends", "err", err)
		os.Exit(1)
	}

	notifyMgr := notify.NewManager(notify.Config{Concurrency: cfg.notifyConcurrency})
	notifyMgr.Register(notify.EventStreamPlayable, notify.NewLogNotifier("log"))
	notifyMgr.Register(notify.EventTrackFinished, notify.NewLogNotifier("log"))
	notifyMgr.Register(notify.EventAdapterError, notify.NewLogNotifier("log"))
	for _, assignment := range cfg.webhookURLs {
		eventType, url := splitAssignment(assignment)
		notifyMgr.Register(notify.EventType(eventType), notify.NewWebhookNotifier("webhook:"+eventType, url, 10*time.Second))
	}
	defer notifyMgr.Close()

	var windowDuration *manifest.Rational
	if cfg.windowed {
		d := manifest.RationalFromSeconds(cfg.windowSecs)
		windowDuration = &d
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var src *ingest.Source
	ctrl := sink.NewController(sink.Config{
		ManifestName:           cfg.manifestName,
		Windowed:               cfg.windowed,
		TargetWindowDuration:   windowDuration,
		TargetFragmentDuration: manifest.RationalFromSeconds(cfg.fragmentSecs),
		Persisted:              cfg.persisted,
		Serializer:             serialize.NewHLS(),
		Storage:                store,
		Notify:                 notifyMgr,
		Demander:               sink.DemanderFunc(func(padID string) { src.RequestBuffer(padID) }),
	})
	src = ingest.NewSource(ctrl)

	fragDuration := manifest.RationalFromSeconds(cfg.fragmentSecs)
	if err := src.Start(ctx, ingest.TrackSpec{
		PadID:             "video-0",
		ContentType:       manifest.ContentTypeVideo,
		InitExtension:     "mp4",
		FragmentExtension: "m4s",
		Init:              []byte("synthetic-video-init"),
		FragmentDuration:  fragDuration,
		PayloadSize:       4096,
		FragmentLimit:     cfg.demoFragments,
	}); err != nil {
		logger.Error("failed to start video track", "err", err)
		os.Exit(1)
	}

	logger.Info("hlssinkd started", "manifest", cfg.manifestName, "windowed", cfg.windowed, "version", version)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		// The ingest generator observes ctx.Done() itself and calls
		// OnEndOfStream; wait for the pad to reach ended before declaring
		// the shutdown clean.
		for ctrl.PadState("video-0") != sink.StateEnded {
			select {
			case <-shutdownCtx.Done():
				close(done)
				return
			case <-time.After(50 * time.Millisecond):
			}
		}
		close(done)
	}()

	select {
	case <-done:
		logger.Info("stopped cleanly")
	case <-shutdownCtx.Done():
		logger.Error("forced exit after timeout")
	}
}

// buildStorage assembles the configured storage backends behind a single
// storage.Adapter. With zero -storage flags, an in-memory adapter is used
// so the binary runs with no external dependencies by default. With two or
// more backends, they are fanned out via storage/multi.
func buildStorage(cfg *cliConfig) (storage.Adapter, error) {
	if len(cfg.backends) == 0 {
		return memory.New(), nil
	}
	if len(cfg.backends) == 1 {
		return buildBackend(cfg.backends[0])
	}

	fanout := multi.New(3)
	for _, assignment := range cfg.backends {
		name, arg := splitAssignment(assignment)
		backend, err := buildBackendArgs(name, arg)
		if err != nil {
			return nil, err
		}
		fanout.AddBackend(name, backend)
	}
	return fanout, nil
}

func buildBackend(assignment string) (storage.Adapter, error) {
	name, arg := splitAssignment(assignment)
	return buildBackendArgs(name, arg)
}

func buildBackendArgs(name, arg string) (storage.Adapter, error) {
	switch name {
	case "fs":
		return fs.New(arg)
	case "azblob":
		// arg is a container URL: the account endpoint, then the container name.
		containerURL := strings.TrimSuffix(arg, "/")
		i := strings.LastIndex(containerURL, "/")
		if i <= strings.Index(containerURL, "://")+2 {
			return nil, fmt.Errorf("azblob backend %q: expected https://<account>.blob.core.windows.net/<container>", arg)
		}
		return azblob.New(azblob.Config{AccountURL: containerURL[:i], Container: containerURL[i+1:]})
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", name)
	}
}
