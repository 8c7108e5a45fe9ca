// auralis-core is the headless playback daemon: it wires the playback
// engine, track source resolver, offline acquisition service and action
// sync queue together and serves health and metrics endpoints until
// terminated.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/auralis/auralis-go/internal/api"
	"github.com/auralis/auralis-go/internal/config"
	"github.com/auralis/auralis-go/internal/media"
	"github.com/auralis/auralis-go/internal/mediasession"
	"github.com/auralis/auralis-go/internal/metadata"
	"github.com/auralis/auralis-go/internal/monitoring"
	"github.com/auralis/auralis-go/internal/offline"
	"github.com/auralis/auralis-go/internal/playback"
	"github.com/auralis/auralis-go/internal/security"
	"github.com/auralis/auralis-go/internal/source"
	"github.com/auralis/auralis-go/internal/store"
	"github.com/auralis/auralis-go/internal/syncq"
)

const version = "1.0.0"

const connectivityInterval = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (default: data dir)")
	listenAddr := flag.String("listen", "127.0.0.1:9464", "address for health and metrics endpoints")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("auralis-core " + version)
		return
	}

	if err := run(*configPath, *listenAddr); err != nil {
		fmt.Fprintln(os.Stderr, "auralis-core:", err)
		os.Exit(1)
	}
}

func run(configPath, listenAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := monitoring.NewLogger(&monitoring.LogConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting auralis-core",
		zap.String("version", version),
		zap.String("server", cfg.Server.BaseURL))

	stores := store.Open(cfg.Storage.DBPath, logger)
	defer stores.Close()

	client := api.NewServerClient(cfg.Server.BaseURL, time.Duration(cfg.Network.Timeout)*time.Second)
	client.SetToken(resolveToken(cfg, logger))

	resolver := source.NewResolver(stores.Offline, client, logger)
	offlineSvc := offline.NewService(stores.Offline, client, cfg.Offline, logger)

	actionQueue := syncq.NewQueue(stores.Actions, client, staticProfile(cfg.Server.Profile), cfg.Sync, logger)
	watcher := syncq.NewWatcher(client, actionQueue, connectivityInterval, logger)

	caps := media.DetectCapabilities()
	probe := tagDurationProbe(logger)
	players := [2]media.Player{media.NewClockPlayer(probe), media.NewClockPlayer(probe)}

	trackQueue := playback.NewListQueue(nil)
	engine := playback.NewEngine(cfg.Playback, resolver, trackQueue, players, caps, logger)
	session := mediasession.NewSession(engine, trackQueue, stores.Offline, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine.Start()
	go watcher.Run(ctx)
	go reportPlayback(ctx, engine, actionQueue)

	server := &http.Server{
		Addr:    listenAddr,
		Handler: newMux(stores, actionQueue, offlineSvc, session),
	}
	go func() {
		logger.Info("serving health and metrics", zap.String("addr", listenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	if err := engine.Close(); err != nil {
		logger.Warn("engine shutdown failed", zap.Error(err))
	}
	for _, p := range players {
		if err := p.Close(); err != nil {
			logger.Warn("player shutdown failed", zap.Error(err))
		}
	}
	logger.Info("stopped")
	return nil
}

// resolveToken decrypts the stored server token. A token that does not
// decrypt is treated as plaintext from a hand-edited config.
func resolveToken(cfg *config.Config, logger *zap.Logger) string {
	if cfg.Server.Token == "" {
		return ""
	}
	enc := security.NewTokenEncryptor(cfg.Storage.DataDir)
	token, err := enc.DecryptToken(cfg.Server.Token)
	if err != nil {
		logger.Warn("stored token is not encrypted, using it as-is", zap.Error(err))
		return cfg.Server.Token
	}
	return token
}

// staticProfile is a ProfileProvider fixed at startup from the config.
type staticProfile string

func (p staticProfile) ActiveProfileID() string { return string(p) }

// tagDurationProbe probes cached files for their tagged duration. Remote
// streams report an unknown duration; the crossfade scheduler stays idle
// for those until the host supplies one.
func tagDurationProbe(logger *zap.Logger) media.DurationProbe {
	return func(_ context.Context, uri string) (time.Duration, error) {
		u, err := url.Parse(uri)
		if err != nil || u.Scheme != "file" {
			return 0, nil
		}
		tags, err := metadata.ProbeFile(u.Path)
		if err != nil {
			logger.Debug("failed to probe cached file duration",
				zap.String("uri", uri), zap.Error(err))
			return 0, nil
		}
		return tags.Duration, nil
	}
}

// reportPlayback turns engine notifications into queued sync actions.
func reportPlayback(ctx context.Context, engine *playback.Engine, queue *syncq.Queue) {
	var lastTrack string
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-engine.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case playback.EventTrackChanged:
				if ev.Track == nil {
					continue
				}
				if lastTrack != "" {
					queue.QueueAction(syncq.ActionScrobble, syncq.ScrobblePayload{
						TrackID:  lastTrack,
						PlayedAt: time.Now(),
					})
				}
				lastTrack = ev.Track.ID
				queue.QueueAction(syncq.ActionNowPlaying, syncq.NowPlayingPayload{
					TrackID: ev.Track.ID,
				})
			case playback.EventQueueEnded:
				if lastTrack != "" {
					queue.QueueAction(syncq.ActionScrobble, syncq.ScrobblePayload{
						TrackID:  lastTrack,
						PlayedAt: time.Now(),
					})
					lastTrack = ""
				}
			}
		}
	}
}

func newMux(stores *store.Stores, queue *syncq.Queue, svc *offline.Service, session *mediasession.Session) *http.ServeMux {
	checker := monitoring.NewHealthChecker(version, stores.DB)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		pending, err := queue.PendingCount()
		if err != nil {
			pending = -1
		}
		result := checker.Check(pending, svc.ActiveDownloads() > 0)

		w.Header().Set("Content-Type", "application/json")
		if result.Status != monitoring.HealthStatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(result)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		st := session.Status()
		resp := struct {
			Playing    bool                   `json:"playing"`
			PositionMS int64                  `json:"position_ms"`
			DurationMS int64                  `json:"duration_ms"`
			Track      *mediasession.Metadata `json:"track,omitempty"`
		}{
			Playing:    st.Playing,
			PositionMS: st.Position.Milliseconds(),
			DurationMS: st.Duration.Milliseconds(),
			Track:      session.Metadata(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}
