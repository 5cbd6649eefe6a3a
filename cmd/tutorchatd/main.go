// Command tutorchatd runs the BrainMate tutoring backend: the tutor
// registry, session host, and the HTTP API students connect to.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/brainmate-ai/tutorchat/httpapi"
	"github.com/brainmate-ai/tutorchat/internal/logctx"
	"github.com/brainmate-ai/tutorchat/internal/tokens"
	"github.com/brainmate-ai/tutorchat/responder"
	"github.com/brainmate-ai/tutorchat/tutorhost"
	"github.com/brainmate-ai/tutorchat/tutorhost/memoryhost"
	"github.com/brainmate-ai/tutorchat/tutorhost/redishost"
	"github.com/brainmate-ai/tutorchat/tutors"
)

type config struct {
	// Addr to listen on. ENV: LISTEN_ADDR
	Addr string `env:"LISTEN_ADDR,default=:8080"`
	// TutorsFile is the path to the tutor registry JSON. ENV: TUTORS_FILE
	TutorsFile string `env:"TUTORS_FILE,default=tutors.json"`
	// TokenSecret signs session tokens. ENV: TOKEN_SECRET
	TokenSecret string `env:"TOKEN_SECRET,required"`
	// TokenTTL bounds session token lifetime. ENV: TOKEN_TTL
	TokenTTL time.Duration `env:"TOKEN_TTL,default=24h"`
	// RedisAddr, when set, selects the Redis session host. ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default="`
}

func main() {
	log := slog.New(logctx.Handler{
		Handler: slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}),
	})
	slog.SetDefault(log)

	var cfg config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		log.Error("config.decode.fail", slog.String("err", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := tutors.Load(cfg.TutorsFile, tutors.WithLogger(log))
	if err != nil {
		log.Error("tutors.load.fail", slog.String("path", cfg.TutorsFile), slog.String("err", err.Error()))
		os.Exit(1)
	}
	if err := registry.Watch(ctx); err != nil {
		log.Warn("tutors.watch.unavailable", slog.String("err", err.Error()))
	}

	var host tutorhost.Host
	if cfg.RedisAddr != "" {
		host, err = redishost.New(redishost.Config{RedisAddr: cfg.RedisAddr})
		if err != nil {
			log.Error("host.redis.fail", slog.String("err", err.Error()))
			os.Exit(1)
		}
		log.Info("host.redis.ok", slog.String("addr", cfg.RedisAddr))
	} else {
		host = memoryhost.New()
		log.Info("host.memory.ok")
	}
	defer host.Close()

	issuer, err := tokens.NewIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL)
	if err != nil {
		log.Error("tokens.issuer.fail", slog.String("err", err.Error()))
		os.Exit(1)
	}

	handler := httpapi.New(registry, host, issuer, responder.Static{}, httpapi.WithLogger(log))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server.listen", slog.String("addr", cfg.Addr), slog.Int("tutors", registry.Count()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("server.shutdown.begin")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("server.shutdown.fail", slog.String("err", err.Error()))
		}
		log.Info("server.shutdown.done")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server.listen.fail", slog.String("err", err.Error()))
			os.Exit(1)
		}
	}
}
