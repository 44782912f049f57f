// Command hauthd runs the demo gate: the hauth engine mounted in front
// of a trivial downstream application, backed by PostgreSQL.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/horanet/hauth/internal/app"
	"github.com/horanet/hauth/internal/engine"
	"github.com/horanet/hauth/internal/policy"
	"github.com/horanet/hauth/internal/shared"
	"github.com/horanet/hauth/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	repo := store.NewRepository(dbpool)
	if err := repo.Bootstrap(ctx, store.BootstrapParams{
		Roles: []string{"admin", "user"},
		DefaultUsers: []store.NewUser{
			{Login: "admin", Role: strptr("admin"), Password: strptr("admin")},
		},
		Logger: logger,
	}); err != nil {
		logger.Error("bootstrap store", slog.Any("error", err))
		os.Exit(1)
	}

	rules, err := accessRules()
	if err != nil {
		logger.Error("parse access rules", slog.Any("error", err))
		os.Exit(1)
	}

	gate, err := engine.New(repo, engine.Config{
		CookieName:  cfg.CookieName,
		SigningKey:  []byte(cfg.SigningKey),
		SigningAlg:  cfg.SigningAlg,
		TokenExpiry: cfg.TokenExpiry,
		Rules:       rules,
		DefaultRule: policy.Deny,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("build engine", slog.Any("error", err))
		os.Exit(1)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		Engine:     gate,
		Handler:    engine.NewHandler(logger, gate),
		Downstream: demoApp(),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

// accessRules declares the demo's rule table in the loose declarative
// form a config file would carry, parsed into typed rules.
func accessRules() ([]policy.Entry, error) {
	declared := []struct {
		pattern string
		rule    any
	}{
		{`^/hauth/(login|logout)$`, "skip"},
		{"/hauth/deluser", "deny"},
		{"/hauth", []string{"admin"}},
		{"/whoami", "allow"},
		{`\.css$`, "skip"},
		{"/", "allow"},
	}
	entries := make([]policy.Entry, 0, len(declared))
	for _, d := range declared {
		rule, err := policy.ParseRule(d.rule)
		if err != nil {
			return nil, fmt.Errorf("rule for %q: %w", d.pattern, err)
		}
		entries = append(entries, policy.Entry{Pattern: d.pattern, Rule: rule})
	}
	return entries, nil
}

// demoApp is the downstream collaborator the gate protects.
func demoApp() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		p := shared.PrincipalFromContext(r.Context())
		if p == nil {
			io.WriteString(w, "Hello stranger")
			return
		}
		fmt.Fprintf(w, "Hello dear %s", p.Login)
	})
	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		p := shared.PrincipalFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"login":%q,"name":%q,"role":%q}`, p.Login, p.Name, p.Role)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "hauth demo")
	})
	return mux
}

func strptr(s string) *string { return &s }
