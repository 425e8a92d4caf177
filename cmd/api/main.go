package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fundihub.org/internal/auth"
	"fundihub.org/internal/httpapi"
	"fundihub.org/internal/identity"
	"fundihub.org/internal/obs"
	"fundihub.org/internal/provider"
	"fundihub.org/internal/ratelimit"
	"fundihub.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("FUNDIHUB_COMMIT"))

	verifier := auth.NewVerifier(os.Getenv("FUNDIHUB_AUTH_SECRET"))
	if verifier.UsingDefaultSecret() {
		log.Printf("WARNING: FUNDIHUB_AUTH_SECRET is not set, using the built-in development secret; tokens are forgeable")
	}

	adminSubject := os.Getenv("FUNDIHUB_ADMIN_SUBJECT")
	if adminSubject == "" {
		adminSubject = "fundihub-root"
	}

	// The in-memory stores serve two roles: the whole persistence layer
	// when no DSN is configured, and the degraded-mode fallback for
	// identity resolution when PostgreSQL stops answering pings.
	memUsers := identity.NewInMemoryStore()

	var userStore identity.UserStore = memUsers
	var appStore provider.Store = provider.NewInMemoryStore()
	var mirror httpapi.StatusMirror = memUsers
	var probe httpapi.ReadyProbe
	var resolverOpts []identity.ResolverOption

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if dsn := os.Getenv("FUNDIHUB_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open postgres: %v", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(rootCtx); err != nil {
			log.Fatalf("ensure schema: %v", err)
		}

		health := identity.NewHealth(true)
		go store.MonitorHealth(rootCtx, health, 15*time.Second)

		userStore = store.Users()
		appStore = store.Applications()
		mirror = store.Users()
		probe = httpapi.ReadyProbe{DB: store.DB()}
		resolverOpts = append(resolverOpts, identity.WithFallbackStore(memUsers, health))
	}

	resolver := identity.NewResolver(userStore, adminSubject, resolverOpts...)
	providers := provider.NewService(appStore)

	limiter := ratelimit.New()
	stopSweeper := limiter.StartSweeper(time.Minute)
	defer stopSweeper()

	api := httpapi.New(httpapi.Config{
		Verifier:   verifier,
		Resolver:   resolver,
		Providers:  providers,
		Limiter:    limiter,
		Mirror:     mirror,
		ReadyProbe: probe,
		Version:    version,
	})

	addr := os.Getenv("FUNDIHUB_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting fundihub-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
