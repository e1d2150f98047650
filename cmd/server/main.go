package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	corsHandler "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/urfave/cli/v2"

	"gigearn-link/internal/api"
	"gigearn-link/internal/backend"
	"gigearn-link/internal/config"
	"gigearn-link/internal/handlers"
	"gigearn-link/internal/linking"
	"gigearn-link/internal/middleware"
	"gigearn-link/internal/providers"
	"gigearn-link/internal/repository"
	"gigearn-link/internal/util"
)

const shutdownTimeout = 15 * time.Second

func main() {
	app := cli.NewApp()
	app.Name = "gigearn-link"
	app.Usage = "Account linking and token exchange service"
	app.Action = serve
	app.Commands = []*cli.Command{
		{
			Action:      serve,
			Name:        "serve",
			Usage:       "Start the linking api",
			Category:    "Api",
			Description: `Serves the link, callback and account routes for the mobile app.`,
		},
		{
			Action:      migrate,
			Name:        "migrate",
			Usage:       "Create or update the token store tables",
			Category:    "Database",
			Description: `Runs the gorm migrations for the postgres or sqlite token store.`,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(cctx *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	util.SetupLogger(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := openTokenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()
	go runJanitor(ctx, kv, time.Minute)

	registry := providers.NewRegistry(cfg.Authorization, cfg.Link.RedirectBase)
	if len(registry.Configured()) == 0 {
		util.LogWarn("no provider has a client id configured")
	}
	exchanger := providers.NewExchanger(registry, &http.Client{Timeout: cfg.Link.ExchangeTimeout}, cfg.Link.ExchangeMaxAttempts)
	manager := linking.NewManager(
		kv,
		providers.NewBuilder(registry, cfg.Link.AttemptTTL),
		exchanger,
		providers.NewRefresher(exchanger),
		backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout),
		linking.NewListener(cfg.Link.RedirectBase),
	)

	handler := handlers.NewHandler(cfg, manager)

	router := mux.NewRouter()
	api.RegisterRoutes(router, handler, middleware.NewMiddleware(kv, cfg.Session.JWTSecret))

	// Add rate limiting middleware
	rateLimitedRouter := middleware.RateLimiter(cfg.App.RateLimitRPS, cfg.App.RateLimitBurst)(router)

	// setting CORS
	corsOptions := corsHandler.CORS(
		corsHandler.AllowedOrigins(cfg.App.CORSOrigins),
		corsHandler.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		corsHandler.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	srv := &http.Server{
		Addr:              cfg.App.Addr,
		Handler:           corsHandler.CombinedLoggingHandler(os.Stdout, corsOptions(rateLimitedRouter)),
		ReadHeaderTimeout: 10 * time.Second,
		// long polls on /links/{provider}/wait hold the response open
		WriteTimeout: cfg.Link.WaitTimeout + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		util.LogInfo("server running", "addr", cfg.App.Addr, "store", cfg.Store.Kind)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		util.LogInfo("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func migrate(cctx *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	util.SetupLogger(cfg.App.LogLevel)

	cipher, err := util.NewCipher(cfg.Store.SecretKey)
	if err != nil {
		return err
	}

	var db *repository.Database
	switch cfg.Store.Kind {
	case config.StorePostgres:
		db, err = repository.New(cfg.Database, cipher, true)
	case config.StoreSQLite:
		db, err = repository.NewSQLite(cfg.Store.SQLitePath, cipher, true)
	default:
		return errors.New("migrate needs TOKEN_STORE=postgres or sqlite")
	}
	if err != nil {
		return err
	}
	return db.Close()
}
