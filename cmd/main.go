package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fee-ledger/internal/clients"
	"fee-ledger/internal/config"
	"fee-ledger/internal/repository"
	"fee-ledger/internal/service"
	"fee-ledger/internal/transport/auth"
	"fee-ledger/internal/transport/rest"
	"fee-ledger/internal/transport/websocket"
	"fee-ledger/pkg/database/postgres"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system env or defaults")
	}

	// top-level context which we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Load()

	db := mustInitPostgres(ctx, cfg.Postgres)
	defer postgres.Close(db)

	redisClient := mustInitRedis(ctx, cfg.Redis)
	defer redisClient.Close()

	storageClient, err := clients.NewLocalStorage(cfg.ExportDir, cfg.FilesPublicPrefix, cfg.ExternalURL)
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}

	var uploader service.Uploader
	if cfg.S3.Enabled {
		s3Client, err := clients.NewS3Client(ctx, clients.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			UseSSL:          cfg.S3.UseSSL,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			log.Fatalf("s3 init error: %v", err)
		}
		uploader = s3Client
	}

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)
	wsClient := clients.NewWebSocketClient(wsHub)

	publisher := clients.NewPublisher(cfg.RabbitMQURL)
	defer publisher.Close()

	refCache := repository.NewReferenceCache(cfg.ReferenceCacheTTL)
	structureRepo := repository.NewFeeStructureRepository(db, refCache)
	concessionRepo := repository.NewConcessionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	feeSvc := service.NewFeeService(
		structureRepo,
		concessionRepo,
		paymentRepo,
		redisClient,
		wsClient,
		publisher,
		cfg.PaymentLockTTL,
		cfg.Location,
	)
	exportSvc := service.NewExportService(redisClient, storageClient, uploader, wsClient, feeSvc, paymentRepo, cfg.ExportPrefix)

	scopeMiddleware := auth.ScopeMiddleware(false)

	handler := rest.NewHandler(feeSvc, exportSvc, cfg.Location)
	router := handler.InitRouterWithScope(scopeMiddleware)

	// /files stays outside the scoped router; file names are unguessable
	root := chi.NewRouter()

	root.Get(storageClient.PublicPrefix+"/{file}", func(w http.ResponseWriter, r *http.Request) {
		file := chi.URLParam(r, "file")
		path, err := storageClient.Path(file)
		if err != nil {
			if errors.Is(err, clients.ErrFileNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "failed to access file", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", clients.OriginalName(file)))
		http.ServeFile(w, r, path)
	})

	// terminals subscribe per branch; the session is not needed to listen
	root.With(auth.ScopeMiddleware(true)).Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		scope, err := auth.GetScope(r.Context())
		if err != nil {
			http.Error(w, "branch_id required", http.StatusBadRequest)
			return
		}

		log.Printf("[WS] connected: branch_id=%s", scope.BranchID)
		wsHub.HandleWebSocket(w, r, scope.BranchID)
	})

	root.Mount("/", router)

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", auth.BranchHeader, auth.SessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})(root)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run HTTP server in goroutine so we can listen for shutdown signals
	srvErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on :%s\n", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	// exports are only kept while their status lives in redis
	scheduler := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := scheduler.AddFunc(cfg.CleanupSchedule, func() {
		if err := storageClient.CleanupOlderThan(cfg.ExportRetention); err != nil {
			log.Printf("storage cleanup error: %v", err)
		}
	}); err != nil {
		log.Fatalf("invalid cleanup schedule %q: %v", cfg.CleanupSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("Shutdown signal received: %v", sig)

		// Give server up to 10 seconds to finish ongoing requests
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server Shutdown error: %v", err)
		}

		// Cancel top-level context so background services (websocket hub) stop
		cancel()

		log.Println("Shutdown complete")
	}
}

func mustInitPostgres(ctx context.Context, cfg config.PostgresConfig) *sql.DB {
	db, err := postgres.NewPostgresConnection(ctx, postgres.ConnectionInfo{
		Host:            cfg.Host,
		Port:            cfg.Port,
		Username:        cfg.User,
		DBName:          cfg.DBName,
		SSLMode:         cfg.SSLMode,
		Password:        cfg.Password,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxOpenConns / 2,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		log.Fatalf("postgres init error: %v", err)
	}
	return db
}

func mustInitRedis(ctx context.Context, cfg config.RedisConfig) *clients.RedisClient {
	client, err := clients.NewRedisClient(ctx, clients.RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		Prefix:      cfg.Prefix,
	})
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	return client
}
