package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/repository"
	"travelsync-service/internal/infrastructure/config"
	"travelsync-service/internal/infrastructure/lock"
	"travelsync-service/internal/infrastructure/oauth"
	"travelsync-service/internal/infrastructure/persistence"
	"travelsync-service/internal/infrastructure/ratelimit"
	"travelsync-service/internal/infrastructure/router"
	"travelsync-service/internal/interface/airline"
	"travelsync-service/internal/interface/foursquare"
	"travelsync-service/internal/interface/gmail"
	"travelsync-service/internal/interface/httpapi"
	"travelsync-service/internal/interface/outlook"
	repo "travelsync-service/internal/interface/repository"
	"travelsync-service/internal/scheduler"
	"travelsync-service/internal/usecase"
	"travelsync-service/pkg/logger"
	"travelsync-service/pkg/metrics"
)

// stores groups the repositories the jobs depend on
type stores struct {
	accounts  repository.AccountRepository
	trips     repository.TripRepository
	checkins  repository.CheckinRepository
	shares    repository.ShareRepository
	airlines  repository.AirlineRepository
	timezones repository.TimezoneRepository
	runLog    repository.RunLogRepository
	messages  repository.MessageLogRepository
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewLoggerWithLevel(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting TravelSync Service", "version", cfg.AppVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, mongoClient := openStores(ctx, cfg, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("travelsync", reg)

	// Provider clients
	limiters := ratelimit.NewLimiters(cfg.ProviderRPS, cfg.ProviderBurst)
	providers := router.NewProviderRouter(log)
	providers.Register(gmail.NewGmailService("", cfg.ProviderTimeout, limiters, log))
	providers.Register(outlook.NewOutlookService(cfg.OutlookBaseURL, cfg.ProviderTimeout, limiters, log))
	providers.Register(foursquare.NewCheckinService(cfg.FoursquareBaseURL, cfg.FoursquareVersion, cfg.ProviderTimeout, limiters, log))
	for _, a := range cfg.Airlines {
		if !airline.Supported(a.Airline) {
			continue
		}
		client, err := airline.NewStatusService(a.Airline, a.BaseURL, a.APIKey, cfg.ProviderTimeout, limiters)
		if err != nil {
			log.Warn("Flight status disabled for airline", "airline", a.Airline, "error", err)
			continue
		}
		providers.RegisterStatus(client)
	}

	refresher := oauth.NewRefresher(oauth.Apps{
		entity.ProviderGmail:      {ClientID: cfg.GoogleClientID, ClientSecret: cfg.GoogleClientSecret},
		entity.ProviderOutlook:    {ClientID: cfg.MicrosoftClientID, ClientSecret: cfg.MicrosoftClientSecret},
		entity.ProviderFoursquare: {ClientID: cfg.FoursquareClientID, ClientSecret: cfg.FoursquareClientSecret},
	}, &http.Client{Timeout: cfg.ProviderTimeout}, log)

	policy := usecase.NewRefreshPolicy(refresher, st.accounts, m, log)
	materializer := usecase.NewMaterializer(st.trips, st.checkins, st.airlines, st.timezones, log)
	deps := usecase.IngestDeps{
		Accounts:     st.accounts,
		Clients:      providers,
		Policy:       policy,
		Materializer: materializer,
		Messages:     st.messages,
		RunLog:       st.runLog,
		Metrics:      m,
		Logger:       log,
		Concurrency:  cfg.AccountConcurrency,
	}

	jobs := map[string]scheduler.JobFunc{
		config.JobEmailScan:    usecase.NewEmailScanJob(config.JobEmailScan, deps).Run,
		config.JobCheckinSync:  usecase.NewCheckinSyncJob(config.JobCheckinSync, deps).Run,
		config.JobFlightStatus: usecase.NewFlightStatusJob(config.JobFlightStatus, st.trips, providers, cfg.FlightStatusWindow, m, log).Run,
		config.JobShareCleanup: usecase.NewShareCleanupJob(st.shares, log).Run,
	}

	var opts []scheduler.Option
	if cfg.RedisURL != "" {
		redisClient, err := lock.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Warn("Redis unavailable, jobs are guarded in-process only", "error", err)
		} else {
			defer redisClient.Close()
			opts = append(opts, scheduler.WithLease(lock.NewRedisLease(redisClient, log), scheduler.DefaultLeaseTTL))
		}
	}

	sched := scheduler.New(st.runLog, m, log, opts...)
	loc := cfg.Location()
	for _, jc := range cfg.Jobs {
		if !jc.IsEnabled() {
			log.Info("Job disabled", "job", jc.Name)
			continue
		}
		fn, ok := jobs[jc.Name]
		if !ok {
			log.Warn("Unknown job in configuration", "job", jc.Name)
			continue
		}
		trigger, err := scheduler.FromConfig(jc, loc)
		if err != nil {
			log.Fatal("Invalid job trigger", "job", jc.Name, "error", err)
		}
		if err := sched.Register(jc.Name, trigger, fn); err != nil {
			log.Fatal("Failed to register job", "job", jc.Name, "error", err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", "error", err)
	}

	server := httpapi.NewServer(cfg.Port, cfg.ReadTimeout, cfg.WriteTimeout, httpapi.NewRouter(httpapi.Deps{
		Jobs:      sched,
		RunLog:    st.runLog,
		Gatherer:  reg,
		Logger:    log,
		Version:   cfg.AppVersion,
		StartTime: time.Now(),
	}), log)

	// Start HTTP server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel()
	sched.Stop()

	if mongoClient != nil {
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			log.Error("MongoDB disconnect error", "error", err)
		}
	}

	log.Info("TravelSync Service stopped")
}

// openStores connects PostgreSQL and MongoDB. Without a Postgres DSN the
// service runs on the in-memory store; without MongoDB the run and message logs
// stay in memory.
func openStores(ctx context.Context, cfg *config.Config, log logger.Logger) (stores, *mongo.Client) {
	mem := repo.NewMemoryStore()
	st := stores{
		accounts:  mem,
		trips:     mem,
		checkins:  mem,
		shares:    mem,
		airlines:  mem,
		timezones: mem,
		runLog:    mem,
		messages:  mem,
	}

	if cfg.PostgresDSN != "" {
		if cfg.MigrateOnStart {
			log.Info("Running database migrations")
			if err := persistence.RunMigrations(cfg.PostgresDSN); err != nil {
				log.Fatal("Failed to run migrations", "error", err)
			}
		}

		db, err := persistence.NewPostgresDB(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("Failed to connect to PostgreSQL", "error", err)
		}
		st.accounts = repo.NewGormAccountRepository(db)
		st.trips = repo.NewGormTripRepository(db)
		st.checkins = repo.NewGormCheckinRepository(db)
		st.shares = repo.NewGormShareRepository(db)
		st.airlines = repo.NewGormAirlineRepository(db)
		st.timezones = repo.NewGormTimezoneRepository(db)
	} else {
		log.Warn("POSTGRES_DSN not set, using the in-memory store")
	}

	if cfg.MongoURI == "" {
		log.Warn("MONGODB_DSN not set, run logs are kept in memory")
		return st, nil
	}

	log.Info("Connecting to MongoDB")
	client, db, err := persistence.NewMongoDatabase(ctx, persistence.MongoOptions{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDB,
		Username: cfg.MongoUser,
		Password: cfg.MongoPassword,
		AppName:  "travelsync-service",
	})
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	if st.runLog, err = repo.NewMongoRunLogRepository(ctx, db); err != nil {
		log.Fatal("Failed to set up run log collection", "error", err)
	}
	if st.messages, err = repo.NewMongoMessageLogRepository(ctx, db); err != nil {
		log.Fatal("Failed to set up message log collection", "error", err)
	}
	return st, client
}
