package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/OpenTransitTools/transitdelay/app/gtfs-ingest/ingest"
	"github.com/OpenTransitTools/transitdelay/foundation/cache"
	"github.com/OpenTransitTools/transitdelay/foundation/database"
	"github.com/OpenTransitTools/transitdelay/foundation/messaging"
	"github.com/ardanlabs/conf"
	logger "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "GTFS_INGEST : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		DB struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
		Redis struct {
			Addr     string `conf:"default:localhost:6379"`
			Password string `conf:"noprint"`
			DB       int    `conf:"default:0"`
		}
		NATS struct {
			URL     string `conf:"default:nats://127.0.0.1:4222"`
			Subject string `conf:"default:vehicle_positions"`
		}
		Web struct {
			Addr            string        `conf:"default:0.0.0.0:8080"`
			ShutdownTimeout time.Duration `conf:"default:5s"`
		}
		GTFS struct {
			VehiclePositionsUrl string   `conf:"default:http://gtfsrt.prod.obanyc.com/vehiclePositions"`
			ApiKey              string   `conf:"noprint"`
			RoutePrefix         string   `conf:"default:B"`
			Timezone            string   `conf:"default:America/New_York"`
			LoadEverySeconds    int      `conf:"default:30"`
			CacheTTLSeconds     int      `conf:"default:300"`
			FetchTimeoutSeconds int      `conf:"default:20"`
			CycleTimeoutSeconds int      `conf:"default:60"`
			Workers             int      `conf:"default:16"`
			Holidays            []string `conf:"default:NewYear;MlkDay;MemorialDay;Juneteenth;IndependenceDay;LaborDay;ThanksgivingDay;ChristmasDay"`
			VerboseLogging      bool     `conf:"default:false"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Ingest gtfs-rt vehicle positions and estimate schedule delay"
	const prefix = "INGEST"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	location, err := time.LoadLocation(cfg.GTFS.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", cfg.GTFS.Timezone, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// =========================================================================
	// Start Database

	log.Println("main: Initializing database support")

	db, err := database.Open(database.Config{
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Host:       cfg.DB.Host,
		Name:       cfg.DB.Name,
		DisableTLS: cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Printf("main: Database Stopping : %s", cfg.DB.Host)
		err = db.Close()
		if err != nil {
			log.Printf("main: error closing database: %v", err)
		}
	}()
	if err = database.StatusCheck(ctx, db); err != nil {
		return fmt.Errorf("checking db status: %w", err)
	}

	// =========================================================================
	// Start Cache

	log.Println("main: Initializing redis support")

	redisClient, err := cache.Open(ctx, cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		log.Printf("main: Redis Stopping : %s", cfg.Redis.Addr)
		if err := redisClient.Close(); err != nil {
			log.Printf("main: error closing redis: %v", err)
		}
	}()

	// =========================================================================
	// Start NATS

	log.Printf("main: Connecting to NATS : %s", cfg.NATS.URL)

	natsConn, err := messaging.Connect(log, messaging.Config{URL: cfg.NATS.URL, Name: "gtfs-ingest"})
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	defer natsConn.Close()

	// =========================================================================
	// Start Ingester

	metrics := ingest.NewMetrics()
	positionCache := ingest.NewRedisPositionCache(redisClient)

	ingester, err := ingest.NewIngester(log,
		ingest.Conf{
			VehiclePositionsUrl: cfg.GTFS.VehiclePositionsUrl,
			ApiKey:              cfg.GTFS.ApiKey,
			RoutePrefix:         cfg.GTFS.RoutePrefix,
			Location:            location,
			LoadEvery:           time.Duration(cfg.GTFS.LoadEverySeconds) * time.Second,
			CacheTTL:            time.Duration(cfg.GTFS.CacheTTLSeconds) * time.Second,
			FetchTimeout:        time.Duration(cfg.GTFS.FetchTimeoutSeconds) * time.Second,
			CycleTimeout:        time.Duration(cfg.GTFS.CycleTimeoutSeconds) * time.Second,
			Workers:             cfg.GTFS.Workers,
			Holidays:            cfg.GTFS.Holidays,
			Verbose:             cfg.GTFS.VerboseLogging,
		},
		ingest.NewDBScheduleIndex(db),
		positionCache,
		ingest.NewDBPositionStore(db),
		ingest.NewNATSPositionPublisher(natsConn, cfg.NATS.Subject),
		metrics)
	if err != nil {
		return err
	}

	// =========================================================================
	// Start Web Service

	server := &http.Server{
		Addr:    cfg.Web.Addr,
		Handler: ingest.NewRouter(log, positionCache, metrics),
	}
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("main: web service listening on %s", cfg.Web.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	ingester.Start(ctx)

	select {
	case err := <-serverErrors:
		ingester.Stop()
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web service error: %w", err)
		}
		return nil
	case sig := <-shutdown:
		log.Printf("main: %v : Start shutdown", sig)
		ingester.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("could not stop web service gracefully: %w", err)
		}
	}
	return nil
}
