package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/config"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/consultation"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/directory"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/pharmacy"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/polling"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/queue"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/triage"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/auth"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/db"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/memdb"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic appointment queue and pharmacy API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.StoreDriver != config.StorePostgres {
		return nil, fmt.Errorf("migrations require STORE_DRIVER=%s", config.StorePostgres)
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.close()

	e := newServer(cfg, st, logger)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.StoreDriver).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// store bundles the repositories and unit-of-work manager for one backend.
type store struct {
	driver        string
	clock         clock.Clock
	tx            db.Transactor
	pinger        db.Pinger
	doctors       directory.DoctorRepository
	appointments  queue.AppointmentRepository
	prescriptions pharmacy.PrescriptionRepository
	close         func()
}

// openStore builds the clinic clock from CLINIC_TIMEZONE and the backend
// chosen by STORE_DRIVER. Repositories and services share that clock.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*store, error) {
	loc, err := clock.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		return nil, err
	}
	clk := clock.New(loc)

	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn().Msg("using in-memory store: data is lost on restart")
		return memoryStore(clk), nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to database")
	return &store{
		driver:        config.StorePostgres,
		clock:         clk,
		tx:            db.NewTxManager(pool),
		pinger:        pool,
		doctors:       directory.NewDoctorRepoPG(pool),
		appointments:  queue.NewAppointmentRepoPG(pool),
		prescriptions: pharmacy.NewPrescriptionRepoPG(pool),
		close:         pool.Close,
	}, nil
}

func memoryStore(clk clock.Clock) *store {
	mem := memdb.New()
	return &store{
		driver:        config.StoreMemory,
		clock:         clk,
		tx:            mem,
		pinger:        mem,
		doctors:       directory.NewDoctorRepoMemory(mem, clk),
		appointments:  queue.NewAppointmentRepoMemory(mem),
		prescriptions: pharmacy.NewPrescriptionRepoMemory(mem),
		close:         func() {},
	}
}

func newServer(cfg *config.Config, st *store, logger zerolog.Logger) *echo.Echo {
	clk := st.clock

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders:  []string{"Authorization", "Content-Type", "If-None-Match", middleware.RequestIDHeader},
		ExposeHeaders: []string{"ETag", middleware.HeaderPollInterval, "Retry-After"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	apiV1 := e.Group("/api/v1", middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	intervals := polling.Intervals{
		Patient:  cfg.PollIntervalPatient,
		Doctor:   cfg.PollIntervalDoctor,
		Pharmacy: cfg.PollIntervalPharmacy,
	}
	poll := middleware.PollMiddleware(intervals.For)

	// Domain services
	dirSvc := directory.NewService(st.doctors, logger)
	queueSvc := queue.NewService(st.tx, st.appointments, dirSvc, clk, logger)
	rxSvc := pharmacy.NewService(st.tx, st.prescriptions, clk, cfg.DefaultPharmacyID, logger)
	consultSvc := consultation.NewService(st.tx, queueSvc, rxSvc, logger)
	pollSvc := polling.NewService(queueSvc, clk, cfg.AvgConsultation(), logger)

	directory.NewHandler(dirSvc).RegisterRoutes(apiV1)
	queue.NewHandler(queueSvc).RegisterRoutes(apiV1)
	consultation.NewHandler(consultSvc).RegisterRoutes(apiV1)
	pharmacy.NewHandler(rxSvc).RegisterRoutes(apiV1, poll)
	polling.NewHandler(pollSvc).RegisterRoutes(apiV1, poll)
	triage.NewHandler().RegisterRoutes(apiV1)

	// Health check endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(st.driver, st.pinger))

	return e
}
