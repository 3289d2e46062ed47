package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Sadick14/ticket-flow/internal"
	"github.com/Sadick14/ticket-flow/internal/core/events"
	"github.com/Sadick14/ticket-flow/internal/feesplit"
	"github.com/Sadick14/ticket-flow/internal/metrics"
	"github.com/Sadick14/ticket-flow/internal/payout"
	payoutPostgres "github.com/Sadick14/ticket-flow/internal/payout/postgres"
	"github.com/Sadick14/ticket-flow/internal/profile"
	profilePostgres "github.com/Sadick14/ticket-flow/internal/profile/postgres"
	"github.com/Sadick14/ticket-flow/internal/report"
	"github.com/Sadick14/ticket-flow/internal/transaction"
	txPostgres "github.com/Sadick14/ticket-flow/internal/transaction/postgres"
	"github.com/Sadick14/ticket-flow/pkg/logger"
)

// Dependencies is the wired engine shared by every command.
type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Gorm   *gorm.DB
	Logger *slog.Logger
	Bus    *events.EventBus

	Calculator   *feesplit.Calculator
	Profiles     *profile.Service
	Transactions *transaction.Service
	Payouts      *payout.Service
	Scheduler    *payout.Scheduler
	Reports      *report.Reader
}

func initializeDependencies() (*Dependencies, error) {
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	calc, _, tiers, err := feesplit.FromConfig(cfg.Settlement)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to build fee calculator: %w", err)
	}

	lg := logger.LoggerWrapper()
	bus := events.NewEventBus(lg)
	bus.Subscribe(events.AllEvents, events.AuditLog(lg))
	m := metrics.Default()

	profileRepo := profilePostgres.NewProfileRepository(gdb)
	txRepo := txPostgres.NewTransactionRepository(gdb)
	store := payoutPostgres.NewStore(gdb, profileRepo, txRepo)
	profiles := profile.NewService(profileRepo, tiers, lg)
	scheduler := payout.NewScheduler(store, bus, m, lg, payout.WithConcurrency(cfg.Scheduler.Concurrency))

	return &Dependencies{
		Config:       cfg,
		DB:           db,
		Gorm:         gdb,
		Logger:       lg,
		Bus:          bus,
		Calculator:   calc,
		Profiles:     profiles,
		Transactions: transaction.NewService(txRepo, calc, profiles, bus, m, lg),
		Payouts:      payout.NewService(store, bus, m, lg),
		Scheduler:    scheduler,
		Reports:      report.NewReader(db),
	}, nil
}

// newDaemon uses the shared database lock unless it is turned off.
func (d *Dependencies) newDaemon(ctx context.Context) (*payout.Daemon, error) {
	if d.Config.Scheduler.DistributedLock {
		return payout.NewDaemonWithGORMLocker(ctx, d.Scheduler, d.Config.Scheduler, d.Gorm, d.Logger)
	}
	return payout.NewDaemon(d.Scheduler, d.Config.Scheduler, d.Logger)
}

// Close drains event deliveries before closing the database they may use.
func (d *Dependencies) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Bus.Wait(ctx); err != nil {
		d.Logger.Warn("event deliveries still running at shutdown", "error", err)
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Open(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
