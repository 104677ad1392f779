package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/macrofeed/macrofeed/internal/adapters/repository"
	"github.com/macrofeed/macrofeed/internal/adapters/sources"
	"github.com/macrofeed/macrofeed/internal/app"
	"github.com/macrofeed/macrofeed/internal/config"
	"github.com/macrofeed/macrofeed/internal/domain/reconcile"
	"github.com/macrofeed/macrofeed/internal/domain/validate"
	"github.com/macrofeed/macrofeed/pkg/logger"
)

// calendarMonthsAhead bounds how far forward calendar runs look.
const calendarMonthsAhead = 2

func main() {
	// Optional local .env; absence is fine.
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM. An import run itself
	// is not interruptible mid-way; this only stops between units.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to open record store", logger.Error(err))
		os.Exit(1)
	}
	defer cleanup()

	importer := app.New(store,
		app.WithLogger(log),
		app.WithValidationOptions(buildValidation(cfg)),
		app.WithScheduleChangeCap(cfg.ScheduleChangeCap),
		app.WithReconcilerOptions(
			reconcile.WithLookupChunkSize(cfg.LookupChunkSize),
			reconcile.WithInsertBatchSize(cfg.InsertBatchSize),
			reconcile.WithUpdateConcurrency(cfg.UpdateConcurrency),
		),
	)

	start := time.Date(cfg.StartYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Now().UTC()
	catalog := sources.FilterCatalog(sources.DefaultCatalog(), cfg.SeriesAllowList)
	hardFailures := 0

	if cfg.FREDAPIKey != "" {
		client, err := sources.NewFREDClient(cfg.FREDAPIKey, sources.WithFREDMinInterval(cfg.FREDMinInterval()))
		if err != nil {
			log.Error(ctx, "fred client", logger.Error(err))
			os.Exit(1)
		}
		if _, err := importer.RunObservations(ctx, client, fredRefs(catalog), start, end); err != nil {
			log.Error(ctx, "fred run failed", logger.Error(err))
			hardFailures++
		}
	}

	if cfg.SDMXBaseURL != "" {
		client, err := sources.NewSDMXClient(cfg.SDMXBaseURL,
			sources.WithSDMXAPIKey(cfg.SDMXAPIKey),
			sources.WithSDMXWindow(cfg.SDMXWindowRequests, cfg.SDMXWindow()),
		)
		if err != nil {
			log.Error(ctx, "sdmx client", logger.Error(err))
			os.Exit(1)
		}
		if _, err := importer.RunObservations(ctx, client, sdmxRefs(catalog), start, end); err != nil {
			log.Error(ctx, "sdmx run failed", logger.Error(err))
			hardFailures++
		}
	}

	if cfg.CalendarPrimaryURL != "" {
		primary, err := sources.NewCalendarClient(sources.NameCalendarPrimary, cfg.CalendarPrimaryURL)
		if err != nil {
			log.Error(ctx, "calendar client", logger.Error(err))
			os.Exit(1)
		}
		var secondary sources.EventSource
		if cfg.CalendarSecondaryURL != "" {
			fallback, err := sources.NewCalendarClient(sources.NameCalendarSecondary, cfg.CalendarSecondaryURL)
			if err != nil {
				log.Error(ctx, "calendar fallback client", logger.Error(err))
				os.Exit(1)
			}
			secondary = fallback
		}
		if _, err := importer.RunCalendar(ctx, primary, secondary, upcomingMonths(end)); err != nil {
			log.Error(ctx, "calendar run failed", logger.Error(err))
			hardFailures++
		}
	}

	if hardFailures > 0 {
		os.Exit(1)
	}
}

// openStore selects Postgres when a DSN is configured, the in-memory
// store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (repository.RecordStore, func(), error) {
	if cfg.PostgresDSN == "" {
		return repository.NewMemStore(), func() {}, nil
	}
	pg, err := repository.NewPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.InitSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func buildValidation(cfg *config.Config) validate.Options {
	opts := []validate.Option{
		validate.WithValueRange(cfg.MinValue, cfg.MaxValue),
	}
	if cfg.AllowMissing {
		opts = append(opts, validate.WithAllowMissing())
	}
	if cfg.OutlierStdDevs > 0 {
		opts = append(opts, validate.WithOutlierStdDevs(cfg.OutlierStdDevs))
	}
	return validate.NewOptions(opts...)
}

func fredRefs(catalog []sources.Series) []sources.SeriesRef {
	var refs []sources.SeriesRef
	for _, s := range catalog {
		if _, ok := s.(sources.FREDSeries); ok {
			refs = append(refs, sources.Ref(s))
		}
	}
	return refs
}

func sdmxRefs(catalog []sources.Series) []sources.SeriesRef {
	var refs []sources.SeriesRef
	for _, s := range catalog {
		if _, ok := s.(sources.SDMXSeries); ok {
			refs = append(refs, sources.Ref(s))
		}
	}
	return refs
}

// upcomingMonths lists the current month plus the look-ahead window.
func upcomingMonths(now time.Time) []sources.Month {
	months := make([]sources.Month, 0, calendarMonthsAhead+1)
	for i := 0; i <= calendarMonthsAhead; i++ {
		at := now.AddDate(0, i, 0)
		months = append(months, sources.Month{Year: at.Year(), Month: at.Month()})
	}
	return months
}
