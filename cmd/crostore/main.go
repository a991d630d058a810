package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/crostore/backend/internal/domain/crosslist"
	"github.com/crostore/backend/internal/domain/marketplace"
	"github.com/crostore/backend/internal/infrastructure/browser"
	"github.com/crostore/backend/internal/infrastructure/config"
	"github.com/crostore/backend/internal/infrastructure/googleauth"
	"github.com/crostore/backend/internal/infrastructure/logger"
	"github.com/crostore/backend/internal/infrastructure/mailbox"
	"github.com/crostore/backend/internal/infrastructure/spreadsheet"
)

func main() {
	// Parse flags
	var (
		configPath   string
		logLevel     string
		dryRun       bool
		limit        int
		platformCode string
		itemID       string
		crostoreID   string
	)

	flag.StringVar(&configPath, "config", "", "Config file (default: ./crostore.toml, ~/.crostore/crostore.toml)")
	flag.StringVar(&logLevel, "log-level", "", "Log level override: debug, info, warn, error")
	flag.BoolVar(&dryRun, "dry-run", false, "Report cancel targets without touching listings or mail")
	flag.IntVar(&limit, "limit", -1, "Stop after this many cancel targets, 0 means unlimited (overrides run.limit)")
	flag.StringVar(&platformCode, "platform", "", "Platform code: mercari, yahoo_auction")
	flag.StringVar(&itemID, "item-id", "", "Platform item id for register")
	flag.StringVar(&crostoreID, "crostore-id", "", "Crostore id for register/unregister")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if limit >= 0 {
		cfg.Run.Limit = limit
	}
	// -platform narrows run/status to one marketplace and names the
	// register/unregister target.
	if platformCode != "" {
		cfg.Run.Platforms = []string{platformCode}
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log = log.With(zap.String("run_id", uuid.New().String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var code int
	switch command {
	case "run":
		code = runCommand(ctx, cfg, log, dryRun)
	case "register", "unregister":
		code = mappingCommand(ctx, cfg, log, command, platformCode, itemID, crostoreID)
	case "status":
		code = statusCommand(ctx, cfg, log)
	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		code = 1
	}

	_ = log.Sync()
	os.Exit(code)
}

// runner drives one reconciliation pass over the configured marketplaces.
type runner struct {
	cfg        *config.Config
	log        *zap.Logger
	reconciler *crosslist.Reconciler
	mappings   crosslist.MappingStore
	sess       *browser.Chrome
	dryRun     bool
	remaining  int // cancel-target budget, negative means unlimited
}

func runCommand(ctx context.Context, cfg *config.Config, log *zap.Logger, dryRun bool) int {
	platforms, err := selectedPlatforms(cfg.Run.Platforms)
	if err != nil {
		log.Error("Invalid platform selection", zap.Error(err))
		return 1
	}

	ts, err := newTokenSource(ctx, cfg)
	if err != nil {
		log.Error("Google authorization failed", zap.Error(err))
		return 1
	}
	gmailSvc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		log.Error("Failed to build Gmail service", zap.Error(err))
		return 1
	}
	source := mailbox.NewGmail(gmailSvc, mailbox.Config{
		UserID:            cfg.Gmail.UserID,
		HandledLabel:      cfg.Gmail.HandledLabel,
		RequestsPerSecond: cfg.Gmail.RequestsPerSecond,
		SkipAcknowledge:   dryRun,
	}, log)

	mappings, err := newMappings(ctx, ts, cfg, log)
	if err != nil {
		log.Error("Failed to build mapping store", zap.Error(err))
		return 1
	}

	r := &runner{
		cfg:        cfg,
		log:        log,
		reconciler: crosslist.NewReconciler(source, mappings, log),
		mappings:   mappings,
		dryRun:     dryRun,
		remaining:  cfg.Run.Limit,
	}
	if r.remaining == 0 {
		r.remaining = -1
	}

	// A dry run reads mail and spreadsheet only, so no browser is needed
	// and none is launched.
	if !dryRun {
		r.sess, err = newBrowser(cfg, log)
		if err != nil {
			log.Error("Failed to start browser", zap.Error(err))
			return 1
		}
		defer func() {
			if err := r.sess.Close(); err != nil {
				log.Warn("Error closing browser", zap.Error(err))
			}
		}()
	}

	exit := 0
	for _, p := range platforms {
		if err := r.reconcile(ctx, p); err != nil {
			log.Error("Platform reconciliation failed",
				zap.String("platform", p.Code()),
				zap.Error(err),
			)
			exit = 1
		}
		if ctx.Err() != nil {
			log.Warn("Interrupted", zap.Error(ctx.Err()))
			return 1
		}
	}
	return exit
}

// reconcile runs the pipeline for one marketplace: probe the login, walk
// the cancel targets, cancel each sibling listing, and clear its mapping
// cell.
func (r *runner) reconcile(ctx context.Context, p crosslist.Platform) error {
	log := r.log.With(zap.String("platform", p.Code()))
	if !r.dryRun {
		ok, err := p.IsAccessibleToUserpage(ctx, r.sess, r.cfg.Run.OpTimeout)
		if err != nil {
			return fmt.Errorf("userpage probe: %w", err)
		}
		if !ok {
			return fmt.Errorf("not logged in to %s, log in on the browser profile first", p.Name())
		}
	}

	var targets, canceled, failed, staleCells int
	for item, err := range r.reconciler.ItemsToCancel(ctx, p) {
		if err != nil {
			return err
		}
		if item.ItemID == "" {
			// Empty mapping cell: the item was never cross-posted there.
			log.Debug("no sibling listing recorded",
				zap.String("target_platform", item.Platform.Code()),
				zap.String("crostore_id", item.CrostoreID),
			)
			continue
		}
		if r.remaining == 0 {
			// Breaking here leaves the current notification unmarked, so
			// the next run picks it up again.
			log.Info("cancel budget exhausted, leaving the rest for the next run")
			break
		}
		if r.remaining > 0 {
			r.remaining--
		}
		targets++
		ilog := log.With(
			zap.String("target_platform", item.Platform.Code()),
			zap.String("item_id", item.ItemID),
			zap.String("crostore_id", item.CrostoreID),
		)
		if r.dryRun {
			ilog.Info("would cancel sibling listing")
			continue
		}
		canceller, err := marketplace.CancellerFor(item.Platform)
		if err != nil {
			ilog.Error("no canceller for platform", zap.Error(err))
			failed++
			continue
		}
		if err := canceller.Cancel(ctx, r.sess, item, r.cfg.Run.OpTimeout); err != nil {
			ilog.Error("cancellation failed", zap.Error(err))
			r.saveScreenshot(ctx, item, ilog)
			failed++
			continue
		}
		canceled++
		ilog.Info("canceled sibling listing")
		if err := r.mappings.Delete(ctx, item); err != nil {
			// The listing is gone either way; a stale cell costs one
			// failed cancel the next time this item sells.
			ilog.Error("listing canceled but its mapping cell is still set", zap.Error(err))
			staleCells++
		}
	}

	log.Info("platform reconciled",
		zap.Int("targets", targets),
		zap.Int("canceled", canceled),
		zap.Int("failed", failed),
		zap.Bool("dry_run", r.dryRun),
	)
	switch {
	case failed > 0:
		return fmt.Errorf("%d of %d cancellations failed", failed, targets)
	case staleCells > 0:
		return fmt.Errorf("%d canceled listings still have their mapping cells set", staleCells)
	}
	return nil
}

// saveScreenshot captures the page a cancellation died on. Best effort:
// every failure is logged and swallowed.
func (r *runner) saveScreenshot(ctx context.Context, item crosslist.Item, log *zap.Logger) {
	dir := r.cfg.Browser.ScreenshotDir
	if dir == "" || r.sess == nil {
		return
	}
	shot, err := r.sess.Screenshot(ctx)
	if err != nil {
		log.Warn("cannot capture failure screenshot", zap.Error(err))
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Warn("cannot create screenshot directory", zap.Error(err))
		return
	}
	name := fmt.Sprintf("%s_%s_%s.png",
		time.Now().Format("20060102-150405"), item.Platform.Code(), item.ItemID)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, shot, 0644); err != nil {
		log.Warn("cannot write failure screenshot", zap.Error(err))
		return
	}
	log.Info("saved failure screenshot", zap.String("path", path))
}

func mappingCommand(ctx context.Context, cfg *config.Config, log *zap.Logger, command, platformCode, itemID, crostoreID string) int {
	if platformCode == "" || crostoreID == "" {
		log.Error("Missing flags: register/unregister need -platform and -crostore-id")
		return 1
	}
	p, err := marketplace.ByCode(platformCode)
	if err != nil {
		log.Error("Unknown platform", zap.String("platform", platformCode), zap.Error(err))
		return 1
	}
	if command == "register" && itemID == "" {
		log.Error("Missing flags: register needs -item-id")
		return 1
	}

	ts, err := newTokenSource(ctx, cfg)
	if err != nil {
		log.Error("Google authorization failed", zap.Error(err))
		return 1
	}
	mappings, err := newMappings(ctx, ts, cfg, log)
	if err != nil {
		log.Error("Failed to build mapping store", zap.Error(err))
		return 1
	}

	item := p.CreateItem(itemID, crostoreID)
	if command == "register" {
		err = mappings.Update(ctx, item)
	} else {
		err = mappings.Delete(ctx, item)
	}
	if err != nil {
		log.Error("Mapping change failed",
			zap.String("command", command),
			zap.String("item", item.String()),
			zap.Error(err),
		)
		return 1
	}
	log.Info("Mapping changed",
		zap.String("command", command),
		zap.String("item", item.String()),
	)
	return 0
}

func statusCommand(ctx context.Context, cfg *config.Config, log *zap.Logger) int {
	platforms, err := selectedPlatforms(cfg.Run.Platforms)
	if err != nil {
		log.Error("Invalid platform selection", zap.Error(err))
		return 1
	}
	sess, err := newBrowser(cfg, log)
	if err != nil {
		log.Error("Failed to start browser", zap.Error(err))
		return 1
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("Error closing browser", zap.Error(err))
		}
	}()

	exit := 0
	for _, p := range platforms {
		ok, err := p.IsAccessibleToUserpage(ctx, sess, cfg.Run.OpTimeout)
		switch {
		case err != nil:
			log.Error("Userpage probe failed", zap.String("platform", p.Code()), zap.Error(err))
			fmt.Printf("%-14s probe failed\n", p.Code())
			exit = 1
		case ok:
			fmt.Printf("%-14s logged in (%s)\n", p.Code(), p.Name())
		default:
			fmt.Printf("%-14s NOT logged in (%s)\n", p.Code(), p.Name())
		}
	}
	return exit
}

func newTokenSource(ctx context.Context, cfg *config.Config) (oauth2.TokenSource, error) {
	return googleauth.TokenSource(ctx,
		cfg.Google.CredentialsFile,
		cfg.Google.TokenFile,
		gmail.GmailModifyScope,
		sheets.SpreadsheetsScope,
	)
}

func newMappings(ctx context.Context, ts oauth2.TokenSource, cfg *config.Config, log *zap.Logger) (*crosslist.Resolver, error) {
	svc, err := sheets.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("build sheets service: %w", err)
	}
	cells, err := spreadsheet.NewGoogleSheets(svc, spreadsheet.Config{
		SpreadsheetID:     cfg.Sheets.SpreadsheetID,
		SheetName:         cfg.Sheets.SheetName,
		RequestsPerSecond: cfg.Sheets.RequestsPerSecond,
	}, log)
	if err != nil {
		return nil, err
	}
	columns, err := platformColumns(cfg.Sheets.Columns)
	if err != nil {
		return nil, err
	}
	return crosslist.NewResolver(cells, cfg.Sheets.IDColumn, columns, log), nil
}

func newBrowser(cfg *config.Config, log *zap.Logger) (*browser.Chrome, error) {
	return browser.NewChrome(&browser.Config{
		RemoteURL:       cfg.Browser.RemoteURL,
		UserDataDir:     cfg.Browser.UserDataDir,
		Headless:        cfg.Browser.Headless,
		NoSandbox:       cfg.Browser.NoSandbox,
		PageLoadTimeout: cfg.Browser.PageLoadTimeout,
		Logger:          log,
	})
}

// platformColumns binds every registered marketplace to its configured
// spreadsheet column, in registry order.
func platformColumns(byCode map[string]string) ([]crosslist.PlatformColumn, error) {
	columns := make([]crosslist.PlatformColumn, 0, len(byCode))
	for _, p := range marketplace.All() {
		column, ok := byCode[p.Code()]
		if !ok {
			return nil, fmt.Errorf("sheets.columns has no column for platform %s", p.Code())
		}
		columns = append(columns, crosslist.PlatformColumn{Platform: p, Column: column})
	}
	return columns, nil
}

func selectedPlatforms(codes []string) ([]crosslist.Platform, error) {
	if len(codes) == 0 {
		return marketplace.All(), nil
	}
	platforms := make([]crosslist.Platform, 0, len(codes))
	for _, code := range codes {
		p, err := marketplace.ByCode(code)
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}

func printUsage() {
	fmt.Println(`crostore - cancel cross-posted listings after an item sells

Usage:
  crostore [flags] <command>

Commands:
  run           Read sale notifications and cancel the sold items'
                sibling listings on the other marketplaces
  register      Record a listing's platform item id on its row
                (requires -platform, -item-id, -crostore-id)
  unregister    Clear a listing's cell from its row
                (requires -platform, -crostore-id)
  status        Probe each marketplace session for a valid login

Flags:
  -config string       Config file (default: ./crostore.toml, ~/.crostore/crostore.toml)
  -log-level string    Log level override: debug, info, warn, error
  -dry-run             Report cancel targets without touching listings or mail
  -limit int           Stop after this many cancel targets, 0 means unlimited
  -platform string     Platform code: mercari, yahoo_auction
  -item-id string      Platform item id
  -crostore-id string  Canonical crostore id

Environment Variables:
  CROSTORE_* overrides any config key, e.g. CROSTORE_SHEETS_SPREADSHEET_ID

Examples:
  # See what would be canceled, without touching anything
  crostore -dry-run run

  # Reconcile for real, at most 3 cancellations
  crostore -limit 3 run

  # Record a newly cross-posted listing
  crostore -platform mercari -item-id m12345 -crostore-id A007 register`)
}
