package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/fratlas/internal/api"
	"github.com/ppiankov/fratlas/internal/pipeline"
	"github.com/ppiankov/fratlas/internal/telegram"
)

var (
	serveAddr     string
	serveTelegram bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and optionally the Telegram bot)",
	Long: `Serve starts the claims API used by the review dashboard:
- Upload and recognize scanned FORM-A claim forms
- Review, correct, and save claims with synthesized boundaries
- Dashboard statistics, analytics, CSV export, and map features

With --telegram (or telegram.enabled in config) the Telegram intake bot
runs alongside the API.

Example:
  fratlas serve
  fratlas serve --addr :9090
  FRATLAS_DATABASE_DRIVER=sqlite FRATLAS_DATABASE_DSN=claims.db fratlas serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveTelegram, "telegram", false, "run the Telegram bot (overrides telegram.enabled)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if cmd.Flags().Changed("telegram") {
		cfg.Telegram.Enabled = serveTelegram
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Storage
	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// 2. Recognition and intake
	comp := newComponents(cfg, logger)
	intake, err := newIntake(cfg, db, comp, logger)
	if err != nil {
		return err
	}

	// 3. HTTP API
	handler := api.New(api.Deps{
		Intake:         intake,
		Extractor:      comp.extractor,
		Boundaries:     comp.synth,
		DB:             db,
		Limiter:        newUploadLimiter(cfg.RateLimit),
		Logger:         logger.Named("api"),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
	server := api.NewServer(cfg.Server, handler.Routes(), logger.Named("api"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})

	// 4. Telegram bot
	if cfg.Telegram.Enabled {
		botAPI, client, err := telegram.NewBotAPI(cfg.Telegram)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		logger.Info("telegram bot authorized", zap.String("username", botAPI.Self.UserName))

		bot := telegram.NewBot(telegram.Options{
			API:         botAPI,
			Intake:      intake,
			Boundaries:  comp.synth,
			Fetcher:     pipeline.NewFetcher(client, "fratlas/"+Version, cfg.Server.MaxUploadBytes, nil),
			Logger:      logger.Named("telegram"),
			PollTimeout: cfg.Telegram.PollTimeout,
		})
		g.Go(func() error {
			return bot.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
