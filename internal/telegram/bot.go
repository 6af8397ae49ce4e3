// Package telegram accepts claim form scans sent to a Telegram bot. Photos and
// documents go through the same intake pipeline as web uploads and the bot
// replies with what was read off the form.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ppiankov/fratlas/internal/model"
	"github.com/ppiankov/fratlas/internal/pipeline"
	"github.com/ppiankov/fratlas/internal/sim"
	"github.com/ppiankov/fratlas/internal/util"
)

const (
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 15 * time.Second
	idleDelay      = 200 * time.Millisecond
)

var reRetryAfter = regexp.MustCompile(`retry after (\d+)`)

// API is the part of the Bot API the intake bot uses; *tgbotapi.BotAPI
// satisfies it
type API interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	GetFileDirectURL(fileID string) (string, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Intake is the pipeline the bot feeds
type Intake interface {
	Recognize(ctx context.Context, input pipeline.UploadInput) (*pipeline.Recognition, error)
	Stats(ctx context.Context) (model.DashboardStats, error)
	ClaimByClaimID(ctx context.Context, claimID string) (*model.ClaimWithFiles, error)
}

// Boundaries previews claim boundaries for /boundary
type Boundaries interface {
	Generate(village string, areaHectares float64) model.Polygon
}

// Options configures a Bot
type Options struct {
	API         API
	Intake      Intake
	Boundaries  Boundaries
	Fetcher     *pipeline.Fetcher // Downloads files from Telegram
	Clock       sim.Clock
	Logger      *zap.Logger
	PollTimeout time.Duration
}

// Bot long-polls Telegram and routes updates
type Bot struct {
	api         API
	intake      Intake
	boundaries  Boundaries
	fetcher     *pipeline.Fetcher
	clock       sim.Clock
	logger      *zap.Logger
	pollTimeout time.Duration
}

// NewBotAPI connects to Telegram through the configured proxies
func NewBotAPI(cfg model.TelegramConfig) (*tgbotapi.BotAPI, *http.Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, nil, errors.New("telegram token is empty")
	}

	// Long polls hold the connection for the poll timeout
	client := util.NewHTTPClient(cfg.PollTimeout+30*time.Second, cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to telegram: %w", err)
	}
	return api, client, nil
}

// NewBot creates a Bot from opts
func NewBot(opts Options) *Bot {
	b := &Bot{
		api:         opts.API,
		intake:      opts.Intake,
		boundaries:  opts.Boundaries,
		fetcher:     opts.Fetcher,
		clock:       opts.Clock,
		logger:      opts.Logger,
		pollTimeout: opts.PollTimeout,
	}
	if b.clock == nil {
		b.clock = sim.SystemClock{}
	}
	if b.fetcher == nil {
		b.fetcher = pipeline.NewFetcher(nil, "", 0, b.clock)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.pollTimeout <= 0 {
		b.pollTimeout = 30 * time.Second
	}
	return b
}

// Run polls for updates until ctx is cancelled. Polling errors back off and
// retry; they never stop the bot.
func (b *Bot) Run(ctx context.Context) error {
	offset := 0
	b.logger.Info("telegram polling started")

	for {
		if err := ctx.Err(); err != nil {
			b.logger.Info("telegram polling stopped")
			return nil
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = int(b.pollTimeout / time.Second)

		updates, err := b.poll(ctx, u)
		if ctx.Err() != nil {
			continue
		}
		if err != nil {
			d := clampDelay(retryDelayFromError(err))
			b.logger.Warn("telegram polling error", zap.Error(err), zap.Duration("retry_in", d))
			_ = b.clock.Sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			b.HandleUpdate(ctx, upd)
		}

		if len(updates) == 0 {
			_ = b.clock.Sleep(ctx, idleDelay)
		}
	}
}

type pollResult struct {
	updates []tgbotapi.Update
	err     error
}

// poll runs one long poll. GetUpdates cannot be cancelled, so on shutdown the
// request is abandoned; its updates are not confirmed and Telegram delivers
// them again on the next start.
func (b *Bot) poll(ctx context.Context, u tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	ch := make(chan pollResult, 1)
	go func() {
		updates, err := b.api.GetUpdates(u)
		ch <- pollResult{updates: updates, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.updates, r.err
	}
}

// retryDelayFromError picks a backoff for a failed poll: Telegram's own
// retry-after on 429, longer for network timeouts
func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}

	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		return time.Duration(tgErr.RetryAfter) * time.Second
	}

	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return baseRetryDelay
}

func clampDelay(d time.Duration) time.Duration {
	if d < baseRetryDelay {
		return baseRetryDelay
	}
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}
