package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ppiankov/fratlas/internal/boundary"
	"github.com/ppiankov/fratlas/internal/pipeline"
	"github.com/ppiankov/fratlas/internal/store"
)

// Telegram sends photos re-encoded as JPEG
const photoMimeType = "image/jpeg"

// HandleUpdate routes a single update
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	cid := msg.Chat.ID

	switch {
	case msg.IsCommand():
		b.HandleCommand(ctx, msg)
	case len(msg.Photo) > 0:
		// Sizes are ascending; the last one is the original resolution
		ph := msg.Photo[len(msg.Photo)-1]
		b.acceptScan(ctx, cid, ph.FileID, fmt.Sprintf("photo-%d.jpg", msg.MessageID), photoMimeType)
	case msg.Document != nil:
		name := msg.Document.FileName
		if name == "" {
			name = fmt.Sprintf("document-%d", msg.MessageID)
		}
		b.acceptScan(ctx, cid, msg.Document.FileID, name, msg.Document.MimeType)
	default:
		b.send(cid, helpText)
	}
}

// HandleCommand answers /start, /help, /villages, /boundary, /claim and /stats
func (b *Bot) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID

	switch msg.Command() {
	case "start", "help":
		b.send(cid, helpText)
	case "villages":
		b.send(cid, formatVillages(boundary.Villages()))
	case "boundary":
		village, area, err := parseBoundaryArgs(msg.CommandArguments())
		if err != nil {
			b.send(cid, err.Error()+"\nUsage: /boundary <village> <hectares>")
			return
		}
		b.send(cid, formatBoundary(village, area, b.boundaries.Generate(village, area)))
	case "claim":
		claimID := strings.TrimSpace(msg.CommandArguments())
		if claimID == "" {
			b.send(cid, "Usage: /claim <claim ID>")
			return
		}
		c, err := b.intake.ClaimByClaimID(ctx, claimID)
		if errors.Is(err, store.ErrNotFound) {
			b.send(cid, fmt.Sprintf("No claim with ID %s.", claimID))
			return
		}
		if err != nil {
			b.logger.Error("telegram claim lookup failed", zap.String("claim_id", claimID), zap.Error(err))
			b.send(cid, failureText)
			return
		}
		b.send(cid, formatClaim(c))
	case "stats":
		stats, err := b.intake.Stats(ctx)
		if err != nil {
			b.logger.Error("telegram stats failed", zap.Error(err))
			b.send(cid, failureText)
			return
		}
		b.send(cid, formatStats(stats))
	default:
		b.send(cid, "Unknown command.\n\n"+helpText)
	}
}

// acceptScan downloads a file from Telegram and runs it through intake
func (b *Bot) acceptScan(ctx context.Context, cid int64, fileID, name, mimeType string) {
	b.send(cid, "Reading the form, this takes a few seconds...")

	rec, err := b.recognize(ctx, fileID, name, mimeType)
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			b.send(cid, "Could not accept this file: "+verr.Error())
			return
		}
		b.logger.Error("telegram scan failed",
			zap.Int64("chat", cid),
			zap.String("file", fileID),
			zap.Error(err))
		b.send(cid, failureText)
		return
	}

	b.send(cid, formatRecognition(rec))
}

func (b *Bot) recognize(ctx context.Context, fileID, name, mimeType string) (*pipeline.Recognition, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve telegram file: %w", err)
	}

	fetched, err := b.fetcher.FetchWithRetry(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("download telegram file: %w", err)
	}
	if mimeType == "" {
		mimeType = fetched.ContentType
	}

	// The upload store enforces type and size limits
	return b.intake.Recognize(ctx, pipeline.UploadInput{
		Body:         bytes.NewReader(fetched.Body),
		OriginalName: name,
		MimeType:     mimeType,
	})
}

func (b *Bot) send(cid int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(cid, text)); err != nil {
		b.logger.Warn("telegram send failed", zap.Int64("chat", cid), zap.Error(err))
	}
}
