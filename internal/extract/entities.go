// Package extract recovers claim entities from free text. It backs the
// recognition engine's back-fill pass and the standalone entity endpoint.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/fratlas/internal/model"
	"github.com/ppiankov/fratlas/internal/sim"
)

// DefaultDelay emulates the latency of an NLP service
const DefaultDelay = 500 * time.Millisecond

// Captures stop at the end of the line so a label on the next line is never
// swallowed into the previous value.
var (
	villagePattern = regexp.MustCompile(`(?i)Village:[ \t]*([A-Za-z \t]+)`)
	namePattern    = regexp.MustCompile(`(?i)(?:Claimant|Name):[ \t]*([A-Za-z \t]+)`)
	areaPattern    = regexp.MustCompile(`(?i)Area:[ \t]*([\d.]+)`)
	idPattern      = regexp.MustCompile(`(?i)(?:Claim ID|ID):[ \t]*([A-Z0-9-]+)`)
)

// EntityExtractor pulls label-anchored entities out of text
type EntityExtractor struct {
	clock sim.Clock
	delay time.Duration
}

// NewEntityExtractor creates an extractor that waits delay on clock before
// scanning. A nil clock uses the wall clock.
func NewEntityExtractor(clock sim.Clock, delay time.Duration) *EntityExtractor {
	if clock == nil {
		clock = sim.SystemClock{}
	}
	if delay < 0 {
		delay = 0
	}
	return &EntityExtractor{clock: clock, delay: delay}
}

// Extract scans text for villages, names, areas and claim IDs. Every match is
// returned in order of appearance; lists are empty, never nil, when nothing
// matches.
func (e *EntityExtractor) Extract(ctx context.Context, text string) (model.Entities, error) {
	if err := e.clock.Sleep(ctx, e.delay); err != nil {
		return model.Entities{}, fmt.Errorf("extract entities: %w", err)
	}

	return model.Entities{
		Villages: findAll(villagePattern, text),
		Names:    findAll(namePattern, text),
		Areas:    findAll(areaPattern, text),
		IDs:      findAll(idPattern, text),
	}, nil
}

// findAll returns the trimmed first capture group of every match
func findAll(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}
