package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuanbach0212/predictum/internal/domain"
)

// SettlementSource is the read slice of the ledger the archiver needs.
type SettlementSource interface {
	ListMarkets() []domain.Market
	ListClaimedPositions() []domain.Position
}

// BlobWriter uploads a single object. Satisfied by *Writer.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// settlementRecord is one JSONL line in an archive object: a terminal
// market together with its claimed positions.
type settlementRecord struct {
	Market    domain.Market     `json:"market"`
	Positions []domain.Position `json:"positions"`
}

// Archiver periodically snapshots terminal markets and their claimed
// positions to object storage as JSONL. Archival is best effort and never
// blocks the ledger: a failed upload is retried on the next sweep.
type Archiver struct {
	source   SettlementSource
	writer   BlobWriter
	interval time.Duration
	archived map[int64]bool
	logger   *slog.Logger
	now      func() time.Time
}

// NewArchiver creates an Archiver sweeping at the given interval.
func NewArchiver(source SettlementSource, writer BlobWriter, interval time.Duration, logger *slog.Logger) *Archiver {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Archiver{
		source:   source,
		writer:   writer,
		interval: interval,
		archived: make(map[int64]bool),
		logger:   logger.With(slog.String("component", "archiver")),
		now:      time.Now,
	}
}

// Run sweeps until the context is cancelled. It always returns nil so a
// storage outage never takes the process down with it.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n, err := a.Sweep(ctx); err != nil {
				a.logger.WarnContext(ctx, "archive sweep failed",
					slog.String("error", err.Error()),
				)
			} else if n > 0 {
				a.logger.InfoContext(ctx, "archived settled markets",
					slog.Int("count", n),
				)
			}
		}
	}
}

// Sweep archives every terminal market not yet uploaded and returns how
// many were written.
func (a *Archiver) Sweep(ctx context.Context) (int, error) {
	byMarket := make(map[int64][]domain.Position)
	for _, p := range a.source.ListClaimedPositions() {
		byMarket[p.MarketID] = append(byMarket[p.MarketID], p)
	}

	archived := 0
	for _, m := range a.source.ListMarkets() {
		if !m.Status.Terminal() || a.archived[m.ID] {
			continue
		}

		rec := settlementRecord{Market: m, Positions: byMarket[m.ID]}
		line, err := json.Marshal(rec)
		if err != nil {
			return archived, fmt.Errorf("s3blob: marshal settlement %d: %w", m.ID, err)
		}
		line = append(line, '\n')

		path := a.archivePath(m.ID)
		if err := a.writer.Put(ctx, path, bytes.NewReader(line), "application/x-ndjson"); err != nil {
			return archived, err
		}

		a.archived[m.ID] = true
		archived++
	}
	return archived, nil
}

// archivePath keys archives by settlement date so daily prefixes stay
// cheap to list: settlements/YYYY/MM/DD/market-<id>.jsonl
func (a *Archiver) archivePath(marketID int64) string {
	t := a.now().UTC()
	return fmt.Sprintf("settlements/%04d/%02d/%02d/market-%d.jsonl",
		t.Year(), t.Month(), t.Day(), marketID)
}
