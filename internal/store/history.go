package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultHistoryMaxItems = 50
	DefaultDedupeWindow    = time.Hour
	recentWindow           = 48 * time.Hour
	DefaultRecentLimit     = 10
)

// HistoryItem is one recorded generation.
type HistoryItem struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Context   string    `json:"context"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryStats summarizes the log.
type HistoryStats struct {
	Total             int `json:"total"`
	Today             int `json:"today"`
	Contexts          int `json:"contexts"`
	AvgResponseLength int `json:"avgResponseLength"`
}

// HistoryOptions bounds the log.
type HistoryOptions struct {
	MaxItems int
	// DedupeWindow skips a prompt already recorded within this window.
	DedupeWindow time.Duration
}

// History is the append-only log of (prompt, response) pairs, newest first.
type History struct {
	d    *DB
	opts HistoryOptions
}

// History returns the history log with the given bounds.
func (d *DB) History(opts HistoryOptions) *History {
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultHistoryMaxItems
	}
	if opts.DedupeWindow < 0 {
		opts.DedupeWindow = 0
	}
	return &History{d: d, opts: opts}
}

// Add records a generation. It reports false when the same prompt was already
// recorded within the dedupe window. The log is then trimmed to MaxItems.
func (h *History) Add(ctx context.Context, prompt, response, promptContext, model string) (HistoryItem, bool, error) {
	now := h.d.now()
	item := HistoryItem{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Response:  response,
		Context:   promptContext,
		Model:     model,
		Timestamp: now,
	}
	if item.Context == "" {
		item.Context = "general"
	}

	added := false
	err := h.d.withTx(ctx, func(tx *sql.Tx) error {
		if h.opts.DedupeWindow > 0 {
			var n int
			since := toMillis(now.Add(-h.opts.DedupeWindow))
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM history WHERE prompt = ? AND created_at > ?`, prompt, since,
			).Scan(&n); err != nil {
				return fmt.Errorf("check duplicate: %w", err)
			}
			if n > 0 {
				return nil
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO history (id, prompt, response, context, model, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID, item.Prompt, item.Response, item.Context, item.Model, toMillis(now),
		); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM history WHERE seq NOT IN (SELECT seq FROM history ORDER BY created_at DESC, seq DESC LIMIT ?)`,
			h.opts.MaxItems,
		); err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
		added = true
		return nil
	})
	if err != nil {
		return HistoryItem{}, false, err
	}
	if !added {
		log.Debug("store: duplicate prompt within dedupe window, not recorded")
		return HistoryItem{}, false, nil
	}
	return item, true, nil
}

// All returns every item, newest first.
func (h *History) All(ctx context.Context) ([]HistoryItem, error) {
	return h.query(ctx, `SELECT id, prompt, response, context, model, created_at FROM history ORDER BY created_at DESC, seq DESC`)
}

// Recent returns up to limit items from the last 48 hours.
func (h *History) Recent(ctx context.Context, limit int) ([]HistoryItem, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	since := toMillis(h.d.now().Add(-recentWindow))
	return h.query(ctx, `SELECT id, prompt, response, context, model, created_at FROM history
		WHERE created_at > ? ORDER BY created_at DESC, seq DESC LIMIT ?`, since, limit)
}

// Search matches q case-insensitively against prompts and responses. A blank
// query returns everything.
func (h *History) Search(ctx context.Context, q string) ([]HistoryItem, error) {
	items, err := h.All(ctx)
	if err != nil || strings.TrimSpace(q) == "" {
		return items, err
	}
	lower := strings.ToLower(q)
	out := items[:0]
	for _, it := range items {
		if containsFold(it.Prompt, lower) || containsFold(it.Response, lower) {
			out = append(out, it)
		}
	}
	return out, nil
}

// ByContext returns the items recorded for a prompt context.
func (h *History) ByContext(ctx context.Context, promptContext string) ([]HistoryItem, error) {
	return h.query(ctx, `SELECT id, prompt, response, context, model, created_at FROM history
		WHERE context = ? ORDER BY created_at DESC, seq DESC`, promptContext)
}

// Delete removes one item. Deleting an unknown id is not an error.
func (h *History) Delete(ctx context.Context, id string) error {
	if _, err := h.d.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete history item: %w", err)
	}
	return nil
}

// Clear removes every item.
func (h *History) Clear(ctx context.Context) error {
	if _, err := h.d.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Stats summarizes the log. Today is the local calendar day.
func (h *History) Stats(ctx context.Context) (HistoryStats, error) {
	items, err := h.All(ctx)
	if err != nil {
		return HistoryStats{}, err
	}
	now := h.d.now()
	y, m, d := now.Date()
	contexts := make(map[string]struct{})
	var stats HistoryStats
	total := 0
	for _, it := range items {
		stats.Total++
		iy, im, id := it.Timestamp.In(now.Location()).Date()
		if iy == y && im == m && id == d {
			stats.Today++
		}
		contexts[it.Context] = struct{}{}
		total += utf8.RuneCountInString(it.Response)
	}
	stats.Contexts = len(contexts)
	if stats.Total > 0 {
		stats.AvgResponseLength = total / stats.Total
	}
	return stats, nil
}

func (h *History) query(ctx context.Context, q string, args ...any) ([]HistoryItem, error) {
	rows, err := h.d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var items []HistoryItem
	for rows.Next() {
		var it HistoryItem
		var ts int64
		if err := rows.Scan(&it.ID, &it.Prompt, &it.Response, &it.Context, &it.Model, &ts); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		it.Timestamp = fromMillis(ts)
		items = append(items, it)
	}
	return items, rows.Err()
}
