package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultCategory is assigned to favorites saved without a category.
const DefaultCategory = "General"

// Favorite is a saved prompt.
type Favorite struct {
	ID         string
	Title      string
	Prompt     string
	Category   string
	Tags       []string
	Timestamp  time.Time
	UsageCount int
}

// favoriteJSON is the export format. Timestamps are epoch milliseconds.
type favoriteJSON struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Prompt     string   `json:"prompt"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Timestamp  int64    `json:"timestamp"`
	UsageCount int      `json:"usageCount"`
}

// Favorites is the tagged prompt store. Titles are unique.
type Favorites struct {
	d *DB
}

// Favorites returns the favorite prompt store.
func (d *DB) Favorites() *Favorites { return &Favorites{d: d} }

// Add saves a new favorite and returns its id.
func (f *Favorites) Add(ctx context.Context, title, prompt, category string, tags []string) (string, error) {
	fav := Favorite{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		Prompt:    prompt,
		Category:  category,
		Tags:      tags,
		Timestamp: f.d.now(),
	}
	if fav.Title == "" {
		return "", errors.New("store: favorite title is empty")
	}
	err := f.d.withTx(ctx, func(tx *sql.Tx) error {
		return f.insert(ctx, tx, fav)
	})
	if err != nil {
		return "", err
	}
	log.WithField("title", fav.Title).Debug("store: favorite added")
	return fav.ID, nil
}

func (f *Favorites) insert(ctx context.Context, tx *sql.Tx, fav Favorite) error {
	exists, err := titleTaken(ctx, tx, fav.Title, "")
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTitle, fav.Title)
	}
	if fav.Category == "" {
		fav.Category = DefaultCategory
	}
	tags, err := encodeTags(fav.Tags)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO favorites (id, title, prompt, category, tags, created_at, usage_count) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fav.ID, fav.Title, fav.Prompt, fav.Category, tags, toMillis(fav.Timestamp), fav.UsageCount,
	); err != nil {
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

// Get returns one favorite.
func (f *Favorites) Get(ctx context.Context, id string) (Favorite, error) {
	items, err := f.query(ctx, `SELECT id, title, prompt, category, tags, created_at, usage_count FROM favorites WHERE id = ?`, id)
	if err != nil {
		return Favorite{}, err
	}
	if len(items) == 0 {
		return Favorite{}, ErrNotFound
	}
	return items[0], nil
}

// Update replaces the editable fields of a favorite.
func (f *Favorites) Update(ctx context.Context, id, title, prompt, category string, tags []string) error {
	title = strings.TrimSpace(title)
	if category == "" {
		category = DefaultCategory
	}
	return f.d.withTx(ctx, func(tx *sql.Tx) error {
		taken, err := titleTaken(ctx, tx, title, id)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %q", ErrDuplicateTitle, title)
		}
		encoded, err := encodeTags(tags)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE favorites SET title = ?, prompt = ?, category = ?, tags = ? WHERE id = ?`,
			title, prompt, category, encoded, id)
		if err != nil {
			return fmt.Errorf("update favorite: %w", err)
		}
		return requireRow(res)
	})
}

// IncrementUsage bumps the usage counter of a favorite.
func (f *Favorites) IncrementUsage(ctx context.Context, id string) error {
	res, err := f.d.db.ExecContext(ctx, `UPDATE favorites SET usage_count = usage_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return requireRow(res)
}

// All returns every favorite in insertion order.
func (f *Favorites) All(ctx context.Context) ([]Favorite, error) {
	return f.query(ctx, `SELECT id, title, prompt, category, tags, created_at, usage_count FROM favorites ORDER BY seq`)
}

// ByCategory returns the favorites of one category.
func (f *Favorites) ByCategory(ctx context.Context, category string) ([]Favorite, error) {
	return f.query(ctx, `SELECT id, title, prompt, category, tags, created_at, usage_count FROM favorites
		WHERE category = ? ORDER BY seq`, category)
}

// ByTag returns the favorites carrying tag.
func (f *Favorites) ByTag(ctx context.Context, tag string) ([]Favorite, error) {
	return f.filter(ctx, func(fav Favorite) bool {
		for _, t := range fav.Tags {
			if t == tag {
				return true
			}
		}
		return false
	})
}

// Search matches q case-insensitively against title, prompt, category and
// tags. A blank query returns everything.
func (f *Favorites) Search(ctx context.Context, q string) ([]Favorite, error) {
	if strings.TrimSpace(q) == "" {
		return f.All(ctx)
	}
	lower := strings.ToLower(q)
	return f.filter(ctx, func(fav Favorite) bool {
		if containsFold(fav.Title, lower) || containsFold(fav.Prompt, lower) || containsFold(fav.Category, lower) {
			return true
		}
		for _, t := range fav.Tags {
			if containsFold(t, lower) {
				return true
			}
		}
		return false
	})
}

// MostUsed returns up to limit favorites by descending usage.
func (f *Favorites) MostUsed(ctx context.Context, limit int) ([]Favorite, error) {
	if limit <= 0 {
		limit = 5
	}
	return f.query(ctx, `SELECT id, title, prompt, category, tags, created_at, usage_count FROM favorites
		ORDER BY usage_count DESC, seq LIMIT ?`, limit)
}

// Categories returns the distinct categories, sorted.
func (f *Favorites) Categories(ctx context.Context) ([]string, error) {
	rows, err := f.d.db.QueryContext(ctx, `SELECT DISTINCT category FROM favorites ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Tags returns the distinct tags, sorted.
func (f *Favorites) Tags(ctx context.Context) ([]string, error) {
	items, err := f.All(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, fav := range items {
		for _, t := range fav.Tags {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Delete removes one favorite. Deleting an unknown id is not an error.
func (f *Favorites) Delete(ctx context.Context, id string) error {
	if _, err := f.d.db.ExecContext(ctx, `DELETE FROM favorites WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	return nil
}

// Clear removes every favorite.
func (f *Favorites) Clear(ctx context.Context) error {
	if _, err := f.d.db.ExecContext(ctx, `DELETE FROM favorites`); err != nil {
		return fmt.Errorf("clear favorites: %w", err)
	}
	return nil
}

// Export returns every favorite as a JSON array.
func (f *Favorites) Export(ctx context.Context) ([]byte, error) {
	items, err := f.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]favoriteJSON, 0, len(items))
	for _, fav := range items {
		tags := fav.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, favoriteJSON{
			ID:         fav.ID,
			Title:      fav.Title,
			Prompt:     fav.Prompt,
			Category:   fav.Category,
			Tags:       tags,
			Timestamp:  toMillis(fav.Timestamp),
			UsageCount: fav.UsageCount,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// Import adds the favorites in a JSON export whose titles are not taken yet
// and returns how many were added.
func (f *Favorites) Import(ctx context.Context, data []byte) (int, error) {
	var in []favoriteJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return 0, fmt.Errorf("decode favorites: %w", err)
	}

	added := 0
	err := f.d.withTx(ctx, func(tx *sql.Tx) error {
		for _, item := range in {
			fav := Favorite{
				ID:         item.ID,
				Title:      strings.TrimSpace(item.Title),
				Prompt:     item.Prompt,
				Category:   item.Category,
				Tags:       item.Tags,
				Timestamp:  fromMillis(item.Timestamp),
				UsageCount: item.UsageCount,
			}
			if fav.Title == "" {
				continue
			}
			if item.Timestamp == 0 {
				fav.Timestamp = f.d.now()
			}
			if fav.ID == "" || idTaken(ctx, tx, fav.ID) {
				fav.ID = uuid.NewString()
			}
			err := f.insert(ctx, tx, fav)
			if errors.Is(err, ErrDuplicateTitle) {
				continue
			}
			if err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Debugf("store: imported %d favorites", added)
	return added, nil
}

func (f *Favorites) filter(ctx context.Context, keep func(Favorite) bool) ([]Favorite, error) {
	items, err := f.All(ctx)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, fav := range items {
		if keep(fav) {
			out = append(out, fav)
		}
	}
	return out, nil
}

func (f *Favorites) query(ctx context.Context, q string, args ...any) ([]Favorite, error) {
	rows, err := f.d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	var items []Favorite
	for rows.Next() {
		var fav Favorite
		var tags string
		var ts int64
		if err := rows.Scan(&fav.ID, &fav.Title, &fav.Prompt, &fav.Category, &tags, &ts, &fav.UsageCount); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &fav.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of %s: %w", fav.ID, err)
		}
		fav.Timestamp = fromMillis(ts)
		items = append(items, fav)
	}
	return items, rows.Err()
}

func titleTaken(ctx context.Context, tx *sql.Tx, title, exceptID string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM favorites WHERE title = ? AND id != ?`, title, exceptID,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("check title: %w", err)
	}
	return n > 0, nil
}

func idTaken(ctx context.Context, tx *sql.Tx, id string) bool {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM favorites WHERE id = ?`, id).Scan(&n); err != nil {
		return false
	}
	return n > 0
}

func encodeTags(tags []string) (string, error) {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	b, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
