package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func openTestDB(t *testing.T) (*DB, *clock) {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "anywhere.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	c := &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)}
	db.now = c.now
	return db, c
}

func prompts(items []HistoryItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Prompt)
	}
	return out
}

func TestHistoryDedupeWindow(t *testing.T) {
	t.Parallel()
	db, c := openTestDB(t)
	h := db.History(HistoryOptions{DedupeWindow: time.Hour})
	ctx := context.Background()

	item, added, err := h.Add(ctx, "say hi", "Hi!", "whatsapp", "gemini-2.5-flash")
	require.NoError(t, err)
	require.True(t, added)
	assert.NotEmpty(t, item.ID)

	c.advance(30 * time.Minute)
	_, added, err = h.Add(ctx, "say hi", "Hello!", "whatsapp", "gemini-2.5-flash")
	require.NoError(t, err)
	assert.False(t, added)

	c.advance(31 * time.Minute)
	_, added, err = h.Add(ctx, "say hi", "Hey!", "whatsapp", "gemini-2.5-flash")
	require.NoError(t, err)
	assert.True(t, added)

	all, err := h.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Hey!", all[0].Response)
}

func TestHistoryCapKeepsNewest(t *testing.T) {
	t.Parallel()
	db, c := openTestDB(t)
	h := db.History(HistoryOptions{MaxItems: 3})
	ctx := context.Background()

	for _, p := range []string{"p1", "p2", "p3", "p4", "p5"} {
		_, added, err := h.Add(ctx, p, "r", "", "m")
		require.NoError(t, err)
		require.True(t, added)
		c.advance(time.Second)
	}
	all, err := h.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p5", "p4", "p3"}, prompts(all))
	assert.Equal(t, "general", all[0].Context)
}

func TestHistoryQueries(t *testing.T) {
	t.Parallel()
	db, c := openTestDB(t)
	h := db.History(HistoryOptions{})
	ctx := context.Background()

	_, _, err := h.Add(ctx, "old email", "Subject: Old", "email", "m")
	require.NoError(t, err)
	c.advance(72 * time.Hour)
	_, _, err = h.Add(ctx, "Reply to Sam", "Sure, see you", "whatsapp", "m")
	require.NoError(t, err)
	c.advance(time.Minute)
	last, _, err := h.Add(ctx, "post idea", "Big NEWS today", "linkedin", "m")
	require.NoError(t, err)

	recent, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"post idea", "Reply to Sam"}, prompts(recent))

	found, err := h.Search(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, []string{"post idea"}, prompts(found))

	found, err = h.Search(ctx, "SAM")
	require.NoError(t, err)
	assert.Equal(t, []string{"Reply to Sam"}, prompts(found))

	found, err = h.Search(ctx, "  ")
	require.NoError(t, err)
	assert.Len(t, found, 3)

	byCtx, err := h.ByContext(ctx, "email")
	require.NoError(t, err)
	assert.Equal(t, []string{"old email"}, prompts(byCtx))

	require.NoError(t, h.Delete(ctx, last.ID))
	all, err := h.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Reply to Sam", "old email"}, prompts(all))

	require.NoError(t, h.Clear(ctx))
	all, err = h.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHistoryStats(t *testing.T) {
	t.Parallel()
	db, c := openTestDB(t)
	h := db.History(HistoryOptions{})
	ctx := context.Background()

	stats, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, HistoryStats{}, stats)

	_, _, err = h.Add(ctx, "a", "1234", "email", "m")
	require.NoError(t, err)
	c.advance(48 * time.Hour)
	_, _, err = h.Add(ctx, "b", "12", "email", "m")
	require.NoError(t, err)
	_, _, err = h.Add(ctx, "c", "123456", "general", "m")
	require.NoError(t, err)

	stats, err = h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, HistoryStats{Total: 3, Today: 2, Contexts: 2, AvgResponseLength: 4}, stats)
}

func TestFavoritesLifecycle(t *testing.T) {
	t.Parallel()
	db, _ := openTestDB(t)
	f := db.Favorites()
	ctx := context.Background()

	id, err := f.Add(ctx, "Polite decline", "Decline politely: {text}", "", []string{"work", " email "})
	require.NoError(t, err)

	_, err = f.Add(ctx, "Polite decline", "other", "Misc", nil)
	assert.ErrorIs(t, err, ErrDuplicateTitle)

	fav, err := f.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, DefaultCategory, fav.Category)
	assert.Equal(t, []string{"work", "email"}, fav.Tags)
	assert.Zero(t, fav.UsageCount)

	_, err = f.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	otherID, err := f.Add(ctx, "Hype post", "Write a LinkedIn post", "Social", []string{"linkedin"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.Update(ctx, otherID, "Polite decline", "x", "Social", nil), ErrDuplicateTitle)
	assert.ErrorIs(t, f.Update(ctx, "missing", "New", "x", "Social", nil), ErrNotFound)
	require.NoError(t, f.Update(ctx, otherID, "Hype post", "Write a short LinkedIn post", "Social", []string{"linkedin", "work"}))

	require.NoError(t, f.IncrementUsage(ctx, otherID))
	require.NoError(t, f.IncrementUsage(ctx, otherID))
	assert.ErrorIs(t, f.IncrementUsage(ctx, "missing"), ErrNotFound)

	most, err := f.MostUsed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, most, 1)
	assert.Equal(t, "Hype post", most[0].Title)
	assert.Equal(t, 2, most[0].UsageCount)
	assert.Equal(t, "Write a short LinkedIn post", most[0].Prompt)

	byCat, err := f.ByCategory(ctx, "General")
	require.NoError(t, err)
	require.Len(t, byCat, 1)
	assert.Equal(t, id, byCat[0].ID)

	byTag, err := f.ByTag(ctx, "work")
	require.NoError(t, err)
	assert.Len(t, byTag, 2)

	found, err := f.Search(ctx, "LINKEDIN")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, otherID, found[0].ID)

	found, err = f.Search(ctx, "email")
	require.NoError(t, err)
	require.Len(t, found, 1, "tag match")
	assert.Equal(t, id, found[0].ID)

	cats, err := f.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"General", "Social"}, cats)

	tags, err := f.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "linkedin", "work"}, tags)

	require.NoError(t, f.Delete(ctx, id))
	all, err := f.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, f.Clear(ctx))
	all, err = f.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFavoritesExportImport(t *testing.T) {
	t.Parallel()
	src, _ := openTestDB(t)
	ctx := context.Background()
	_, err := src.Favorites().Add(ctx, "One", "first", "A", []string{"x"})
	require.NoError(t, err)
	_, err = src.Favorites().Add(ctx, "Two", "second", "B", nil)
	require.NoError(t, err)

	data, err := src.Favorites().Export(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"usageCount": 0`)
	assert.Contains(t, string(data), `"tags": []`)

	dst, _ := openTestDB(t)
	_, err = dst.Favorites().Add(ctx, "Two", "already here", "B", nil)
	require.NoError(t, err)

	added, err := dst.Favorites().Import(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	added, err = dst.Favorites().Import(ctx, data)
	require.NoError(t, err)
	assert.Zero(t, added)

	all, err := dst.Favorites().All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "already here", all[0].Prompt)
	assert.Equal(t, "One", all[1].Title)
	assert.Equal(t, []string{"x"}, all[1].Tags)

	_, err = dst.Favorites().Import(ctx, []byte("not json"))
	assert.Error(t, err)
}
