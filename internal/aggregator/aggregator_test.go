package aggregator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/johnrirwin/newsradar/internal/cache"
	"github.com/johnrirwin/newsradar/internal/models"
	"github.com/johnrirwin/newsradar/internal/sources"
	"github.com/johnrirwin/newsradar/internal/testutil"
)

var now = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

type stubFetcher struct {
	name     string
	articles []models.Article
	err      error
	calls    int32
}

func (s *stubFetcher) Name() string { return s.name }

func (s *stubFetcher) Fetch(ctx context.Context) ([]models.Article, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.articles, s.err
}

func (s *stubFetcher) SourceInfo() models.SourceInfo {
	return models.SourceInfo{ID: s.name, Name: s.name, Enabled: true}
}

func article(id, title string, minutesAgo int) models.Article {
	return models.Article{
		ID:          id,
		Title:       title,
		Content:     title + " body",
		Source:      "wire",
		PublishedAt: now.Add(-time.Duration(minutesAgo) * time.Minute),
	}
}

func TestSortByDate(t *testing.T) {
	articles := []models.Article{
		article("1", "Old", 120),
		article("2", "New", 0),
		article("3", "Middle", 60),
	}

	sortByDate(articles)

	if articles[0].Title != "New" {
		t.Errorf("First article should be 'New', got %q", articles[0].Title)
	}
	if articles[1].Title != "Middle" {
		t.Errorf("Second article should be 'Middle', got %q", articles[1].Title)
	}
	if articles[2].Title != "Old" {
		t.Errorf("Third article should be 'Old', got %q", articles[2].Title)
	}
}

func TestSortByDate_Empty(t *testing.T) {
	sortByDate([]models.Article{})
}

func TestDeduplicate(t *testing.T) {
	articles := []models.Article{
		article("1", "Fed holds rates", 0),
		article("1", "Fed holds rates (updated)", 0),
		article("2", "  FED HOLDS RATES ", 5),
		article("3", "Oil jumps", 10),
	}
	articles[3].URL = "https://example.com/oil"

	mirror := article("4", "Oil jumps on supply cut", 12)
	mirror.URL = "https://EXAMPLE.com/oil/"
	articles = append(articles, mirror)

	got := deduplicate(articles)
	if len(got) != 3 {
		t.Fatalf("deduplicate() returned %d articles, want 3", len(got))
	}
	for i, want := range []string{"1", "2", "3"} {
		if got[i].ID != want {
			t.Errorf("deduplicate()[%d] = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestFilterArticles(t *testing.T) {
	articles := []models.Article{
		article("1", "Fed holds rates", 10),
		article("2", "Oil jumps on supply cut", 30),
		article("3", "Federal budget talks", 5),
	}

	since := now.Add(-30 * time.Minute)
	got := filterArticles(articles, since, "")
	if len(got) != 2 {
		t.Errorf("since filter returned %d articles, want 2 (boundary excluded)", len(got))
	}

	got = filterArticles(articles, time.Time{}, "fed")
	if len(got) != 1 || got[0].ID != "1" {
		t.Errorf("query filter = %+v, want only the whole-word match", got)
	}
}

func TestFetch_MergesSourcesAndToleratesPartialFailure(t *testing.T) {
	good := &stubFetcher{name: "good", articles: []models.Article{article("a", "Fed holds rates", 10), article("b", "Oil jumps", 20)}}
	other := &stubFetcher{name: "other", articles: []models.Article{article("c", "Banks rally", 5)}}
	bad := &stubFetcher{name: "bad", err: errors.New("timeout")}

	agg := New(
		[]sources.Fetcher{good, other, bad},
		nil, 0, testutil.NullLogger())

	got, err := agg.Fetch(context.Background(), time.Time{}, "")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Fetch() returned %d articles, want 3", len(got))
	}
	if got[0].ID != "c" {
		t.Errorf("newest article first: got %q", got[0].ID)
	}
}

func TestFetch_AllSourcesFailing(t *testing.T) {
	agg := New([]sources.Fetcher{
		&stubFetcher{name: "a", err: errors.New("dns")},
		&stubFetcher{name: "b", err: errors.New("tls")},
	}, nil, 0, testutil.NullLogger())

	if _, err := agg.Fetch(context.Background(), time.Time{}, ""); err == nil {
		t.Fatal("Fetch() expected error when every source fails")
	}
}

func TestFetch_ReusesSnapshot(t *testing.T) {
	f := &stubFetcher{name: "wire", articles: []models.Article{article("a", "Fed holds rates", 10)}}
	c := cache.NewMemory(time.Minute)
	defer c.Stop()

	agg := New([]sources.Fetcher{f}, c, time.Minute, testutil.NullLogger())
	ctx := context.Background()

	if _, err := agg.Fetch(ctx, time.Time{}, ""); err != nil {
		t.Fatal(err)
	}
	got, err := agg.Fetch(ctx, now.Add(-time.Hour), "rates")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("second Fetch() returned %d articles", len(got))
	}
	if calls := atomic.LoadInt32(&f.calls); calls != 1 {
		t.Errorf("fetcher called %d times, want 1", calls)
	}

	agg.Invalidate()
	if _, err := agg.Fetch(ctx, time.Time{}, ""); err != nil {
		t.Fatal(err)
	}
	if calls := atomic.LoadInt32(&f.calls); calls != 2 {
		t.Errorf("fetcher called %d times after Invalidate, want 2", calls)
	}
}

func TestGetSources(t *testing.T) {
	agg := New([]sources.Fetcher{&stubFetcher{name: "a"}, &stubFetcher{name: "b"}}, nil, 0, testutil.NullLogger())
	infos := agg.GetSources()
	if len(infos) != 2 || infos[0].Name != "a" {
		t.Errorf("GetSources() = %+v", infos)
	}
}
