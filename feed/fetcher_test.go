package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robertmeta/swipe-news/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rss2 = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test RSS Feed</title>
    <link>https://example.com</link>
    <item>
      <title>First Test Entry</title>
      <link>https://example.com/entry-1</link>
      <guid>entry-1</guid>
      <description>This is the first test entry</description>
      <category>go</category>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
    <item>
      <title>Linked Entry</title>
      <link>https://example.com/entry-2</link>
    </item>
    <item>
      <title>Bare Entry</title>
    </item>
  </channel>
</rss>`

func jsonArticles(ids ...string) string {
	var parts []string
	for i, id := range ids {
		date := time.Date(2024, 1, 10-i, 12, 0, 0, 0, time.UTC).Format(time.RFC3339)
		parts = append(parts, `{"id":"`+id+`","title":"T `+id+`","link":"https://example.com/`+id+`","date":"`+date+`"}`)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestFetcher_ParseJSONArray(t *testing.T) {
	fetcher := NewFetcher()
	articles, err := fetcher.Parse([]byte("  " + jsonArticles("a", "b")))
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "a", articles[0].ID)
	assert.Equal(t, 10, articles[0].Date.Day())
}

func TestFetcher_ParseRSS2(t *testing.T) {
	fetcher := NewFetcher()
	articles, err := fetcher.Parse([]byte(rss2))
	require.NoError(t, err)
	require.Len(t, articles, 3)

	assert.Equal(t, "entry-1", articles[0].ID)
	assert.Equal(t, "First Test Entry", articles[0].Title)
	assert.Equal(t, "Test RSS Feed", articles[0].Source.Title)
	require.NotEmpty(t, articles[0].Category)
	assert.Equal(t, "go", articles[0].Category[0].Name)
	assert.False(t, articles[0].Date.IsZero())

	// Link stands in for a missing guid.
	assert.Equal(t, "https://example.com/entry-2", articles[1].ID)

	// Neither guid nor link: a stable generated id.
	assert.NotEmpty(t, articles[2].ID)
	again, err := fetcher.Parse([]byte(rss2))
	require.NoError(t, err)
	assert.Equal(t, articles[2].ID, again[2].ID)
}

func TestFetcher_ParseInvalid(t *testing.T) {
	fetcher := NewFetcher()

	_, err := fetcher.Parse([]byte(""))
	assert.Error(t, err, "Should error on empty content")

	_, err = fetcher.Parse([]byte("[{broken"))
	assert.Error(t, err, "Should error on broken JSON")

	_, err = fetcher.Parse([]byte("<invalid>xml</broken>"))
	assert.Error(t, err, "Should error on invalid XML")
}

func TestFetcher_Fetch(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(jsonArticles("a", "b", "c")))
	}))
	defer srv.Close()

	fetcher := NewFetcher()
	articles, err := fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, articles, 3)

	// Second fetch is served from cache.
	_, err = fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	fetcher.Invalidate()
	_, err = fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFetcher_FetchWithoutCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(jsonArticles("a")))
	}))
	defer srv.Close()

	fetcher := NewFetcher(WithCacheTTL(0))
	for i := 0; i < 3; i++ {
		_, err := fetcher.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetcher_FetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fetcher := NewFetcher()
	_, err := fetcher.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fe *model.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
}

func TestFetcher_FetchAll(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"a1","date":"2024-01-01T00:00:00Z"},{"id":"a2","date":"2024-01-05T00:00:00Z"}]`))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"b1","date":"2024-01-03T00:00:00Z"}]`))
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	feeds := []model.Feed{
		{ID: "a", RSSURL: srv.URL + "/a"},
		{ID: "down", RSSURL: srv.URL + "/down"},
		{ID: "b", RSSURL: srv.URL + "/b"},
	}

	fetcher := NewFetcher()
	batch, err := fetcher.FetchAll(context.Background(), feeds)
	require.NoError(t, err, "partial failure is tolerated")

	ids := make([]string, len(batch.Articles))
	for i, a := range batch.Articles {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"a2", "b1", "a1"}, ids, "newest first")
	assert.Equal(t, "b", batch.Origins["b1"])
	assert.Equal(t, "a", batch.Origins["a2"])

	require.Len(t, batch.Statuses, 3)
	assert.Equal(t, 2, batch.Statuses[0].Count)
	assert.NotEmpty(t, batch.Statuses[1].Error)
	require.Len(t, batch.Failed(), 1)
	assert.Equal(t, "down", batch.Failed()[0].FeedID)
}

func TestFetcher_FetchAllEveryFeedFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	fetcher := NewFetcher()
	batch, err := fetcher.FetchAll(context.Background(), []model.Feed{
		{ID: "x", RSSURL: srv.URL + "/x"},
		{ID: "y", RSSURL: srv.URL + "/y"},
	})
	require.Error(t, err)
	assert.True(t, model.IsFetchError(err))
	assert.Empty(t, batch.Articles)
	assert.Len(t, batch.Failed(), 2)
}

func TestFetcher_FetchAllNoFeeds(t *testing.T) {
	batch, err := NewFetcher().FetchAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch.Articles)
}

func TestLoadConfig(t *testing.T) {
	doc := `{"feeds":[{"id":"crypto-grants","name":"Crypto Grants","description":"d","rssUrl":"https://example.com/c.json"}]}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(doc))
	}))
	defer srv.Close()

	fetcher := NewFetcher()
	cfg, err := fetcher.LoadConfig(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, cfg.Feeds, 1)
	assert.Equal(t, "https://example.com/c.json", cfg.Feeds[0].RSSURL)

	path := filepath.Join(t.TempDir(), "feeds.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	cfg, err = fetcher.LoadConfig(context.Background(), path)
	require.NoError(t, err)
	f, ok := cfg.Find("crypto-grants")
	require.True(t, ok)
	assert.Equal(t, "Crypto Grants", f.Name)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `feeds`},
		{"no feeds key", `{"items":[]}`},
		{"feeds not a list", `{"feeds":{}}`},
		{"missing id", `{"feeds":[{"rssUrl":"https://example.com"}]}`},
		{"missing url", `{"feeds":[{"id":"a"}]}`},
		{"duplicate id", `{"feeds":[{"id":"a","rssUrl":"u"},{"id":"a","rssUrl":"v"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestSaveConfigAndMerge(t *testing.T) {
	cfg := &model.FeedConfig{Feeds: []model.Feed{{ID: "a", Name: "A", RSSURL: "https://example.com/a"}}}

	added, replaced := Merge(cfg, []model.Feed{
		{ID: "a", Name: "A2", RSSURL: "https://example.com/a2"},
		{ID: "b", Name: "B", RSSURL: "https://example.com/b"},
	})
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, replaced)
	require.Len(t, cfg.Feeds, 2)
	assert.Equal(t, "A2", cfg.Feeds[0].Name)

	path := filepath.Join(t.TempDir(), "nested", "feeds.json")
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := NewFetcher().LoadConfig(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Feeds, loaded.Feeds)

	assert.Error(t, SaveConfig("https://example.com/feeds.json", cfg))
}

func TestExport(t *testing.T) {
	articles := []model.Article{
		{ID: "a", Title: "Liked & loved", Link: "https://example.com/a", Date: time.Now(), Author: []model.Author{{Name: "Ann"}}},
	}

	for _, format := range []string{FormatAtom, FormatRSS, FormatJSON} {
		t.Run(format, func(t *testing.T) {
			var buf strings.Builder
			require.NoError(t, Export(&buf, format, "Liked", articles))
			assert.Contains(t, buf.String(), "https://example.com/a")
		})
	}

	var buf strings.Builder
	assert.Error(t, Export(&buf, "yaml", "Liked", articles))

	assert.Equal(t, "application/atom+xml", ContentType(""))
	assert.Equal(t, "application/rss+xml", ContentType(FormatRSS))
	assert.Equal(t, "application/feed+json", ContentType(FormatJSON))
}
