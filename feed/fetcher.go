// Package feed fetches feed configuration and article lists for swipe-news.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"github.com/patrickmn/go-cache"
	"github.com/robertmeta/swipe-news/model"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second
	// DefaultCacheTTL is how long fetched article lists are reused.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultConcurrency is the number of feeds fetched in parallel.
	DefaultConcurrency = 4
)

// Fetcher retrieves article lists from feed endpoints. An endpoint may serve
// a JSON array of articles or an RSS/Atom document.
type Fetcher struct {
	client      *http.Client
	parser      *gofeed.Parser
	cache       *cache.Cache
	log         logrus.FieldLogger
	concurrency int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithCacheTTL sets how long fetched lists are cached. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(f *Fetcher) {
		if ttl <= 0 {
			f.cache = nil
			return
		}
		f.cache = cache.New(ttl, 2*ttl)
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Fetcher) { f.log = l }
}

// WithConcurrency sets how many feeds FetchAll requests at once.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// NewFetcher creates a new Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{Timeout: DefaultTimeout},
		parser:      gofeed.NewParser(),
		cache:       cache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
		log:         logrus.StandardLogger(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the article list at url, serving from cache when fresh.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]model.Article, error) {
	if f.cache != nil {
		if v, ok := f.cache.Get(url); ok {
			return slices.Clone(v.([]model.Article)), nil
		}
	}

	body, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}

	articles, err := f.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed from %s: %w", url, err)
	}

	if f.cache != nil {
		f.cache.SetDefault(url, slices.Clone(articles))
	}
	return articles, nil
}

// Invalidate drops every cached article list.
func (f *Fetcher) Invalidate() {
	if f.cache != nil {
		f.cache.Flush()
	}
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &model.FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json, application/rss+xml, application/atom+xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &model.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.FetchError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	return body, nil
}

// Parse decodes feed content. A JSON array is read as articles; anything
// else goes through the RSS/Atom parser.
func (f *Fetcher) Parse(data []byte) ([]model.Article, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("feed content is empty")
	}

	if trimmed[0] == '[' {
		var articles []model.Article
		if err := json.Unmarshal(trimmed, &articles); err != nil {
			return nil, fmt.Errorf("failed to decode articles: %w", err)
		}
		return articles, nil
	}

	parsed, err := f.parser.Parse(bytes.NewReader(trimmed))
	if err != nil {
		return nil, err
	}
	return convert(parsed), nil
}

// convert converts a gofeed.Feed to articles.
func convert(gf *gofeed.Feed) []model.Article {
	source := model.Source{URL: gf.Link, Title: gf.Title}
	if source.URL == "" {
		source.URL = gf.FeedLink
	}

	articles := make([]model.Article, 0, len(gf.Items))
	for _, item := range gf.Items {
		articles = append(articles, convertItem(item, source))
	}
	return articles
}

// convertItem converts a gofeed.Item to a model.Article.
func convertItem(item *gofeed.Item, source model.Source) model.Article {
	a := model.Article{
		GUID:        item.GUID,
		Title:       item.Title,
		Description: item.Description,
		Content:     item.Content,
		Link:        item.Link,
		Source:      source,
	}

	if item.PublishedParsed != nil {
		a.Date = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		a.Date = *item.UpdatedParsed
	}

	// Ids must be stable across fetches, so fall back to a name-based UUID.
	switch {
	case item.GUID != "":
		a.ID = item.GUID
	case item.Link != "":
		a.ID = item.Link
	default:
		name := item.Title + "|" + a.Date.UTC().Format(time.RFC3339)
		a.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
	}

	for _, p := range item.Authors {
		if p != nil && p.Name != "" {
			a.Author = append(a.Author, model.Author{Name: p.Name})
		}
	}
	for _, c := range item.Categories {
		a.Category = append(a.Category, model.Category{Name: c})
	}
	return a
}

// FeedStatus reports the outcome of fetching one feed in a batch.
type FeedStatus struct {
	FeedID string `json:"feedId"`
	URL    string `json:"url"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
	Err    error  `json:"-"`
}

// Batch is the merged result of fetching several feeds.
type Batch struct {
	// Articles are sorted newest first.
	Articles []model.Article `json:"articles"`
	// Origins maps article id to the id of the feed it came from.
	Origins  map[string]string `json:"-"`
	Statuses []FeedStatus      `json:"feeds"`
}

// Failed returns the statuses of feeds that could not be fetched.
func (b *Batch) Failed() []FeedStatus {
	var failed []FeedStatus
	for _, s := range b.Statuses {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

// FetchAll fetches every feed concurrently and merges the results. A feed
// that fails is reported in its status and skipped. An error is returned
// only when every feed failed.
func (f *Fetcher) FetchAll(ctx context.Context, feeds []model.Feed) (*Batch, error) {
	batch := &Batch{
		Articles: []model.Article{},
		Origins:  make(map[string]string),
		Statuses: make([]FeedStatus, len(feeds)),
	}
	if len(feeds) == 0 {
		return batch, nil
	}

	results := make([][]model.Article, len(feeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, fd := range feeds {
		g.Go(func() error {
			articles, err := f.Fetch(gctx, fd.RSSURL)
			status := FeedStatus{FeedID: fd.ID, URL: fd.RSSURL, Count: len(articles), Err: err}
			if err != nil {
				status.Error = err.Error()
				f.log.WithError(err).WithField("feed", fd.ID).Warn("failed to fetch feed")
			}
			batch.Statuses[i] = status
			results[i] = articles
			// Feed errors are reported per status and must not cancel siblings.
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for i, status := range batch.Statuses {
		if status.Err != nil {
			errs = append(errs, status.Err)
			continue
		}
		for _, a := range results[i] {
			if _, seen := batch.Origins[a.ID]; !seen {
				batch.Origins[a.ID] = feeds[i].ID
			}
			batch.Articles = append(batch.Articles, a)
		}
	}

	SortByDate(batch.Articles)

	if len(errs) == len(feeds) {
		return batch, errors.Join(errs...)
	}
	return batch, nil
}

// SortByDate sorts articles newest first, keeping the input order for ties.
func SortByDate(articles []model.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].Date.After(articles[j].Date)
	})
}
