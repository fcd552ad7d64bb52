package opml

import (
	"strings"
	"testing"

	"github.com/robertmeta/swipe-news/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOPML_ValidFile(t *testing.T) {
	opmlContent := `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head>
    <title>Test Feeds</title>
  </head>
  <body>
    <outline text="Tech" title="Tech">
      <outline type="rss" text="Feed 1" title="Feed 1" xmlUrl="https://example.com/feed1" category="tech"/>
      <outline type="rss" text="Feed 2" title="Feed 2" xmlUrl="https://example.com/feed2" category="tech"/>
    </outline>
    <outline type="rss" text="Crypto Grants" title="Crypto Grants" description="Funding news" xmlUrl="https://example.com/feed3" category="crypto"/>
  </body>
</opml>`

	feeds, err := Parse(strings.NewReader(opmlContent))
	require.NoError(t, err)
	require.Len(t, feeds, 3, "Should parse 3 feeds")

	assert.Equal(t, "https://example.com/feed1", feeds[0].RSSURL)
	assert.Equal(t, "Feed 1", feeds[0].Name)
	assert.Equal(t, "feed-1", feeds[0].ID)
	assert.Equal(t, "tech", feeds[0].Category)

	assert.Equal(t, "feed-2", feeds[1].ID)

	assert.Equal(t, "crypto-grants", feeds[2].ID)
	assert.Equal(t, "Funding news", feeds[2].Description)
	assert.Equal(t, "crypto", feeds[2].Category)

	for _, f := range feeds {
		assert.NoError(t, f.Validate())
	}
}

func TestParseOPML_UniqueIDs(t *testing.T) {
	opmlContent := `<opml version="2.0"><body>
    <outline type="rss" text="News" xmlUrl="https://a.example.com/rss"/>
    <outline type="rss" text="News" xmlUrl="https://b.example.com/rss"/>
    <outline type="rss" xmlUrl="https://c.example.com/rss"/>
  </body></opml>`

	feeds, err := Parse(strings.NewReader(opmlContent))
	require.NoError(t, err)
	require.Len(t, feeds, 3)
	assert.Equal(t, "news", feeds[0].ID)
	assert.Equal(t, "news-2", feeds[1].ID)
	assert.Equal(t, "c-example-com", feeds[2].ID, "untitled feeds use the host")
}

func TestParseOPML_InvalidXML(t *testing.T) {
	_, err := Parse(strings.NewReader(`<invalid>xml</broken>`))
	assert.Error(t, err, "Should error on invalid XML")
}

func TestParseOPML_EmptyFile(t *testing.T) {
	emptyContent := `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head><title>Empty</title></head>
  <body></body>
</opml>`

	feeds, err := Parse(strings.NewReader(emptyContent))
	require.NoError(t, err)
	assert.Len(t, feeds, 0, "Empty OPML should return no feeds")
}

func TestParseOPML_MissingXmlUrl(t *testing.T) {
	opmlContent := `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <body>
    <outline type="rss" text="Valid Feed" xmlUrl="https://example.com/feed"/>
    <outline type="rss" text="Invalid Feed"/>
  </body>
</opml>`

	feeds, err := Parse(strings.NewReader(opmlContent))
	require.NoError(t, err)
	assert.Len(t, feeds, 1, "Should skip outlines without xmlUrl")
	assert.Equal(t, "https://example.com/feed", feeds[0].RSSURL)
}

func TestParseOPML_CategoryInheritance(t *testing.T) {
	opmlContent := `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <body>
    <outline text="Tech News" title="Tech News">
      <outline type="rss" text="Feed 1" xmlUrl="https://example.com/feed1" category="tech"/>
      <outline type="rss" text="Feed 2" xmlUrl="https://example.com/feed2"/>
    </outline>
  </body>
</opml>`

	feeds, err := Parse(strings.NewReader(opmlContent))
	require.NoError(t, err)
	require.Len(t, feeds, 2)

	assert.Equal(t, "tech", feeds[0].Category)
	assert.Equal(t, "Tech News", feeds[1].Category)
}

func TestGenerateOPML(t *testing.T) {
	feeds := []model.Feed{
		{ID: "feed-1", RSSURL: "https://example.com/feed1", Name: "Feed 1", Category: "tech"},
		{ID: "feed-2", RSSURL: "https://example.com/feed2", Name: "Feed 2", Category: "tech"},
		{ID: "feed-3", RSSURL: "https://example.com/feed3", Name: "Feed 3", Category: "blog"},
	}

	var buf strings.Builder
	err := Generate(&buf, feeds)
	require.NoError(t, err)

	output := buf.String()

	assert.Contains(t, output, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, output, `<opml version="2.0">`)

	assert.Contains(t, output, `xmlUrl="https://example.com/feed1"`)
	assert.Contains(t, output, `xmlUrl="https://example.com/feed2"`)
	assert.Contains(t, output, `xmlUrl="https://example.com/feed3"`)

	assert.Contains(t, output, `title="Feed 1"`)
	assert.Contains(t, output, `category="tech"`)
	assert.Contains(t, output, `category="blog"`)

	// Categories are sorted, so blog comes before tech.
	assert.Less(t, strings.Index(output, `text="blog"`), strings.Index(output, `text="tech"`))
}

func TestGenerateOPML_EmptyList(t *testing.T) {
	var buf strings.Builder
	err := Generate(&buf, nil)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, `<opml version="2.0">`)
	assert.Contains(t, output, `<body>`)
	assert.Contains(t, output, `</body>`)
}

func TestRoundTrip(t *testing.T) {
	originalFeeds := []model.Feed{
		{ID: "feed-1", RSSURL: "https://example.com/feed1", Name: "Feed 1", Description: "first", Category: "tech"},
		{ID: "feed-2", RSSURL: "https://example.com/feed2", Name: "Feed 2"},
	}

	var buf strings.Builder
	require.NoError(t, Generate(&buf, originalFeeds))

	parsedFeeds, err := Parse(strings.NewReader(buf.String()))
	require.NoError(t, err)

	assert.Equal(t, originalFeeds, parsedFeeds)
}

func TestGenerateOPML_SpecialCharacters(t *testing.T) {
	feeds := []model.Feed{
		{ID: "x", RSSURL: "https://example.com/feed?id=1&type=rss", Name: "Feed with & < >", Category: "test"},
	}

	var buf strings.Builder
	require.NoError(t, Generate(&buf, feeds))
	assert.Contains(t, buf.String(), "&amp;")
}
