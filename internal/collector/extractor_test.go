package collector

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRSSFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Test Daily</title>
    <link>https://example.com</link>
    <item>
      <title>Mumbai Rains disrupt local trains</title>
      <link>https://example.com/news/1</link>
      <description>&lt;p&gt;Heavy &lt;b&gt;rainfall&lt;/b&gt; in the city.&lt;/p&gt;&lt;img src="https://img.example.com/1.jpg"/&gt;</description>
      <pubDate>Thu, 19 Feb 2026 08:00:00 +0530</pubDate>
    </item>
    <item>
      <title>Markets close higher</title>
      <link>https://example.com/news/2</link>
      <description>Sensex gains 300 points</description>
      <pubDate>not a real date</pubDate>
      <enclosure url="https://img.example.com/2.png" length="100" type="image/png"/>
    </item>
    <item>
      <title>Cricket: India win series</title>
      <link>https://example.com/news/3</link>
      <media:thumbnail url="https://img.example.com/3.jpg"/>
    </item>
  </channel>
</rss>`

const testAtomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Wire</title>
  <entry>
    <title>Atom headline</title>
    <link href="https://example.com/atom/1"/>
    <summary>Atom summary text</summary>
    <updated>2026-02-19T09:00:00+05:30</updated>
  </entry>
</feed>`

func TestParseFeedRSS(t *testing.T) {
	feed, err := ParseFeed([]byte(testRSSFeed))
	require.NoError(t, err)

	items := Extract(feed, FeedSource{Name: "Test Daily", Limit: RegistryLimit})
	require.Len(t, items, 3)

	first := items[0]
	assert.Equal(t, "Mumbai Rains disrupt local trains", first.Title)
	assert.Equal(t, "https://example.com/news/1", first.Link)
	assert.Equal(t, "Test Daily", first.Source)
	assert.Equal(t, "Heavy rainfall in the city.", first.Summary)
	assert.Equal(t, "https://img.example.com/1.jpg", first.ImageURL)
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, time.Date(2026, 2, 19, 2, 30, 0, 0, time.UTC), *first.PublishedAt)
	assert.Equal(t, time.UTC, first.PublishedAt.Location())
}

func TestExtractUnparsableDateIsNil(t *testing.T) {
	feed, err := ParseFeed([]byte(testRSSFeed))
	require.NoError(t, err)

	items := Extract(feed, FeedSource{Name: "Test Daily"})
	require.Len(t, items, 3)
	assert.Nil(t, items[1].PublishedAt, "unparsable pubDate should leave PublishedAt nil")
	assert.Nil(t, items[2].PublishedAt, "missing pubDate should leave PublishedAt nil")
}

func TestExtractImages(t *testing.T) {
	feed, err := ParseFeed([]byte(testRSSFeed))
	require.NoError(t, err)

	items := Extract(feed, FeedSource{Name: "Test Daily"})
	require.Len(t, items, 3)
	assert.Equal(t, "https://img.example.com/2.png", items[1].ImageURL, "image enclosure")
	assert.Equal(t, "https://img.example.com/3.jpg", items[2].ImageURL, "media:thumbnail")
	assert.Equal(t, "", items[2].Summary)
}

func TestExtractAtomUsesUpdated(t *testing.T) {
	feed, err := ParseFeed([]byte(testAtomFeed))
	require.NoError(t, err)

	items := Extract(feed, FeedSource{Name: "Atom Wire"})
	require.Len(t, items, 1)
	assert.Equal(t, "Atom headline", items[0].Title)
	assert.Equal(t, "https://example.com/atom/1", items[0].Link)
	assert.Equal(t, "Atom summary text", items[0].Summary)
	require.NotNil(t, items[0].PublishedAt)
	assert.Equal(t, time.Date(2026, 2, 19, 3, 30, 0, 0, time.UTC), *items[0].PublishedAt)
}

func TestExtractRespectsLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>Big</title>`)
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, `<item><title>Story %d</title><link>https://example.com/%d</link></item>`, i, i)
	}
	b.WriteString(`</channel></rss>`)

	feed, err := ParseFeed([]byte(b.String()))
	require.NoError(t, err)

	assert.Len(t, Extract(feed, FeedSource{Name: "Big", Limit: RegistryLimit}), RegistryLimit)
	assert.Len(t, Extract(feed, FeedSource{Name: "Big", Limit: SearchLimit}), SearchLimit)
	assert.Len(t, Extract(feed, FeedSource{Name: "Big"}), 40)

	items := Extract(feed, FeedSource{Name: "Big", Limit: 2})
	assert.Equal(t, "Story 0", items[0].Title)
	assert.Equal(t, "Story 1", items[1].Title)
}

func TestParseFeedInvalid(t *testing.T) {
	_, err := ParseFeed([]byte("not xml at all"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))

	_, err = ParseFeed([]byte("   "))
	assert.True(t, errors.Is(err, ErrParse))
}

func TestExtractNilFeed(t *testing.T) {
	assert.Nil(t, Extract(nil, FeedSource{Name: "x"}))
}

func TestParseDescription(t *testing.T) {
	cases := []struct {
		in        string
		wantText  string
		wantImage string
	}{
		{"", "", ""},
		{"plain   text\n here", "plain text here", ""},
		{`<div><p>Hello <b>World</b></p><img src=" https://a/b.jpg "></div>`, "Hello World", "https://a/b.jpg"},
		{"<p>no image</p>", "no image", ""},
	}
	for _, c := range cases {
		text, image := parseDescription(c.in)
		assert.Equal(t, c.wantText, text, c.in)
		assert.Equal(t, c.wantImage, image, c.in)
	}
}
