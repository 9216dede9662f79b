package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(content string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, content)
	}))
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) GetFeed(_ context.Context, endpoint string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bs, ok := m.data[endpoint]
	return bs, ok
}

func (m *memCache) SetFeed(_ context.Context, endpoint string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[endpoint] = body
	return nil
}

func TestFeedFetcherFetch(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testRSSFeed)
	}))
	defer srv.Close()

	f := NewFeedFetcher(WithUserAgent("NewsShowTest/1.0"), WithTimeout(2*time.Second))
	items, err := f.Fetch(context.Background(), FeedSource{Name: "Local", Endpoint: srv.URL, Limit: 2})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Local", items[0].Source)
	assert.Equal(t, "NewsShowTest/1.0", ua.Load())
}

func TestFeedFetcherHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFeedFetcher()
	_, err := f.Fetch(context.Background(), FeedSource{Name: "Broken", Endpoint: srv.URL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport), "got %v", err)
}

func TestFeedFetcherConnectionRefused(t *testing.T) {
	srv := setupTestServer(testRSSFeed)
	url := srv.URL
	srv.Close()

	f := NewFeedFetcher(WithTimeout(time.Second))
	_, err := f.Fetch(context.Background(), FeedSource{Name: "Down", Endpoint: url})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestFeedFetcherMalformed(t *testing.T) {
	srv := setupTestServer("<html><body>maintenance</body></html>")
	defer srv.Close()

	f := NewFeedFetcher()
	_, err := f.Fetch(context.Background(), FeedSource{Name: "HTML", Endpoint: srv.URL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse), "got %v", err)
}

func TestFeedFetcherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		fmt.Fprint(w, testRSSFeed)
	}))
	defer srv.Close()

	f := NewFeedFetcher(WithTimeout(100 * time.Millisecond))
	start := time.Now()
	_, err := f.Fetch(context.Background(), FeedSource{Name: "Slow", Endpoint: srv.URL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFeedFetcherContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	f := NewFeedFetcher(WithTimeout(5 * time.Second))
	_, err := f.Fetch(ctx, FeedSource{Name: "Hang", Endpoint: srv.URL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestFeedFetcherUsesCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, testRSSFeed)
	}))
	defer srv.Close()

	cache := newMemCache()
	f := NewFeedFetcher(WithCache(cache))
	src := FeedSource{Name: "Cached", Endpoint: srv.URL}

	_, err := f.Fetch(context.Background(), src)
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second fetch should be served from cache")
}

func TestFeedFetcherWarm(t *testing.T) {
	srv := setupTestServer(testAtomFeed)
	defer srv.Close()

	cache := newMemCache()
	f := NewFeedFetcher(WithCache(cache))
	require.NoError(t, f.Warm(context.Background(), FeedSource{Name: "Atom", Endpoint: srv.URL}))

	bs, ok := cache.GetFeed(context.Background(), srv.URL)
	require.True(t, ok)
	assert.Contains(t, string(bs), "Atom headline")

	bad := setupTestServer("garbage")
	defer bad.Close()
	err := f.Warm(context.Background(), FeedSource{Name: "Bad", Endpoint: bad.URL})
	assert.True(t, errors.Is(err, ErrParse))
	_, ok = cache.GetFeed(context.Background(), bad.URL)
	assert.False(t, ok, "unparsable feeds must not be cached")
}

func TestFeedFetcherWarmWithoutCache(t *testing.T) {
	f := NewFeedFetcher()
	assert.NoError(t, f.Warm(context.Background(), FeedSource{Name: "x", Endpoint: "http://127.0.0.1:1"}))
}

const latin1RSS = "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
	"<rss version=\"2.0\"><channel><title>Local</title>" +
	"<item><title>Caf\xe9 Mumbai</title><link>https://example.com/cafe</link>" +
	"<description>Caf\xe9 reopens in Bandra</description></item>" +
	"</channel></rss>"

func TestFeedFetcherLatin1WithCharsetHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml; charset=ISO-8859-1")
		_, _ = w.Write([]byte(latin1RSS))
	}))
	defer srv.Close()

	items, err := NewFeedFetcher().Fetch(context.Background(), FeedSource{Name: "Local", Endpoint: srv.URL})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Café Mumbai", items[0].Title)
	assert.Equal(t, "Café reopens in Bandra", items[0].Summary)
}

func TestFeedFetcherLatin1WithoutCharsetHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(latin1RSS))
	}))
	defer srv.Close()

	items, err := NewFeedFetcher().Fetch(context.Background(), FeedSource{Name: "Local", Endpoint: srv.URL})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Café Mumbai", items[0].Title)
}

func TestDeclareUTF8(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"double quotes", `<?xml version="1.0" encoding="ISO-8859-1"?><rss/>`, `<?xml version="1.0" encoding="UTF-8"?><rss/>`},
		{"single quotes", `<?xml version='1.0' encoding='windows-1252' ?><rss/>`, `<?xml version='1.0' encoding="UTF-8" ?><rss/>`},
		{"no encoding", `<?xml version="1.0"?><rss/>`, `<?xml version="1.0"?><rss/>`},
		{"no prolog", `<rss encoding="x"/>`, `<rss encoding="x"/>`},
		{"leading space", "\n <?xml version=\"1.0\" encoding=\"GBK\"?><rss/>", "\n <?xml version=\"1.0\" encoding=\"UTF-8\"?><rss/>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, string(declareUTF8([]byte(tc.in))))
		})
	}
}
