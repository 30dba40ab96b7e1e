package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_SendsParamsAndUserAgent(t *testing.T) {
	var gotQuery url.Values
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c := New(5 * time.Second)
	body, err := c.Fetch(context.Background(), srv.URL+"/index.php", url.Values{"q": {"my show"}, "server": {"2"}})
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(body))
	assert.Equal(t, "my show", gotQuery.Get("q"))
	assert.Equal(t, "2", gotQuery.Get("server"))
	assert.Contains(t, gotUA, "Mozilla/5.0")
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(5*time.Second).Fetch(context.Background(), srv.URL, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
}

type flakyTransport struct {
	fails int
	calls int
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.fails {
		return nil, errors.New("connection reset")
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestTransport_RetriesIdempotentRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	base := &flakyTransport{fails: 2}
	c := &Client{HTTP: &http.Client{Transport: &Transport{Base: base, ua: globalUA, RetryMax: 2}}}
	body, err := c.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, 3, base.calls)
}

func TestTransport_GivesUpAfterRetryMax(t *testing.T) {
	base := &flakyTransport{fails: 10}
	c := &Client{HTTP: &http.Client{Transport: &Transport{Base: base, RetryMax: 1}}}
	_, err := c.Fetch(context.Background(), "http://example.invalid/", nil)
	require.Error(t, err)
	assert.Equal(t, 2, base.calls)
}

func TestBuildURL_KeepsExistingQuery(t *testing.T) {
	got, err := BuildURL("https://www.binsearch.info/rss.php?x=1", url.Values{"g": {"alt.binaries.tv"}, "max": {"50"}})
	require.NoError(t, err)
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "1", u.Query().Get("x"))
	assert.Equal(t, "alt.binaries.tv", u.Query().Get("g"))
	assert.Equal(t, "50", u.Query().Get("max"))
}
