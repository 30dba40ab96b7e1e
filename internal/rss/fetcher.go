// Package rss keeps the provider's RSS cache up to date.
package rss

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
)

// MinPollInterval is the shortest allowed poller tick.
const MinPollInterval = time.Minute

// BodyFetcher retrieves a raw response body.
type BodyFetcher interface {
	Fetch(ctx context.Context, rawURL string, params url.Values) ([]byte, error)
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	http   BodyFetcher
	parser *gofeed.Parser
}

// NewFetcher creates a Fetcher that downloads through client.
func NewFetcher(client BodyFetcher) *Fetcher {
	return &Fetcher{
		http:   client,
		parser: gofeed.NewParser(),
	}
}

// FetchFeed fetches rawURL with params and parses the body as RSS/Atom.
func (f *Fetcher) FetchFeed(ctx context.Context, rawURL string, params url.Values) (*gofeed.Feed, error) {
	body, err := f.http.Fetch(ctx, rawURL, params)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("empty feed from %s", rawURL)
	}
	feed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", rawURL, err)
	}
	return feed, nil
}

// Poller runs continuous cache refreshes.
type Poller struct {
	updater  *Updater
	interval time.Duration
	log      logrus.FieldLogger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewPoller creates a background poller.
func NewPoller(u *Updater, interval time.Duration, log logrus.FieldLogger) *Poller {
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		updater:  u,
		interval: interval,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the polling loop.
func (p *Poller) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			ctx, cancel := context.WithTimeout(p.ctx, 10*time.Minute)
			stats := p.updater.Update(ctx)
			cancel()

			switch {
			case stats.Err != nil:
				p.log.WithError(stats.Err).Error("Poller: cache refresh failed")
			case stats.Skipped:
				p.log.Debug("Poller: cache refresh not due")
			default:
				p.log.WithFields(logrus.Fields{
					"items":      stats.Items,
					"categories": stats.Categories,
				}).Info("Poller: cache refreshed")
			}

			select {
			case <-p.ctx.Done():
				return
			case <-time.After(p.interval):
			}
		}
	}()
}

// Stop cancels any in-flight refresh and waits for the loop to exit.
func (p *Poller) Stop() {
	p.cancel()
	p.wg.Wait()
}
