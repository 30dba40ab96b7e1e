// Package binsearch implements the on-demand HTML search against BinSearch.
package binsearch

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bryan-buckman/binsearch/internal/config"
	"github.com/bryan-buckman/binsearch/internal/model"
)

// Fetcher retrieves a raw response body.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, params url.Values) ([]byte, error)
}

// Provider runs searches against one BinSearch endpoint.
type Provider struct {
	cfg     config.ProviderConfig
	fetcher Fetcher
	log     logrus.FieldLogger
	now     func() time.Time
}

// New creates a Provider. A nil logger discards output.
func New(cfg config.ProviderConfig, fetcher Fetcher, log logrus.FieldLogger) *Provider {
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	return &Provider{
		cfg:     cfg,
		fetcher: fetcher,
		log:     log.WithField("provider", cfg.Name),
		now:     time.Now,
	}
}

// Name returns the configured provider name.
func (p *Provider) Name() string { return p.cfg.Name }

// Search runs every query of every mode against each configured group and
// returns the accumulated results in iteration order. Upstream failures are
// logged and skipped, so the result may be partial or empty.
func (p *Provider) Search(ctx context.Context, searches []model.ModeQueries) []model.SearchResult {
	var results []model.SearchResult

	for _, s := range searches {
		log := p.log.WithField("mode", s.Mode)
		log.Debug("Search mode")

		for _, q := range s.Queries {
			for _, group := range p.cfg.Groups {
				if ctx.Err() != nil {
					log.WithError(ctx.Err()).Debug("Search cancelled")
					return results
				}
				params := url.Values{
					"q":        {q},
					"adv_age":  {""},
					"xminsize": {strconv.Itoa(p.cfg.MinSize)},
					"max":      {strconv.Itoa(p.cfg.MaxResults)},
					"server":   {strconv.Itoa(group)},
				}
				glog := log.WithField("group", group)
				if s.Mode != model.ModeRSS {
					glog.WithField("search", q).Debug("Search string")
				}

				body, err := p.fetcher.Fetch(ctx, p.cfg.SearchURL(), params)
				if err != nil {
					glog.WithError(err).Debug("No data returned from provider")
					continue
				}
				if len(bytes.TrimSpace(body)) == 0 {
					glog.Debug("No data returned from provider")
					continue
				}

				results = append(results, p.parse(body, s.Mode)...)
			}
		}
	}

	return results
}
