package rss

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/bryan-buckman/binsearch/internal/extract"
)

// InvalidFeedTitle is what the upstream puts in the channel title of an
// expired or otherwise invalid feed link.
const InvalidFeedTitle = "Invalid Link"

// checkFeed returns feed if it is usable, nil otherwise.
func checkFeed(feed *gofeed.Feed) *gofeed.Feed {
	if feed == nil || !hasChannel(feed) || feed.Title == InvalidFeedTitle {
		return nil
	}
	return feed
}

func hasChannel(feed *gofeed.Feed) bool {
	return feed.Title != "" || feed.Description != "" || feed.Link != "" ||
		len(feed.Links) > 0 || feed.Updated != "" || feed.Published != ""
}

var descTitleEnd = regexp.MustCompile(`(?s)&(?:amp;)?.*$`)

// titleRecovery pulls a release name out of a feed entry.
type titleRecovery struct {
	descTitleStart *regexp.Regexp
}

func newTitleRecovery(baseURL string) titleRecovery {
	host := "www.binsearch.info"
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return titleRecovery{
		descTitleStart: regexp.MustCompile(`(?s)^.*https?://` + regexp.QuoteMeta(host) + `/.b=`),
	}
}

// titleAndURL returns the entry's title and download URL; either may be nil.
//
// The description normally embeds a "?b=<name>&..." link whose name is the
// cleanest title available. Otherwise the subject line is scrubbed of part
// counters and yEnc markers.
func (r titleRecovery) titleAndURL(item *gofeed.Item) (title, link *string) {
	if desc := item.Description; r.descTitleStart.MatchString(desc) {
		t := r.descTitleStart.ReplaceAllString(desc, "")
		t = descTitleEnd.ReplaceAllString(t, "")
		t = strings.TrimSpace(strings.ReplaceAll(t, "+", "."))
		if t != "" {
			title = &t
		}
	}
	if title == nil && strings.TrimSpace(item.Title) != "" {
		t := extract.CleanTitle(extract.StripPartCounters(item.Title))
		if t != "" {
			title = &t
		}
	}

	if item.Link != "" {
		l := strings.ReplaceAll(item.Link, "&amp;", "&")
		link = &l
	}
	return title, link
}
