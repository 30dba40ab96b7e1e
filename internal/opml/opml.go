// Package opml reads and writes the provider's category feeds as OPML.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"time"
)

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline is either a folder (nested Outlines) or a feed (XMLURL set).
type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// Feed is one category feed subscription.
type Feed struct {
	Title string
	URL   string
}

// Parse returns every feed in the document, flattening folders.
func Parse(r io.Reader) ([]Feed, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode opml: %w", err)
	}
	var feeds []Feed
	var walk func(outlines []Outline)
	walk = func(outlines []Outline) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				title := o.Title
				if title == "" {
					title = o.Text
				}
				feeds = append(feeds, Feed{Title: title, URL: o.XMLURL})
				continue
			}
			walk(o.Outlines)
		}
	}
	walk(doc.Body.Outlines)
	return feeds, nil
}

// Categories extracts the distinct values of the query parameter param
// from the feed URLs, in document order.
func Categories(feeds []Feed, param string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range feeds {
		u, err := url.Parse(f.URL)
		if err != nil {
			continue
		}
		g := u.Query().Get(param)
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}

// Export renders feeds as an OPML 2.0 document with a single folder.
func Export(title, folder string, feeds []Feed, created time.Time) ([]byte, error) {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: created.Format(time.RFC1123Z),
		},
	}

	group := Outline{Text: folder, Title: folder}
	for _, f := range feeds {
		group.Outlines = append(group.Outlines, Outline{
			Text:   f.Title,
			Title:  f.Title,
			Type:   "rss",
			XMLURL: f.URL,
		})
	}
	doc.Body.Outlines = []Outline{group}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}
