package binsearch

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/bryan-buckman/binsearch/internal/extract"
	"github.com/bryan-buckman/binsearch/internal/model"
)

// Rows before this offset are the column header and the filter row.
const rowOffset = 2

const sizeSep = "\u00a0"

var sizeField = regexp.MustCompile(`(?i)size: (\d+(?:\.\d+)?[\x{a0} ]?[KMGTPE]?i?B), parts`)

// columns maps a lower-cased header label to its cell position. Blank or
// duplicate headers are addressed by their positional index ("0", "1", ...).
type columns map[string]int

func newColumns(headers *goquery.Selection) columns {
	c := make(columns)
	headers.Each(func(i int, th *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(th.Text()))
		if _, dup := c[label]; label == "" || dup {
			label = strconv.Itoa(i)
		}
		c[label] = i
	})
	return c
}

func (c columns) cell(cells *goquery.Selection, label string) (*goquery.Selection, bool) {
	i, ok := c[label]
	if !ok {
		n, err := strconv.Atoi(label)
		if err != nil {
			return nil, false
		}
		i = n
	}
	if i < 0 || i >= cells.Length() {
		return nil, false
	}
	return cells.Eq(i), true
}

// parse extracts every usable result from a search results page.
func (p *Provider) parse(body []byte, mode model.Mode) []model.SearchResult {
	log := p.log.WithField("mode", mode)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Warn("Unable to parse search results page")
		return nil
	}

	rows := doc.Find("table.xMenuT").First().Find("tr")
	if rows.Length()-rowOffset <= 0 {
		log.Debug("Data returned from provider does not contain any results")
		return nil
	}

	cols := newColumns(rows.Eq(0).ChildrenFiltered("th"))
	now := p.now()

	var items []model.SearchResult
	rows.Slice(rowOffset, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
		item, ok, err := p.normalizeRow(cols, row.ChildrenFiltered("td"), now)
		if err != nil {
			log.WithError(err).Debug("Skipping result with unparseable age")
			return
		}
		if !ok {
			return
		}
		if mode != model.ModeRSS {
			log.WithField("title", item.Title).Debug("Found result")
		}
		items = append(items, item)
	})
	return items
}

// normalizeRow maps one result row onto a SearchResult. ok is false for rows
// that carry no identifier or title; err is set only when the age column
// cannot be parsed.
func (p *Provider) normalizeRow(cols columns, cells *goquery.Selection, now time.Time) (model.SearchResult, bool, error) {
	idCell, ok := cols.cell(cells, "1")
	if !ok {
		return model.SearchResult{}, false, nil
	}
	id, _ := idCell.Find("input").First().Attr("name")
	id = strings.TrimSpace(id)
	if id == "" {
		return model.SearchResult{}, false, nil
	}

	subject, ok := cols.cell(cells, "subject")
	if !ok {
		return model.SearchResult{}, false, nil
	}
	titleText := subject.Text()
	if span := subject.Find("span").First(); span.Length() > 0 {
		titleText = span.Text()
	}
	raw, err := extract.QuotedTitle(titleText)
	if err != nil {
		return model.SearchResult{}, false, nil
	}
	title := extract.CleanTitle(raw)
	if title == "" {
		return model.SearchResult{}, false, nil
	}

	size := int64(-1)
	if m := sizeField.FindStringSubmatch(subject.Text()); m != nil {
		if n, ok := extract.ParseSize(m[1], sizeSep); ok {
			size = n
		}
	}

	ageText := ""
	if ageCell, ok := cols.cell(cells, "age"); ok {
		ageText = strings.TrimSpace(ageCell.Text())
	}
	age, err := extract.ParseRelativeAge(ageText)
	if err != nil {
		return model.SearchResult{}, false, err
	}

	return model.SearchResult{
		Title:   title,
		Link:    p.cfg.DownloadURL(id),
		Size:    size,
		PubDate: now.Add(-age),
	}, true, nil
}
