package naver

import (
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// IndexSnapshot is one market index reading (KOSPI/KOSDAQ).
type IndexSnapshot struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Change     float64 `json:"change"`
	ChangeRate float64 `json:"change_rate"`
}

// Headline is one main-page finance news item.
type Headline struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// MarketContext is the scraped market backdrop for theme analysis.
type MarketContext struct {
	Indices   []IndexSnapshot `json:"indices"`
	Headlines []Headline      `json:"headlines"`
}

// FetchMarketContext scrapes the index values and top headlines.
// 부분 실패는 빈 슬라이스로 남긴다 — 컨텍스트는 없으면 없는 대로 쓴다.
func (c *Client) FetchMarketContext(ctx context.Context) (*MarketContext, error) {
	html, err := c.fetchHTML(ctx, "/sise/", nil)
	if err != nil {
		return nil, err
	}

	mc := &MarketContext{}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	mc.Indices = parseIndices(doc)

	newsHTML, err := c.fetchHTML(ctx, "/news/mainnews.naver", nil)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to fetch finance headlines")
		return mc, nil
	}
	newsDoc, err := goquery.NewDocumentFromReader(strings.NewReader(newsHTML))
	if err == nil {
		mc.Headlines = parseHeadlines(newsDoc, c.baseURL)
	}

	return mc, nil
}

// parseIndices reads the KOSPI/KOSDAQ quote boxes on /sise/.
func parseIndices(doc *goquery.Document) []IndexSnapshot {
	var indices []IndexSnapshot

	targets := []struct {
		name     string
		selector string
	}{
		{"KOSPI", "#KOSPI_now"},
		{"KOSDAQ", "#KOSDAQ_now"},
	}

	for _, target := range targets {
		valueText := strings.TrimSpace(doc.Find(target.selector).Text())
		if valueText == "" {
			continue
		}
		idx := IndexSnapshot{
			Name:  target.name,
			Value: parseScrapedNumber(valueText),
		}

		changeSel := strings.Replace(target.selector, "_now", "_change", 1)
		changeText := strings.TrimSpace(doc.Find(changeSel).Text())
		if changeText != "" {
			// "12.34 +0.45%" 형태
			fields := strings.Fields(changeText)
			if len(fields) > 0 {
				idx.Change = parseScrapedNumber(fields[0])
			}
			if len(fields) > 1 {
				idx.ChangeRate = parseScrapedNumber(strings.TrimSuffix(fields[1], "%"))
			}
		}
		indices = append(indices, idx)
	}
	return indices
}

// parseHeadlines reads the main news list, up to 10 items.
func parseHeadlines(doc *goquery.Document, baseURL string) []Headline {
	var headlines []Headline

	doc.Find(".mainNewsList li .articleSubject a").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Text())
		href, _ := sel.Attr("href")
		if title == "" {
			return true
		}
		if strings.HasPrefix(href, "/") {
			href = baseURL + href
		}
		headlines = append(headlines, Headline{Title: title, URL: href})
		return len(headlines) < 10
	})
	return headlines
}

func parseScrapedNumber(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "+")
	// 네이버는 하락을 부호 대신 색상으로 표시하는 경우가 있다
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
