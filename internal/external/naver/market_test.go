package naver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sentinel/backend/pkg/config"
	"github.com/wonny/sentinel/backend/pkg/httputil"
	"github.com/wonny/sentinel/backend/pkg/logger"
)

const siseHTML = `<html><body>
<span id="KOSPI_now">2,745.82</span>
<span id="KOSPI_change">12.34 +0.45%</span>
<span id="KOSDAQ_now">870.15</span>
<span id="KOSDAQ_change">3.21 +0.37%</span>
</body></html>`

const newsHTML = `<html><body>
<ul class="mainNewsList">
<li><dl><dd class="articleSubject"><a href="/news/news_read.naver?article_id=1">반도체 수출 회복세</a></dd></dl></li>
<li><dl><dd class="articleSubject"><a href="/news/news_read.naver?article_id=2">외국인 순매수 지속</a></dd></dl></li>
</ul>
</body></html>`

func newTestClient(baseURL string) *Client {
	return NewClient(config.NaverConfig{BaseURL: baseURL}, httputil.New(logger.Nop()).DisableRetry(), logger.Nop())
}

func TestFetchMarketContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sise/":
			w.Write([]byte(siseHTML))
		case "/news/mainnews.naver":
			w.Write([]byte(newsHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	mc, err := newTestClient(srv.URL).FetchMarketContext(context.Background())
	require.NoError(t, err)

	require.Len(t, mc.Indices, 2)
	assert.Equal(t, "KOSPI", mc.Indices[0].Name)
	assert.Equal(t, 2745.82, mc.Indices[0].Value)
	assert.Equal(t, 0.45, mc.Indices[0].ChangeRate)

	require.Len(t, mc.Headlines, 2)
	assert.Equal(t, "반도체 수출 회복세", mc.Headlines[0].Title)
	assert.Contains(t, mc.Headlines[0].URL, srv.URL)
}

func TestFetchMarketContextHeadlineFailureIsSoft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sise/" {
			w.Write([]byte(siseHTML))
			return
		}
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	mc, err := newTestClient(srv.URL).FetchMarketContext(context.Background())
	require.NoError(t, err)
	assert.Len(t, mc.Indices, 2)
	assert.Empty(t, mc.Headlines)
}

func TestParseScrapedNumber(t *testing.T) {
	assert.Equal(t, 2745.82, parseScrapedNumber("2,745.82"))
	assert.Equal(t, 0.45, parseScrapedNumber("+0.45"))
	assert.Equal(t, 0.0, parseScrapedNumber("n/a"))
}
