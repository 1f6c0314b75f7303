package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram("x", "help", []float64{1, 5, 10})
	h.Observe(0.5)
	h.Observe(3)
	h.Observe(3)
	h.Observe(50)

	var b bytes.Buffer
	h.write(&b)

	for _, want := range []string{
		"# TYPE x histogram",
		`x_bucket{le="1"} 1`,
		`x_bucket{le="5"} 3`,
		`x_bucket{le="10"} 3`,
		`x_bucket{le="+Inf"} 4`,
		`x_sum 56.5`,
		`x_count 4`,
	} {
		assert.Contains(t, b.String(), want)
	}
}

func TestCounterVecSortsSeries(t *testing.T) {
	v := &counterVec{name: "req_total", help: "h", labels: []string{"route", "status"}}
	v.inc("/b", "2xx")
	v.inc("/a", "4xx")
	v.inc("/b", "2xx")

	var b bytes.Buffer
	v.write(&b)

	out := b.String()
	a := strings.Index(out, `req_total{route="/a",status="4xx"} 1`)
	bIdx := strings.Index(out, `req_total{route="/b",status="2xx"} 2`)
	require.NotEqual(t, -1, a, out)
	require.NotEqual(t, -1, bIdx, out)
	assert.Less(t, a, bIdx)
}

func TestRenderIncludesDomainCounters(t *testing.T) {
	IncSharesCreated()
	IncSignaturesCompleted()
	AddEventSubscribers(2)
	AddEventSubscribers(-1)
	ObserveShareRosterSize(4)
	ObserveHTTPRequest(http.MethodGet, "", http.StatusNotFound, 3*time.Millisecond)

	out := Render()
	for _, name := range []string{
		"shares_created_total",
		"signatures_completed_total",
		"event_subscribers",
		"share_roster_size_bucket",
		`http_requests_total{method="GET",route="unmatched",status="4xx"}`,
		"http_request_duration_seconds_count",
	} {
		assert.Contains(t, out, name)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "# TYPE documents_uploaded_total counter")
}
