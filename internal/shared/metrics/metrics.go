// Package metrics keeps process-wide counters and renders them in the
// Prometheus text exposition format.
package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

type metric interface {
	write(buf *bytes.Buffer)
}

var registry []metric

func register[M metric](m M) M {
	registry = append(registry, m)
	return m
}

var (
	documentsUploaded   = register(&counter{name: "documents_uploaded_total", help: "Total documents uploaded"})
	sharesCreated       = register(&counter{name: "shares_created_total", help: "Total share submissions accepted"})
	signaturesCompleted = register(&counter{name: "signatures_completed_total", help: "Total signatures recorded"})
	signaturesRejected  = register(&counter{name: "signatures_rejected_total", help: "Total sign attempts rejected by signing order"})

	jobsReceived      = register(&counter{name: "signature_jobs_received_total", help: "Total signing-completion messages received"})
	jobsFailed        = register(&counter{name: "signature_jobs_failed_total", help: "Total signing-completion messages that failed"})
	jobsUnrecoverable = register(&counter{name: "signature_jobs_deleted_unrecoverable_total", help: "Total signing-completion messages dropped as unrecoverable"})

	eventSubscribers = register(&gauge{name: "event_subscribers", help: "Live websocket subscribers"})

	shareRosterSize = register(newHistogram("share_roster_size", "Participants per share submission",
		[]float64{1, 2, 3, 5, 8, 13, 21, 50}))

	httpRequests = register(&counterVec{name: "http_requests_total", help: "HTTP requests by route and status class",
		labels: []string{"method", "route", "status"}})
	httpDuration = register(newHistogram("http_request_duration_seconds", "HTTP request latency",
		[]float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 10}))
)

// IncDocumentsUploaded counts stored uploads.
func IncDocumentsUploaded() { documentsUploaded.inc() }

// IncSharesCreated counts accepted share submissions.
func IncSharesCreated() { sharesCreated.inc() }

// IncSignaturesCompleted counts recorded signatures.
func IncSignaturesCompleted() { signaturesCompleted.inc() }

// IncSignaturesRejected counts sign attempts refused by turn gating.
func IncSignaturesRejected() { signaturesRejected.inc() }

func IncSignatureJobsReceived()             { jobsReceived.inc() }
func IncSignatureJobsFailed()               { jobsFailed.inc() }
func IncSignatureJobsDeletedUnrecoverable() { jobsUnrecoverable.inc() }

// AddEventSubscribers adjusts the live websocket subscriber gauge.
func AddEventSubscribers(delta int64) { eventSubscribers.v.Add(delta) }

// ObserveShareRosterSize records how many participants a share carried.
func ObserveShareRosterSize(n int) {
	shareRosterSize.Observe(float64(max(n, 0)))
}

// ObserveHTTPRequest records one served request. Status codes collapse to
// their class ("2xx") to keep label cardinality bounded; unmatched routes
// are reported as "unmatched".
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.inc(method, route, strconv.Itoa(status/100)+"xx")
	httpDuration.Observe(elapsed.Seconds())
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/plain; version=0.0.4", []byte(Render()))
	}
}

// Render renders every registered metric.
func Render() string {
	var buf bytes.Buffer
	for _, m := range registry {
		m.write(&buf)
	}
	return buf.String()
}

type counter struct {
	name, help string
	v          atomic.Uint64
}

func (c *counter) inc() { c.v.Add(1) }

func (c *counter) write(buf *bytes.Buffer) {
	header(buf, c.name, c.help, "counter")
	fmt.Fprintf(buf, "%s %d\n", c.name, c.v.Load())
}

type gauge struct {
	name, help string
	v          atomic.Int64
}

func (g *gauge) write(buf *bytes.Buffer) {
	header(buf, g.name, g.help, "gauge")
	fmt.Fprintf(buf, "%s %d\n", g.name, g.v.Load())
}

// counterVec is a counter partitioned by label values.
type counterVec struct {
	name, help string
	labels     []string

	mu     sync.Mutex
	values map[string]uint64
}

func (v *counterVec) inc(values ...string) {
	pairs := make([]string, len(v.labels))
	for i, label := range v.labels {
		val := ""
		if i < len(values) {
			val = values[i]
		}
		pairs[i] = fmt.Sprintf("%s=%q", label, val)
	}
	key := strings.Join(pairs, ",")

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.values == nil {
		v.values = make(map[string]uint64)
	}
	v.values[key]++
}

func (v *counterVec) write(buf *bytes.Buffer) {
	v.mu.Lock()
	keys := make([]string, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	counts := make([]uint64, len(keys))
	for i, k := range keys {
		counts[i] = v.values[k]
	}
	v.mu.Unlock()

	header(buf, v.name, v.help, "counter")
	for i, k := range keys {
		fmt.Fprintf(buf, "%s{%s} %d\n", v.name, k, counts[i])
	}
}

type histogram struct {
	name, help string

	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(name, help string, buckets []float64) *histogram {
	return &histogram{
		name:    name,
		help:    help,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe puts value in the first bucket whose bound holds it; rendering
// accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func (h *histogram) write(buf *bytes.Buffer) {
	writeHistogram(buf, h.name, h.help, h.Snapshot())
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	header(buf, name, help, "histogram")
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func header(buf *bytes.Buffer, name, help, kind string) {
	fmt.Fprintf(buf, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
