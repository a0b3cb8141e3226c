package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/openmeetings/meetsearch/internal/engine"
)

type fixtureMeeting struct {
	id        string
	body      string
	date      time.Time
	text      string
	cancelled bool
}

var tz = time.FixedZone("EST", -5*3600)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, tz)
}

var fixtures = []fixtureMeeting{
	{id: "m1", body: "School Committee", date: day(2023, 3, 1).Add(19 * time.Hour), text: "budget taskforce"},
	{id: "m2", body: "School Committee", date: day(2023, 6, 1).Add(18 * time.Hour), text: "bus routes"},
	{id: "m3", body: "Planning Board", date: day(2023, 3, 15).Add(19 * time.Hour), text: "taskforce on zoning"},
	{id: "m4", body: "Board of Health", date: day(2023, 9, 1).Add(17 * time.Hour), text: "budget flu clinic"},
	{id: "m5", body: "Planning Board", date: day(2023, 9, 10).Add(19 * time.Hour), text: "site plan", cancelled: true},
}

// fakeEngine answers queries from fixtures the way a faceting engine does: facets are counted
// over the same filtered set as the hits.
type fakeEngine struct {
	mu       sync.Mutex
	calls    []engine.Query
	gates    map[string]chan struct{}
	dated    chan struct{}
	delay    func(q engine.Query) time.Duration
	honorCtx bool
	fail     func(q engine.Query) error
	shape    func(r *engine.Response)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{gates: make(map[string]chan struct{})}
}

// gateBody makes queries filtered on body block until the returned channel is closed.
func (f *fakeEngine) gateBody(body string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[body] = ch
	return ch
}

// gateDated makes queries carrying a date bound block until the returned channel is closed.
func (f *fakeEngine) gateDated() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dated = make(chan struct{})
	return f.dated
}

func (f *fakeEngine) setDelay(fn func(q engine.Query) time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = fn
}

func (f *fakeEngine) setFail(fn func(q engine.Query) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fn
}

func (f *fakeEngine) setShape(fn func(r *engine.Response)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shape = fn
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeEngine) callsSince(n int) []engine.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Query(nil), f.calls[n:]...)
}

func (f *fakeEngine) Search(ctx context.Context, q *engine.Query) (*engine.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, *q)
	var gate chan struct{}
	if q.Body != nil {
		gate = f.gates[*q.Body]
	}
	if gate == nil && (q.DateStart != nil || q.DateEnd != nil) {
		gate = f.dated
	}
	var wait time.Duration
	if f.delay != nil {
		wait = f.delay(*q)
	}
	honorCtx := f.honorCtx
	fail := f.fail
	shape := f.shape
	f.mu.Unlock()

	if gate != nil {
		if honorCtx {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			<-gate
		}
	}
	if wait > 0 {
		time.Sleep(wait)
	}
	if fail != nil {
		if err := fail(*q); err != nil {
			return nil, err
		}
	}
	resp := answer(*q)
	if shape != nil {
		shape(resp)
	}
	return resp, nil
}

func answer(q engine.Query) *engine.Response {
	var hits []engine.Hit
	var order []string
	counts := map[string]int{}
	for _, m := range fixtures {
		if q.Keyphrase != "*" && !strings.Contains(m.text, q.Keyphrase) {
			continue
		}
		if q.Body != nil && *q.Body != m.body {
			continue
		}
		if q.DateStart != nil && m.date.Unix() < *q.DateStart {
			continue
		}
		if q.DateEnd != nil && m.date.Unix() > *q.DateEnd {
			continue
		}
		if _, ok := counts[m.body]; !ok {
			order = append(order, m.body)
		}
		counts[m.body]++
		hits = append(hits, engine.Hit{Document: fixtureDoc(m)})
	}
	facet := engine.Facet{FieldName: "body", Counts: []engine.FacetValue{}}
	for _, b := range order {
		facet.Counts = append(facet.Counts, engine.FacetValue{Value: b, Count: counts[b]})
	}
	found, outOf := len(hits), len(fixtures)
	if hits == nil {
		hits = []engine.Hit{}
	}
	return &engine.Response{Found: &found, OutOf: &outOf, FacetCounts: []engine.Facet{facet}, Hits: hits}
}

func fixtureDoc(m fixtureMeeting) *engine.Document {
	id, body, addr := m.id, m.body, "Town Hall"
	dt := m.date.Unix()
	cancelled := m.cancelled
	doc := &engine.Document{
		ID: &id, Body: &body, MeetingDT: &dt, Address: &addr, IsCancelled: &cancelled,
		LatestAgenda: []string{m.text},
	}
	if cancelled {
		cdt := dt - 86400
		doc.CancelledDT = &cdt
	}
	return doc
}
