package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openmeetings/meetsearch/internal/engine"
	"github.com/openmeetings/meetsearch/internal/models"
	"go.uber.org/zap"
)

// Defaults for controller timing.
const (
	DefaultDebounce     = 500 * time.Millisecond
	DefaultQueryTimeout = 10 * time.Second
)

// slice identifies a piece of state written by query responses.
type slice int

const (
	sliceResults slice = iota
	sliceBodyFacet
	sliceDatedFacet
	numSlices
)

var sliceNames = [numSlices]string{"results", "bodyFacet", "datedFacet"}

func (s slice) String() string { return sliceNames[s] }

// tags holds, per slice, the sequence number a query will write; zero means the query does not
// write that slice.
type tags [numSlices]uint64

type pending struct {
	tags   tags
	cancel context.CancelFunc
}

// Controller owns one session's SearchState. Intent methods return immediately; the queries
// they issue run concurrently and each state slice only accepts the response of its most
// recently issued query. Update and error handlers run while the controller lock is held and
// must not call back into the Controller.
type Controller struct {
	exec         engine.Executor
	logger       *zap.Logger
	debounce     time.Duration
	queryTimeout time.Duration
	onUpdate     func(models.SearchState)
	onError      func(error)

	mu         sync.Mutex
	state      models.SearchState
	baseline   models.FacetCount
	datedFacet models.FacetCount
	issued     tags
	applied    tags
	errs       [numSlices]error
	inflight   map[uint64]*pending
	nextID     uint64
	closed     bool
	inputTimer *time.Timer
	inputGen   uint64

	snapshot atomic.Pointer[models.SearchState]
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithUpdateHandler is called with every published snapshot.
func WithUpdateHandler(fn func(models.SearchState)) Option {
	return func(c *Controller) { c.onUpdate = fn }
}

// WithErrorHandler is called with every error from a query that was still current.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Controller) { c.onError = fn }
}

// WithDebounce sets the quiet interval for Input. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithQueryTimeout bounds each engine query. Non-positive values keep the default.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.queryTimeout = d
		}
	}
}

// NewController returns a controller in the empty match-all state. Call Load to run the first search.
func NewController(exec engine.Executor, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		exec:         exec,
		logger:       zap.NewNop(),
		debounce:     DefaultDebounce,
		queryTimeout: DefaultQueryTimeout,
		inflight:     make(map[uint64]*pending),
		baseline:     models.NewFacetCount(),
		datedFacet:   models.NewFacetCount(),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.state = models.SearchState{
		Keyphrase:         models.MatchAll,
		BodyFacet:         models.NewFacetCount(),
		FilteredBodyFacet: models.NewFacetCount(),
		Results:           models.SearchResults{BodyFacetMap: models.NewFacetCount()},
	}
	initial := c.state.Clone()
	c.snapshot.Store(&initial)
	return c
}

// State returns the most recently published snapshot.
func (c *Controller) State() models.SearchState {
	return c.snapshot.Load().Clone()
}

// Err returns the failure of the latest applied query of any state slice, or nil. A slice's
// error is cleared only by a later successful response for that slice.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, err := range c.errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Load replaces the whole request, as on initial page load, and fetches the baseline facet,
// the results and, when dates are active, the date-filtered facet.
func (c *Controller) Load(req models.SearchRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.loadLocked(models.SearchRequest{
		Keyphrase: models.NormalizeKeyphrase(req.Keyphrase),
		Filters:   req.Filters.WithBody(req.Filters.Body),
	})
}

// NewKeyphrase starts a fresh keyword search. The body selection is cleared; the date range is kept.
func (c *Controller) NewKeyphrase(keyphrase string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.newKeyphraseLocked(keyphrase)
}

func (c *Controller) newKeyphraseLocked(keyphrase string) {
	c.loadLocked(models.SearchRequest{
		Keyphrase: models.NormalizeKeyphrase(keyphrase),
		Filters:   c.state.Filters.WithBody(nil),
	})
}

func (c *Controller) loadLocked(req models.SearchRequest) {
	c.inputGen++
	if c.inputTimer != nil {
		c.inputTimer.Stop()
	}

	next := c.state.Clone()
	next.Keyphrase = req.Keyphrase
	next.Filters = req.Filters
	c.publishLocked(next)

	c.issueLocked(baselineRequest(req.Keyphrase), sliceBodyFacet)
	switch {
	case !req.Filters.DatesActive():
		c.invalidateDatedLocked()
		c.issueLocked(req, sliceResults)
	case req.Filters.Body == nil:
		c.issueLocked(req, sliceResults, sliceDatedFacet)
	default:
		c.issueLocked(req, sliceResults)
		c.issueLocked(datedFacetRequest(req.Keyphrase, req.Filters), sliceDatedFacet)
	}
}

// SelectBody changes the body filter and re-fetches results only. Facets are left untouched.
func (c *Controller) SelectBody(body *string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	next := c.state.Clone()
	next.Filters = next.Filters.WithBody(body)
	c.publishLocked(next)
	c.issueLocked(next.Request(), sliceResults)
}

// SetDateRange changes the date range, re-fetching results under the full filter set and the
// body facet under the new range with the body filter ignored. Clearing both dates reverts the
// filtered facet to the baseline immediately.
func (c *Controller) SetDateRange(start, end *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	next := c.state.Clone()
	next.Filters = next.Filters.WithDates(start, end)

	if !next.Filters.DatesActive() {
		c.invalidateDatedLocked()
		next.BodyFacet = c.baseline.Clone()
		next.FilteredBodyFacet = c.baseline.Clone()
		c.publishLocked(next)
		c.issueLocked(next.Request(), sliceResults)
		return
	}

	c.publishLocked(next)
	if next.Filters.Body == nil {
		c.issueLocked(next.Request(), sliceResults, sliceDatedFacet)
		return
	}
	c.issueLocked(next.Request(), sliceResults)
	c.issueLocked(datedFacetRequest(next.Keyphrase, next.Filters), sliceDatedFacet)
}

// Input records live text entry. A NewKeyphrase fires once the text has been stable for the
// debounce interval; blank text searches for everything.
func (c *Controller) Input(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.inputGen++
	gen := c.inputGen
	if c.inputTimer != nil {
		c.inputTimer.Stop()
	}
	c.inputTimer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || gen != c.inputGen {
			return
		}
		c.newKeyphraseLocked(text)
	})
}

// Wait blocks until every issued query has completed.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close stops pending input, cancels in-flight queries and waits for them to return.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.inputTimer != nil {
		c.inputTimer.Stop()
	}
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}

// invalidateDatedLocked discards the date-filtered facet and anything still in flight for it.
func (c *Controller) invalidateDatedLocked() {
	c.issued[sliceDatedFacet]++
	c.applied[sliceDatedFacet] = c.issued[sliceDatedFacet]
	c.errs[sliceDatedFacet] = nil
	c.datedFacet = models.NewFacetCount()
	c.cancelSupersededLocked()
}

func (c *Controller) issueLocked(req models.SearchRequest, slices ...slice) {
	var t tags
	for _, s := range slices {
		c.issued[s]++
		t[s] = c.issued[s]
	}
	c.cancelSupersededLocked()

	q := BuildQuery(req)
	ctx, cancel := context.WithTimeout(c.ctx, c.queryTimeout)
	c.nextID++
	id := c.nextID
	c.inflight[id] = &pending{tags: t, cancel: cancel}
	c.logger.Debug("issuing query",
		zap.Uint64("id", id),
		zap.String("keyphrase", q.Keyphrase),
		zap.Any("slices", slices))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		resp, err := c.exec.Search(ctx, &q)
		if err != nil && !isTaxonomyError(err) {
			err = fmt.Errorf("%w: %v", engine.ErrConnectivity, err)
		}
		c.complete(id, t, resp, err)
	}()
}

// cancelSupersededLocked cancels in-flight queries whose every slice has a newer query.
func (c *Controller) cancelSupersededLocked() {
	for id, p := range c.inflight {
		if c.supersededLocked(p.tags) {
			p.cancel()
			delete(c.inflight, id)
		}
	}
}

func (c *Controller) supersededLocked(t tags) bool {
	for s := slice(0); s < numSlices; s++ {
		if t[s] != 0 && t[s] >= c.issued[s] {
			return false
		}
	}
	return true
}

func (c *Controller) complete(id uint64, t tags, resp *engine.Response, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, id)
	if c.closed {
		return
	}
	if err != nil && c.supersededLocked(t) {
		c.logger.Debug("dropping superseded failure", zap.Uint64("id", id), zap.Error(err))
		return
	}

	var fresh []slice
	for s := slice(0); s < numSlices; s++ {
		if t[s] != 0 && t[s] > c.applied[s] {
			fresh = append(fresh, s)
		}
	}
	if len(fresh) == 0 {
		c.logger.Debug("dropping stale response", zap.Uint64("id", id), zap.Error(err))
		return
	}
	for _, s := range fresh {
		c.applied[s] = t[s]
	}

	var results models.SearchResults
	if err == nil {
		results, err = Normalize(resp)
	}
	if err != nil {
		for _, s := range fresh {
			c.errs[s] = err
			if s == sliceDatedFacet {
				c.datedFacet = models.NewFacetCount()
			}
		}
		c.logger.Warn("search query failed", zap.Uint64("id", id), zap.Error(err))
		if c.onError != nil {
			c.onError(err)
		}
		return
	}
	for _, s := range fresh {
		c.errs[s] = nil
	}

	next := c.state.Clone()
	refacet := false
	for _, s := range fresh {
		switch s {
		case sliceResults:
			next.Results = results
		case sliceBodyFacet:
			c.baseline = results.BodyFacetMap.Clone()
			refacet = true
		case sliceDatedFacet:
			c.datedFacet = results.BodyFacetMap.Clone()
			refacet = true
		}
	}
	if refacet {
		c.refacetLocked(&next)
	}
	c.publishLocked(next)
}

// refacetLocked publishes the baseline and filtered facets together once neither facet query
// is pending. Until then the previous pair stays, so a snapshot never mixes a new baseline with
// dated counts from an older keyphrase or range.
func (c *Controller) refacetLocked(next *models.SearchState) {
	if c.applied[sliceBodyFacet] != c.issued[sliceBodyFacet] {
		return
	}
	if !next.Filters.DatesActive() {
		next.BodyFacet = c.baseline.Clone()
		next.FilteredBodyFacet = c.baseline.Clone()
		return
	}
	if c.applied[sliceDatedFacet] != c.issued[sliceDatedFacet] {
		return
	}
	next.BodyFacet = c.baseline.Clone()
	next.FilteredBodyFacet = Reconcile(c.baseline, c.datedFacet, true)
}

func (c *Controller) publishLocked(next models.SearchState) {
	c.state = next
	snap := next.Clone()
	c.snapshot.Store(&snap)
	if c.onUpdate != nil {
		c.onUpdate(snap.Clone())
	}
}

func isTaxonomyError(err error) bool {
	return errors.Is(err, engine.ErrConnectivity) ||
		errors.Is(err, engine.ErrMalformedResponse) ||
		errors.Is(err, engine.ErrMissingFacet) ||
		errors.Is(err, engine.ErrInvalidQuery)
}
