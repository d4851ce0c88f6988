// Package feed implements an incrementally loading feed: it fetches pages
// from a gateway as the viewer scrolls toward the end and merges newly
// created items to the front as they are announced on the event bus.
//
// All state changes go through Controller.mu. Fetches run on their own
// goroutines and are tied to the activation that issued them; a result that
// arrives after that activation ended is dropped without touching state and
// without reporting an error.
package feed

import (
	"context"
	"sync"
	"time"

	"scrollfeed/events"
	"scrollfeed/gateway"
	"scrollfeed/models"
	"scrollfeed/throttle"
	"scrollfeed/viewport"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

// DefaultThreshold is how close to the bottom of the content the viewer has
// to be before the next page is requested
const DefaultThreshold = 500

var (
	feedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrollfeed_feed_fetches_total",
		Help: "Fetches issued by feed controllers by operation and result",
	}, []string{"op", "result"})

	feedDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrollfeed_feed_dropped_results_total",
		Help: "Fetch results discarded because their activation had ended",
	}, []string{"op"})
)

const (
	opFirstPage = "first_page"
	opMore      = "load_more"
	opInsert    = "insert"
)

// Notifier presents errors to the viewer
type Notifier interface {
	Notify(err error)
}

// NotifierFunc adapts a function to a Notifier
type NotifierFunc func(err error)

func (f NotifierFunc) Notify(err error) { f(err) }

type logNotifier struct{}

func (logNotifier) Notify(err error) {
	log.WithFields(log.Fields{
		"error": err,
	}).Error("Feed fetch failed")
}

// Config holds the collaborators and tunables of a Controller
type Config struct {
	Gateway  gateway.Gateway
	Bus      *events.Bus
	Viewport *viewport.Viewport

	// PageSize is the size of a full page. Defaults to models.PageSize.
	PageSize int
	// Threshold defaults to DefaultThreshold
	Threshold int
	// Debounce is the delay before a scroll burst is evaluated.
	// Zero uses throttle.DefaultDelay, negative disables it.
	Debounce time.Duration
	// Frames defaults to a 60 fps scheduler
	Frames throttle.FrameScheduler

	// Notifier receives fetch errors. Defaults to logging them.
	Notifier Notifier
	// OnChange is called with a fresh view model after every state change
	OnChange func(ViewModel)
}

// activation is everything owned by one Activate call
type activation struct {
	ctx      context.Context
	cancel   context.CancelFunc
	sub      events.Subscription
	unwatch  func()
	throttle *throttle.Throttle
	// stopParent detaches the watch on the context given to Activate
	stopParent func() bool
}

type Controller struct {
	mu sync.Mutex
	wg sync.WaitGroup

	gateway   gateway.Gateway
	bus       *events.Bus
	viewport  *viewport.Viewport
	pageSize  int
	threshold int
	debounce  time.Duration
	frames    throttle.FrameScheduler
	notifier  Notifier
	onChange  func(ViewModel)

	phase   Phase
	cursor  int
	lastPos int
	items   []models.Item
	active  *activation

	// version counts state changes so that OnChange never sees an older
	// view model after a newer one
	version uint64
	emitMu  sync.Mutex
	emitted uint64
}

func New(config Config) *Controller {
	c := &Controller{
		gateway:   config.Gateway,
		bus:       config.Bus,
		viewport:  config.Viewport,
		pageSize:  config.PageSize,
		threshold: config.Threshold,
		debounce:  config.Debounce,
		frames:    config.Frames,
		notifier:  config.Notifier,
		onChange:  config.OnChange,
		phase:     Idle,
		cursor:    1,
		items:     []models.Item{},
	}

	if c.pageSize <= 0 {
		c.pageSize = models.PageSize
	}
	if c.threshold <= 0 {
		c.threshold = DefaultThreshold
	}
	if c.debounce == 0 {
		c.debounce = throttle.DefaultDelay
	}
	if c.viewport == nil {
		c.viewport = viewport.New()
	}
	if c.notifier == nil {
		c.notifier = logNotifier{}
	}

	return c
}

// Activate starts a fresh activation: the cursor goes back to page 1, page 1
// is requested and the controller starts listening to scroll and bus events.
// Calling it while active ends the previous activation first. When ctx is
// done the activation ends as if Deactivate had been called.
func (c *Controller) Activate(ctx context.Context) {
	c.mu.Lock()
	c.deactivateLocked()

	actx, cancel := context.WithCancel(ctx)
	a := &activation{ctx: actx, cancel: cancel}
	a.throttle = throttle.New(c.scrolled, c.debounce, c.frames)
	a.stopParent = context.AfterFunc(ctx, func() { c.parentDone(a) })
	c.active = a

	c.cursor = 1
	c.lastPos = 0
	c.phase = LoadingFirst
	feedFetches.WithLabelValues(opFirstPage, "issued").Inc()
	c.wg.Add(1)
	go c.loadFirst(a)

	a.unwatch = c.viewport.Subscribe(func(viewport.Position) {
		a.throttle.Notify()
	})
	if c.bus != nil {
		a.sub = c.bus.Subscribe(c.OnEvent)
	}

	version, vm := c.snapshotLocked()
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"page_size": c.pageSize,
		"threshold": c.threshold,
	}).Info("Feed activated")
	c.changed(version, vm)
}

// Deactivate stops listening to scroll and bus events and abandons in-flight
// fetches. Idempotent.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	wasActive := c.active != nil
	c.deactivateLocked()
	version, vm := c.snapshotLocked()
	c.mu.Unlock()

	if wasActive {
		log.Info("Feed deactivated")
		c.changed(version, vm)
	}
}

// parentDone ends a once the context it was activated with is done
func (c *Controller) parentDone(a *activation) {
	c.mu.Lock()
	if c.active != a {
		c.mu.Unlock()
		return
	}
	c.deactivateLocked()
	version, vm := c.snapshotLocked()
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"error": a.ctx.Err(),
	}).Info("Feed deactivated by its context")
	c.changed(version, vm)
}

func (c *Controller) deactivateLocked() {
	a := c.active
	if a == nil {
		return
	}
	c.active = nil
	c.phase = Idle

	a.cancel()
	a.stopParent()
	a.throttle.Stop()
	if a.unwatch != nil {
		a.unwatch()
	}
	a.sub.Unsubscribe()
}

// Active reports whether the controller is between Activate and Deactivate
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Wait blocks until every fetch issued so far has returned
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) ViewModel() ViewModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return viewModel(c.phase, c.items)
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Cursor is the last page loaded
func (c *Controller) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// scrolled runs once per throttled frame
func (c *Controller) scrolled() {
	c.OnScrollSignal(c.viewport.Position())
}

// OnScrollSignal requests the next page when the viewer is moving down and
// the bottom of the window is within the threshold of the end of the content.
// Scrolling up never loads.
func (c *Controller) OnScrollSignal(pos viewport.Position) {
	c.mu.Lock()
	if c.active == nil || c.phase == LastPage || c.phase == LoadingMore {
		c.mu.Unlock()
		return
	}

	current := pos.Bottom()
	scrollingDown := current-c.lastPos > 0
	nearBottom := current >= pos.ContentHeight-c.threshold
	c.lastPos = current

	if !scrollingDown || !nearBottom || c.phase != Ready {
		c.mu.Unlock()
		return
	}

	version, vm, ok := c.loadMoreLocked()
	c.mu.Unlock()
	if ok {
		c.changed(version, vm)
	}
}

// LoadMore requests the page after the cursor. It returns false when the
// feed is not in a state that allows it (inactive, loading or exhausted).
func (c *Controller) LoadMore() bool {
	c.mu.Lock()
	version, vm, ok := c.loadMoreLocked()
	c.mu.Unlock()
	if ok {
		c.changed(version, vm)
	}
	return ok
}

func (c *Controller) loadMoreLocked() (uint64, ViewModel, bool) {
	if c.active == nil || c.phase != Ready {
		return 0, ViewModel{}, false
	}

	c.phase = LoadingMore
	page := c.cursor + 1
	feedFetches.WithLabelValues(opMore, "issued").Inc()
	c.wg.Add(1)
	go c.loadMore(c.active, page)

	version, vm := c.snapshotLocked()
	return version, vm, true
}

func (c *Controller) loadFirst(a *activation) {
	defer c.wg.Done()

	items, err := c.gateway.FetchPage(a.ctx, 1)
	c.complete(a, opFirstPage, err, func() {
		c.items = appendUnique(c.items, items)
		c.phase = c.afterPage(len(items))
	}, func() {
		c.phase = Ready
	})
}

func (c *Controller) loadMore(a *activation, page int) {
	defer c.wg.Done()

	items, err := c.gateway.FetchPage(a.ctx, page)
	c.complete(a, opMore, err, func() {
		c.items = appendUnique(c.items, items)
		c.cursor = page
		c.phase = c.afterPage(len(items))

		log.WithFields(log.Fields{
			"page":  page,
			"count": len(items),
			"total": len(c.items),
		}).Debug("Loaded page")
	}, func() {
		c.phase = Ready
	})
}

// afterPage is the phase following a page of n items
func (c *Controller) afterPage(n int) Phase {
	if n < c.pageSize {
		return LastPage
	}
	return Ready
}

// OnEvent handles bus events. Only events.ItemCreated is acted upon.
func (c *Controller) OnEvent(evt events.Event) {
	if evt.Type != events.ItemCreated {
		return
	}
	c.Insert(evt.Payload)
}

// Insert fetches the items with the given ids and puts them in front of the
// feed, in the order the gateway returned them. Ids already in the feed are
// skipped.
func (c *Controller) Insert(ids []string) {
	if len(ids) == 0 {
		return
	}

	c.mu.Lock()
	a := c.active
	if a == nil {
		c.mu.Unlock()
		return
	}
	feedFetches.WithLabelValues(opInsert, "issued").Inc()
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		items, err := c.gateway.FetchByIDs(a.ctx, ids)
		c.complete(a, opInsert, err, func() {
			c.items = prependUnique(c.items, items)
		}, nil)
	}()
}

// complete is the single mutation point for fetch results. Results for an
// activation that is no longer current are dropped.
func (c *Controller) complete(a *activation, op string, err error, onSuccess func(), onFailure func()) {
	c.mu.Lock()
	if c.active != a || a.ctx.Err() != nil {
		c.mu.Unlock()
		feedDropped.WithLabelValues(op).Inc()
		log.WithFields(log.Fields{
			"op": op,
		}).Debug("Dropping result of ended activation")
		return
	}

	if err != nil {
		if onFailure != nil {
			onFailure()
		}
		version, vm := c.snapshotLocked()
		c.mu.Unlock()

		feedFetches.WithLabelValues(op, "failed").Inc()
		c.notifier.Notify(err)
		c.changed(version, vm)
		return
	}

	onSuccess()
	version, vm := c.snapshotLocked()
	c.mu.Unlock()

	feedFetches.WithLabelValues(op, "succeeded").Inc()
	c.changed(version, vm)
}

// snapshotLocked records a state change and returns its view model
func (c *Controller) snapshotLocked() (uint64, ViewModel) {
	c.version++
	return c.version, viewModel(c.phase, c.items)
}

// changed hands vm to OnChange unless a newer one was already delivered.
// OnChange must not call back into the controller synchronously.
func (c *Controller) changed(version uint64, vm ViewModel) {
	if c.onChange == nil {
		return
	}

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if version <= c.emitted {
		return
	}
	c.emitted = version
	c.onChange(vm)
}
