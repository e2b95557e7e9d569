// Package ingest periodically loads a gtfs-rt vehicle position feed, estimates the schedule delay of each vehicle
// and writes the results to a cache, a database and an event stream
package ingest

import (
	"context"
	"errors"
	"fmt"
	"golang.org/x/sync/errgroup"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

//Conf contains all configurable parameters in ingest
type Conf struct {
	VehiclePositionsUrl string
	ApiKey              string
	//RoutePrefix selects the routes to ingest, positions on routes not starting with RoutePrefix are dropped
	RoutePrefix string
	//Location is the transit agency's time zone
	Location     *time.Location
	LoadEvery    time.Duration
	CacheTTL     time.Duration
	FetchTimeout time.Duration
	//CycleTimeout bounds a cycle from the tick that starts it, including time spent waiting for an earlier cycle.
	//Defaults to twice LoadEvery
	CycleTimeout time.Duration
	//Workers limits how many positions of a cycle are estimated and written at the same time
	Workers int
	//Holidays names the holidays flagged on positions, DefaultHolidays when empty
	Holidays []string
	Verbose  bool
}

func (c *Conf) validate() error {
	if c.VehiclePositionsUrl == "" {
		return errors.New("vehicle positions url is required")
	}
	if c.ApiKey == "" {
		return errors.New("api key is required")
	}
	if c.Location == nil {
		return errors.New("location is required")
	}
	if c.LoadEvery <= 0 {
		return fmt.Errorf("load interval must be positive, got %s", c.LoadEvery)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", c.CacheTTL)
	}
	if c.CycleTimeout < 0 {
		return fmt.Errorf("cycle timeout must not be negative, got %s", c.CycleTimeout)
	}
	return nil
}

// CycleSummary counts what happened during one ingestion cycle
type CycleSummary struct {
	Entities   int
	Positions  int
	DelayKnown int
	Cached     int
	Recorded   int
	Published  int
}

// Ingester runs the fetch, extract, estimate and fan out pipeline once per Conf.LoadEvery.
// Cycles never run at the same time, a cycle that starts while another is running waits for it to finish
type Ingester struct {
	log       *log.Logger
	conf      Conf
	fetcher   *feedFetcher
	estimator *delayEstimator
	fanOut    *fanOut
	metrics   *Metrics

	cycleMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewIngester builds an Ingester, returning an error if conf is invalid
func NewIngester(log *log.Logger,
	conf Conf,
	index ScheduleIndex,
	cache PositionCache,
	store PositionStore,
	publisher PositionPublisher,
	metrics *Metrics) (*Ingester, error) {
	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("invalid ingest configuration: %w", err)
	}
	if conf.Workers < 1 {
		conf.Workers = 1
	}
	if conf.CycleTimeout <= 0 {
		conf.CycleTimeout = 2 * conf.LoadEvery
	}
	if len(conf.Holidays) == 0 {
		conf.Holidays = DefaultHolidays
	}
	holidays, err := makeTransitHolidayCalendar(conf.Holidays, conf.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid ingest configuration: %w", err)
	}
	client := &http.Client{Timeout: conf.FetchTimeout}
	return &Ingester{
		log:       log,
		conf:      conf,
		fetcher:   makeFeedFetcher(log, client, conf.VehiclePositionsUrl, conf.ApiKey),
		estimator: makeDelayEstimator(log, index, conf.Location, holidays, metrics, conf.Verbose),
		fanOut:    makeFanOut(log, cache, store, publisher, conf.CacheTTL, metrics),
		metrics:   metrics,
	}, nil
}

// Start begins running cycles in the background, the first one immediately.
// Calling Start on a running Ingester has no effect
func (i *Ingester) Start(ctx context.Context) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	i.cancel = cancel
	i.done = make(chan struct{})
	go i.run(ctx, i.done)
}

// Stop ends the background loop started by Start. Cycles in progress are cancelled and not waited on
func (i *Ingester) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cancel == nil {
		return
	}
	i.cancel()
	<-i.done
	i.cancel = nil
	i.done = nil
}

// run starts a cycle on each tick. Each cycle runs in its own goroutine so the ticker is never held up by a
// slow cycle, and gives up once Conf.CycleTimeout has passed since its tick so waiting cycles cannot pile up
func (i *Ingester) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(i.conf.LoadEvery)
	defer ticker.Stop()

	i.log.Printf("starting vehicle position ingestion every %s\n", i.conf.LoadEvery)
	go i.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			i.log.Printf("Exiting ingestion loop on shutdown signal")
			return
		case <-ticker.C:
			go i.runCycle(ctx)
		}
	}
}

func (i *Ingester) runCycle(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, i.conf.CycleTimeout)
	defer cancel()
	summary, err := i.RunOnce(cycleCtx)
	if err != nil {
		if ctx.Err() == nil {
			i.log.Printf("error attempting to ingest vehicle positions. error:%v\n", err)
		}
		return
	}
	i.log.Printf("ingested %d of %d entities. delay known:%d cached:%d recorded:%d published:%d\n",
		summary.Positions, summary.Entities, summary.DelayKnown, summary.Cached, summary.Recorded, summary.Published)
}

// RunOnce runs a single cycle: fetch the feed, extract positions, then estimate and write each position.
// Positions are processed concurrently and independently of one another.
// Returns *FetchError when the feed could not be loaded, in which case nothing is written
func (i *Ingester) RunOnce(ctx context.Context) (CycleSummary, error) {
	i.cycleMu.Lock()
	defer i.cycleMu.Unlock()

	summary := CycleSummary{}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	// mark the time we start working
	start := time.Now()
	i.metrics.Cycles.Inc()
	defer func() {
		i.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	snapshot, err := i.fetcher.fetch(ctx)
	if err != nil {
		i.metrics.FetchFailures.Inc()
		return summary, err
	}

	candidates := extractPositions(snapshot, i.conf.RoutePrefix, i.conf.Location)
	summary.Entities = len(snapshot.Entities)
	summary.Positions = len(candidates)
	i.metrics.PositionsExtracted.Add(float64(len(candidates)))

	var delayKnown, cached, recorded, published atomic.Int64
	g := errgroup.Group{}
	g.SetLimit(i.conf.Workers)
	for _, c := range candidates {
		c := c
		g.Go(func() error {
			position := i.estimator.estimate(ctx, c)
			if position.DelayKnown {
				delayKnown.Add(1)
			}
			result := i.fanOut.write(ctx, &position)
			if result.cached {
				cached.Add(1)
			}
			if result.recorded {
				recorded.Add(1)
			}
			if result.published {
				published.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.DelayKnown = int(delayKnown.Load())
	summary.Cached = int(cached.Load())
	summary.Recorded = int(recorded.Load())
	summary.Published = int(published.Load())

	i.log.Printf("work took %s\n", fmtDuration(time.Since(start)))
	return summary, nil
}

//fmtDuration returns a string presentation of time.Duration for logging
func fmtDuration(d time.Duration) string {
	d = d.Round(time.Millisecond)
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	mill := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d.%03d", m, s, mill)
}
