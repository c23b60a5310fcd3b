package generation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/charforge/asset-service/config"
)

// Poller drives the tracker on a fixed tick, polling due jobs in the
// background for as long as the service runs.
type Poller struct {
	tracker      *Tracker
	interval     time.Duration
	roundTimeout time.Duration
	concurrency  int
	batchLimit   int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPoller creates a background poller over the tracker.
func NewPoller(tracker *Tracker, cfg config.GeneratorConfig) *Poller {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	concurrency := cfg.PollConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	// The round budget is never shorter than the per-poll timeout, so a
	// short tick interval cannot silently cap a configured POLL_TIMEOUT.
	roundTimeout := interval
	if cfg.PollTimeout > roundTimeout {
		roundTimeout = cfg.PollTimeout
	}

	return &Poller{
		tracker:      tracker,
		interval:     interval,
		roundTimeout: roundTimeout,
		concurrency:  concurrency,
		batchLimit:   100,
		stopCh:       make(chan struct{}),
	}
}

// Start launches the polling loop. Call Stop to shut it down.
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.loop()
	log.Info().
		Dur("interval", p.interval).
		Int("concurrency", p.concurrency).
		Msg("Generation poller started")
}

func (p *Poller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.tick()
		case <-p.stopCh:
			return
		}
	}
}

// tick runs one polling round under the round budget. Rounds run
// sequentially on the loop goroutine, so a slow upstream delays the next
// tick rather than stacking rounds.
func (p *Poller) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), p.roundTimeout)
	defer cancel()

	polled, err := p.tracker.PollDue(ctx, p.concurrency, p.batchLimit)
	if err != nil {
		log.Error().Err(err).Msg("Polling round failed")
		return
	}
	if polled > 0 {
		log.Debug().Int("polled", polled).Msg("Polling round complete")
	}
}

// Stop shuts the poller down and waits for the in-flight round to finish.
// Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
	log.Info().Msg("Generation poller stopped")
}
