package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/johntango/coursepipeline/broker"
	"github.com/johntango/coursepipeline/logging"
	"github.com/johntango/coursepipeline/pipeline/agents"
	"github.com/johntango/coursepipeline/pipeline/config"
	"github.com/johntango/coursepipeline/pipeline/events"
	"github.com/johntango/coursepipeline/pipeline/observability"
)

type consumer interface {
	run(ctx context.Context)
}

// Runner owns the consumer goroutines for one topology.
type Runner struct {
	cfg       *config.PipelineConfig
	broker    broker.Broker
	consumers []consumer
	log       logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewRunner validates the topology and builds one processor per consumed
// queue. Returns a *config.TopologyError when validation fails.
func NewRunner(cfg *config.PipelineConfig, b broker.Broker, rec events.Recorder, gen agents.Generator, doc Appender, log logging.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("terminal document is required")
	}

	r := &Runner{cfg: cfg, broker: b, log: log}
	for _, stage := range cfg.Stages {
		instr, _ := cfg.Instruction(stage.Agent)
		stageLog := log.Bind("pipeline", cfg.Name)
		if stage.Queue == cfg.Terminal {
			r.consumers = append(r.consumers, &terminalProcessor{
				stage:     stage,
				analytics: cfg.Analytics,
				broker:    b,
				recorder:  rec,
				gen:       gen,
				instr:     instr,
				doc:       doc,
				log:       stageLog,
			})
			continue
		}
		r.consumers = append(r.consumers, &stageProcessor{
			stage:    stage,
			terminal: cfg.Terminal,
			broker:   b,
			recorder: rec,
			gen:      gen,
			instr:    instr,
			log:      stageLog,
		})
	}

	if cfg.Analytics != "" {
		instr, _ := cfg.Instruction(cfg.AnalyticsAgent)
		r.consumers = append(r.consumers, &analyticsProcessor{
			queue:    cfg.Analytics,
			agent:    cfg.AnalyticsAgent,
			broker:   b,
			recorder: rec,
			gen:      gen,
			instr:    instr,
			log:      log.Bind("pipeline", cfg.Name),
		})
	}

	return r, nil
}

// Start launches one goroutine per consumer plus the queue-depth reporter.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("runner already started")
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	for _, c := range r.consumers {
		r.wg.Add(1)
		go func(c consumer) {
			defer r.wg.Done()
			c.run(ctx)
		}(c)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.reportDepths(ctx)
	}()

	r.log.Info("pipeline started", "pipeline", r.cfg.Name, "consumers", len(r.consumers))
	return nil
}

// Stop cancels the consumers and waits for them to drain.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	r.log.Info("pipeline stopped", "pipeline", r.cfg.Name)
}

func (r *Runner) reportDepths(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, queue := range r.cfg.Queues() {
				depth, err := r.broker.Depth(ctx, queue)
				if err != nil {
					continue
				}
				observability.SetQueueDepth(queue, depth)
			}
		}
	}
}
