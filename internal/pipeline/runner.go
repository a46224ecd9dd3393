package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dmittakarin8/solflow/internal/domain"
	"github.com/dmittakarin8/solflow/internal/observability"
	"github.com/dmittakarin8/solflow/internal/rolling"
	"github.com/dmittakarin8/solflow/internal/stream"
)

// Runner consumes the upstream stream and fans envelopes out to one
// ingestion task per venue program, so venues never block each other.
type Runner struct {
	source    stream.Source
	processor *Processor
	rolling   *rolling.Store
	programs  []string
	sweepTick time.Duration
	logger    *log.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source    stream.Source
	Processor *Processor
	Rolling   *rolling.Store

	// Programs lists the venue program IDs to dispatch. Defaults to the
	// four known venues.
	Programs []string

	// SweepInterval controls idle-cell pruning. Default 10 minutes.
	SweepInterval time.Duration

	Logger *log.Logger
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOptions) *Runner {
	programs := opts.Programs
	if len(programs) == 0 {
		programs = []string{domain.PumpSwap, domain.Moonshot, domain.BonkSwap, domain.JupiterDCA}
	}
	sweepTick := opts.SweepInterval
	if sweepTick == 0 {
		sweepTick = 10 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		source:    opts.Source,
		processor: opts.Processor,
		rolling:   opts.Rolling,
		programs:  programs,
		sweepTick: sweepTick,
		logger:    logger,
	}
}

// Run consumes the stream until it closes or ctx is cancelled. In-flight
// envelopes finish before Run returns; draining the write queue is the
// caller's responsibility (close the writer after Run).
func (r *Runner) Run(ctx context.Context) error {
	envelopes, err := r.source.Subscribe(ctx)
	if err != nil {
		return err
	}

	// One ingestion task per venue program.
	lanes := make(map[string]chan stream.Envelope, len(r.programs))
	var wg sync.WaitGroup
	for _, program := range r.programs {
		lane := make(chan stream.Envelope, 64)
		lanes[program] = lane
		wg.Add(1)
		go func() {
			defer wg.Done()
			for env := range lane {
				r.processor.Process(env)
			}
		}()
	}

	sweep := time.NewTicker(r.sweepTick)
	defer sweep.Stop()

	dispatched := 0
	for {
		select {
		case env, ok := <-envelopes:
			if !ok {
				r.logger.Printf("stream closed after %d envelopes, draining venue lanes", dispatched)
				for _, lane := range lanes {
					close(lane)
				}
				wg.Wait()
				return nil
			}
			lane, ok := lanes[env.Instruction.ProgramID]
			if !ok {
				continue
			}
			lane <- env
			dispatched++

		case <-sweep.C:
			removed := r.rolling.Sweep(time.Now().Unix())
			if removed > 0 {
				r.logger.Printf("swept %d idle mints", removed)
			}
			observability.RecordSweep(removed)
			observability.SetTrackedMints(r.rolling.Len())
		}
	}
}
