package orchestrator

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/gate"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/infer"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/signals"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/stats"
)

// #endregion

// Error stages passed to Observer.ObserveError.
const (
	StageDiscretize = "discretize"
	StageInfer      = "infer"
	StageRecord     = "record"
)

// #region pipeline-struct

// Pipeline runs records through discretize → query → gate.
type Pipeline struct {
	engine   *infer.Engine
	producer *signals.Producer
	gate     *gate.Gate
	config   Config
	recorder Recorder
	observer Observer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder persists every outcome of Run.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithObserver reports timings and errors.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// #endregion

// #region constructor

// NewPipeline wires the stages. The query variable must exist in the engine's
// model and have the gate's fault state.
func NewPipeline(engine *infer.Engine, producer *signals.Producer, g *gate.Gate, config Config, opts ...Option) (*Pipeline, error) {
	v, ok := engine.Model().Variable(config.Query)
	if !ok {
		return nil, fmt.Errorf("pipeline: %w: %q", infer.ErrUnknownQuery, config.Query)
	}
	if err := g.Check(v); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	p := &Pipeline{
		engine:   engine,
		producer: producer,
		gate:     g,
		config:   config,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Config returns the active configuration.
func (p *Pipeline) Config() Config { return p.config }

// Engine returns the inference engine.
func (p *Pipeline) Engine() *infer.Engine { return p.engine }

// Producer returns the discretizer.
func (p *Pipeline) Producer() *signals.Producer { return p.producer }

// Gate returns the decision rule.
func (p *Pipeline) Gate() *gate.Gate { return p.gate }

// #endregion

// #region diagnose

// Diagnose discretizes one reading and runs it through query and gate.
func (p *Pipeline) Diagnose(r signals.Reading) Outcome {
	start := time.Now()
	out := Outcome{RecordID: r.ID, Reading: r}

	ev, err := p.producer.Evidence(r)
	if err != nil {
		out.Err = fmt.Errorf("%s: %w", StageDiscretize, err)
		out.Elapsed = time.Since(start)
		p.observeError(StageDiscretize)
		return out
	}
	out.Evidence = ev
	return p.finish(out, start)
}

// DiagnoseEvidence runs already-discretized evidence through query and gate.
func (p *Pipeline) DiagnoseEvidence(id string, ev infer.Evidence) Outcome {
	return p.finish(Outcome{RecordID: id, Evidence: ev}, time.Now())
}

func (p *Pipeline) finish(out Outcome, start time.Time) Outcome {
	post, err := p.engine.Query(p.config.Query, out.Evidence)
	if err != nil {
		out.Err = fmt.Errorf("%s: %w", StageInfer, err)
		out.Elapsed = time.Since(start)
		p.observeError(StageInfer)
		return out
	}
	out.Posterior = post
	out.Decision = p.gate.Evaluate(post)
	out.Elapsed = time.Since(start)
	if p.observer != nil {
		p.observer.ObserveDiagnosis(string(out.Decision.Label), out.Elapsed)
	}
	return out
}

// #endregion

// #region run

// Run diagnoses a batch over the worker pool. Per-record failures are kept in
// Outcome.Err and never stop the batch; only context cancellation does. The
// report covers every record that produced evidence. If none did, Run returns
// the outcomes together with a *stats.InsufficientBatchDataError.
func (p *Pipeline) Run(ctx context.Context, batch []signals.Reading) (BatchResult, error) {
	outcomes := make([]Outcome, len(batch))

	workers := p.config.Workers
	if workers > len(batch) {
		workers = len(batch)
	}
	partials := make([]*stats.Aggregator, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		partials[w] = stats.NewAggregator()
		g.Go(func() error {
			for i := w; i < len(batch); i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				o := p.Diagnose(batch[i])
				if o.Evidence != nil {
					partials[w].Add(o.Evidence)
				}
				outcomes[i] = o
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, fmt.Errorf("run batch: %w", err)
	}

	agg := stats.NewAggregator()
	for _, part := range partials {
		agg.Merge(part)
	}

	res := BatchResult{Outcomes: outcomes}
	for _, o := range outcomes {
		switch {
		case o.Failed():
			res.Errors++
			log.Printf("[RUN] record %s: %v", o.RecordID, o.Err)
		case o.Decision.Fault():
			res.Faults++
		}
		if p.recorder != nil {
			if err := p.recorder.Record(o); err != nil {
				p.observeError(StageRecord)
				log.Printf("[RUN] failed to record outcome for %s: %v", o.RecordID, err)
			}
		}
	}

	log.Printf("[RUN] diagnosed %d records: faults=%d errors=%d workers=%d",
		len(batch), res.Faults, res.Errors, workers)

	report, err := agg.Report()
	if err != nil {
		var insufficient *stats.InsufficientBatchDataError
		if errors.As(err, &insufficient) {
			return res, err
		}
		return res, fmt.Errorf("report: %w", err)
	}
	res.Report = report
	return res, nil
}

// #endregion

func (p *Pipeline) observeError(stage string) {
	if p.observer != nil {
		p.observer.ObserveError(stage)
	}
}
