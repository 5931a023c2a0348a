package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/sitegen/internal/config"
	"github.com/nao1215/sitegen/internal/model"
	"github.com/nao1215/sitegen/internal/route"
)

// Build is the state of one site build. Steps fill it in as they run.
type Build struct {
	// Site is the name of the site in .sitegen.yaml, or "" for an unnamed build.
	Site string

	// Config is the effective configuration of this build.
	Config *config.Config

	// Trie is the route trie produced by ScanStep.
	Trie *route.Trie

	// Report is the crawl report produced by CrawlStep.
	Report *model.BuildReport

	// Previous is the last recorded build of the same site, if any.
	Previous *model.BuildReport

	// Diff compares Previous and Report. Nil without a previous build.
	Diff *model.BuildDiff

	// Performed lists the names of the steps that ran.
	Performed []string

	// Err is the error that stopped the build.
	Err error
}

// NewBuild creates the state for building site with cfg.
func NewBuild(site string, cfg *config.Config) *Build {
	return &Build{Site: site, Config: cfg}
}

// Failed reports whether the build stopped with an error.
func (b *Build) Failed() bool {
	return b.Err != nil
}

// Step is one stage of a build.
type Step interface {
	// Do runs the step. It returns an error only if the build cannot go on.
	Do(ctx context.Context, b *Build) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError runs the remaining steps after one fails.
// The first error is still recorded in Build.Err and returned.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence. The build's Config.Timeout, when set,
// bounds the whole run. Cancellation is checked between steps; steps that
// block honor ctx themselves.
func (p *Pipeline) Execute(ctx context.Context, b *Build) error {
	if b.Config != nil && b.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Config.Timeout)
		defer cancel()
	}

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("build cancelled", "site", b.Site, "step", step.Name(), "reason", err)
			if b.Err == nil {
				b.Err = err
			}
			return b.Err
		}

		p.logger.Info("executing step", "step", step.Name(), "site", b.Site)

		if err := step.Do(ctx, b); err != nil {
			p.logger.Error("step failed", "step", step.Name(), "site", b.Site, "error", err)
			if b.Err == nil {
				b.Err = err
			}
			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed", "step", step.Name(), "site", b.Site)
		}

		b.Performed = append(b.Performed, step.Name())
	}

	return b.Err
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
