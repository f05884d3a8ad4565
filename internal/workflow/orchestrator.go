package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spigell/eu-call-finder/internal/ai"
	"github.com/spigell/eu-call-finder/internal/calls"
	"github.com/spigell/eu-call-finder/internal/eligibility"
	"github.com/spigell/eu-call-finder/internal/invariant"
	"github.com/spigell/eu-call-finder/internal/logger"
	"github.com/spigell/eu-call-finder/internal/planner"
	"github.com/spigell/eu-call-finder/internal/profile"
	"github.com/spigell/eu-call-finder/internal/report"
	"github.com/spigell/eu-call-finder/internal/retrieval"
	"github.com/spigell/eu-call-finder/internal/scoring"
	"github.com/spigell/eu-call-finder/internal/telemetry"
	"github.com/spigell/eu-call-finder/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	defaultMinCandidates    = 3
	defaultMinConfidence    = 0.6
	defaultRetrievalTimeout = 30 * time.Second
	defaultAssessTimeout    = 20 * time.Second
	defaultRetryDelay       = time.Second
	defaultAssessLimit      = 20
	candidateTextLimit      = 1500
)

// Config holds the thresholds and timeouts of a run.
type Config struct {
	MinCandidates    int           `mapstructure:"min-candidates"`
	MinConfidence    float64       `mapstructure:"min-confidence"`
	RetrievalTimeout time.Duration `mapstructure:"retrieval-timeout"`
	AssessTimeout    time.Duration `mapstructure:"assess-timeout"`
	// RetryDelay is the pause before the single retry of an external call. Negative means none.
	RetryDelay time.Duration `mapstructure:"retry-delay"`
	// AssessLimit caps the calls sent to the reasoning collaborator per run.
	AssessLimit int `mapstructure:"assess-limit"`
	TopN        int `mapstructure:"top-n"`
}

func (c Config) withDefaults() Config {
	if c.MinCandidates <= 0 {
		c.MinCandidates = defaultMinCandidates
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = defaultMinConfidence
	}
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = defaultRetrievalTimeout
	}
	if c.AssessTimeout <= 0 {
		c.AssessTimeout = defaultAssessTimeout
	}
	switch {
	case c.RetryDelay < 0:
		c.RetryDelay = 0
	case c.RetryDelay == 0:
		c.RetryDelay = defaultRetryDelay
	}
	if c.AssessLimit <= 0 {
		c.AssessLimit = defaultAssessLimit
	}
	return c
}

// Planner builds the search plan of an attempt.
type Planner interface {
	Plan(company *profile.Company, feedback *planner.Feedback) (planner.Plan, error)
}

// Evaluator checks the eligibility of one call.
type Evaluator interface {
	Evaluate(company *profile.Company, call *calls.Call) eligibility.Result
}

// Deps are the stage implementations, resolved once at start.
type Deps struct {
	Planner   Planner
	Retrieval retrieval.Adapter
	Evaluator Evaluator
	// Assessor is optional. Without it every call is scored deterministically.
	Assessor ai.Assessor
}

// Orchestrator drives runs through the stage machine. It keeps no per-run state
// and may serve concurrent runs.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

// New checks the scoring weights and the dependencies and returns an orchestrator.
func New(cfg Config, deps Deps, log *zap.Logger) (*Orchestrator, error) {
	if err := scoring.CheckWeights(scoring.Weights); err != nil {
		return nil, err
	}
	if deps.Planner == nil || deps.Retrieval == nil {
		return nil, errors.New("planner and retrieval adapter are required")
	}
	if deps.Evaluator == nil {
		deps.Evaluator = eligibility.New(eligibility.Config{})
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg.withDefaults(), deps: deps, logger: log, now: time.Now}, nil
}

// Run executes one run and returns its report. The sink receives progress events
// followed by exactly one terminal event.
func (o *Orchestrator) Run(ctx context.Context, runID string, company *profile.Company, sink Sink) (*report.Report, error) {
	log := logger.WithRun(o.logger, runID)
	em := newEmitter(runID, sink)

	ctx, span := telemetry.StartSpan(ctx, "workflow.run", attribute.String(logger.FieldRunID, runID))

	if err := company.Validate(); err != nil {
		log.Warn("profile rejected", zap.Error(err))
		em.fail("", 0, err)
		telemetry.End(span, err)
		return nil, err
	}

	state, err := o.drive(ctx, NewState(runID, company.Clone()), em, log)
	if err != nil {
		var inv *invariant.Error
		if errors.As(err, &inv) {
			log.Error("workflow invariant violated", zap.Error(err))
		} else {
			log.Warn("run aborted", zap.Error(err))
		}
		em.fail(state.Stage, state.Attempt, err)
		telemetry.End(span, err)
		return nil, err
	}

	em.complete(state.Report, state.Attempt)
	telemetry.End(span, nil)
	return state.Report, nil
}

// drive steps the state until it is terminal. On error the returned state is the last good one.
func (o *Orchestrator) drive(ctx context.Context, state State, em *emitter, log *zap.Logger) (State, error) {
	for !state.Terminal() {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		if err := em.progress(state.Stage, state.Attempt, stageMessage(state)); err != nil {
			return state, err
		}

		stageCtx, span := telemetry.StartSpan(ctx, "workflow."+string(state.Stage),
			attribute.Int(logger.FieldAttempt, state.Attempt),
		)
		stageLog := logger.WithFields(log, logger.StageFields(string(state.Stage), state.Attempt)...)

		next, err := o.step(stageCtx, state, stageLog)
		telemetry.End(span, err)
		if err != nil {
			return state, err
		}
		state = next
	}
	return state, nil
}

func (o *Orchestrator) step(ctx context.Context, state State, log *zap.Logger) (State, error) {
	switch state.Stage {
	case StagePlanning:
		return o.plan(state, log)
	case StageRetrieval:
		return o.retrieve(ctx, state, log)
	case StageScoring:
		return o.score(ctx, state, log)
	case StageRefine:
		return o.refine(state, log)
	case StageReporting:
		return o.assemble(state)
	}
	return state, invariant.Errorf("step", "no handler for stage %q", state.Stage)
}

func (o *Orchestrator) plan(state State, log *zap.Logger) (State, error) {
	plan, err := o.deps.Planner.Plan(state.Profile, state.Feedback)
	if err != nil {
		return state, fmt.Errorf("plan attempt %d: %w", state.Attempt, err)
	}
	for _, t := range plan.Terms {
		if !planner.IsPlain(t) {
			return state, invariant.Errorf("planning", "term %q is not a plain phrase", t)
		}
	}

	next, err := state.WithPlan(plan)
	if err != nil {
		return state, err
	}
	log.Debug("plan ready", zap.Strings("terms", plan.Terms), zap.Bool("low_specificity", plan.LowSpecificity))
	return next.Transition(StageRetrieval)
}

func (o *Orchestrator) retrieve(ctx context.Context, state State, log *zap.Logger) (State, error) {
	req := retrieval.FromPlan(state.LastPlan())
	if err := req.Validate(); err != nil {
		return state, invariant.Errorf("retrieval", "%v", err)
	}

	var found []*calls.Call
	err := utils.Retry(ctx, 2, o.cfg.RetryDelay, nil, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.RetrievalTimeout)
		defer cancel()

		var err error
		found, err = o.deps.Retrieval.Search(callCtx, req)
		return err
	})

	failed := false
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return state, ctxErr
		}
		log.Warn("retrieval failed, continuing without candidates", zap.Error(err))
		found = nil
		failed = true
	}

	next, added := state.WithCalls(found, failed)
	log.Debug("retrieval done", zap.Int("found", len(found)), zap.Int("new", added), zap.Int("total", next.Calls.Len()))
	return next.Transition(StageScoring)
}

func (o *Orchestrator) score(ctx context.Context, state State, log *zap.Logger) (State, error) {
	plan := state.LastPlan()
	keywords := append(append([]string(nil), state.Profile.Keywords...), plan.Terms...)
	now := o.now()

	results := make(map[string]eligibility.Result)
	scores := make(map[string]scoring.Breakdown)
	assessed := len(state.Scores)

	for _, call := range state.Unscored() {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		res := o.deps.Evaluator.Evaluate(state.Profile, call)

		var assessment *ai.Assessment
		if o.deps.Assessor != nil && assessed < o.cfg.AssessLimit {
			assessment = o.assess(ctx, state.Profile, call, log)
			assessed++
			if err := ctx.Err(); err != nil {
				return state, err
			}
		}

		scorer := scoring.Select(assessment)
		b := scorer.Score(scoring.Input{
			Profile:     state.Profile,
			Call:        call,
			Eligibility: &res,
			Assessment:  assessment,
			Keywords:    keywords,
			Programmes:  plan.Programmes,
			Now:         now,
		})
		log.Debug("call scored",
			zap.String(logger.FieldCallID, call.ID),
			zap.String("mode", string(b.Mode)),
			zap.Float64("adjusted", b.AdjustedPercent),
			zap.String("eligibility", string(res.Status)),
		)

		results[call.ID] = res
		scores[call.ID] = b
	}

	next := state.WithResults(results, scores)

	reasons := o.deficiencies(next)
	if len(reasons) > 0 && next.Attempt+1 < MaxAttempts {
		log.Info("results insufficient, refining",
			zap.Int("candidates", next.Calls.Len()),
			zap.Float64("mean_confidence", next.MeanConfidence()),
			zap.Any("reasons", reasons),
		)
		return next.Transition(StageRefine)
	}

	return next.WithExhausted(len(reasons) > 0).Transition(StageReporting)
}

// deficiencies lists why the accumulated results are not good enough yet.
func (o *Orchestrator) deficiencies(state State) []planner.Reason {
	var reasons []planner.Reason
	if state.Calls.Len() < o.cfg.MinCandidates {
		reasons = append(reasons, planner.ReasonTooFewCandidates)
	}
	if state.MeanConfidence() < o.cfg.MinConfidence {
		reasons = append(reasons, planner.ReasonLowConfidence)
	}
	return reasons
}

// assess asks the reasoning collaborator about one call. Failures yield nil.
func (o *Orchestrator) assess(ctx context.Context, company *profile.Company, call *calls.Call, log *zap.Logger) *ai.Assessment {
	req := ai.Request{
		CallID:    call.ID,
		Profile:   company.Summary(),
		Candidate: call.Summary(candidateTextLimit),
	}

	var assessment *ai.Assessment
	err := utils.Retry(ctx, 2, o.cfg.RetryDelay, nil, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.AssessTimeout)
		defer cancel()

		var err error
		assessment, err = o.deps.Assessor.Assess(callCtx, req)
		return err
	})
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("assessment unavailable, using rule based scoring",
				zap.String(logger.FieldCallID, call.ID),
				zap.Error(err),
			)
		}
		return nil
	}
	return assessment
}

func (o *Orchestrator) refine(state State, log *zap.Logger) (State, error) {
	reasons := o.deficiencies(state)
	if state.RetrievalFailed {
		reasons = append(reasons, planner.ReasonRetrievalFailed)
	}
	fb := &planner.Feedback{
		Attempt:          state.Attempt + 1,
		Reasons:          reasons,
		UniqueCandidates: state.Calls.Len(),
		MeanConfidence:   state.MeanConfidence(),
		Previous:         state.Plans,
	}
	log.Debug("feedback for next attempt", zap.Any("reasons", fb.Reasons))
	return state.WithFeedback(fb).Transition(StagePlanning)
}

func (o *Orchestrator) assemble(state State) (State, error) {
	r := report.Assemble(report.Input{
		RunID:         state.RunID,
		Profile:       state.Profile,
		Calls:         state.Calls.Items,
		Eligibility:   state.Eligibility,
		Scores:        state.Scores,
		Attempts:      state.Attempt + 1,
		Exhausted:     state.Exhausted,
		LastPlan:      state.LastPlan(),
		TopN:          o.cfg.TopN,
		MinConfidence: o.cfg.MinConfidence,
		Now:           o.now(),
	})
	return state.WithReport(r).Transition(StageDone)
}

func stageMessage(state State) string {
	switch state.Stage {
	case StagePlanning:
		return fmt.Sprintf("building search plan (attempt %d of %d)", state.Attempt+1, MaxAttempts)
	case StageRetrieval:
		return fmt.Sprintf("searching calls for %d terms", len(state.LastPlan().Terms))
	case StageScoring:
		return fmt.Sprintf("scoring %d candidate calls", state.Calls.Len())
	case StageRefine:
		return "results are insufficient, refining the search"
	case StageReporting:
		return "assembling report"
	}
	return string(state.Stage)
}
