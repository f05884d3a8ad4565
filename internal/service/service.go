package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spigell/eu-call-finder/internal/inflight"
	"github.com/spigell/eu-call-finder/internal/logger"
	"github.com/spigell/eu-call-finder/internal/profile"
	"github.com/spigell/eu-call-finder/internal/report"
	"github.com/spigell/eu-call-finder/internal/workflow"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// DuplicatePolicy decides what happens to a request whose id is already running.
type DuplicatePolicy string

const (
	// PolicyCoalesce lets duplicates wait for and share the running result.
	PolicyCoalesce DuplicatePolicy = "coalesce"
	// PolicyReject fails duplicates with ErrDuplicate.
	PolicyReject DuplicatePolicy = "reject"
)

const defaultWorkers = 4

// ErrDuplicate is returned for a request whose id is already running.
var ErrDuplicate = errors.New("duplicate request")

// Runner executes one workflow run.
type Runner interface {
	Run(ctx context.Context, runID string, company *profile.Company, sink workflow.Sink) (*report.Report, error)
}

// Config tunes the service.
type Config struct {
	Workers         int             `mapstructure:"workers"`
	DuplicatePolicy DuplicatePolicy `mapstructure:"duplicate-policy"`
}

// Request is one submitted run. An empty ID gets a generated one.
type Request struct {
	ID      string
	Profile *profile.Company
	Sink    workflow.Sink
}

// Result is the outcome of Submit.
type Result struct {
	ID     string
	Report *report.Report
	// Shared is set when the report came from a run started by another request.
	Shared bool
}

// Service runs workflows concurrently with at most one run per request id.
type Service struct {
	runner   Runner
	registry inflight.Registry
	sem      *semaphore.Weighted
	group    singleflight.Group
	policy   DuplicatePolicy
	logger   *zap.Logger
}

func New(cfg Config, runner Runner, registry inflight.Registry, log *zap.Logger) (*Service, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if registry == nil {
		registry = inflight.NewLocal()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	switch cfg.DuplicatePolicy {
	case "":
		cfg.DuplicatePolicy = PolicyCoalesce
	case PolicyCoalesce, PolicyReject:
	default:
		return nil, fmt.Errorf("unknown duplicate policy %q", cfg.DuplicatePolicy)
	}

	return &Service{
		runner:   runner,
		registry: registry,
		sem:      semaphore.NewWeighted(int64(cfg.Workers)),
		policy:   cfg.DuplicatePolicy,
		logger:   log,
	}, nil
}

// Submit runs the request and waits for its report.
func (s *Service) Submit(ctx context.Context, req Request) (Result, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	log := logger.WithRun(s.logger, id)

	if s.policy == PolicyReject {
		rep, err := s.execute(ctx, id, req, log)
		return Result{ID: id, Report: rep}, err
	}

	leader := false
	v, err, shared := s.group.Do(id, func() (any, error) {
		leader = true
		return s.execute(ctx, id, req, log)
	})

	rep, _ := v.(*report.Report)
	if !leader {
		log.Info("request coalesced with running one")
		notify(req.Sink, id, rep, err)
	}
	return Result{ID: id, Report: rep, Shared: shared && !leader}, err
}

func (s *Service) execute(ctx context.Context, id string, req Request, log *zap.Logger) (*report.Report, error) {
	release, err := s.registry.Acquire(ctx, id)
	if err != nil {
		if errors.Is(err, inflight.ErrInFlight) {
			err = fmt.Errorf("%w: %s: %w", ErrDuplicate, id, err)
			log.Warn("duplicate request rejected")
		}
		notify(req.Sink, id, nil, err)
		return nil, err
	}
	defer release()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		notify(req.Sink, id, nil, err)
		return nil, err
	}
	defer s.sem.Release(1)

	log.Debug("run started")
	return s.runner.Run(ctx, id, req.Profile, req.Sink)
}

// notify sends the terminal event to a sink whose request did not run itself.
func notify(sink workflow.Sink, id string, rep *report.Report, err error) {
	if sink == nil {
		return
	}
	if err != nil {
		sink.Emit(workflow.Event{RunID: id, Kind: workflow.EventFailed, Message: "run failed", Err: err})
		return
	}
	sink.Emit(workflow.Event{RunID: id, Kind: workflow.EventCompleted, Stage: workflow.StageDone, Percent: 100, Message: "run completed", Report: rep})
}
