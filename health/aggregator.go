package health

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/storesync/observe"
)

// DefaultCheckTimeout bounds a full round of checks.
const DefaultCheckTimeout = 10 * time.Second

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout is the maximum time to wait for all checks.
	// Default: DefaultCheckTimeout
	Timeout time.Duration

	// Sequential runs checks one after another instead of in parallel.
	Sequential bool

	// Logger records non-healthy results. Default: no-op.
	Logger observe.Logger
}

// Report is the outcome of one round of checks.
type Report struct {
	Status  Status
	Results map[string]Result

	// Names lists the checkers in registration order.
	Names []string
}

// Aggregator combines health checkers into a single report.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: a round is bounded by both ctx and the configured timeout; a
//     checker that overruns is reported unhealthy with ErrCheckTimeout.
type Aggregator struct {
	config   AggregatorConfig
	logger   observe.Logger
	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// NewAggregator creates a new health aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCheckTimeout
	}
	return &Aggregator{
		config:   cfg,
		logger:   observe.LoggerOr(cfg.Logger),
		checkers: make(map[string]Checker),
	}
}

// Register adds a checker under name, replacing any previous one.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// Unregister removes a checker.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.checkers, name)
	for i, n := range a.order {
		if n == name {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// CheckerNames returns the registered names in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.order...)
}

// Check runs a single named check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()

	if !ok {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return a.runCheck(ctx, checker), nil
}

// Report runs every registered check and folds the results.
func (a *Aggregator) Report(ctx context.Context) Report {
	a.mu.RLock()
	names := append([]string(nil), a.order...)
	checkers := make([]Checker, len(names))
	for i, name := range names {
		checkers[i] = a.checkers[name]
	}
	a.mu.RUnlock()

	report := Report{Status: StatusHealthy, Results: make(map[string]Result, len(names)), Names: names}
	if len(names) == 0 {
		return report
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	results := make([]Result, len(checkers))
	if a.config.Sequential {
		for i, checker := range checkers {
			results[i] = a.runCheck(ctx, checker)
		}
	} else {
		var wg sync.WaitGroup
		for i, checker := range checkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = a.runCheck(ctx, checker)
			}()
		}
		wg.Wait()
	}

	for i, name := range names {
		r := results[i]
		report.Results[name] = r
		report.Status = report.Status.Worse(r.Status)
		if r.Status != StatusHealthy {
			a.logger.Warn(ctx, "health check not healthy",
				observe.F("check", name),
				observe.F("status", r.Status.String()),
				observe.F("message", r.Message),
			)
		}
	}
	return report
}

func (a *Aggregator) runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()
	resultCh := make(chan Result, 1)

	go func() {
		result := checker.Check(ctx)
		result.Duration = time.Since(start)
		if result.Timestamp.IsZero() {
			result.Timestamp = start
		}
		resultCh <- result
	}()

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}
