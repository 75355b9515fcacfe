// Package reconcile converges a remote order's line items to a locally edited
// set of desired quantities, issuing the minimal set of remove and adjust
// calls against the commerce API and reporting aggregated failures.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/commerce"
	"storefront/internal/domain"
)

// DesiredState maps line-item ids to the quantities the user wants. Entries
// come straight from form input and are not pre-validated: a zero or negative
// quantity is an implicit removal instruction, never an adjust call.
type DesiredState map[string]int

// Adjustment is one pending quantity change.
type Adjustment struct {
	LineID   string
	Quantity int
}

// Plan is the computed delta between an order and a desired state. It is
// derived on every attempt and never stored; ToRemove and ToAdjust are
// disjoint by construction.
type Plan struct {
	ToRemove []string
	ToAdjust []Adjustment
}

// IsEmpty reports whether the server already matches the desired state.
func (p Plan) IsEmpty() bool {
	return len(p.ToRemove) == 0 && len(p.ToAdjust) == 0
}

// Operations is the number of remote calls the plan will issue.
func (p Plan) Operations() int {
	return len(p.ToRemove) + len(p.ToAdjust)
}

// BuildPlan diffs the order's lines against the desired quantities. Lines
// absent from desired, or desired at a non-positive quantity, are removed;
// lines whose desired quantity differs from the server quantity are adjusted;
// everything else is left untouched. Iteration follows the server's line
// order, so the plan is deterministic for a given input.
//
// Desired ids that do not exist on the order are ignored: adding a line
// requires a product variant id and is a separate operation.
func BuildPlan(order *domain.Order, desired DesiredState) Plan {
	var plan Plan
	for _, line := range order.Lines {
		quantity, ok := desired[line.ID]
		switch {
		case !ok || quantity <= 0:
			plan.ToRemove = append(plan.ToRemove, line.ID)
		case quantity != line.Quantity:
			plan.ToAdjust = append(plan.ToAdjust, Adjustment{LineID: line.ID, Quantity: quantity})
		}
	}
	return plan
}

// Phase names the reconciliation stage in which a failure occurred.
type Phase string

const (
	PhaseRemoving  Phase = "removing"
	PhaseAdjusting Phase = "adjusting"
)

// LineMutator issues the two remote order mutations the reconciler depends
// on. Both must be safe to call concurrently. Domain-level rejections are
// returned as *commerce.DomainError; anything else is a transport failure.
type LineMutator interface {
	RemoveLine(ctx context.Context, lineID string) error
	AdjustLine(ctx context.Context, lineID string, quantity int) error
}

// Invalidator drops the cached copy of an order so downstream consumers
// refetch the authoritative state.
type Invalidator interface {
	Invalidate(ctx context.Context, orderID string) error
}

// Failure records one failed remote call. Code is empty for transport
// failures and carries the API's error code for domain rejections.
type Failure struct {
	LineID  string
	Code    string
	Message string
	Err     error
}

// Error aggregates every call that failed within a single attempt's phase.
// There is no rollback: calls that completed before the failure remain
// committed, so the order must be refetched before trusting local state.
type Error struct {
	Phase    Phase
	Failures []Failure
}

func (e *Error) Error() string {
	return fmt.Sprintf("reconcile: %d call(s) failed while %s: %s", len(e.Failures), e.Phase, e.Failures[0].Message)
}

// DomainFailures returns the subset of failures that carry an API error code.
func (e *Error) DomainFailures() []Failure {
	var out []Failure
	for _, f := range e.Failures {
		if f.Code != "" {
			out = append(out, f)
		}
	}
	return out
}

// Reconciler executes reconciliation attempts. Attempts against the same
// order id are serialized: a second submit waits for the first to settle
// rather than racing it.
type Reconciler struct {
	cache  Invalidator
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*orderLock
}

type orderLock struct {
	mu   sync.Mutex
	refs int
}

// New builds a Reconciler that invalidates cached orders through cache.
func New(cache Invalidator, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		cache:  cache,
		logger: logger,
		locks:  make(map[string]*orderLock),
	}
}

// Reconcile converges the order's server-side lines to the desired state.
//
// Removals run first, concurrently; adjustments only start once every removal
// has succeeded. The number of remote calls equals the plan size: lines whose
// quantity already matches are never touched. On success, and on failure, the
// cached order is invalidated exactly once — after a failed phase whatever
// calls completed remain committed, so the order is in an unknown state and
// must be refetched. A canceled context suppresses the invalidation; the
// calls already issued cannot be unsent.
//
// There is no automatic retry: the caller decides whether to re-invoke.
func (r *Reconciler) Reconcile(ctx context.Context, mutator LineMutator, order *domain.Order, desired DesiredState) error {
	if order == nil {
		return errors.New("reconcile: nil order")
	}

	unlock := r.lockOrder(order.ID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	plan := BuildPlan(order, desired)
	log := r.logger.With(zap.String("order_id", order.ID))
	log.Debug("reconcile plan",
		zap.Int("remove", len(plan.ToRemove)),
		zap.Int("adjust", len(plan.ToAdjust)),
	)

	if !plan.IsEmpty() {
		if err := r.runRemovals(ctx, mutator, plan.ToRemove); err != nil {
			return r.finish(ctx, log, order.ID, err)
		}
		if err := r.runAdjustments(ctx, mutator, plan.ToAdjust); err != nil {
			return r.finish(ctx, log, order.ID, err)
		}
	}

	return r.finish(ctx, log, order.ID, nil)
}

// finish performs the single per-attempt cache invalidation and logs the
// outcome. Cancellation wins over everything else: no invalidation, no
// aggregated error, just ctx.Err().
func (r *Reconciler) finish(ctx context.Context, log *zap.Logger, orderID string, attemptErr error) error {
	if err := ctx.Err(); err != nil {
		log.Debug("reconcile canceled", zap.Error(err))
		return err
	}
	if err := r.cache.Invalidate(ctx, orderID); err != nil {
		log.Warn("order cache invalidation failed", zap.Error(err))
	}
	if attemptErr != nil {
		log.Warn("reconcile failed", zap.Error(attemptErr))
		return attemptErr
	}
	log.Debug("reconcile succeeded")
	return nil
}

func (r *Reconciler) runRemovals(ctx context.Context, mutator LineMutator, lineIDs []string) error {
	return runPhase(ctx, PhaseRemoving, len(lineIDs), func(ctx context.Context, i int) (string, error) {
		return lineIDs[i], mutator.RemoveLine(ctx, lineIDs[i])
	})
}

func (r *Reconciler) runAdjustments(ctx context.Context, mutator LineMutator, adjustments []Adjustment) error {
	return runPhase(ctx, PhaseAdjusting, len(adjustments), func(ctx context.Context, i int) (string, error) {
		a := adjustments[i]
		return a.LineID, mutator.AdjustLine(ctx, a.LineID, a.Quantity)
	})
}

// runPhase issues n independent calls concurrently and waits for all of them,
// turning every failed call into a Failure. The shared errgroup context lets
// in-flight siblings bail out early once one call has failed.
func runPhase(ctx context.Context, phase Phase, n int, call func(ctx context.Context, i int) (string, error)) error {
	if n == 0 {
		return nil
	}

	lineIDs := make([]string, n)
	results := make([]error, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			lineID, err := call(gctx, i)
			lineIDs[i] = lineID
			results[i] = err
			return err
		})
	}
	_ = g.Wait()

	// Sibling calls aborted by the group cancellation are not failures in
	// their own right; keep them only if nothing else explains the abort.
	var failures, aborted []Failure
	for i, err := range results {
		if err == nil {
			continue
		}
		f := toFailure(lineIDs[i], err)
		if f.Code == "" && errors.Is(err, context.Canceled) {
			aborted = append(aborted, f)
			continue
		}
		failures = append(failures, f)
	}
	if len(failures) == 0 {
		failures = aborted
	}
	if len(failures) == 0 {
		return nil
	}
	return &Error{Phase: phase, Failures: failures}
}

func toFailure(lineID string, err error) Failure {
	var derr *commerce.DomainError
	if errors.As(err, &derr) {
		return Failure{LineID: lineID, Code: derr.Code, Message: derr.Message, Err: err}
	}
	return Failure{LineID: lineID, Message: err.Error(), Err: err}
}

// lockOrder takes the per-order mutex, creating it on first use and dropping
// it again once no attempt holds or waits on it.
func (r *Reconciler) lockOrder(orderID string) func() {
	r.mu.Lock()
	l := r.locks[orderID]
	if l == nil {
		l = &orderLock{}
		r.locks[orderID] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, orderID)
		}
		r.mu.Unlock()
	}
}
