package aws

import (
	"context"
	"sync"
)

// pendingSlot is the single-assignment handoff for one call's outcome.
// It is the Go realization of SPEC_FULL.md §3's "pending result slot":
// only the first complete/fail call takes effect, later ones are ignored,
// and wait blocks until one of them has been made.
type pendingSlot struct {
	ch   chan pendingOutcome
	once sync.Once
	err  chan error
}

// pendingOutcome pairs the decoded FunctionReturn with the raw response
// message the collector received it on, so Invoke can pass the latter
// through to InvokeResult.RawResponse.
type pendingOutcome struct {
	ret FunctionReturn
	raw any
}

func newPendingSlot() *pendingSlot {
	return &pendingSlot{
		ch:  make(chan pendingOutcome, 1),
		err: make(chan error, 1),
	}
}

func (p *pendingSlot) complete(ret FunctionReturn, raw any) {
	p.once.Do(func() { p.ch <- pendingOutcome{ret: ret, raw: raw} })
}

func (p *pendingSlot) fail(err error) {
	p.once.Do(func() { p.err <- err })
}

func (p *pendingSlot) wait(ctx context.Context) (pendingOutcome, error) {
	select {
	case out := <-p.ch:
		return out, nil
	case err := <-p.err:
		return pendingOutcome{}, err
	case <-ctx.Done():
		return pendingOutcome{}, ctx.Err()
	}
}

// State is the non-serializable companion to Manifest: live SDK client
// handles, the active invocation mode, the in-flight call map, and the
// collector's task handle. It exists only between Initialize and the
// completion of Cleanup. See SPEC_FULL.md §3.
type State struct {
	manifest Manifest
	useQueue bool

	iamClient            iamAPI
	lambdaClient         lambdaAPI
	cloudwatchlogsClient cloudwatchlogsAPI
	sqsClient            sqsAPI
	snsClient            snsAPI
	s3Client             s3API
	stsClient            stsAPI

	// mu guards pending, collectorStop and collectorDone together: the
	// invariant "the pending map is non-empty iff the collector exists or
	// is about to be started" requires that registering a slot and
	// starting the collector happen under the same lock, and that the
	// collector clears its own handle in the same turn it observes the
	// map go empty.
	mu             sync.Mutex
	pending        map[string]*pendingSlot
	collectorDone  chan struct{}
	collectorStop  context.CancelFunc
	dlqDone        chan struct{}
	dlqStop        context.CancelFunc
}
