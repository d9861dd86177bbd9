package aws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// invokeViaQueue implements queue-mode dispatch (spec.md §5.3): register
// the pending slot before publishing, so a response that arrives before
// the publish call returns can never be dropped; start the collector if
// it is not already running; publish; wait.
func (p *Provider) invokeViaQueue(ctx context.Context, fn string, args []any) (InvokeResult, error) {
	callID := uuid.New().String()

	slot := newPendingSlot()
	p.state.mu.Lock()
	p.state.pending[callID] = slot
	p.ensureCollectorStartedLocked()
	p.state.mu.Unlock()

	payload, err := json.Marshal(FunctionCall{
		Name:             fn,
		Args:             args,
		CallID:           callID,
		ResponseQueueURL: p.state.manifest.ResponseQueueURL,
	})
	if err != nil {
		p.clearPending(callID)
		return InvokeResult{}, newError(KindProvisioningError, err, "failed to marshal invocation payload")
	}

	if err := p.publishRequest(ctx, payload, callID); err != nil {
		p.clearPending(callID)
		return InvokeResult{}, newError(KindRemoteInvocationFailure, err, "failed to publish call %s", callID)
	}

	out, err := slot.wait(ctx)
	p.clearPending(callID)
	if err != nil {
		return InvokeResult{}, err
	}
	return invokeResultFromReturn(out.ret, out.raw), nil
}

func (p *Provider) clearPending(callID string) {
	p.state.mu.Lock()
	delete(p.state.pending, callID)
	p.state.mu.Unlock()
}

// ensureCollectorStartedLocked starts the response collector if it is not
// already running. Must be called with state.mu held, per the invariant
// documented on State.mu.
func (p *Provider) ensureCollectorStartedLocked() {
	if p.state.collectorStop != nil {
		return
	}
	collectorCtx, cancel := context.WithCancel(context.Background())
	p.state.collectorStop = cancel
	p.state.collectorDone = make(chan struct{})
	go p.runCollector(collectorCtx)
}
