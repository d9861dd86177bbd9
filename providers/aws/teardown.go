package aws

import (
	"context"
	"time"
)

// teardownGraceTimeout bounds how long teardown waits for the collector
// and DLQ drain loops to notice their stop sentinel before moving on
// regardless — a stuck loop must never block the whole teardown.
const teardownGraceTimeout = 5 * time.Second

// teardown implements the reverse-order, idempotent, best-effort deletion
// sequence from SPEC_FULL.md §4.7. Every step tolerates the resource it
// targets already being gone; a failure in one step never prevents the
// rest from running. Pending calls observe ErrCancelled rather than
// hanging forever.
func (p *Provider) teardown(ctx context.Context) {
	m := p.state.manifest

	if m.SubscriptionARN != "" {
		p.unsubscribe(ctx, m.SubscriptionARN)
	}

	p.cancelPendingCalls()
	p.stopBackgroundLoops(ctx)

	p.deleteFunction(ctx, m.FunctionName)
	p.deleteLogGroup(ctx, m.LogGroupName)

	if m.RolePolicy == RolePolicyEphemeral {
		if m.RoleName != "" {
			p.deleteRole(ctx, m.RoleName)
		}
		if m.FeedbackRoleName != "" {
			p.deleteRole(ctx, m.FeedbackRoleName)
		}
	}

	p.deleteTopic(ctx, m.RequestTopicARN)
	p.deleteQueue(ctx, m.ResponseQueueURL)
	p.deleteQueue(ctx, m.DeadLetterQueueURL)
	p.deleteStagedArchive(ctx, m.CodeBucket, m.CodeKey)
}

// cancelPendingCalls fails every call still waiting on a pending slot with
// ErrCancelled, so Invoke callers currently blocked in slot.wait return
// promptly instead of hanging on a collector that is about to stop.
func (p *Provider) cancelPendingCalls() {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	for callID, slot := range p.state.pending {
		slot.fail(ErrCancelled)
		delete(p.state.pending, callID)
	}
}

// stopBackgroundLoops signals the collector and DLQ drain loops to exit and
// waits, with a bound, for them to actually do so. A stop sentinel message
// unblocks a loop parked in ReceiveMessage; cancelling its context unblocks
// one that is not.
func (p *Provider) stopBackgroundLoops(ctx context.Context) {
	p.state.mu.Lock()
	collectorStop, collectorDone := p.state.collectorStop, p.state.collectorDone
	dlqStop, dlqDone := p.state.dlqStop, p.state.dlqDone
	p.state.collectorStop, p.state.collectorDone = nil, nil
	p.state.dlqStop, p.state.dlqDone = nil, nil
	p.state.mu.Unlock()

	if collectorStop != nil {
		_ = sendStopSentinel(ctx, p.state.sqsClient, p.state.manifest.ResponseQueueURL)
		waitOrTimeout(collectorDone, teardownGraceTimeout)
		collectorStop()
	}
	if dlqStop != nil {
		_ = sendStopSentinel(ctx, p.state.sqsClient, p.state.manifest.DeadLetterQueueURL)
		waitOrTimeout(dlqDone, teardownGraceTimeout)
		dlqStop()
	}
}

func waitOrTimeout(done <-chan struct{}, timeout time.Duration) {
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
