package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cloudifyhq/provider-aws/internal/logging"
)

var dlqLog = logging.WithComponent("dlq-drain")

// startDLQDrain launches the fire-and-forget dead-letter drain loop
// described in SPEC_FULL.md §4.6: long-poll the DLQ and log every message
// that lands there, since a message on the DLQ means a response was
// produced but never claimed within maxReceiveCount deliveries — almost
// always a sign the instance was torn down mid-call. Never surfaces
// failures to a caller; Invoke has already returned by the time a message
// could dead-letter.
func (p *Provider) startDLQDrain(queueURL string) {
	ctx, cancel := context.WithCancel(context.Background())
	p.state.dlqStop = cancel
	p.state.dlqDone = make(chan struct{})
	go p.runDLQDrain(ctx, queueURL)
}

func (p *Provider) runDLQDrain(ctx context.Context, queueURL string) {
	defer close(p.state.dlqDone)

	for {
		out, err := p.state.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:              &queueURL,
			MaxNumberOfMessages:   collectorMaxMessages,
			WaitTimeSeconds:       collectorWaitSeconds,
			MessageAttributeNames: []string{"All"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			dlqLog.Warn("receive failed", "error", err)
			continue
		}

		var toDelete []sqstypes.DeleteMessageBatchRequestEntry
		for i, msg := range out.Messages {
			id := msgID(i)
			toDelete = append(toDelete, sqstypes.DeleteMessageBatchRequestEntry{Id: &id, ReceiptHandle: msg.ReceiptHandle})

			if isStopSentinel(msg) {
				p.deleteBatch(ctx, queueURL, toDelete)
				return
			}
			dlqLog.Warn("call response dead-lettered", "callId", messageAttribute(msg, callIDAttribute))
		}
		p.deleteBatch(ctx, queueURL, toDelete)
	}
}
