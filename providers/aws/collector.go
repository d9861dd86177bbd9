package aws

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cloudifyhq/provider-aws/internal/logging"
)

const (
	collectorWaitSeconds = 20
	collectorMaxMessages = 10
)

var collectorLog = logging.WithComponent("collector")

// runCollector is the single long-running response-collector task named in
// SPEC_FULL.md §4.5: long-poll the response queue, correlate each message
// to a pending call by its CallId attribute, hand the decoded FunctionReturn
// to that call's pending slot, and delete the message. It stops itself the
// moment it observes the pending map empty, clearing its own handle under
// the same lock so a subsequent Invoke knows to start a fresh one, and it
// also exits immediately on a stop sentinel message, which teardown uses to
// unblock a collector that is parked in ReceiveMessage with nothing pending.
func (p *Provider) runCollector(ctx context.Context) {
	defer close(p.state.collectorDone)

	for {
		out, err := p.state.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:              &p.state.manifest.ResponseQueueURL,
			MaxNumberOfMessages:   collectorMaxMessages,
			WaitTimeSeconds:       collectorWaitSeconds,
			MessageAttributeNames: []string{"All"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			collectorLog.Warn("receive failed", "error", err)
			continue
		}

		stopped := p.handleCollectorBatch(ctx, out.Messages)
		if stopped {
			return
		}

		if p.maybeStopCollector() {
			return
		}
	}
}

// handleCollectorBatch processes one batch of messages, returning true if a
// stop sentinel was observed. The whole batch is deleted up front, before
// any message is dispatched, per spec.md §4.5 step 2: once a message has
// been handed to the collector it must never be relitigated on redelivery,
// even if the process crashes partway through this batch.
func (p *Provider) handleCollectorBatch(ctx context.Context, messages []sqstypes.Message) bool {
	var toDelete []sqstypes.DeleteMessageBatchRequestEntry
	for i, msg := range messages {
		id := msgID(i)
		toDelete = append(toDelete, sqstypes.DeleteMessageBatchRequestEntry{Id: &id, ReceiptHandle: msg.ReceiptHandle})
	}
	p.deleteBatch(ctx, p.state.manifest.ResponseQueueURL, toDelete)

	for _, msg := range messages {
		if isStopSentinel(msg) {
			return true
		}
		p.dispatchCollectedMessage(msg)
	}

	return false
}

func (p *Provider) dispatchCollectedMessage(msg sqstypes.Message) {
	callID := messageAttribute(msg, callIDAttribute)
	if callID == "" {
		collectorLog.Warn("response message missing CallId attribute, dropping")
		return
	}

	var ret FunctionReturn
	if msg.Body != nil {
		if err := json.Unmarshal([]byte(*msg.Body), &ret); err != nil {
			collectorLog.Warn("failed to decode response message", "callId", callID, "error", err)
			return
		}
	}

	p.state.mu.Lock()
	slot, ok := p.state.pending[callID]
	delete(p.state.pending, callID)
	p.state.mu.Unlock()
	if !ok {
		collectorLog.Warn("response message for unknown or already-resolved call", "callId", callID)
		return
	}
	slot.complete(ret, msg)
}

// maybeStopCollector clears the collector handle, under state.mu, iff the
// pending map is empty. Returns true if the collector should exit.
func (p *Provider) maybeStopCollector() bool {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	if len(p.state.pending) > 0 {
		return false
	}
	p.state.collectorStop = nil
	return true
}

func (p *Provider) deleteBatch(ctx context.Context, queueURL string, entries []sqstypes.DeleteMessageBatchRequestEntry) {
	if len(entries) == 0 {
		return
	}
	_, err := p.state.sqsClient.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: &queueURL,
		Entries:  entries,
	})
	if err != nil {
		collectorLog.Warn("failed to delete processed messages", "queue", queueURL, "error", err)
	}
}

func isStopSentinel(msg sqstypes.Message) bool {
	return messageAttribute(msg, stopAttributeName) == stopAttributeValue
}

func messageAttribute(msg sqstypes.Message, name string) string {
	attr, ok := msg.MessageAttributes[name]
	if !ok || attr.StringValue == nil {
		return ""
	}
	return *attr.StringValue
}

func msgID(i int) string {
	return strconv.Itoa(i)
}

// sendStopSentinel publishes the stop sentinel message teardown uses to
// unblock a collector or DLQ drain loop parked in a long poll.
func sendStopSentinel(ctx context.Context, client sqsAPI, queueURL string) error {
	_, err := client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &queueURL,
		MessageBody: awsString(stopSentinelBody),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			stopAttributeName: {DataType: awsString("String"), StringValue: awsString(stopAttributeValue)},
		},
	})
	return err
}
