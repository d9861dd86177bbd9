package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cloudifyhq/provider-aws/internal/logging"
)

// createDeadLetterQueue creates the DLQ a response queue redrives into
// after its maxReceiveCount is exhausted. See SPEC_FULL.md §4.2.
func (p *Provider) createDeadLetterQueue(ctx context.Context, name string) (url, arn string, err error) {
	resp, err := p.state.sqsClient.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: &name})
	if err != nil {
		return "", "", fmt.Errorf("failed to create dead-letter queue %s: %w", name, err)
	}
	arn, err = p.queueArn(ctx, *resp.QueueUrl)
	if err != nil {
		return "", "", err
	}
	return *resp.QueueUrl, arn, nil
}

// createResponseQueue creates the response queue with a redrive policy
// pointing at the dead-letter queue, and a visibility timeout matching the
// instance's configured call timeout.
func (p *Provider) createResponseQueue(ctx context.Context, name, dlqArn string, visibilityTimeoutSeconds int32) (url string, err error) {
	redrive, err := json.Marshal(map[string]any{
		"deadLetterTargetArn": dlqArn,
		"maxReceiveCount":     5,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build redrive policy: %w", err)
	}

	resp, err := p.state.sqsClient.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: &name,
		Attributes: map[string]string{
			"VisibilityTimeout": fmt.Sprintf("%d", visibilityTimeoutSeconds),
			"RedrivePolicy":     string(redrive),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create response queue %s: %w", name, err)
	}
	return *resp.QueueUrl, nil
}

func (p *Provider) queueArn(ctx context.Context, queueURL string) (string, error) {
	out, err := p.state.sqsClient.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       &queueURL,
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch queue ARN for %s: %w", queueURL, err)
	}
	arn, ok := out.Attributes[string(sqstypes.QueueAttributeNameQueueArn)]
	if !ok {
		return "", fmt.Errorf("queue %s has no ARN attribute", queueURL)
	}
	return arn, nil
}

// createRequestTopic creates the SNS topic the function subscribes to and
// attaches the feedback role so SNS can deliver delivery-status logs. The
// attribute set is polled because a just-created role ARN is not
// immediately acceptable as a topic attribute (spec.md §4.2).
func (p *Provider) createRequestTopic(ctx context.Context, name, feedbackRoleArn string) (string, error) {
	resp, err := p.state.snsClient.CreateTopic(ctx, &sns.CreateTopicInput{Name: &name})
	if err != nil {
		return "", fmt.Errorf("failed to create request topic %s: %w", name, err)
	}
	topicArn := *resp.TopicArn

	err = pollUntilSuccess(ctx, fmt.Sprintf("topic %s to accept feedback role attribute", name), func(ctx context.Context) error {
		_, err := p.state.snsClient.SetTopicAttributes(ctx, &sns.SetTopicAttributesInput{
			TopicArn:       &topicArn,
			AttributeName:  awsString("LambdaSuccessFeedbackRoleArn"),
			AttributeValue: &feedbackRoleArn,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	_, err = p.state.snsClient.SetTopicAttributes(ctx, &sns.SetTopicAttributesInput{
		TopicArn:       &topicArn,
		AttributeName:  awsString("LambdaFailureFeedbackRoleArn"),
		AttributeValue: &feedbackRoleArn,
	})
	if err != nil {
		logging.Warn("failed to set failure feedback role attribute", "topic", topicArn, "error", err)
	}

	return topicArn, nil
}

// subscribeFunction subscribes the function to the request topic.
func (p *Provider) subscribeFunction(ctx context.Context, topicArn, functionArn string) (string, error) {
	resp, err := p.state.snsClient.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn: &topicArn,
		Protocol: awsString("lambda"),
		Endpoint: &functionArn,
	})
	if err != nil {
		return "", fmt.Errorf("failed to subscribe function to topic %s: %w", topicArn, err)
	}
	if resp.SubscriptionArn == nil {
		return "", nil
	}
	return *resp.SubscriptionArn, nil
}

func (p *Provider) unsubscribe(ctx context.Context, subscriptionArn string) {
	if subscriptionArn == "" {
		return
	}
	_, err := p.state.snsClient.Unsubscribe(ctx, &sns.UnsubscribeInput{SubscriptionArn: &subscriptionArn})
	if err != nil {
		logging.Warn("failed to unsubscribe", "subscription", subscriptionArn, "error", err)
	}
}

func (p *Provider) deleteTopic(ctx context.Context, topicArn string) {
	if topicArn == "" {
		return
	}
	_, err := p.state.snsClient.DeleteTopic(ctx, &sns.DeleteTopicInput{TopicArn: &topicArn})
	if err != nil {
		logging.Warn("failed to delete topic", "topic", topicArn, "error", err)
	}
}

func (p *Provider) deleteQueue(ctx context.Context, queueURL string) {
	if queueURL == "" {
		return
	}
	_, err := p.state.sqsClient.DeleteQueue(ctx, &sqs.DeleteQueueInput{QueueUrl: &queueURL})
	if err != nil {
		logging.Warn("failed to delete queue", "queue", queueURL, "error", err)
	}
}

// publishRequest publishes one call's payload to the request topic. The
// CallId rides inside the JSON body, where the function reads it back out
// to address its response, and also as a message attribute so the topic
// could be filtered on it without deserializing the body.
func (p *Provider) publishRequest(ctx context.Context, payload []byte, callID string) error {
	_, err := p.state.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: &p.state.manifest.RequestTopicARN,
		Message:  awsString(string(payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			callIDAttribute: {DataType: awsString("String"), StringValue: &callID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish request: %w", err)
	}
	return nil
}
