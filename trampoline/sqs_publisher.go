package trampoline

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	cloudifyaws "github.com/cloudifyhq/provider-aws/providers/aws"
)

// SQSPublisher adapts *sqs.Client to the SNSPublisher interface
// QueueTrampoline depends on. This is the implementation a real function
// handler would wire in; production code never constructs one directly
// from this repository, since the handler itself is out of scope.
type SQSPublisher struct {
	Client *sqs.Client
}

func (p SQSPublisher) SendResponse(ctx context.Context, queueURL string, body []byte, callID string) error {
	bodyStr := string(body)
	_, err := p.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &queueURL,
		MessageBody: &bodyStr,
		MessageAttributes: map[string]types.MessageAttributeValue{
			cloudifyaws.CallIDAttribute: {
				DataType:    strPtr("String"),
				StringValue: &callID,
			},
		},
	})
	return err
}

func strPtr(s string) *string { return &s }
