package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/cloudifyhq/provider-aws/internal/logging"
)

// logRetentionDays keeps ephemeral function log groups short-lived; a
// one-shot function's logs are useful for a day, not a month.
const logRetentionDays = 1

// createLogGroup creates /aws/lambda/<functionName> ahead of the function
// itself, with a short retention policy, and with the deny-create-log-group
// role policy in place this is the only path by which the group comes into
// existence. See SPEC_FULL.md §4.2.
func (p *Provider) createLogGroup(ctx context.Context, logGroupName string) error {
	_, err := p.state.cloudwatchlogsClient.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: &logGroupName,
	})
	if err != nil {
		return fmt.Errorf("failed to create log group %s: %w", logGroupName, err)
	}

	retention := int32(logRetentionDays)
	_, err = p.state.cloudwatchlogsClient.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    &logGroupName,
		RetentionInDays: &retention,
	})
	if err != nil {
		return fmt.Errorf("failed to set retention policy on log group %s: %w", logGroupName, err)
	}
	return nil
}

func (p *Provider) deleteLogGroup(ctx context.Context, logGroupName string) {
	if logGroupName == "" {
		return
	}
	_, err := p.state.cloudwatchlogsClient.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
		LogGroupName: &logGroupName,
	})
	if err != nil {
		logging.Warn("failed to delete log group", "logGroup", logGroupName, "error", err)
	}
}
