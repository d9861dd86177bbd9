package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/cloudifyhq/provider-aws/internal/logging"
)

// resourcePlanner drives the provisioning order described in SPEC_FULL.md
// §4.2. Every step runs to completion before the next one starts: role,
// log group and DLQ, then the function, then the queue-mode topology.
// Function creation is not overlapped with any other step. Within that
// order the request topic needs the feedback role, the response queue
// needs the DLQ's ARN, and the subscription needs both the topic and the
// function to exist.
type resourcePlanner struct {
	provider    *Provider
	nonce       string
	archivePath string
}

func (pl *resourcePlanner) provision(ctx context.Context) error {
	p := pl.provider
	opts := p.opts
	state := p.state

	functionName := "cloudify-" + pl.nonce
	roleName := executionRoleName(pl.nonce, opts)
	logGroupName := "/aws/lambda/" + functionName

	if err := pl.checkNameCollision(ctx, functionName); err != nil {
		return err
	}

	state.manifest.FunctionName = functionName
	state.manifest.RoleName = roleName
	state.manifest.RolePolicy = opts.rolePolicy()
	state.manifest.LogGroupName = logGroupName

	roleArn, err := p.ensureRole(ctx, roleName, trustPolicyDocument("lambda.amazonaws.com"), opts.PolicyArn)
	if err != nil {
		return newError(KindProvisioningError, err, "failed to provision execution role")
	}
	if opts.rolePolicy() == RolePolicyEphemeral {
		if err := p.attachInlineDenyCreateLogGroup(ctx, roleName); err != nil {
			return newError(KindProvisioningError, err, "failed to lock down execution role")
		}
	}

	if err := p.createLogGroup(ctx, logGroupName); err != nil {
		return newError(KindProvisioningError, err, "failed to provision log group")
	}

	var dlqArn string
	if opts.UseQueue {
		dlqName := "cloudify-dlq-" + pl.nonce
		dlqURL, arn, err := p.createDeadLetterQueue(ctx, dlqName)
		if err != nil {
			return newError(KindProvisioningError, err, "failed to provision dead-letter queue")
		}
		state.manifest.DeadLetterQueueURL = dlqURL
		dlqArn = arn
		p.startDLQDrain(dlqURL)
	}

	code, err := p.stageCode(ctx, pl.archivePath, opts, functionName)
	if err != nil {
		return err
	}

	functionArn, err := p.createFunction(ctx, createFunctionInput(functionName, roleArn, code, opts))
	if err != nil {
		return newError(KindProvisioningError, err, "failed to provision function")
	}

	if !opts.UseQueue {
		return nil
	}

	return pl.provisionQueueMode(ctx, functionName, functionArn, dlqArn, opts)
}

// provisionQueueMode wires the request/response topology on top of the
// function createFunction already provisioned: feedback role, response
// queue (redriving into the DLQ created earlier in provision), request
// topic, SNS invoke permission, and the subscription that ties the topic
// to the function. The DLQ and its drain loop are provisioned earlier, in
// provision, since spec.md §4.2's ordering puts them ahead of function
// creation.
func (pl *resourcePlanner) provisionQueueMode(ctx context.Context, functionName, functionArn, dlqArn string, opts Options) error {
	p := pl.provider
	state := p.state

	feedbackRoleName := cachedFeedbackRoleName
	if opts.rolePolicy() == RolePolicyEphemeral {
		feedbackRoleName = "cloudify-feedback-" + pl.nonce
	}
	feedbackRoleArn, err := p.ensureRole(ctx, feedbackRoleName, trustPolicyDocument("sns.amazonaws.com"), "arn:aws:iam::aws:policy/service-role/AmazonSNSRole")
	if err != nil {
		return newError(KindProvisioningError, err, "failed to provision SNS feedback role")
	}
	state.manifest.FeedbackRoleName = feedbackRoleName

	responseQueueName := "cloudify-responses-" + pl.nonce
	responseQueueURL, err := p.createResponseQueue(ctx, responseQueueName, dlqArn, opts.timeoutSeconds())
	if err != nil {
		return newError(KindProvisioningError, err, "failed to provision response queue")
	}
	state.manifest.ResponseQueueURL = responseQueueURL

	topicName := "cloudify-requests-" + pl.nonce
	topicArn, err := p.createRequestTopic(ctx, topicName, feedbackRoleArn)
	if err != nil {
		return newError(KindProvisioningError, err, "failed to provision request topic")
	}
	state.manifest.RequestTopicARN = topicArn

	if err := p.grantSNSInvoke(ctx, functionName, topicArn); err != nil {
		return newError(KindProvisioningError, err, "failed to grant SNS invoke permission")
	}

	subscriptionArn, err := p.subscribeFunction(ctx, topicArn, functionArn)
	if err != nil {
		return newError(KindProvisioningError, err, "failed to subscribe function to request topic")
	}
	state.manifest.SubscriptionARN = subscriptionArn

	logging.Info("queue-mode resources provisioned", "topic", topicArn, "responseQueue", responseQueueURL, "dlq", state.manifest.DeadLetterQueueURL)
	return nil
}

// checkNameCollision probes for a pre-existing function with the derived
// name, surfacing KindNameCollision instead of letting CreateFunction fail
// with an ambiguous conflict error. Name collisions are rare since the
// name is derived from a fresh UUID nonce, but the probe is cheap and the
// spec calls the case out explicitly.
func (pl *resourcePlanner) checkNameCollision(ctx context.Context, functionName string) error {
	_, err := pl.provider.state.lambdaClient.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: &functionName})
	if err == nil {
		return newError(KindNameCollision, nil, "function %s already exists", functionName)
	}
	return nil
}
