package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/cloudifyhq/provider-aws/internal/logging"
	"github.com/google/uuid"
)

// Provider is one cloudify AWS provider instance: the façade named in
// SPEC_FULL.md §4.1. A zero Provider is not usable — construct with New,
// call Initialize once, then Invoke any number of times, then Cleanup
// exactly once. Provider is not safe for concurrent Initialize/Cleanup
// calls; concurrent Invoke calls after Initialize are fine.
type Provider struct {
	opts  Options
	state *State
}

// New constructs a provider instance bound to opts. No network calls are
// made until Initialize.
func New(opts Options) *Provider {
	return &Provider{opts: opts}
}

// clientFactory constructs the AWS SDK clients a Provider or
// CleanupResources call needs. It is a package variable, not a plain
// function, so tests can substitute a fake-client constructor for the
// duration of a single test.
var clientFactory = newClientSet

func newClientSet(ctx context.Context, region string) (iamAPI, lambdaAPI, cloudwatchlogsAPI, sqsAPI, snsAPI, s3API, stsAPI, error) {
	var optFns []func(*config.LoadOptions) error
	if region != "" {
		optFns = append(optFns, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, nil, nil, nil, nil, nil, nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return iam.NewFromConfig(cfg),
		lambda.NewFromConfig(cfg),
		cloudwatchlogs.NewFromConfig(cfg),
		sqs.NewFromConfig(cfg),
		sns.NewFromConfig(cfg),
		s3.NewFromConfig(cfg),
		sts.NewFromConfig(cfg),
		nil
}

// Initialize provisions every resource the instance needs and returns once
// the function is ready to receive calls. archivePath names the packaged
// function code on disk. See SPEC_FULL.md §2 and §4.2.
func (p *Provider) Initialize(ctx context.Context, archivePath string) error {
	iamClient, lambdaClient, logsClient, sqsClient, snsClient, s3Client, stsClient, err := clientFactory(ctx, p.opts.Region)
	if err != nil {
		return newError(KindProvisioningError, err, "failed to construct AWS clients")
	}

	var identity *sts.GetCallerIdentityOutput
	err = retryTransient(ctx, 5, func(ctx context.Context) error {
		out, err := stsClient.GetCallerIdentity(ctx, nil)
		if err != nil {
			return err
		}
		identity = out
		return nil
	})
	if err != nil {
		return newError(KindProvisioningError, err, "failed to verify AWS credentials")
	}
	accountID := ""
	if identity.Account != nil {
		accountID = *identity.Account
	}

	nonce := uuid.New().String()[:8]

	state := &State{
		useQueue:             p.opts.UseQueue,
		iamClient:            iamClient,
		lambdaClient:         lambdaClient,
		cloudwatchlogsClient: logsClient,
		sqsClient:            sqsClient,
		snsClient:            snsClient,
		s3Client:             s3Client,
		stsClient:            stsClient,
		pending:              make(map[string]*pendingSlot),
	}
	state.manifest.Region = p.opts.Region
	state.manifest.AccountID = accountID

	p.state = state

	plan := &resourcePlanner{provider: p, nonce: nonce, archivePath: archivePath}
	if err := plan.provision(ctx); err != nil {
		logging.Warn("provisioning failed, rolling back partially created resources", "error", err)
		p.teardown(ctx)
		p.state = nil
		return err
	}

	logging.Info("function ready", "function", state.manifest.FunctionName, "queueMode", state.useQueue)
	return nil
}

// Invoke dispatches one call and waits for its result. See SPEC_FULL.md §5.
func (p *Provider) Invoke(ctx context.Context, fn string, args []any) (InvokeResult, error) {
	if p.state == nil {
		return InvokeResult{}, newError(KindProvisioningError, nil, "provider is not initialized")
	}
	if p.state.useQueue {
		return p.invokeViaQueue(ctx, fn, args)
	}
	return p.invokeDirect(ctx, fn, args)
}

// Cleanup tears down every resource this instance owns. Safe to call more
// than once; safe to call concurrently with in-flight Invoke calls, which
// observe ErrCancelled. See SPEC_FULL.md §4.7.
func (p *Provider) Cleanup(ctx context.Context) error {
	if p.state == nil {
		return nil
	}
	p.teardown(ctx)
	p.state = nil
	return nil
}

// GetResourceList returns the serialized manifest of every resource this
// instance currently owns, for external persistence ahead of a later
// CleanupResources call.
func (p *Provider) GetResourceList() (string, error) {
	if p.state == nil {
		return "", newError(KindProvisioningError, nil, "provider is not initialized")
	}
	return p.state.manifest.Serialize()
}

// CleanupResources tears down the resources named by a previously persisted
// manifest, without requiring a live Provider instance. See SPEC_FULL.md
// §4.7.
func CleanupResources(ctx context.Context, manifestJSON string) error {
	manifest, err := ParseManifest(manifestJSON)
	if err != nil {
		return err
	}

	iamClient, lambdaClient, logsClient, sqsClient, snsClient, s3Client, stsClient, err := clientFactory(ctx, manifest.Region)
	if err != nil {
		return newError(KindProvisioningError, err, "failed to construct AWS clients")
	}

	state := &State{
		manifest:             *manifest,
		useQueue:             manifest.ResponseQueueURL != "",
		iamClient:            iamClient,
		lambdaClient:         lambdaClient,
		cloudwatchlogsClient: logsClient,
		sqsClient:            sqsClient,
		snsClient:            snsClient,
		s3Client:             s3Client,
		stsClient:            stsClient,
		pending:              make(map[string]*pendingSlot),
	}
	p := &Provider{state: state}
	p.teardown(ctx)
	return nil
}
