package aws

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// The fakes below follow this codebase's lineage's mock-client convention:
// one small in-memory struct per AWS service, call counters for test
// assertions, error-injection fields for failure-path tests. They satisfy
// the narrow xxxAPI interfaces in clients.go, never the full SDK client
// surface.

type fakeSQS struct {
	mu       sync.Mutex
	messages map[string][]sqstypes.Message
	notify   map[string]chan struct{}

	deletedCount   int
	sentCount      int
	sendErr        error
	createQueueErr error
	deletedQueues  []string

	// lastCreateAttributes records the Attributes of the most recent
	// CreateQueue call.
	lastCreateAttributes map[string]string
}

func newFakeSQS() *fakeSQS {
	return &fakeSQS{messages: map[string][]sqstypes.Message{}, notify: map[string]chan struct{}{}}
}

func (f *fakeSQS) push(queueURL string, msg sqstypes.Message) {
	f.mu.Lock()
	f.messages[queueURL] = append(f.messages[queueURL], msg)
	ch := f.notify[queueURL]
	f.mu.Unlock()
	if ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (f *fakeSQS) CreateQueue(_ context.Context, in *sqs.CreateQueueInput, _ ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	if f.createQueueErr != nil {
		return nil, f.createQueueErr
	}
	f.mu.Lock()
	f.lastCreateAttributes = in.Attributes
	f.mu.Unlock()
	url := "https://sqs.test/" + *in.QueueName
	return &sqs.CreateQueueOutput{QueueUrl: &url}, nil
}

func (f *fakeSQS) GetQueueAttributes(_ context.Context, in *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return &sqs.GetQueueAttributesOutput{
		Attributes: map[string]string{
			string(sqstypes.QueueAttributeNameQueueArn): "arn:aws:sqs:us-east-1:123456789012:fake-" + *in.QueueUrl,
		},
	}, nil
}

func (f *fakeSQS) DeleteQueue(_ context.Context, in *sqs.DeleteQueueInput, _ ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error) {
	f.mu.Lock()
	f.deletedQueues = append(f.deletedQueues, *in.QueueUrl)
	f.mu.Unlock()
	return &sqs.DeleteQueueOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	url := *in.QueueUrl
	for {
		f.mu.Lock()
		msgs := f.messages[url]
		if len(msgs) > 0 {
			n := int(in.MaxNumberOfMessages)
			if n <= 0 || n > len(msgs) {
				n = len(msgs)
			}
			batch := msgs[:n]
			f.messages[url] = msgs[n:]
			f.mu.Unlock()
			return &sqs.ReceiveMessageOutput{Messages: batch}, nil
		}
		if f.notify[url] == nil {
			f.notify[url] = make(chan struct{}, 1)
		}
		ch := f.notify[url]
		f.mu.Unlock()

		select {
		case <-ch:
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (f *fakeSQS) DeleteMessageBatch(_ context.Context, in *sqs.DeleteMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error) {
	f.mu.Lock()
	f.deletedCount += len(in.Entries)
	f.mu.Unlock()
	return &sqs.DeleteMessageBatchOutput{}, nil
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.mu.Lock()
	f.sentCount++
	f.mu.Unlock()

	f.push(*in.QueueUrl, sqstypes.Message{
		Body:              in.MessageBody,
		MessageAttributes: in.MessageAttributes,
	})
	return &sqs.SendMessageOutput{}, nil
}

type fakeSNS struct {
	mu            sync.Mutex
	publishCalls  int
	publishErr    error
	unsubscribed  []string
	deletedTopics []string

	// onPublish, when set, runs after a successful Publish with the CallId
	// message attribute and the message body, so a test can simulate the
	// function's response arriving on the response queue.
	onPublish func(callID, body string)
}

func (f *fakeSNS) CreateTopic(_ context.Context, in *sns.CreateTopicInput, _ ...func(*sns.Options)) (*sns.CreateTopicOutput, error) {
	arn := "arn:aws:sns:us-east-1:123456789012:" + *in.Name
	return &sns.CreateTopicOutput{TopicArn: &arn}, nil
}

func (f *fakeSNS) SetTopicAttributes(context.Context, *sns.SetTopicAttributesInput, ...func(*sns.Options)) (*sns.SetTopicAttributesOutput, error) {
	return &sns.SetTopicAttributesOutput{}, nil
}

func (f *fakeSNS) Subscribe(_ context.Context, _ *sns.SubscribeInput, _ ...func(*sns.Options)) (*sns.SubscribeOutput, error) {
	arn := "arn:aws:sns:us-east-1:123456789012:sub-fake"
	return &sns.SubscribeOutput{SubscriptionArn: &arn}, nil
}

func (f *fakeSNS) Unsubscribe(_ context.Context, in *sns.UnsubscribeInput, _ ...func(*sns.Options)) (*sns.UnsubscribeOutput, error) {
	f.mu.Lock()
	f.unsubscribed = append(f.unsubscribed, *in.SubscriptionArn)
	f.mu.Unlock()
	return &sns.UnsubscribeOutput{}, nil
}

func (f *fakeSNS) DeleteTopic(_ context.Context, in *sns.DeleteTopicInput, _ ...func(*sns.Options)) (*sns.DeleteTopicOutput, error) {
	f.mu.Lock()
	f.deletedTopics = append(f.deletedTopics, *in.TopicArn)
	f.mu.Unlock()
	return &sns.DeleteTopicOutput{}, nil
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.mu.Lock()
	f.publishCalls++
	err := f.publishErr
	onPublish := f.onPublish
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if onPublish != nil {
		var callID, body string
		if attr, ok := in.MessageAttributes[callIDAttribute]; ok && attr.StringValue != nil {
			callID = *attr.StringValue
		}
		if in.Message != nil {
			body = *in.Message
		}
		onPublish(callID, body)
	}

	id := "msg-fake"
	return &sns.PublishOutput{MessageId: &id}, nil
}

type fakeIAM struct {
	mu               sync.Mutex
	roles            map[string]string // name -> arn
	deletedRole      string
	attachedPolicies []string
}

func newFakeIAM() *fakeIAM { return &fakeIAM{roles: map[string]string{}} }

func (f *fakeIAM) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	arn, ok := f.roles[*in.RoleName]
	if !ok {
		return nil, &notFoundError{"role not found"}
	}
	name := *in.RoleName
	return &iam.GetRoleOutput{Role: &iamtypes.Role{RoleName: &name, Arn: &arn}}, nil
}

func (f *fakeIAM) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	arn := "arn:aws:iam::123456789012:role/" + *in.RoleName
	f.mu.Lock()
	f.roles[*in.RoleName] = arn
	f.mu.Unlock()
	name := *in.RoleName
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{RoleName: &name, Arn: &arn}}, nil
}

func (f *fakeIAM) AttachRolePolicy(_ context.Context, in *iam.AttachRolePolicyInput, _ ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	f.mu.Lock()
	f.attachedPolicies = append(f.attachedPolicies, *in.PolicyArn)
	f.mu.Unlock()
	return &iam.AttachRolePolicyOutput{}, nil
}

func (f *fakeIAM) PutRolePolicy(context.Context, *iam.PutRolePolicyInput, ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	return &iam.PutRolePolicyOutput{}, nil
}

func (f *fakeIAM) ListAttachedRolePolicies(context.Context, *iam.ListAttachedRolePoliciesInput, ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error) {
	return &iam.ListAttachedRolePoliciesOutput{}, nil
}

func (f *fakeIAM) DetachRolePolicy(context.Context, *iam.DetachRolePolicyInput, ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error) {
	return &iam.DetachRolePolicyOutput{}, nil
}

func (f *fakeIAM) ListRolePolicies(context.Context, *iam.ListRolePoliciesInput, ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error) {
	return &iam.ListRolePoliciesOutput{}, nil
}

func (f *fakeIAM) DeleteRolePolicy(context.Context, *iam.DeleteRolePolicyInput, ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error) {
	return &iam.DeleteRolePolicyOutput{}, nil
}

func (f *fakeIAM) DeleteRole(_ context.Context, in *iam.DeleteRoleInput, _ ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	f.mu.Lock()
	f.deletedRole = *in.RoleName
	delete(f.roles, *in.RoleName)
	f.mu.Unlock()
	return &iam.DeleteRoleOutput{}, nil
}

type notFoundError struct{ msg string }

func (e *notFoundError) Error() string { return e.msg }

type fakeLambda struct {
	mu              sync.Mutex
	existingNames   map[string]bool
	alwaysCollide   bool
	invokeResponse  []byte
	invokeFuncError *string
	createCalls     int
	deleteCalls     int
}

func newFakeLambda() *fakeLambda {
	return &fakeLambda{existingNames: map[string]bool{}}
}

func (f *fakeLambda) CreateFunction(_ context.Context, in *lambda.CreateFunctionInput, _ ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error) {
	f.mu.Lock()
	f.createCalls++
	f.mu.Unlock()
	arn := "arn:aws:lambda:us-east-1:123456789012:function:" + *in.FunctionName
	return &lambda.CreateFunctionOutput{FunctionArn: &arn, FunctionName: in.FunctionName}, nil
}

func (f *fakeLambda) GetFunctionConfiguration(_ context.Context, in *lambda.GetFunctionConfigurationInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error) {
	return &lambda.GetFunctionConfigurationOutput{State: lambdatypes.StateActive}, nil
}

func (f *fakeLambda) GetFunction(_ context.Context, in *lambda.GetFunctionInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error) {
	f.mu.Lock()
	exists := f.alwaysCollide || f.existingNames[*in.FunctionName]
	f.mu.Unlock()
	if !exists {
		return nil, &notFoundError{"function not found"}
	}
	return &lambda.GetFunctionOutput{}, nil
}

func (f *fakeLambda) DeleteFunction(context.Context, *lambda.DeleteFunctionInput, ...func(*lambda.Options)) (*lambda.DeleteFunctionOutput, error) {
	f.mu.Lock()
	f.deleteCalls++
	f.mu.Unlock()
	return &lambda.DeleteFunctionOutput{}, nil
}

func (f *fakeLambda) AddPermission(context.Context, *lambda.AddPermissionInput, ...func(*lambda.Options)) (*lambda.AddPermissionOutput, error) {
	return &lambda.AddPermissionOutput{}, nil
}

func (f *fakeLambda) Invoke(_ context.Context, in *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	out := &lambda.InvokeOutput{Payload: f.invokeResponse}
	if f.invokeFuncError != nil {
		out.FunctionError = f.invokeFuncError
	}
	return out, nil
}

type fakeCloudWatchLogs struct {
	created, deleted int
	retentionDays    int32
}

func (f *fakeCloudWatchLogs) CreateLogGroup(context.Context, *cloudwatchlogs.CreateLogGroupInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	f.created++
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

func (f *fakeCloudWatchLogs) PutRetentionPolicy(_ context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	if in.RetentionInDays != nil {
		f.retentionDays = *in.RetentionInDays
	}
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func (f *fakeCloudWatchLogs) DeleteLogGroup(context.Context, *cloudwatchlogs.DeleteLogGroupInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteLogGroupOutput, error) {
	f.deleted++
	return &cloudwatchlogs.DeleteLogGroupOutput{}, nil
}

type fakeS3 struct {
	putCalls, deleteCalls int
}

func (f *fakeS3) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putCalls++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(context.Context, *s3.DeleteObjectInput, ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleteCalls++
	return &s3.DeleteObjectOutput{}, nil
}

type fakeSTS struct {
	mu                sync.Mutex
	account           string
	err               error
	transientFailures int
	calls             int
}

func newFakeSTS() *fakeSTS { return &fakeSTS{account: "123456789012"} }

func (f *fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	f.mu.Lock()
	f.calls++
	if f.transientFailures > 0 {
		f.transientFailures--
		f.mu.Unlock()
		return nil, &smithy.GenericAPIError{Code: "ThrottlingException", Message: "rate exceeded"}
	}
	if f.err != nil {
		err := f.err
		f.mu.Unlock()
		return nil, err
	}
	account := f.account
	f.mu.Unlock()
	return &sts.GetCallerIdentityOutput{Account: &account}, nil
}
