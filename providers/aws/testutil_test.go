package aws

import (
	"context"
	"testing"
)

// testClients bundles one fake of each service, so a test can reach into
// whichever ones it cares about without constructing State by hand every
// time.
type testClients struct {
	iam    *fakeIAM
	lambda *fakeLambda
	logs   *fakeCloudWatchLogs
	sqs    *fakeSQS
	sns    *fakeSNS
	s3     *fakeS3
	sts    *fakeSTS
}

func newTestClients() *testClients {
	return &testClients{
		iam:    newFakeIAM(),
		lambda: newFakeLambda(),
		logs:   &fakeCloudWatchLogs{},
		sqs:    newFakeSQS(),
		sns:    &fakeSNS{},
		s3:     &fakeS3{},
		sts:    newFakeSTS(),
	}
}

// installFakeClientFactory points the package-level client constructor at
// clients for the duration of t, so a test can drive Initialize and
// CleanupResources — which otherwise build real AWS SDK clients — against
// fakes. Restored automatically when t finishes.
func installFakeClientFactory(t *testing.T, clients *testClients) {
	t.Helper()
	previous := clientFactory
	clientFactory = func(context.Context, string) (iamAPI, lambdaAPI, cloudwatchlogsAPI, sqsAPI, snsAPI, s3API, stsAPI, error) {
		return clients.iam, clients.lambda, clients.logs, clients.sqs, clients.sns, clients.s3, clients.sts, nil
	}
	t.Cleanup(func() { clientFactory = previous })
}

func newProviderWithClients(c *testClients, m Manifest) *Provider {
	return &Provider{state: &State{
		manifest:             m,
		iamClient:            c.iam,
		lambdaClient:         c.lambda,
		cloudwatchlogsClient: c.logs,
		sqsClient:            c.sqs,
		snsClient:            c.sns,
		s3Client:             c.s3,
		stsClient:            c.sts,
		pending:              make(map[string]*pendingSlot),
	}}
}
