package aws

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cloudifyhq/provider-aws/internal/logging"
)

func bytesReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}

// stageCode reads the packaged archive from disk and decides how to hand
// it to CreateFunction: inline as Code.ZipFile below largeArchiveThreshold,
// or staged through S3 above it, since Lambda's direct ZipFile upload path
// tops out well short of what a dependency-heavy function can produce.
// See SPEC_FULL.md §2 and §4.2.
func (p *Provider) stageCode(ctx context.Context, archivePath string, opts Options, functionName string) (types.FunctionCode, error) {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return types.FunctionCode{}, fmt.Errorf("failed to read function archive %s: %w", archivePath, err)
	}

	if len(data) <= largeArchiveThreshold {
		return types.FunctionCode{ZipFile: data}, nil
	}

	if opts.CodeBucket == "" {
		return types.FunctionCode{}, newError(KindProvisioningError, nil, "archive %s is %d bytes, over the inline threshold, but no CodeBucket was configured", archivePath, len(data))
	}

	key := "cloudify/" + functionName + ".zip"
	_, err = p.state.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &opts.CodeBucket,
		Key:    &key,
		Body:   bytesReader(data),
	})
	if err != nil {
		return types.FunctionCode{}, fmt.Errorf("failed to stage archive to s3://%s/%s: %w", opts.CodeBucket, key, err)
	}

	p.state.manifest.CodeBucket = opts.CodeBucket
	p.state.manifest.CodeKey = key

	return types.FunctionCode{S3Bucket: &opts.CodeBucket, S3Key: &key}, nil
}

// deleteStagedArchive removes the S3 object created by stageCode, if any.
func (p *Provider) deleteStagedArchive(ctx context.Context, bucket, key string) {
	if bucket == "" || key == "" {
		return
	}
	_, err := p.state.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		logging.Warn("failed to delete staged archive", "bucket", bucket, "key", key, "error", err)
	}
}
