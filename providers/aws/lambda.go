package aws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/cloudifyhq/provider-aws/internal/logging"
)

// createFunctionInput assembles the CreateFunctionInput for the function
// this instance owns, merging the planner's computed fields with the
// caller's ProviderSpecific overrides. See SPEC_FULL.md §4.2.
func createFunctionInput(functionName, roleArn string, code types.FunctionCode, opts Options) *lambda.CreateFunctionInput {
	env := map[string]string{}
	for k, v := range opts.ProviderSpecific.Environment {
		env[k] = v
	}

	input := &lambda.CreateFunctionInput{
		FunctionName: &functionName,
		Runtime:      types.Runtime(opts.runtime()),
		Handler:      awsString(opts.handler()),
		Role:         &roleArn,
		Code:         &code,
		Timeout:      awsInt32(opts.timeoutSeconds()),
		MemorySize:   awsInt32(opts.memorySize()),
		Layers:       opts.ProviderSpecific.Layers,
	}
	if len(env) > 0 {
		input.Environment = &types.Environment{Variables: env}
	}
	if opts.ProviderSpecific.Description != "" {
		input.Description = &opts.ProviderSpecific.Description
	}
	return input
}

func awsString(s string) *string { return &s }
func awsInt32(i int32) *int32    { return &i }

// createFunction creates the function and polls until it leaves the
// Pending state, since Lambda accepts CreateFunction before the function
// is actually invokable.
func (p *Provider) createFunction(ctx context.Context, input *lambda.CreateFunctionInput) (string, error) {
	resp, err := retryCreateFunction(ctx, p.state.lambdaClient, input)
	if err != nil {
		return "", fmt.Errorf("failed to create function %s: %w", *input.FunctionName, err)
	}

	err = pollUntilSuccess(ctx, fmt.Sprintf("function %s to become active", *input.FunctionName), func(ctx context.Context) error {
		out, err := p.state.lambdaClient.GetFunctionConfiguration(ctx, &lambda.GetFunctionConfigurationInput{
			FunctionName: input.FunctionName,
		})
		if err != nil {
			return err
		}
		if out.State == types.StatePending {
			return fmt.Errorf("function still pending")
		}
		if out.State == types.StateFailed {
			return fmt.Errorf("function entered Failed state: %s", derefString(out.StateReason))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return *resp.FunctionArn, nil
}

func retryCreateFunction(ctx context.Context, client lambdaAPI, input *lambda.CreateFunctionInput) (*lambda.CreateFunctionOutput, error) {
	var out *lambda.CreateFunctionOutput
	err := retryTransient(ctx, 5, func(ctx context.Context) error {
		resp, err := client.CreateFunction(ctx, input)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	return out, err
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// deleteFunction best-effort deletes the function; absence is not an
// error.
func (p *Provider) deleteFunction(ctx context.Context, functionName string) {
	_, err := p.state.lambdaClient.DeleteFunction(ctx, &lambda.DeleteFunctionInput{FunctionName: &functionName})
	if err != nil {
		logging.Warn("failed to delete function", "function", functionName, "error", err)
	}
}

// grantSNSInvoke allows the request topic to invoke the function. Used
// only in queue mode, once per instance.
func (p *Provider) grantSNSInvoke(ctx context.Context, functionName, topicArn string) error {
	statementID := "cloudify-sns-invoke"
	_, err := p.state.lambdaClient.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: &functionName,
		StatementId:  &statementID,
		Action:       awsString("lambda:InvokeFunction"),
		Principal:    awsString("sns.amazonaws.com"),
		SourceArn:    &topicArn,
	})
	if err != nil {
		return fmt.Errorf("failed to grant SNS invoke permission on %s: %w", functionName, err)
	}
	return nil
}

// invokeDirect implements synchronous direct-invoke dispatch (spec.md
// §5.2): one Lambda Invoke call, tail logs captured for diagnostics on
// failure, response body parsed as FunctionReturn.
func (p *Provider) invokeDirect(ctx context.Context, fn string, args []any) (InvokeResult, error) {
	payload, err := json.Marshal(FunctionCall{Name: fn, Args: args})
	if err != nil {
		return InvokeResult{}, newError(KindProvisioningError, err, "failed to marshal invocation payload")
	}

	out, err := p.state.lambdaClient.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: &p.state.manifest.FunctionName,
		Payload:      payload,
		LogType:      types.LogTypeTail,
	})
	if err != nil {
		return InvokeResult{}, newError(KindRemoteInvocationFailure, err, "failed to invoke function %s", p.state.manifest.FunctionName)
	}

	if out.LogResult != nil {
		if tail, decErr := base64.StdEncoding.DecodeString(*out.LogResult); decErr == nil {
			logging.Debug("invocation log tail", "function", p.state.manifest.FunctionName, "tail", string(tail))
		}
	}

	if out.FunctionError != nil {
		var ret FunctionReturn
		if err := json.Unmarshal(out.Payload, &ret); err == nil && ret.Type == "error" {
			return invokeResultFromReturn(ret, out), nil
		}
		logging.Warn("function reported an error with an undecodable payload", "function", p.state.manifest.FunctionName, "functionError", *out.FunctionError)
		return InvokeResult{Err: &RemoteError{Name: *out.FunctionError, Message: string(out.Payload)}, RawResponse: out}, nil
	}

	var ret FunctionReturn
	if err := json.Unmarshal(out.Payload, &ret); err != nil {
		return InvokeResult{}, newError(KindRemoteInvocationFailure, err, "failed to decode function response")
	}

	return invokeResultFromReturn(ret, out), nil
}

func invokeResultFromReturn(ret FunctionReturn, rawResponse any) InvokeResult {
	if ret.Type == "error" {
		return InvokeResult{Err: remoteErrorFromOutcome(ret.Value), RawResponse: rawResponse}
	}
	return InvokeResult{Value: ret.Value.Result, RawResponse: rawResponse}
}
