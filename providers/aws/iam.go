package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/cloudifyhq/provider-aws/internal/logging"
)

// trustPolicyDocument builds the single-statement sts:AssumeRole trust
// policy for a service principal. One document per principal is all this
// provider ever needs: lambda.amazonaws.com for the execution role,
// sns.amazonaws.com for the feedback role. See SPEC_FULL.md §4.3.
func trustPolicyDocument(servicePrincipal string) string {
	doc := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Effect":    "Allow",
				"Principal": map[string]string{"Service": servicePrincipal},
				"Action":    "sts:AssumeRole",
			},
		},
	}
	b, _ := json.Marshal(doc)
	return string(b)
}

// denyCreateLogGroupPolicy denies logs:CreateLogGroup so the function
// cannot silently auto-create a log group without the retention policy the
// planner sets up separately. See SPEC_FULL.md §4.2.
func denyCreateLogGroupPolicy() string {
	doc := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Effect":   "Deny",
				"Action":   "logs:CreateLogGroup",
				"Resource": "*",
			},
		},
	}
	b, _ := json.Marshal(doc)
	return string(b)
}

// ensureRole implements the create-or-reuse subroutine shared by the
// execution role and the feedback role (spec.md §4.3): look the role up;
// if present, return its ARN; otherwise create it with the given trust
// policy and attach policyArn if set. Lookup errors are swallowed —
// absence and transient failure are indistinguishable here, and a role
// that exists but failed to look up will surface loudly when CreateRole
// is attempted next.
func (p *Provider) ensureRole(ctx context.Context, roleName, trustPolicy, policyArn string) (string, error) {
	get, err := p.state.iamClient.GetRole(ctx, &iam.GetRoleInput{RoleName: &roleName})
	if err == nil {
		return *get.Role.Arn, nil
	}

	create, err := p.state.iamClient.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 &roleName,
		AssumeRolePolicyDocument: &trustPolicy,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create role %s: %w", roleName, err)
	}

	if policyArn != "" {
		_, err := p.state.iamClient.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  &roleName,
			PolicyArn: &policyArn,
		})
		if err != nil {
			return "", fmt.Errorf("failed to attach policy %s to role %s: %w", policyArn, roleName, err)
		}
	}

	return *create.Role.Arn, nil
}

// attachInlineDenyCreateLogGroup attaches the inline deny policy described
// in spec.md §4.2.
func (p *Provider) attachInlineDenyCreateLogGroup(ctx context.Context, roleName string) error {
	policyName := "deny-create-log-group"
	doc := denyCreateLogGroupPolicy()
	_, err := p.state.iamClient.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       &roleName,
		PolicyName:     &policyName,
		PolicyDocument: &doc,
	})
	if err != nil {
		return fmt.Errorf("failed to attach inline deny-create-log-group policy: %w", err)
	}
	return nil
}

// executionRoleName derives the name used for the function's execution
// role, honoring the ephemeral/cached split from spec.md §4.2.
func executionRoleName(nonce string, opts Options) string {
	switch opts.rolePolicy() {
	case RolePolicyCached:
		if opts.RoleName != "" {
			return opts.RoleName
		}
		return cachedExecutionRoleName
	default:
		return "cloudify-role-" + nonce
	}
}

// deleteRole best-effort tears down an ephemeral role: detach every
// attached managed policy, delete every inline policy, then delete the
// role itself. Each step is best-effort — absence of the role, or of any
// one policy, is not an error. Never called for cached roles.
func (p *Provider) deleteRole(ctx context.Context, roleName string) {
	attached, err := p.state.iamClient.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{RoleName: &roleName})
	if err == nil {
		for _, pol := range attached.AttachedPolicies {
			_, err := p.state.iamClient.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
				RoleName:  &roleName,
				PolicyArn: pol.PolicyArn,
			})
			if err != nil {
				logging.Warn("failed to detach policy from role", "role", roleName, "policy", *pol.PolicyArn, "error", err)
			}
		}
	} else {
		logging.Warn("failed to list attached policies for role", "role", roleName, "error", err)
	}

	inline, err := p.state.iamClient.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{RoleName: &roleName})
	if err == nil {
		for _, name := range inline.PolicyNames {
			n := name
			_, err := p.state.iamClient.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
				RoleName:   &roleName,
				PolicyName: &n,
			})
			if err != nil {
				logging.Warn("failed to delete inline policy from role", "role", roleName, "policy", n, "error", err)
			}
		}
	} else {
		logging.Warn("failed to list inline policies for role", "role", roleName, "error", err)
	}

	_, err = p.state.iamClient.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: &roleName})
	if err != nil {
		logging.Warn("failed to delete role", "role", roleName, "error", err)
	}
}
