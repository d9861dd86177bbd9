package aws

import "time"

// RolePolicy selects how the IAM role manager handles the execution role's
// lifetime.
type RolePolicy string

const (
	// RolePolicyEphemeral derives a fresh role name from the instance nonce
	// and deletes it at teardown.
	RolePolicyEphemeral RolePolicy = "ephemeral"
	// RolePolicyCached reuses a fixed, well-known role name across
	// instances and never deletes it.
	RolePolicyCached RolePolicy = "cached"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultMemorySize = 128

	// largeArchiveThreshold is the point at which the resource planner
	// stages the packaged archive through S3 instead of passing it inline
	// as Code.ZipFile. Kept well under Lambda's 50MB direct-upload limit.
	largeArchiveThreshold = 10 << 20 // 10MiB

	cachedFeedbackRoleName = "cloudify-sns-feedback-role"
	cachedExecutionRoleName = "cloudify-cached-execution-role"
)

// ProviderSpecific is the passthrough bag of CreateFunctionInput fields this
// core does not otherwise compute. It is merged in last, so it can
// override runtime/environment defaults but never the fields the planner
// itself is responsible for (function name, role, code).
type ProviderSpecific struct {
	Runtime     string
	Handler     string
	Environment map[string]string
	Layers      []string
	Description string
}

// Options configures one provider instance. See SPEC_FULL.md §4.2 / §9.
type Options struct {
	// Region targets all SDK clients. Empty means "use the SDK's default
	// resolution chain".
	Region string

	// PolicyArn is the managed policy attached to the execution role.
	PolicyArn string

	// RolePolicy selects ephemeral vs. cached role handling.
	RolePolicy RolePolicy

	// RoleName overrides the role name. Ignored when RolePolicy is
	// RolePolicyEphemeral.
	RoleName string

	// Timeout is both the function's execution timeout and the response
	// queue's visibility timeout; it is truncated to whole seconds.
	Timeout time.Duration

	// MemorySize is the function memory, in MB.
	MemorySize int32

	// UseQueue selects queue-mode dispatch over direct-invoke dispatch.
	UseQueue bool

	// CodeBucket is the S3 bucket used to stage archives over
	// largeArchiveThreshold. Required only when that threshold is crossed.
	CodeBucket string

	// ProviderSpecific carries passthrough CreateFunctionInput overrides.
	ProviderSpecific ProviderSpecific
}

func (o Options) timeoutSeconds() int32 {
	if o.Timeout <= 0 {
		return int32(defaultTimeout / time.Second)
	}
	return int32(o.Timeout / time.Second)
}

func (o Options) memorySize() int32 {
	if o.MemorySize <= 0 {
		return defaultMemorySize
	}
	return o.MemorySize
}

func (o Options) rolePolicy() RolePolicy {
	if o.RolePolicy == "" {
		return RolePolicyEphemeral
	}
	return o.RolePolicy
}

func (o Options) runtime() string {
	if o.ProviderSpecific.Runtime == "" {
		return "nodejs20.x"
	}
	return o.ProviderSpecific.Runtime
}

func (o Options) handler() string {
	if o.ProviderSpecific.Handler == "" {
		return "trampoline.handler"
	}
	return o.ProviderSpecific.Handler
}
