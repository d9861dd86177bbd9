package aws

import (
	"encoding/json"
	"fmt"
)

// Manifest is the flat, serializable record naming every cloud object one
// instance owns. It is a superset of what currently exists in the cloud —
// teardown must tolerate any subset of these fields being unset, and
// tolerate the resources they name already being gone. See SPEC_FULL.md §3.
type Manifest struct {
	FunctionName string     `json:"functionName"`
	RoleName     string     `json:"roleName"`
	RolePolicy   RolePolicy `json:"rolePolicy"`
	LogGroupName string     `json:"logGroupName"`
	Region       string     `json:"region"`

	// Present only when queue mode is active.
	RequestTopicARN     string `json:"requestTopicArn,omitempty"`
	ResponseQueueURL    string `json:"responseQueueUrl,omitempty"`
	DeadLetterQueueURL  string `json:"deadLetterQueueUrl,omitempty"`
	SubscriptionARN     string `json:"subscriptionArn,omitempty"`
	FeedbackRoleName    string `json:"feedbackRoleName,omitempty"`

	// CodeBucket is set iff the packaged archive was staged through S3
	// rather than passed inline (SPEC_FULL.md §2 addition).
	CodeBucket string `json:"codeBucket,omitempty"`
	CodeKey    string `json:"codeKey,omitempty"`

	// AccountID is informational only — captured from the STS sanity
	// check, never required for teardown correctness.
	AccountID string `json:"accountId,omitempty"`
}

// Serialize encodes the manifest the way GetResourceList hands it to a
// caller for persistence.
func (m *Manifest) Serialize() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal resource manifest: %w", err)
	}
	return string(b), nil
}

// ParseManifest reconstructs a Manifest from its JSON string form, as
// consumed by CleanupResources. Region is mandatory; every other field may
// be absent.
func ParseManifest(s string) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, newError(KindMalformedManifest, err, "manifest is not valid JSON")
	}
	if m.Region == "" {
		return nil, newError(KindMalformedManifest, nil, "manifest is missing region")
	}
	return &m, nil
}
