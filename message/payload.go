package message

import (
	"encoding/json"
	"fmt"

	"github.com/sage-x-project/meshnet/member"
)

// Action mirrors timeline.Action without importing the timeline package
// (which itself depends on message), avoiding an import cycle. The two
// enums are kept numerically identical; timeline.Action(p.Action) converts
// directly.
type Action int

const (
	ActionPermit Action = iota
	ActionAuthorize
	ActionRevoke
	ActionUndo
)

// AuthorizePayload is dispersy-authorize's body: grant `Action` on `Meta`
// to `Subject`.
type AuthorizePayload struct {
	Subject member.MID `json:"subject"`
	Meta    string     `json:"meta"`
	Action  Action     `json:"action"`
}

// RevokePayload is dispersy-revoke's body: identical shape to
// AuthorizePayload, the meta name alone (dispersy-authorize vs
// dispersy-revoke) disambiguates grant vs. revoke.
type RevokePayload = AuthorizePayload

// DynamicSettingsPayload is dispersy-dynamic-settings's body: change the
// effective resolution policy of `Meta`.
type DynamicSettingsPayload struct {
	Meta   string `json:"meta"`
	Policy int    `json:"policy"` // meta.ResolutionPolicy
}

// UndoPayload is dispersy-undo-own/dispersy-undo-other's body: invalidate
// the message created by `TargetMember` at `TargetGlobalTime`.
type UndoPayload struct {
	TargetMember     member.MID `json:"target_member"`
	TargetGlobalTime uint64     `json:"target_global_time"`
}

// DestroyDegree selects how thoroughly destroy-community tears a
// community down (spec §4.7).
type DestroyDegree int

const (
	DestroySoftKill DestroyDegree = iota
	DestroyHardKill
)

// DestroyCommunityPayload is dispersy-destroy-community's body.
type DestroyCommunityPayload struct {
	Degree DestroyDegree `json:"degree"`
}

// EncodePayload marshals a typed payload to the opaque bytes a Message
// carries. Payload byte layout is explicitly out of scope of the wire
// codec (spec §1); JSON keeps it simple and inspectable in logs/tests.
func EncodePayload(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("message: encode payload: %w", err)
	}
	return b, nil
}

// DecodePayload unmarshals a Message's opaque payload into a typed value.
func DecodePayload(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("message: decode payload: %w", err)
	}
	return nil
}
