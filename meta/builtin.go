package meta

// Well-known meta names. Every community auto-registers these regardless of
// which application metas it layers on top, mirroring the always-present
// dispersy message kinds the sync and timeline subsystems depend on.
const (
	NameIdentity          = "dispersy-identity"
	NameMissingIdentity   = "dispersy-missing-identity"
	NameMissingMessage    = "dispersy-missing-message"
	NameMissingSequence   = "dispersy-missing-sequence"
	NameMissingProof      = "dispersy-missing-proof"
	NameIntroductionReq   = "dispersy-introduction-request"
	NameIntroductionResp  = "dispersy-introduction-response"
	NameSignatureRequest  = "dispersy-signature-request"
	NameSignatureResponse = "dispersy-signature-response"
	NameAuthorize         = "dispersy-authorize"
	NameRevoke            = "dispersy-revoke"
	NameDynamicSettings   = "dispersy-dynamic-settings"
	NameUndoOwn           = "dispersy-undo-own"
	NameUndoOther         = "dispersy-undo-other"
	NameDestroyCommunity  = "dispersy-destroy-community"
)

// Builtins returns the Meta definitions every community registers at load
// time, before any application-defined Meta is added.
func Builtins() []Meta {
	return []Meta{
		New(NameIdentity, AuthSingleMember, ResolutionPublic,
			Distribution{Kind: DistributionLastN, N: 1}, DestinationCommunity, DirectionASC),
		New(NameMissingIdentity, AuthSingleMember, ResolutionPublic,
			Distribution{Kind: DistributionFullSync}, DestinationTargeted, DirectionASC),
		New(NameMissingMessage, AuthSingleMember, ResolutionPublic,
			Distribution{Kind: DistributionFullSync}, DestinationTargeted, DirectionASC),
		New(NameMissingSequence, AuthSingleMember, ResolutionPublic,
			Distribution{Kind: DistributionFullSync}, DestinationTargeted, DirectionASC),
		New(NameMissingProof, AuthSingleMember, ResolutionPublic,
			Distribution{Kind: DistributionFullSync}, DestinationTargeted, DirectionASC),
		New(NameIntroductionReq, AuthSingleMember, ResolutionPublic,
			Distribution{Kind: DistributionFullSync}, DestinationTargeted, DirectionASC),
		New(NameIntroductionResp, AuthSingleMember, ResolutionPublic,
			Distribution{Kind: DistributionFullSync}, DestinationTargeted, DirectionASC),
		New(NameSignatureRequest, AuthDoubleMember, ResolutionPublic,
			Distribution{Kind: DistributionFullSync}, DestinationTargeted, DirectionASC),
		New(NameSignatureResponse, AuthDoubleMember, ResolutionPublic,
			Distribution{Kind: DistributionFullSync}, DestinationTargeted, DirectionASC),
		New(NameAuthorize, AuthSingleMember, ResolutionPublic,
			Distribution{Kind: DistributionFullSyncWithSequence}, DestinationCommunity, DirectionASC),
		New(NameRevoke, AuthSingleMember, ResolutionPublic,
			Distribution{Kind: DistributionFullSyncWithSequence}, DestinationCommunity, DirectionASC),
		New(NameDynamicSettings, AuthSingleMember, ResolutionPublic,
			Distribution{Kind: DistributionFullSyncWithSequence}, DestinationCommunity, DirectionASC),
		New(NameUndoOwn, AuthSingleMember, ResolutionPublic,
			Distribution{Kind: DistributionFullSyncWithSequence}, DestinationCommunity, DirectionASC),
		New(NameUndoOther, AuthSingleMember, ResolutionLinear,
			Distribution{Kind: DistributionFullSyncWithSequence}, DestinationCommunity, DirectionASC),
		func() Meta {
			m := New(NameDestroyCommunity, AuthSingleMember, ResolutionLinear,
				Distribution{Kind: DistributionFullSync}, DestinationCommunity, DirectionASC)
			m.Priority = 255
			return m
		}(),
	}
}
