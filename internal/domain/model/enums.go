package model

// CollectionStatus represents where an item sits in the collection.
type CollectionStatus string

const (
	StatusOwned   CollectionStatus = "owned"
	StatusOrdered CollectionStatus = "ordered"
	StatusWished  CollectionStatus = "wished"
)

// Company role names as the remote service spells them.
const (
	RoleManufacturer = "Manufacturer"
	RoleDistributor  = "Distributor"
	RoleReleaser     = "Releaser"
)

// Person role names as the remote service spells them.
const (
	RoleSculptor    = "Sculptor"
	RoleIllustrator = "Illustrator"
	RolePainter     = "Painter"
)

// CredentialTier is the storage lifetime class for the session credential.
type CredentialTier string

const (
	// TierEphemeral lives only for the current operation; never persisted.
	TierEphemeral CredentialTier = "ephemeral"
	// TierSession lives until logout or process restart.
	TierSession CredentialTier = "session"
	// TierPersistent survives restarts; encrypted at rest.
	TierPersistent CredentialTier = "persistent"
)

// ValidTier reports whether t is one of the three known tiers.
func ValidTier(t CredentialTier) bool {
	switch t {
	case TierEphemeral, TierSession, TierPersistent:
		return true
	}
	return false
}
