package store

// KeyPatchPolicy decides what Update does with id and parent-key fields in a patch.
type KeyPatchPolicy int

const (
	// KeyPatchIgnore drops id and parent-key fields from patches.
	KeyPatchIgnore KeyPatchPolicy = iota

	// KeyPatchReject fails an update whose patch changes id or the parent key.
	KeyPatchReject
)

// String returns the policy name used in configuration.
func (p KeyPatchPolicy) String() string {
	switch p {
	case KeyPatchReject:
		return "reject"
	default:
		return "ignore"
	}
}

// ParseKeyPatchPolicy parses "ignore" or "reject". Unknown values are reported
// with ok=false and map to KeyPatchIgnore.
func ParseKeyPatchPolicy(s string) (KeyPatchPolicy, bool) {
	switch s {
	case "ignore", "":
		return KeyPatchIgnore, true
	case "reject":
		return KeyPatchReject, true
	}
	return KeyPatchIgnore, false
}

// Config holds configuration for the Store.
type Config struct {
	// ValidateParents checks that menuId/categoryId name an existing parent
	// when a category or dish is created. When false the parent id is stored
	// without a lookup, but it must still be a JSON string: any other type is
	// rejected with ErrInvalidField and null is treated as absent, so the
	// record has no parent key.
	// Default: true
	ValidateParents bool

	// KeyPatch is the policy for id and parent-key fields in update patches.
	// Default: KeyPatchIgnore
	KeyPatch KeyPatchPolicy
}

// DefaultConfig returns strict parent validation and ignores key patches.
func DefaultConfig() Config {
	return Config{
		ValidateParents: true,
		KeyPatch:        KeyPatchIgnore,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.KeyPatch != KeyPatchIgnore && c.KeyPatch != KeyPatchReject {
		c.KeyPatch = KeyPatchIgnore
	}
}
