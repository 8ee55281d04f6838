package session

// Session is the descriptor persisted for every issued token pair.
// One session maps to exactly one token family for its whole lifetime.
//
// Session instances are value carriers; the registry treats them as
// immutable apart from LastActivity.
type Session struct {
	SessionID   string
	PrincipalID string
	FamilyID    string

	DeviceHash [32]byte
	IPHash     [32]byte

	CreatedAt    int64
	LastActivity int64
	ExpiresAt    int64
}
