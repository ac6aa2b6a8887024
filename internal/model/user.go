package model

// Roles carried in the access token's "role" claim.
const (
	RoleGuest = "guest"
	RoleHost  = "host"
)

// Actor is the authenticated caller as supplied by the identity provider.
// The booking engine trusts UserID as guestId / cancelledBy; accounts and
// sessions are managed outside this service.
//
// Fields:
//  UserID – subject of the access token.
//  Role   – guest or host.
type Actor struct {
	UserID uint64
	Role   string
}

// IsHost reports whether the actor acts as a host.
func (a Actor) IsHost() bool { return a.Role == RoleHost }
