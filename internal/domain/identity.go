package domain

// Role names issued by the marketplace's identity provider.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Identity is the authenticated caller extracted from a bearer token.
type Identity struct {
	UserID uint
	Role   string
}
