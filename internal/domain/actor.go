package domain

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

// Actor is the authenticated identity behind a request. It is passed
// explicitly into every operation instead of living in ambient state so
// callers (and tests) can act as arbitrary identities.
type Actor struct {
	ID   string
	Role Role
}
