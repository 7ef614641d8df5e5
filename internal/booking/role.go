package booking

type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
)

var knownRoles = map[Role]bool{
	RoleMember: true,
	RoleAdmin:  true,
}

func (r Role) Valid() bool { return knownRoles[r] }

// Elevated reports whether the role may act on resources it does not own.
func (r Role) Elevated() bool { return r == RoleAdmin }
