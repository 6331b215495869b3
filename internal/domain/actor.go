package domain

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
	RoleTenant  Role = "tenant"
)

// Actor is the authorization context for one request: identity, roles and
// branch assignment, resolved once by the auth middleware and passed
// explicitly into services.
type Actor struct {
	ID     int64
	Roles  []Role
	Branch string // branch code for branch-scoped staff, empty for unscoped roles
}

// System is the actor used by internal flows such as the payment
// confirmation adapter and the settlement coordinator. It is unscoped.
func System() Actor {
	return Actor{ID: 0, Roles: []Role{RoleAdmin}}
}

func (a Actor) HasRole(r Role) bool {
	for _, have := range a.Roles {
		if have == r {
			return true
		}
	}
	return false
}

func (a Actor) IsStaff() bool {
	return a.HasRole(RoleAdmin) || a.HasRole(RoleManager) || a.HasRole(RoleStaff)
}

// BranchScoped reports whether the actor only sees data of its own branch.
// Admins are unscoped; managers and staff are scoped to their assignment.
func (a Actor) BranchScoped() bool {
	return !a.HasRole(RoleAdmin)
}

func (a Actor) CanAccessBranch(branch string) bool {
	if !a.BranchScoped() {
		return true
	}
	return a.Branch != "" && a.Branch == branch
}
