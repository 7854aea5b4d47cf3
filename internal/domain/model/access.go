package model

type Role string

const (
	RoleNone        Role = ""
	RoleContributor Role = "contributor"
	RoleOwner       Role = "owner"
)

type Action string

const (
	ActionView        Action = "view"
	ActionAppend      Action = "append"
	ActionRemoveOwn   Action = "removeOwn"
	ActionRemoveAny   Action = "removeAny"
	ActionRename      Action = "rename"
	ActionDelete      Action = "delete"
	ActionGrantAccess Action = "grantAccess"
)

func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionAppend, ActionRemoveOwn, ActionRemoveAny, ActionRename, ActionDelete, ActionGrantAccess:
		return true
	}
	return false
}

// RoleOf resolves the role of userID on p. The owner role comes from the
// playlist record itself, never from a grant row.
func RoleOf(userID int64, p *Playlist, granted bool) Role {
	switch {
	case p != nil && p.OwnerID == userID:
		return RoleOwner
	case granted:
		return RoleContributor
	default:
		return RoleNone
	}
}

// Permits reports whether r may perform a.
func (r Role) Permits(a Action) bool {
	switch r {
	case RoleOwner:
		return true
	case RoleContributor:
		return a == ActionView || a == ActionAppend || a == ActionRemoveOwn
	default:
		return false
	}
}
