package rbac

// Action represents a CRUD action requested against a resource
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Permission holds the four CRUD flags for one (role, resource) pair.
// The zero value is the default record: deny everything.
type Permission struct {
	Read   bool `json:"read"`
	Create bool `json:"create"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

// Allows reports whether the permission grants the given action.
func (p Permission) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return p.Read
	case ActionCreate:
		return p.Create
	case ActionUpdate:
		return p.Update
	case ActionDelete:
		return p.Delete
	default:
		return false
	}
}

// Merge combines permission records with a logical OR: a principal with
// multiple roles gets the most permissive union. The merge is associative
// and commutative.
func Merge(perms ...Permission) Permission {
	var merged Permission
	for _, p := range perms {
		merged.Read = merged.Read || p.Read
		merged.Create = merged.Create || p.Create
		merged.Update = merged.Update || p.Update
		merged.Delete = merged.Delete || p.Delete
	}
	return merged
}

// Role is a named role assignable to principals.
type Role struct {
	ID          int64  `json:"id"`
	Tag         string `json:"tag"`
	Description string `json:"description"`
	Rank        int    `json:"rank"`
	Active      bool   `json:"active"`
}

// Group is the permission-scoping unit keyed by resource tag (the table
// name of the protected entity). Groups are provisioned lazily the first
// time a resource tag is referenced; this core never deletes one.
type Group struct {
	ID          int64  `json:"id"`
	Tag         string `json:"tag"`
	Description string `json:"description"`
}
