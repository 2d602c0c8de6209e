package console

// requirementKind tags what a sidebar item demands of the permission set.
type requirementKind int

const (
	reqNone requirementKind = iota
	reqSingle
	reqAny
)

// Requirement is a tagged permission demand: none, a single name, or any of
// several names (logical OR, never AND).
type Requirement struct {
	kind  requirementKind
	names []string
}

// NoPermission marks an item visible to everyone.
func NoPermission() Requirement {
	return Requirement{kind: reqNone}
}

// Permission marks an item visible iff the named capability is held.
func Permission(name string) Requirement {
	return Requirement{kind: reqSingle, names: []string{name}}
}

// AnyPermission marks an item visible iff ANY of the named capabilities is
// held. An empty list behaves like NoPermission.
func AnyPermission(names ...string) Requirement {
	if len(names) == 0 {
		return Requirement{kind: reqNone}
	}
	return Requirement{kind: reqAny, names: names}
}

// Satisfied reports whether the permission set meets the requirement.
func (r Requirement) Satisfied(perms PermissionSet) bool {
	switch r.kind {
	case reqNone:
		return true
	case reqSingle:
		return perms.Has(r.names[0])
	default:
		for _, n := range r.names {
			if perms.Has(n) {
				return true
			}
		}
		return false
	}
}

// Item is one sidebar navigation entry.
type Item struct {
	Name     string
	Path     string
	Requires Requirement
}

// Active marks the item for the current route by exact path match.
func (it Item) Active(path string) bool {
	return it.Path == path
}

// VisibleItems filters the sidebar definition by the permission set,
// preserving order.
func VisibleItems(items []Item, perms PermissionSet) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Requires.Satisfied(perms) {
			out = append(out, it)
		}
	}
	return out
}
