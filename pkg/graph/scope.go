package graph

// Scope controls whether a reference participates in dependency-cycle
// detection and backlink bookkeeping.
type Scope int

const (
	// ScopeNormal references participate in cycle detection and
	// backlink maintenance.
	ScopeNormal Scope = iota
	// ScopeOutside references maintain backlinks but are excluded from
	// in-list cycle checks.
	ScopeOutside
	// ScopeHidden references are invisible to both cycle detection and
	// backlink maintenance.
	ScopeHidden
)

// String returns the scope name.
func (s Scope) String() string {
	switch s {
	case ScopeNormal:
		return "normal"
	case ScopeOutside:
		return "outside"
	case ScopeHidden:
		return "hidden"
	default:
		return "unknown"
	}
}
