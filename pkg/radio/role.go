package radio

// Role is the role the wireless interface currently plays.
type Role uint8

const (
	// RoleUnset means no transition has been made yet by this controller,
	// or the controller was torn down. It is never reported inside a
	// provisioning session.
	RoleUnset Role = iota

	// RoleAP means the interface is hosting the setup access point.
	RoleAP

	// RoleSTA means the interface is a client of a user network.
	RoleSTA

	// RoleTransitioning means a transition is in progress.
	RoleTransitioning
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleUnset:
		return "UNSET"
	case RoleAP:
		return "AP"
	case RoleSTA:
		return "STA"
	case RoleTransitioning:
		return "TRANSITIONING"
	default:
		return "UNKNOWN"
	}
}

// Settled reports whether the role is one of AP or STA.
func (r Role) Settled() bool {
	return r == RoleAP || r == RoleSTA
}
