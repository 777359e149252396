package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner           = "owner"
	RoleAdmin           = "admin"
	RoleAgent           = "agent"
	RoleAnalyst         = "analyst"
	RoleSuperAdmin      = "super_admin"
	RoleNetworkOperator = "network_operator" // hidden: only CarrierAdmins lists it
)

// Role groups used by the /v1 route chains.
var (
	// Viewers can read queues, calls, campaigns and results.
	Viewers = []string{RoleOwner, RoleAdmin, RoleAgent, RoleAnalyst}
	// CallOperators can place and end calls and run campaigns.
	CallOperators = []string{RoleOwner, RoleAdmin, RoleAgent}
	// CarrierAdmins manage numbers and carrier selection.
	CarrierAdmins = []string{RoleOwner, RoleAdmin, RoleNetworkOperator}
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }
