package visit

// Action is something a caller may attempt on a visit.
type Action string

const (
	ActionView          Action = "view"
	ActionCreate        Action = "create"
	ActionEdit          Action = "edit"
	ActionApprove       Action = "approve"
	ActionReject        Action = "reject"
	ActionSubmit        Action = "submit"
	ActionRepost        Action = "repost"
	ActionRequestRepost Action = "request_repost"
	ActionViewCounts    Action = "view_counts"
	ActionExport        Action = "export"
)

// Guard names reported in AuthorizationError.
const (
	GuardRole        = "role"
	GuardDesignation = "designation"
	GuardIdentity    = "identity"
	GuardOverdue     = "overdue"
)

// Decision is the outcome of CanPerform.
type Decision struct {
	Allowed bool
	Guard   string
	Reason  string
}

// Err returns nil for an allow and an AuthorizationError for a deny.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &AuthorizationError{Guard: d.Guard, Reason: d.Reason}
}

var allow = Decision{Allowed: true}

func denied(guard, reason string) Decision {
	return Decision{Guard: guard, Reason: reason}
}

// adminOnly actions are never granted to the User role, District Collector included.
var adminOnly = map[Action]bool{
	ActionCreate:  true,
	ActionEdit:    true,
	ActionApprove: true,
	ActionReject:  true,
}

// CanPerform decides whether s may take action on v. It has no side effects.
// v may be nil for actions that are not tied to one visit (create, view_counts).
func CanPerform(action Action, s Session, v *Visit) Decision {
	switch s.Role {
	case RoleAdmin:
		return allow
	case RoleUser:
	default:
		return denied(GuardRole, "unrecognized role")
	}

	if adminOnly[action] {
		return denied(GuardRole, "only an admin may "+string(action)+" visits")
	}

	if action == ActionViewCounts {
		return allow
	}

	if v == nil {
		return denied(GuardDesignation, "no visit to authorize against")
	}

	assigned := v.PostedTo == s.Designation
	switch action {
	case ActionView, ActionExport:
		if assigned || s.Designation == DesignationCollector {
			return allow
		}
	case ActionSubmit, ActionRepost, ActionRequestRepost:
		if !assigned {
			break
		}
		if action == ActionSubmit && v.Status == StatusOverdue {
			return denied(GuardOverdue, "visit is overdue; request a repost instead")
		}
		return allow
	default:
		return denied(GuardRole, "unknown action "+string(action))
	}
	return denied(GuardDesignation, "visit is posted to "+string(v.PostedTo))
}

// ScopeFor returns the designation a listing must be restricted to for s, or
// "" when s sees every designation.
func ScopeFor(s Session) Designation {
	if s.HasGlobalView() {
		return ""
	}
	return s.Designation
}
