package collection

// Name identifies one tracked entity collection. The same logical names key
// the local cache entries, the broadcast channels and the push event names.
type Name string

const (
	Tournaments        Name = "tournaments"
	Teams              Name = "teams"
	Matches            Name = "matches"
	PendingSubmissions Name = "pendingSubmissions"
	ScoreAdjustments   Name = "scoreAdjustments"
	Managers           Name = "managers"
	AuditLogs          Name = "auditLogs"
)

// All returns every tracked collection in a stable order.
func All() []Name {
	return []Name{
		Tournaments,
		Teams,
		Matches,
		PendingSubmissions,
		ScoreAdjustments,
		Managers,
		AuditLogs,
	}
}

// MapShaped reports whether the collection's state is a map keyed by logical
// id. The rest hold append-ordered lists.
func (n Name) MapShaped() bool {
	switch n {
	case Tournaments, Teams, Managers:
		return true
	default:
		return false
	}
}

func (n Name) String() string {
	return string(n)
}

// Singular is the entity name used as the payload key on wire events, e.g.
// "team" for teams.
func (n Name) Singular() string {
	switch n {
	case Tournaments:
		return "tournament"
	case Teams:
		return "team"
	case Matches:
		return "match"
	case PendingSubmissions:
		return "pendingSubmission"
	case ScoreAdjustments:
		return "scoreAdjustment"
	case Managers:
		return "manager"
	case AuditLogs:
		return "auditLog"
	default:
		return string(n)
	}
}

// Valid reports whether n is one of the tracked collections.
func (n Name) Valid() bool {
	switch n {
	case Tournaments, Teams, Matches, PendingSubmissions, ScoreAdjustments, Managers, AuditLogs:
		return true
	default:
		return false
	}
}
