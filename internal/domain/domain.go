package domain

import "strings"

// Role represents the capability level of an authenticated actor.
type Role string

const (
	RoleGuest   Role = "guest"
	RoleMember  Role = "member"
	RoleOfficer Role = "officer"
	RoleAdmin   Role = "admin"
)

// CanDecide reports whether the role may approve or reject tick claims and
// perform other privileged mutations (bulk removal, raid deletion, loot
// reassignment).
func (r Role) CanDecide() bool {
	return r == RoleOfficer || r == RoleAdmin
}

// CanRequestFor reports whether an actor playing character actorID may submit
// a tick request for character targetID. Members request for themselves only;
// officers and admins may request on behalf of anyone.
func (r Role) CanRequestFor(actorID, targetID uint64) bool {
	if actorID == targetID {
		return r == RoleMember || r.CanDecide()
	}
	return r.CanDecide()
}

// Classes playable in the game, lowercased. Character class values are
// validated against this list on roster writes.
var classes = []string{
	"bard", "beastlord", "berserker", "cleric", "druid", "enchanter",
	"magician", "monk", "necromancer", "paladin", "ranger", "rogue",
	"shadowknight", "shaman", "warrior", "wizard",
}

// Classes returns the list of valid character classes.
func Classes() []string {
	out := make([]string, len(classes))
	copy(out, classes)
	return out
}

// ValidClass reports whether className is a known class, ignoring case and
// surrounding whitespace.
func ValidClass(className string) bool {
	normalized := strings.ToLower(strings.TrimSpace(className))
	for _, c := range classes {
		if c == normalized {
			return true
		}
	}
	return false
}
