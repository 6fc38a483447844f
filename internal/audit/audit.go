// Package audit renders and parses the append-only audit log's message
// format. Each privileged action writes one AuditEntry whose message embeds
// bracketed reference tokens:
//
//	un[name]  acting user's character
//	fn[name]  from/source character
//	tn[name]  to/destination character
//	rn[name]  raid
//	in[name]  item
//
// Consumers parse these tokens to turn a message into linked references, so
// the format is a stable micro-format: do not change it without a migration
// plan for every consumer.
package audit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bnc-guild/attendance-engine/internal/store/schema"
)

// Ref names a referenced entity. A zero ID with an empty name renders
// nothing.
type Ref struct {
	ID   uint64
	Name string
}

// Event is the typed input for one audit entry.
type Event struct {
	Type  schema.AuditEntryType
	Actor Ref
	// From is the character the action is about (fn token)
	From Ref
	// To is the destination character for reassignments (tn token)
	To   Ref
	Raid Ref
	Item Ref
	// Ticks are the tick indexes the action covers, where applicable
	Ticks []int
	// OnBehalf marks a request submitted by an officer for another character
	OnBehalf bool
}

// Render builds the human-readable message for the event.
func Render(ev Event) string {
	switch ev.Type {
	case schema.AuditTickRequested:
		msg := fmt.Sprintf("un[%s] requested %s for rn[%s]",
			ev.Actor.Name, tickList(ev.Ticks), ev.Raid.Name)
		if ev.OnBehalf {
			msg += fmt.Sprintf(" on behalf of fn[%s]", ev.From.Name)
		}
		return msg
	case schema.AuditTickApproved:
		return fmt.Sprintf("un[%s] approved %s for fn[%s] in rn[%s]",
			ev.Actor.Name, tickList(ev.Ticks), ev.From.Name, ev.Raid.Name)
	case schema.AuditTickRejected:
		return fmt.Sprintf("un[%s] rejected %s for fn[%s] in rn[%s]",
			ev.Actor.Name, tickList(ev.Ticks), ev.From.Name, ev.Raid.Name)
	case schema.AuditTicksRemoved:
		return fmt.Sprintf("un[%s] removed %s for fn[%s] and their boxes in rn[%s]",
			ev.Actor.Name, tickList(ev.Ticks), ev.From.Name, ev.Raid.Name)
	case schema.AuditLootReassigned:
		return fmt.Sprintf("un[%s] reassigned in[%s] from fn[%s] to tn[%s]",
			ev.Actor.Name, ev.Item.Name, ev.From.Name, ev.To.Name)
	case schema.AuditRaidDeleted:
		return fmt.Sprintf("un[%s] deleted raid rn[%s]", ev.Actor.Name, ev.Raid.Name)
	default:
		return fmt.Sprintf("un[%s] performed %s", ev.Actor.Name, ev.Type)
	}
}

// Entry builds the persistable audit row for the event, with the typed
// references the consumers join against.
func Entry(guildID uint64, ev Event) schema.AuditEntry {
	entry := schema.AuditEntry{
		GuildID: guildID,
		ActorID: ev.Actor.ID,
		Type:    ev.Type,
		Message: Render(ev),
	}
	if ev.From.ID != 0 {
		id := ev.From.ID
		entry.FromCharacterID = &id
	}
	if ev.To.ID != 0 {
		id := ev.To.ID
		entry.ToCharacterID = &id
	}
	if ev.Raid.ID != 0 {
		id := ev.Raid.ID
		entry.RaidID = &id
	}
	if ev.Item.ID != 0 {
		id := ev.Item.ID
		entry.ItemID = &id
	}
	return entry
}

// tickList formats tick indexes as "tick 3" or "ticks 0, 1, 2".
func tickList(ticks []int) string {
	if len(ticks) == 1 {
		return "tick " + strconv.Itoa(ticks[0])
	}
	parts := make([]string, len(ticks))
	for i, t := range ticks {
		parts[i] = strconv.Itoa(t)
	}
	return "ticks " + strings.Join(parts, ", ")
}

// TokenKind identifies a parsed message segment.
type TokenKind string

const (
	// TokenText is plain message text between references
	TokenText TokenKind = "text"
	// TokenActor is the acting user's character (un)
	TokenActor TokenKind = "un"
	// TokenFrom is the from/source character (fn)
	TokenFrom TokenKind = "fn"
	// TokenTo is the to/destination character (tn)
	TokenTo TokenKind = "tn"
	// TokenRaid is a raid reference (rn)
	TokenRaid TokenKind = "rn"
	// TokenItem is an item reference (in)
	TokenItem TokenKind = "in"
)

// Token is one segment of a parsed audit message.
type Token struct {
	Kind TokenKind
	Text string
}

var tokenPattern = regexp.MustCompile(`(un|fn|tn|rn|in)\[([^\]]+)\]`)

// Parse splits a rendered message into plain-text and reference tokens in
// document order. Unknown bracket prefixes are left as plain text.
func Parse(message string) []Token {
	var tokens []Token
	last := 0
	for _, m := range tokenPattern.FindAllStringSubmatchIndex(message, -1) {
		start, end := m[0], m[1]
		if start > last {
			tokens = append(tokens, Token{Kind: TokenText, Text: message[last:start]})
		}
		tokens = append(tokens, Token{
			Kind: TokenKind(message[m[2]:m[3]]),
			Text: message[m[4]:m[5]],
		})
		last = end
	}
	if last < len(message) {
		tokens = append(tokens, Token{Kind: TokenText, Text: message[last:]})
	}
	return tokens
}
