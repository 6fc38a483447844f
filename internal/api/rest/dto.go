package rest

import (
	"time"

	"github.com/bnc-guild/attendance-engine/internal/audit"
	"github.com/bnc-guild/attendance-engine/internal/store"
	"github.com/bnc-guild/attendance-engine/internal/store/schema"
)

// CharacterDTO is the API representation of a roster entry
type CharacterDTO struct {
	ID                   uint64 `json:"id"`
	Name                 string `json:"name"`
	Class                string `json:"class"`
	Level                int    `json:"level"`
	Rank                 string `json:"rank,omitempty"`
	BaseTicketAllocation *int64 `json:"base_ticket_allocation,omitempty"`
}

func toCharacterDTO(c *schema.Character) CharacterDTO {
	return CharacterDTO{
		ID:                   c.ID,
		Name:                 c.Name,
		Class:                c.Class,
		Level:                c.Level,
		Rank:                 c.Rank,
		BaseTicketAllocation: c.BaseTicketAllocation,
	}
}

func toCharacterDTOs(characters []schema.Character) []CharacterDTO {
	out := make([]CharacterDTO, len(characters))
	for i := range characters {
		out[i] = toCharacterDTO(&characters[i])
	}
	return out
}

// RaidDTO is the API representation of a raid with its attendance totals
type RaidDTO struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"name"`
	IsOfficial bool      `json:"is_official"`
	TotalTicks int       `json:"total_ticks"`
	TotalMains int       `json:"total_mains"`
	CreatedAt  time.Time `json:"created_at"`
}

func toRaidDTO(r store.RaidWithTotals) RaidDTO {
	return RaidDTO{
		ID:         r.ID,
		Name:       r.Name,
		IsOfficial: r.IsOfficial,
		TotalTicks: r.TotalTicks,
		TotalMains: r.TotalMains,
		CreatedAt:  r.CreatedAt,
	}
}

// ClaimDTO is the API representation of a tick claim
type ClaimDTO struct {
	ID            uint64     `json:"id"`
	CharacterID   uint64     `json:"character_id"`
	CharacterName string     `json:"character_name,omitempty"`
	RaidID        uint64     `json:"raid_id"`
	RaidName      string     `json:"raid_name,omitempty"`
	TickIndex     int        `json:"tick_index"`
	RequestedBy   uint64     `json:"requested_by"`
	Status        string     `json:"status"`
	ApprovedBy    *uint64    `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	RejectedBy    *uint64    `json:"rejected_by,omitempty"`
	RejectedAt    *time.Time `json:"rejected_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toClaimDTO(claim *schema.TickClaim) ClaimDTO {
	dto := ClaimDTO{
		ID:          claim.ID,
		CharacterID: claim.CharacterID,
		RaidID:      claim.RaidID,
		TickIndex:   claim.TickIndex,
		RequestedBy: claim.RequestedBy,
		ApprovedBy:  claim.ApprovedBy,
		ApprovedAt:  claim.ApprovedAt,
		RejectedBy:  claim.RejectedBy,
		RejectedAt:  claim.RejectedAt,
		CreatedAt:   claim.CreatedAt,
	}
	switch {
	case claim.ApprovedBy != nil:
		dto.Status = "approved"
	case claim.RejectedBy != nil:
		dto.Status = "rejected"
	default:
		dto.Status = "requested"
	}
	if claim.Character != nil {
		dto.CharacterName = claim.Character.Name
	}
	if claim.Raid != nil {
		dto.RaidName = claim.Raid.Name
	}
	return dto
}

func toClaimDTOs(claims []schema.TickClaim) []ClaimDTO {
	out := make([]ClaimDTO, len(claims))
	for i := range claims {
		out[i] = toClaimDTO(&claims[i])
	}
	return out
}

// LootAwardDTO is the API representation of one loot award
type LootAwardDTO struct {
	ID            uint64    `json:"id"`
	RaidID        uint64    `json:"raid_id"`
	RaidName      string    `json:"raid_name,omitempty"`
	CharacterID   uint64    `json:"character_id"`
	CharacterName string    `json:"character_name,omitempty"`
	ItemID        uint64    `json:"item_id"`
	ItemName      string    `json:"item_name,omitempty"`
	ItemCategory  string    `json:"item_category,omitempty"`
	Quantity      int64     `json:"quantity"`
	WasAssigned   bool      `json:"was_assigned"`
	CreatedAt     time.Time `json:"created_at"`
}

func toLootAwardDTO(award *schema.LootAward) LootAwardDTO {
	dto := LootAwardDTO{
		ID:          award.ID,
		RaidID:      award.RaidID,
		CharacterID: award.CharacterID,
		ItemID:      award.ItemID,
		Quantity:    award.Quantity,
		WasAssigned: award.WasAssigned,
		CreatedAt:   award.CreatedAt,
	}
	if award.Raid != nil {
		dto.RaidName = award.Raid.Name
	}
	if award.Character != nil {
		dto.CharacterName = award.Character.Name
	}
	if award.Item != nil {
		dto.ItemName = award.Item.Name
		dto.ItemCategory = string(award.Item.Category)
	}
	return dto
}

func toLootAwardDTOs(awards []schema.LootAward) []LootAwardDTO {
	out := make([]LootAwardDTO, len(awards))
	for i := range awards {
		out[i] = toLootAwardDTO(&awards[i])
	}
	return out
}

// AuditTokenDTO is one parsed segment of an audit message
type AuditTokenDTO struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// AuditEntryDTO is the API representation of an audit entry, with the message
// both raw and split into reference tokens
type AuditEntryDTO struct {
	ID              uint64          `json:"id"`
	Type            string          `json:"type"`
	ActorID         uint64          `json:"actor_id"`
	FromCharacterID *uint64         `json:"from_character_id,omitempty"`
	ToCharacterID   *uint64         `json:"to_character_id,omitempty"`
	RaidID          *uint64         `json:"raid_id,omitempty"`
	ItemID          *uint64         `json:"item_id,omitempty"`
	Message         string          `json:"message"`
	Tokens          []AuditTokenDTO `json:"tokens"`
	CreatedAt       time.Time       `json:"created_at"`
}

func toAuditEntryDTO(entry *schema.AuditEntry) AuditEntryDTO {
	tokens := audit.Parse(entry.Message)
	dtoTokens := make([]AuditTokenDTO, len(tokens))
	for i, token := range tokens {
		dtoTokens[i] = AuditTokenDTO{Kind: string(token.Kind), Text: token.Text}
	}
	return AuditEntryDTO{
		ID:              entry.ID,
		Type:            string(entry.Type),
		ActorID:         entry.ActorID,
		FromCharacterID: entry.FromCharacterID,
		ToCharacterID:   entry.ToCharacterID,
		RaidID:          entry.RaidID,
		ItemID:          entry.ItemID,
		Message:         entry.Message,
		Tokens:          dtoTokens,
		CreatedAt:       entry.CreatedAt,
	}
}

func toAuditEntryDTOs(entries []schema.AuditEntry) []AuditEntryDTO {
	out := make([]AuditEntryDTO, len(entries))
	for i := range entries {
		out[i] = toAuditEntryDTO(&entries[i])
	}
	return out
}

// pagedResponse wraps a paginated listing
type pagedResponse struct {
	Items    any   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}
