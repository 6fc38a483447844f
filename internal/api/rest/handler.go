package rest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bnc-guild/attendance-engine/internal/allocator"
	"github.com/bnc-guild/attendance-engine/internal/api/middleware"
	"github.com/bnc-guild/attendance-engine/internal/events"
	"github.com/bnc-guild/attendance-engine/internal/ledger"
	"github.com/bnc-guild/attendance-engine/internal/logger"
	"github.com/bnc-guild/attendance-engine/internal/loot"
	"github.com/bnc-guild/attendance-engine/internal/roster"
	"github.com/bnc-guild/attendance-engine/internal/store/schema"
	"github.com/bnc-guild/attendance-engine/internal/tickflow"
)

// AuditStore reads the audit log.
type AuditStore interface {
	ListAuditEntries(ctx context.Context, guildID uint64, page, pageSize int) ([]schema.AuditEntry, int64, error)
}

// Notifier triggers the external attendance recalculation.
type Notifier interface {
	Notify()
}

// Services bundles the engine services the REST layer fronts.
type Services struct {
	Roster    *roster.Service
	Ledger    *ledger.Service
	Raids     *ledger.RaidService
	Tickflow  *tickflow.Service
	Splitter  *allocator.Splitter
	Loot      *loot.Service
	Audit     AuditStore
	Notifier  Notifier
	Publisher events.Publisher
	GuildID   uint64
}

// Handler defines the interface for REST API handlers
type Handler interface {
	// RegisterCharacter creates a roster entry
	// POST /api/v1/characters
	RegisterCharacter(c *gin.Context)

	// LinkBox records a character as a box owned by a main
	// POST /api/v1/characters/:id/owner
	LinkBox(c *gin.Context)

	// GetCharacter retrieves one character
	// GET /api/v1/characters/:id
	GetCharacter(c *gin.Context)

	// ListCharacterBoxes lists the boxes a main owns
	// GET /api/v1/characters/:id/boxes
	ListCharacterBoxes(c *gin.Context)

	// ListMains lists the guild's main characters
	// GET /api/v1/mains
	ListMains(c *gin.Context)

	// CreateRaid registers a raid
	// POST /api/v1/raids
	CreateRaid(c *gin.Context)

	// ListRaids lists raids with attendance totals
	// GET /api/v1/raids?page=<page>&page_size=<page_size>
	ListRaids(c *gin.Context)

	// DeleteRaid removes a raid and everything recorded under it
	// DELETE /api/v1/raids/:id
	DeleteRaid(c *gin.Context)

	// GetAttendance returns the per-main attendance matrix of a raid
	// GET /api/v1/raids/:id/attendance
	GetAttendance(c *gin.Context)

	// GetTicksAttended returns one player's tick coverage within a raid
	// GET /api/v1/raids/:id/attendance/:character_id
	GetTicksAttended(c *gin.Context)

	// RequestTicks submits tick claims for the authenticated actor's target
	// POST /api/v1/claims
	RequestTicks(c *gin.Context)

	// ApproveClaim approves one pending claim
	// POST /api/v1/claims/approve
	ApproveClaim(c *gin.Context)

	// RejectClaim rejects one pending claim
	// POST /api/v1/claims/reject
	RejectClaim(c *gin.Context)

	// ListPendingClaims lists claims awaiting a decision
	// GET /api/v1/claims/pending
	ListPendingClaims(c *gin.Context)

	// ListDecidedClaims lists decided claims, most recent first
	// GET /api/v1/claims/decided?page=<page>&page_size=<page_size>
	ListDecidedClaims(c *gin.Context)

	// RemoveTicks strips a player's ticks across their whole main-group
	// POST /api/v1/attendance/remove
	RemoveTicks(c *gin.Context)

	// GenerateRollRanges renders contiguous roll ranges for the entrants
	// POST /api/v1/rolls
	GenerateRollRanges(c *gin.Context)

	// GetSplitMeta returns the per-main split entitlement of a raid
	// GET /api/v1/raids/:id/split
	GetSplitMeta(c *gin.Context)

	// ComputeSplit distributes an amount across selected entitlements
	// POST /api/v1/raids/:id/split
	ComputeSplit(c *gin.Context)

	// AwardLoot records an item looted during a raid
	// POST /api/v1/loot
	AwardLoot(c *gin.Context)

	// ListLoot lists loot awards
	// GET /api/v1/loot?raid_id=<id>&character_id=<id>
	ListLoot(c *gin.Context)

	// SummarizeLoot aggregates loot per main with per-box breakdowns
	// GET /api/v1/loot/summary?raid_id=<id>&include_pass_token=<bool>
	SummarizeLoot(c *gin.Context)

	// ReassignLoot moves a loot award to another character
	// POST /api/v1/loot/:id/reassign
	ReassignLoot(c *gin.Context)

	// ListAuditEntries lists the guild's audit log, newest first
	// GET /api/v1/audit?page=<page>&page_size=<page_size>
	ListAuditEntries(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	services Services
}

// NewHandler creates a new REST API handler over the engine services
func NewHandler(services Services) Handler {
	return &handler{services: services}
}

// pathID parses a numeric path parameter
func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondBadRequest(c, fmt.Sprintf("%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}

// publish emits an advisory event stamped with the guild and time; failures
// are logged and swallowed
func (h *handler) publish(c *gin.Context, event events.Event) {
	event.GuildID = h.services.GuildID
	event.OccurredAt = time.Now().UTC()
	if err := h.services.Publisher.Publish(c.Request.Context(), event); err != nil {
		logger.WarnCtx(c.Request.Context(), "failed to publish decision event",
			zap.String("type", event.Type),
			zap.Error(err))
	}
}

// RegisterCharacterRequest is the payload for POST /characters
type RegisterCharacterRequest struct {
	Name                 string `json:"name" binding:"required"`
	Class                string `json:"class" binding:"required"`
	Level                int    `json:"level" binding:"required"`
	Rank                 string `json:"rank"`
	BaseTicketAllocation *int64 `json:"base_ticket_allocation"`
}

// RegisterCharacter creates a roster entry
func (h *handler) RegisterCharacter(c *gin.Context) {
	var req RegisterCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	character, err := h.services.Roster.Register(c.Request.Context(), roster.CreateCharacterInput{
		Name:                 req.Name,
		Class:                req.Class,
		Level:                req.Level,
		Rank:                 req.Rank,
		BaseTicketAllocation: req.BaseTicketAllocation,
	})
	if err != nil {
		respondDomainError(c, err, "Failed to register character")
		return
	}

	c.JSON(http.StatusCreated, toCharacterDTO(character))
}

// LinkBoxRequest is the payload for POST /characters/:id/owner
type LinkBoxRequest struct {
	MainID uint64 `json:"main_id" binding:"required"`
}

// LinkBox records the path character as a box owned by the main in the body
func (h *handler) LinkBox(c *gin.Context) {
	boxID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req LinkBoxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if err := h.services.Roster.LinkBox(c.Request.Context(), boxID, req.MainID); err != nil {
		respondDomainError(c, err, "Failed to link box")
		return
	}

	c.Status(http.StatusNoContent)
}

// GetCharacter retrieves one character
func (h *handler) GetCharacter(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	character, err := h.services.Roster.Character(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "Failed to get character")
		return
	}

	c.JSON(http.StatusOK, toCharacterDTO(character))
}

// ListCharacterBoxes lists the boxes a main owns
func (h *handler) ListCharacterBoxes(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	boxes, err := h.services.Roster.Boxes(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "Failed to list boxes")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": toCharacterDTOs(boxes)})
}

// ListMains lists the guild's main characters
func (h *handler) ListMains(c *gin.Context) {
	mains, err := h.services.Roster.Mains(c.Request.Context())
	if err != nil {
		respondDomainError(c, err, "Failed to list mains")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": toCharacterDTOs(mains)})
}

// CreateRaidRequest is the payload for POST /raids
type CreateRaidRequest struct {
	Name       string `json:"name" binding:"required"`
	IsOfficial *bool  `json:"is_official"`
}

// CreateRaid registers a raid; raids default to official
func (h *handler) CreateRaid(c *gin.Context) {
	var req CreateRaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	isOfficial := true
	if req.IsOfficial != nil {
		isOfficial = *req.IsOfficial
	}

	raid, err := h.services.Raids.Create(c.Request.Context(), req.Name, isOfficial)
	if err != nil {
		respondDomainError(c, err, "Failed to create raid")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":          raid.ID,
		"name":        raid.Name,
		"is_official": raid.IsOfficial,
		"created_at":  raid.CreatedAt,
	})
}

// ListRaids lists raids newest first with attendance totals
func (h *handler) ListRaids(c *gin.Context) {
	pagination, err := ParsePagination(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	raids, total, err := h.services.Raids.List(c.Request.Context(), pagination.Page, pagination.PageSize)
	if err != nil {
		respondDomainError(c, err, "Failed to list raids")
		return
	}

	items := make([]RaidDTO, len(raids))
	for i, raid := range raids {
		items[i] = toRaidDTO(raid)
	}

	c.JSON(http.StatusOK, pagedResponse{
		Items:    items,
		Total:    total,
		Page:     pagination.Page,
		PageSize: pagination.PageSize,
	})
}

// DeleteRaid removes a raid with everything recorded under it, then triggers
// the attendance recalculation
func (h *handler) DeleteRaid(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	actorID, role := middleware.Actor(c)
	if err := h.services.Raids.Delete(c.Request.Context(), id, actorID, role); err != nil {
		respondDomainError(c, err, "Failed to delete raid")
		return
	}

	h.services.Notifier.Notify()
	h.publish(c, events.Event{
		Type:    events.TypeRaidDeleted,
		ActorID: actorID,
		RaidID:  id,
	})

	c.Status(http.StatusNoContent)
}

// GetAttendance returns a raid's per-main attendance matrix and total ticks
func (h *handler) GetAttendance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.services.Raids.Get(ctx, id); err != nil {
		respondDomainError(c, err, "Failed to load raid")
		return
	}

	matrix, err := h.services.Ledger.AttendanceMatrix(ctx, id)
	if err != nil {
		respondDomainError(c, err, "Failed to build attendance matrix")
		return
	}
	totalTicks, err := h.services.Ledger.TotalTicks(ctx, id)
	if err != nil {
		respondDomainError(c, err, "Failed to count ticks")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"raid_id":     id,
		"total_ticks": totalTicks,
		"matrix":      matrix,
	})
}

// GetTicksAttended returns one player's distinct tick coverage within a raid,
// counted across their main and all its boxes
func (h *handler) GetTicksAttended(c *gin.Context) {
	raidID, ok := pathID(c, "id")
	if !ok {
		return
	}
	characterID, ok := pathID(c, "character_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	attended, err := h.services.Ledger.TicksAttended(ctx, characterID, raidID)
	if err != nil {
		respondDomainError(c, err, "Failed to count attended ticks")
		return
	}
	totalTicks, err := h.services.Ledger.TotalTicks(ctx, raidID)
	if err != nil {
		respondDomainError(c, err, "Failed to count ticks")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"raid_id":        raidID,
		"character_id":   characterID,
		"attended_ticks": attended,
		"total_ticks":    totalTicks,
	})
}

// TickRequestBody is the payload for POST /claims
type TickRequestBody struct {
	CharacterID uint64 `json:"character_id" binding:"required"`
	RaidID      uint64 `json:"raid_id" binding:"required"`
	Ticks       []int  `json:"ticks" binding:"required"`
}

// RequestTicks submits tick claims; members for themselves, officers for
// anyone
func (h *handler) RequestTicks(c *gin.Context) {
	var req TickRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	actorID, role := middleware.Actor(c)
	err := h.services.Tickflow.Request(c.Request.Context(), tickflow.RequestInput{
		CharacterID: req.CharacterID,
		RaidID:      req.RaidID,
		Ticks:       req.Ticks,
		ActorID:     actorID,
		ActorRole:   role,
	})
	if err != nil {
		respondDomainError(c, err, "Failed to request ticks")
		return
	}

	c.Status(http.StatusAccepted)
}

// DecideClaimBody identifies one pending claim
type DecideClaimBody struct {
	CharacterID uint64 `json:"character_id" binding:"required"`
	RaidID      uint64 `json:"raid_id" binding:"required"`
	Tick        *int   `json:"tick" binding:"required"`
}

func (h *handler) decide(c *gin.Context, decide func(context.Context, tickflow.DecideInput) error, message string) {
	var req DecideClaimBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	actorID, role := middleware.Actor(c)
	err := decide(c.Request.Context(), tickflow.DecideInput{
		CharacterID: req.CharacterID,
		RaidID:      req.RaidID,
		Tick:        *req.Tick,
		ActorID:     actorID,
		ActorRole:   role,
	})
	if err != nil {
		respondDomainError(c, err, message)
		return
	}

	c.Status(http.StatusNoContent)
}

// ApproveClaim approves one pending claim
func (h *handler) ApproveClaim(c *gin.Context) {
	h.decide(c, h.services.Tickflow.Approve, "Failed to approve claim")
}

// RejectClaim rejects one pending claim
func (h *handler) RejectClaim(c *gin.Context) {
	h.decide(c, h.services.Tickflow.Reject, "Failed to reject claim")
}

// ListPendingClaims lists claims awaiting a decision
func (h *handler) ListPendingClaims(c *gin.Context) {
	claims, err := h.services.Tickflow.PendingClaims(c.Request.Context())
	if err != nil {
		respondDomainError(c, err, "Failed to list pending claims")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": toClaimDTOs(claims)})
}

// ListDecidedClaims lists decided claims, most recent first
func (h *handler) ListDecidedClaims(c *gin.Context) {
	pagination, err := ParsePagination(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	claims, total, err := h.services.Tickflow.DecidedClaims(c.Request.Context(), pagination.Page, pagination.PageSize)
	if err != nil {
		respondDomainError(c, err, "Failed to list decided claims")
		return
	}

	c.JSON(http.StatusOK, pagedResponse{
		Items:    toClaimDTOs(claims),
		Total:    total,
		Page:     pagination.Page,
		PageSize: pagination.PageSize,
	})
}

// RemoveTicksBody is the payload for POST /attendance/remove
type RemoveTicksBody struct {
	CharacterID uint64 `json:"character_id" binding:"required"`
	RaidID      uint64 `json:"raid_id" binding:"required"`
	Ticks       []int  `json:"ticks" binding:"required"`
}

// RemoveTicks strips a player's ticks across their whole main-group
func (h *handler) RemoveTicks(c *gin.Context) {
	var req RemoveTicksBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	actorID, role := middleware.Actor(c)
	err := h.services.Tickflow.RemoveTicks(c.Request.Context(), tickflow.RemoveInput{
		CharacterID: req.CharacterID,
		RaidID:      req.RaidID,
		Ticks:       req.Ticks,
		ActorID:     actorID,
		ActorRole:   role,
	})
	if err != nil {
		respondDomainError(c, err, "Failed to remove ticks")
		return
	}

	c.Status(http.StatusNoContent)
}

// RollEntrantBody is one entrant in a roll range request
type RollEntrantBody struct {
	Name              string `json:"name" binding:"required"`
	Tickets           *int64 `json:"tickets"`
	AttendancePercent int64  `json:"attendance_percent"`
	BoxCount          int    `json:"box_count"`
	TicksSinceLastWin int    `json:"ticks_since_last_win"`
}

// RollRangesBody is the payload for POST /rolls
type RollRangesBody struct {
	Entrants []RollEntrantBody `json:"entrants" binding:"required"`
	Debug    bool              `json:"debug"`
}

// GenerateRollRanges renders the contiguous roll ranges for the entrants
func (h *handler) GenerateRollRanges(c *gin.Context) {
	var req RollRangesBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if len(req.Entrants) == 0 {
		respondBadRequest(c, "At least one entrant is required")
		return
	}

	entrants := make([]allocator.Entrant, len(req.Entrants))
	for i, entrant := range req.Entrants {
		entrants[i] = allocator.Entrant{
			Name:              entrant.Name,
			Tickets:           entrant.Tickets,
			AttendancePercent: entrant.AttendancePercent,
			BoxCount:          entrant.BoxCount,
			TicksSinceLastWin: entrant.TicksSinceLastWin,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"ranges": allocator.GenerateRollRanges(entrants, req.Debug),
	})
}

// GetSplitMeta returns the per-main split entitlement of a raid
func (h *handler) GetSplitMeta(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.services.Raids.Get(ctx, id); err != nil {
		respondDomainError(c, err, "Failed to load raid")
		return
	}

	meta, err := h.services.Splitter.ComputeMeta(ctx, id)
	if err != nil {
		respondDomainError(c, err, "Failed to compute split meta")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": meta})
}

// SplitBody is the payload for POST /raids/:id/split. Selected entries are
// the meta rows returned by the GET, possibly filtered by the caller.
type SplitBody struct {
	Amount   int64                 `json:"amount" binding:"required"`
	Selected []allocator.SplitMeta `json:"selected" binding:"required"`
}

// ComputeSplit distributes an amount across the selected entitlements
func (h *handler) ComputeSplit(c *gin.Context) {
	if _, ok := pathID(c, "id"); !ok {
		return
	}

	var req SplitBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	shares, err := allocator.Split(req.Amount, req.Selected)
	if err != nil {
		respondDomainError(c, err, "Failed to compute split")
		return
	}

	c.JSON(http.StatusOK, gin.H{"shares": shares})
}

// AwardLootBody is the payload for POST /loot
type AwardLootBody struct {
	RaidID      uint64 `json:"raid_id" binding:"required"`
	CharacterID uint64 `json:"character_id" binding:"required"`
	ItemName    string `json:"item_name" binding:"required"`
	Quantity    int64  `json:"quantity"`
	WasAssigned bool   `json:"was_assigned"`
}

// AwardLoot records an item looted during a raid
func (h *handler) AwardLoot(c *gin.Context) {
	var req AwardLootBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	award, err := h.services.Loot.Award(c.Request.Context(), req.RaidID, req.CharacterID, req.ItemName, req.Quantity, req.WasAssigned)
	if err != nil {
		respondDomainError(c, err, "Failed to award loot")
		return
	}

	c.JSON(http.StatusCreated, toLootAwardDTO(award))
}

// ListLoot lists loot awards
func (h *handler) ListLoot(c *gin.Context) {
	params, err := ParseListLootQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	awards, err := h.services.Loot.List(c.Request.Context(), params.Filter())
	if err != nil {
		respondDomainError(c, err, "Failed to list loot")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": toLootAwardDTOs(awards)})
}

// SummarizeLoot aggregates loot per main with per-box breakdowns
func (h *handler) SummarizeLoot(c *gin.Context) {
	params, err := ParseListLootQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	summaries, err := h.services.Loot.SummarizeByMain(c.Request.Context(), params.Filter(), params.IncludePassToken)
	if err != nil {
		respondDomainError(c, err, "Failed to summarize loot")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": summaries})
}

// ReassignLootBody is the payload for POST /loot/:id/reassign
type ReassignLootBody struct {
	ToCharacterID uint64 `json:"to_character_id" binding:"required"`
}

// ReassignLoot moves a loot award to another character, officer-only
func (h *handler) ReassignLoot(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req ReassignLootBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	actorID, role := middleware.Actor(c)
	if err := h.services.Loot.Reassign(c.Request.Context(), id, req.ToCharacterID, actorID, role); err != nil {
		respondDomainError(c, err, "Failed to reassign loot")
		return
	}

	h.publish(c, events.Event{
		Type:    events.TypeLootReassigned,
		ActorID: actorID,
	})

	c.Status(http.StatusNoContent)
}

// ListAuditEntries lists the guild's audit log, newest first, with messages
// split into reference tokens
func (h *handler) ListAuditEntries(c *gin.Context) {
	pagination, err := ParsePagination(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	entries, total, err := h.services.Audit.ListAuditEntries(c.Request.Context(), h.services.GuildID, pagination.Page, pagination.PageSize)
	if err != nil {
		respondDomainError(c, err, "Failed to list audit entries")
		return
	}

	c.JSON(http.StatusOK, pagedResponse{
		Items:    toAuditEntryDTOs(entries),
		Total:    total,
		Page:     pagination.Page,
		PageSize: pagination.PageSize,
	})
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "attendance-api",
	})
}
