// Package tickflow implements the attendance claim workflow: members request
// ticks, officers approve or reject them, and every decision lands in the
// ledger and the audit log atomically before any advisory side effect runs.
package tickflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bnc-guild/attendance-engine/internal/audit"
	"github.com/bnc-guild/attendance-engine/internal/domain"
	"github.com/bnc-guild/attendance-engine/internal/events"
	"github.com/bnc-guild/attendance-engine/internal/logger"
	"github.com/bnc-guild/attendance-engine/internal/store"
	"github.com/bnc-guild/attendance-engine/internal/store/schema"
)

// Store is the subset of the persistence layer the workflow needs.
type Store interface {
	GetCharacterByID(ctx context.Context, id uint64) (*schema.Character, error)
	GetRaid(ctx context.Context, id uint64) (*schema.Raid, error)
	CreateTickRequest(ctx context.Context, input store.CreateTickRequestInput) error
	ApproveTickClaim(ctx context.Context, input store.DecideTickClaimInput) error
	RejectTickClaim(ctx context.Context, input store.DecideTickClaimInput) error
	ListPendingClaims(ctx context.Context, guildID uint64) ([]schema.TickClaim, error)
	ListDecidedClaims(ctx context.Context, guildID uint64, page, pageSize int) ([]schema.TickClaim, int64, error)
	NormalizeFactTimestamps(ctx context.Context, raidID uint64, maxSkew time.Duration) error
}

// Ledger is the attendance ledger surface used for officer bulk removals.
type Ledger interface {
	RemoveAttendance(ctx context.Context, characterID, raidID uint64, ticks []int, entry *schema.AuditEntry) error
}

// Notifier triggers the external attendance recalculation.
type Notifier interface {
	Notify()
}

// Service is the tick claim workflow.
type Service struct {
	store     Store
	ledger    Ledger
	notifier  Notifier
	publisher events.Publisher
	guildID   uint64
	maxSkew   time.Duration
}

// NewService creates the workflow service. maxSkew bounds the recorded_at
// spread tolerated within one (raid, tick) group before housekeeping snaps
// the group to its earliest timestamp.
func NewService(st Store, ledger Ledger, notifier Notifier, publisher events.Publisher, guildID uint64, maxSkew time.Duration) *Service {
	if maxSkew <= 0 {
		maxSkew = time.Hour
	}
	return &Service{
		store:     st,
		ledger:    ledger,
		notifier:  notifier,
		publisher: publisher,
		guildID:   guildID,
		maxSkew:   maxSkew,
	}
}

// RequestInput carries one tick request.
type RequestInput struct {
	CharacterID uint64
	RaidID      uint64
	Ticks       []int
	// ActorID is the character of the authenticated actor; when it differs
	// from CharacterID the request is made on behalf of another player
	ActorID   uint64
	ActorRole domain.Role
}

// DecideInput identifies one pending claim for approval or rejection.
type DecideInput struct {
	CharacterID uint64
	RaidID      uint64
	Tick        int
	ActorID     uint64
	ActorRole   domain.Role
}

// RemoveInput is an officer bulk removal of a player's ticks.
type RemoveInput struct {
	CharacterID uint64
	RaidID      uint64
	Ticks       []int
	ActorID     uint64
	ActorRole   domain.Role
}

// refs loads the character and raid names an audit message references
func (s *Service) refs(ctx context.Context, actorID, characterID, raidID uint64) (actor, target audit.Ref, raid audit.Ref, err error) {
	actorCharacter, err := s.store.GetCharacterByID(ctx, actorID)
	if err != nil {
		return actor, target, raid, fmt.Errorf("failed to load actor: %w", err)
	}
	if actorCharacter == nil {
		return actor, target, raid, domain.ErrCharacterNotFound
	}
	actor = audit.Ref{ID: actorCharacter.ID, Name: actorCharacter.Name}

	if characterID == actorID {
		target = actor
	} else {
		targetCharacter, err := s.store.GetCharacterByID(ctx, characterID)
		if err != nil {
			return actor, target, raid, fmt.Errorf("failed to load character: %w", err)
		}
		if targetCharacter == nil {
			return actor, target, raid, domain.ErrCharacterNotFound
		}
		target = audit.Ref{ID: targetCharacter.ID, Name: targetCharacter.Name}
	}

	raidRow, err := s.store.GetRaid(ctx, raidID)
	if err != nil {
		return actor, target, raid, fmt.Errorf("failed to load raid: %w", err)
	}
	if raidRow == nil {
		return actor, target, raid, domain.ErrRaidNotFound
	}
	raid = audit.Ref{ID: raidRow.ID, Name: raidRow.Name}

	return actor, target, raid, nil
}

// publish emits an advisory event; failures are logged and swallowed
func (s *Service) publish(ctx context.Context, event events.Event) {
	event.GuildID = s.guildID
	event.OccurredAt = time.Now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.WarnCtx(ctx, "failed to publish decision event",
			zap.String("type", event.Type),
			zap.Error(err))
	}
}

// Request upserts one pending claim per tick. Re-requesting a decided key
// reopens it. Members may only request for themselves; officers and admins
// may request on behalf of any character.
func (s *Service) Request(ctx context.Context, input RequestInput) error {
	if input.CharacterID == 0 || input.RaidID == 0 || len(input.Ticks) == 0 {
		return fmt.Errorf("%w: character, raid and at least one tick are required", domain.ErrInvalidRequest)
	}
	for _, tick := range input.Ticks {
		if tick < 0 {
			return fmt.Errorf("%w: negative tick index", domain.ErrInvalidRequest)
		}
	}
	if !input.ActorRole.CanRequestFor(input.ActorID, input.CharacterID) {
		return domain.ErrUnauthorized
	}

	actor, target, raid, err := s.refs(ctx, input.ActorID, input.CharacterID, input.RaidID)
	if err != nil {
		return err
	}

	entry := audit.Entry(s.guildID, audit.Event{
		Type:     schema.AuditTickRequested,
		Actor:    actor,
		From:     target,
		Raid:     raid,
		Ticks:    input.Ticks,
		OnBehalf: input.ActorID != input.CharacterID,
	})

	err = s.store.CreateTickRequest(ctx, store.CreateTickRequestInput{
		CharacterID: input.CharacterID,
		RaidID:      input.RaidID,
		Ticks:       input.Ticks,
		RequestedBy: input.ActorID,
		Audit:       entry,
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.Event{
		Type:        events.TypeTickRequested,
		ActorID:     input.ActorID,
		CharacterID: input.CharacterID,
		RaidID:      input.RaidID,
		Ticks:       input.Ticks,
	})

	return nil
}

// Approve transitions a pending claim to approved. The claim transition, the
// attendance fact and the audit entry commit in one transaction; only then do
// the timestamp housekeeping, the recalculation call and the event publish
// run, none of which can fail the approval.
func (s *Service) Approve(ctx context.Context, input DecideInput) error {
	if err := s.validateDecision(input); err != nil {
		return err
	}

	actor, target, raid, err := s.refs(ctx, input.ActorID, input.CharacterID, input.RaidID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	entry := audit.Entry(s.guildID, audit.Event{
		Type:  schema.AuditTickApproved,
		Actor: actor,
		From:  target,
		Raid:  raid,
		Ticks: []int{input.Tick},
	})

	err = s.store.ApproveTickClaim(ctx, store.DecideTickClaimInput{
		CharacterID: input.CharacterID,
		RaidID:      input.RaidID,
		Tick:        input.Tick,
		DecidedBy:   input.ActorID,
		DecidedAt:   now,
		Audit:       entry,
	})
	if err != nil {
		return err
	}

	// Concurrent approvals stamp facts at slightly different times; snap the
	// group so one tick reads as one moment
	if err := s.store.NormalizeFactTimestamps(ctx, input.RaidID, s.maxSkew); err != nil {
		logger.WarnCtx(ctx, "failed to normalize fact timestamps",
			zap.Uint64("raid_id", input.RaidID),
			zap.Error(err))
	}

	s.notifier.Notify()
	s.publish(ctx, events.Event{
		Type:        events.TypeTickApproved,
		ActorID:     input.ActorID,
		CharacterID: input.CharacterID,
		RaidID:      input.RaidID,
		Ticks:       []int{input.Tick},
	})

	return nil
}

// Reject transitions a pending claim to rejected and strips any attendance
// fact already recorded for the key.
func (s *Service) Reject(ctx context.Context, input DecideInput) error {
	if err := s.validateDecision(input); err != nil {
		return err
	}

	actor, target, raid, err := s.refs(ctx, input.ActorID, input.CharacterID, input.RaidID)
	if err != nil {
		return err
	}

	entry := audit.Entry(s.guildID, audit.Event{
		Type:  schema.AuditTickRejected,
		Actor: actor,
		From:  target,
		Raid:  raid,
		Ticks: []int{input.Tick},
	})

	err = s.store.RejectTickClaim(ctx, store.DecideTickClaimInput{
		CharacterID: input.CharacterID,
		RaidID:      input.RaidID,
		Tick:        input.Tick,
		DecidedBy:   input.ActorID,
		DecidedAt:   time.Now().UTC(),
		Audit:       entry,
	})
	if err != nil {
		return err
	}

	s.notifier.Notify()
	s.publish(ctx, events.Event{
		Type:        events.TypeTickRejected,
		ActorID:     input.ActorID,
		CharacterID: input.CharacterID,
		RaidID:      input.RaidID,
		Ticks:       []int{input.Tick},
	})

	return nil
}

// RemoveTicks removes a player's attendance for the given ticks across their
// whole main-group, officer-only.
func (s *Service) RemoveTicks(ctx context.Context, input RemoveInput) error {
	if input.CharacterID == 0 || input.RaidID == 0 || len(input.Ticks) == 0 {
		return fmt.Errorf("%w: character, raid and at least one tick are required", domain.ErrInvalidRequest)
	}
	if !input.ActorRole.CanDecide() {
		return domain.ErrUnauthorized
	}

	actor, target, raid, err := s.refs(ctx, input.ActorID, input.CharacterID, input.RaidID)
	if err != nil {
		return err
	}

	entry := audit.Entry(s.guildID, audit.Event{
		Type:  schema.AuditTicksRemoved,
		Actor: actor,
		From:  target,
		Raid:  raid,
		Ticks: input.Ticks,
	})

	if err := s.ledger.RemoveAttendance(ctx, input.CharacterID, input.RaidID, input.Ticks, &entry); err != nil {
		return err
	}

	s.notifier.Notify()
	s.publish(ctx, events.Event{
		Type:        events.TypeTicksRemoved,
		ActorID:     input.ActorID,
		CharacterID: input.CharacterID,
		RaidID:      input.RaidID,
		Ticks:       input.Ticks,
	})

	return nil
}

func (s *Service) validateDecision(input DecideInput) error {
	if input.CharacterID == 0 || input.RaidID == 0 || input.Tick < 0 {
		return fmt.Errorf("%w: character, raid and tick are required", domain.ErrInvalidRequest)
	}
	if !input.ActorRole.CanDecide() {
		return domain.ErrUnauthorized
	}
	return nil
}

// PendingClaims lists the guild's claims awaiting a decision
func (s *Service) PendingClaims(ctx context.Context) ([]schema.TickClaim, error) {
	return s.store.ListPendingClaims(ctx, s.guildID)
}

// DecidedClaims lists the guild's decided claims, most recent first
func (s *Service) DecidedClaims(ctx context.Context, page, pageSize int) ([]schema.TickClaim, int64, error) {
	return s.store.ListDecidedClaims(ctx, s.guildID, page, pageSize)
}
