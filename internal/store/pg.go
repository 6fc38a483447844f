package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bnc-guild/attendance-engine/internal/domain"
	"github.com/bnc-guild/attendance-engine/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// It accesses the underlying *sql.DB and sets the pool configuration.
// If any of the pool settings are 0 or empty, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	// Set defaults if not provided
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

func normalizePagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return page, pageSize
}

// GetCharacterByID retrieves a character by id
func (s *pgStore) GetCharacterByID(ctx context.Context, id uint64) (*schema.Character, error) {
	var character schema.Character
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&character).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &character, nil
}

// GetCharactersByIDs retrieves multiple characters by id
func (s *pgStore) GetCharactersByIDs(ctx context.Context, ids []uint64) ([]schema.Character, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var characters []schema.Character
	err := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&characters).Error
	if err != nil {
		return nil, err
	}

	return characters, nil
}

// ListMains lists a guild's non-deleted characters that do not appear as the
// box side of an ownership link, ordered by name
func (s *pgStore) ListMains(ctx context.Context, guildID uint64) ([]schema.Character, error) {
	var characters []schema.Character
	err := s.db.WithContext(ctx).
		Where("guild_id = ? AND deleted = false", guildID).
		Where("NOT EXISTS (SELECT 1 FROM ownership_links ol WHERE ol.box_id = characters.id)").
		Order("name ASC").
		Find(&characters).Error
	if err != nil {
		return nil, err
	}

	return characters, nil
}

// CreateCharacter inserts a character, enforcing name uniqueness among the
// guild's non-deleted characters
func (s *pgStore) CreateCharacter(ctx context.Context, character *schema.Character) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&schema.Character{}).
			Where("guild_id = ? AND name = ? AND deleted = false", character.GuildID, character.Name).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check character name: %w", err)
		}
		if count > 0 {
			return domain.ErrDuplicateName
		}

		// The partial unique index backstops the check above when two
		// registrations race past it
		if err := tx.Create(character).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrDuplicateName
			}
			return fmt.Errorf("failed to create character: %w", err)
		}

		return nil
	})
}

// CreateOwnershipLink marks one character as a box of another
func (s *pgStore) CreateOwnershipLink(ctx context.Context, link *schema.OwnershipLink) error {
	return s.db.WithContext(ctx).Create(link).Error
}

// GetOwnershipLinkByBoxID retrieves the link owning boxID
func (s *pgStore) GetOwnershipLinkByBoxID(ctx context.Context, boxID uint64) (*schema.OwnershipLink, error) {
	var link schema.OwnershipLink
	err := s.db.WithContext(ctx).
		Where("box_id = ?", boxID).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &link, nil
}

// ListOwnershipLinksByBoxIDs retrieves links for any of the given boxes
func (s *pgStore) ListOwnershipLinksByBoxIDs(ctx context.Context, boxIDs []uint64) ([]schema.OwnershipLink, error) {
	if len(boxIDs) == 0 {
		return nil, nil
	}

	var links []schema.OwnershipLink
	err := s.db.WithContext(ctx).
		Where("box_id IN ?", boxIDs).
		Find(&links).Error
	if err != nil {
		return nil, err
	}

	return links, nil
}

// ListBoxes lists the characters owned by mainID, ordered by name
func (s *pgStore) ListBoxes(ctx context.Context, mainID uint64) ([]schema.Character, error) {
	var characters []schema.Character
	err := s.db.WithContext(ctx).
		Joins("JOIN ownership_links ol ON ol.box_id = characters.id").
		Where("ol.main_id = ? AND characters.deleted = false", mainID).
		Order("characters.name ASC").
		Find(&characters).Error
	if err != nil {
		return nil, err
	}

	return characters, nil
}

// CreateRaid inserts a raid
func (s *pgStore) CreateRaid(ctx context.Context, raid *schema.Raid) error {
	return s.db.WithContext(ctx).Create(raid).Error
}

// GetRaid retrieves a raid by id
func (s *pgStore) GetRaid(ctx context.Context, id uint64) (*schema.Raid, error) {
	var raid schema.Raid
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&raid).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &raid, nil
}

// ListRaids lists a guild's raids newest first with tick and attendee totals.
// Attendees are counted per main: a fact recorded by a box counts toward its
// owning main.
func (s *pgStore) ListRaids(ctx context.Context, guildID uint64, page, pageSize int) ([]RaidWithTotals, int64, error) {
	page, pageSize = normalizePagination(page, pageSize)

	var total int64
	if err := s.db.WithContext(ctx).
		Model(&schema.Raid{}).
		Where("guild_id = ?", guildID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var raids []RaidWithTotals
	err := s.db.WithContext(ctx).Raw(`
		SELECT r.id, r.guild_id, r.name, r.is_official, r.created_at,
			COUNT(DISTINCT af.tick_index) AS total_ticks,
			COUNT(DISTINCT COALESCE(ol.main_id, af.character_id)) AS total_mains
		FROM raids r
		LEFT JOIN attendance_facts af ON af.raid_id = r.id
		LEFT JOIN ownership_links ol ON ol.box_id = af.character_id
		WHERE r.guild_id = ?
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT ? OFFSET ?`,
		guildID, pageSize, (page-1)*pageSize).
		Scan(&raids).Error
	if err != nil {
		return nil, 0, err
	}

	return raids, total, nil
}

// DeleteRaid removes a raid together with its facts, claims and loot, and
// records the audit entry in the same transaction
func (s *pgStore) DeleteRaid(ctx context.Context, id uint64, entry schema.AuditEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&schema.Raid{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete raid: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrRaidNotFound
		}

		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to create audit entry: %w", err)
		}

		return nil
	})
}

// CreateAttendanceFacts bulk-inserts facts, silently skipping keys that
// already exist
func (s *pgStore) CreateAttendanceFacts(ctx context.Context, facts []schema.AttendanceFact) error {
	if len(facts) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "character_id"},
			{Name: "raid_id"},
			{Name: "tick_index"},
		},
		DoNothing: true,
	}).Create(&facts).Error
	if err != nil {
		return fmt.Errorf("failed to create attendance facts: %w", err)
	}

	return nil
}

// ListAttendanceFactsByRaid retrieves all facts of a raid with characters
// preloaded, ordered by tick then character name
func (s *pgStore) ListAttendanceFactsByRaid(ctx context.Context, raidID uint64) ([]schema.AttendanceFact, error) {
	var facts []schema.AttendanceFact
	err := s.db.WithContext(ctx).
		Preload("Character").
		Where("raid_id = ?", raidID).
		Order("tick_index ASC, character_id ASC").
		Find(&facts).Error
	if err != nil {
		return nil, err
	}

	return facts, nil
}

// MaxTickIndex returns the highest tick index of a raid
func (s *pgStore) MaxTickIndex(ctx context.Context, raidID uint64) (int, bool, error) {
	var maxTick *int
	err := s.db.WithContext(ctx).
		Model(&schema.AttendanceFact{}).
		Where("raid_id = ?", raidID).
		Select("MAX(tick_index)").
		Scan(&maxTick).Error
	if err != nil {
		return 0, false, err
	}
	if maxTick == nil {
		return 0, false, nil
	}

	return *maxTick, true, nil
}

// CountDistinctTicksAttended counts the distinct tick indexes covered by any
// of the given characters in a raid
func (s *pgStore) CountDistinctTicksAttended(ctx context.Context, raidID uint64, characterIDs []uint64) (int, error) {
	if len(characterIDs) == 0 {
		return 0, nil
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.AttendanceFact{}).
		Where("raid_id = ? AND character_id IN ?", raidID, characterIDs).
		Distinct("tick_index").
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return int(count), nil
}

// DeleteAttendanceFacts removes the facts matching (characterIDs x ticks) for
// a raid in a single statement so concurrent removals cannot interleave
func (s *pgStore) DeleteAttendanceFacts(ctx context.Context, raidID uint64, characterIDs []uint64, ticks []int, entry *schema.AuditEntry) error {
	if len(characterIDs) == 0 || len(ticks) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("raid_id = ? AND character_id IN ? AND tick_index IN ?", raidID, characterIDs, ticks).
			Delete(&schema.AttendanceFact{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete attendance facts: %w", err)
		}

		if entry != nil {
			if err := tx.Create(entry).Error; err != nil {
				return fmt.Errorf("failed to create audit entry: %w", err)
			}
		}

		return nil
	})
}

// NormalizeFactTimestamps snaps recorded_at to the earliest timestamp of its
// (raid, tick) group wherever the spread exceeds maxSkew, so one logical tick
// reads as one moment in time
func (s *pgStore) NormalizeFactTimestamps(ctx context.Context, raidID uint64, maxSkew time.Duration) error {
	if maxSkew <= 0 {
		maxSkew = time.Hour
	}

	err := s.db.WithContext(ctx).Exec(`
		UPDATE attendance_facts af
		SET recorded_at = g.min_recorded
		FROM (
			SELECT tick_index, MIN(recorded_at) AS min_recorded
			FROM attendance_facts
			WHERE raid_id = ?
			GROUP BY tick_index
			HAVING MAX(recorded_at) - MIN(recorded_at) > ?::interval
		) g
		WHERE af.raid_id = ? AND af.tick_index = g.tick_index`,
		raidID, fmt.Sprintf("%d seconds", int64(maxSkew.Seconds())), raidID).Error
	if err != nil {
		return fmt.Errorf("failed to normalize fact timestamps: %w", err)
	}

	return nil
}

// CreateTickRequest upserts one pending claim per tick and appends the audit
// entry in one transaction. Re-requesting a decided key resets its decision
// columns, reopening the claim; existing attendance facts stay untouched.
func (s *pgStore) CreateTickRequest(ctx context.Context, input CreateTickRequestInput) error {
	if len(input.Ticks) == 0 {
		return nil
	}

	now := time.Now()
	claims := make([]schema.TickClaim, 0, len(input.Ticks))
	for _, tick := range input.Ticks {
		claims = append(claims, schema.TickClaim{
			CharacterID: input.CharacterID,
			RaidID:      input.RaidID,
			TickIndex:   tick,
			RequestedBy: input.RequestedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "character_id"},
				{Name: "raid_id"},
				{Name: "tick_index"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"requested_by", "approved_by", "approved_at",
				"rejected_by", "rejected_at", "updated_at",
			}),
		}).Create(&claims).Error
		if err != nil {
			return fmt.Errorf("failed to upsert tick claims: %w", err)
		}

		if err := tx.Create(&input.Audit).Error; err != nil {
			return fmt.Errorf("failed to create audit entry: %w", err)
		}

		return nil
	})
}

// ApproveTickClaim transitions one pending claim to approved, records the
// attendance fact and appends the audit entry in one transaction. The guarded
// UPDATE makes concurrent decisions on the same claim first-writer-wins.
func (s *pgStore) ApproveTickClaim(ctx context.Context, input DecideTickClaimInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&schema.TickClaim{}).
			Where("character_id = ? AND raid_id = ? AND tick_index = ?", input.CharacterID, input.RaidID, input.Tick).
			Where("approved_by IS NULL AND rejected_by IS NULL").
			Updates(map[string]interface{}{
				"approved_by": input.DecidedBy,
				"approved_at": input.DecidedAt,
				"updated_at":  input.DecidedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to approve tick claim: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrClaimNotFound
		}

		fact := schema.AttendanceFact{
			CharacterID: input.CharacterID,
			RaidID:      input.RaidID,
			TickIndex:   input.Tick,
			RecordedAt:  input.DecidedAt,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "character_id"},
				{Name: "raid_id"},
				{Name: "tick_index"},
			},
			DoNothing: true,
		}).Create(&fact).Error
		if err != nil {
			return fmt.Errorf("failed to create attendance fact: %w", err)
		}

		if err := tx.Create(&input.Audit).Error; err != nil {
			return fmt.Errorf("failed to create audit entry: %w", err)
		}

		return nil
	})
}

// RejectTickClaim transitions one pending claim to rejected, removes any
// attendance fact for the key and appends the audit entry in one transaction
func (s *pgStore) RejectTickClaim(ctx context.Context, input DecideTickClaimInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&schema.TickClaim{}).
			Where("character_id = ? AND raid_id = ? AND tick_index = ?", input.CharacterID, input.RaidID, input.Tick).
			Where("approved_by IS NULL AND rejected_by IS NULL").
			Updates(map[string]interface{}{
				"rejected_by": input.DecidedBy,
				"rejected_at": input.DecidedAt,
				"updated_at":  input.DecidedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to reject tick claim: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrClaimNotFound
		}

		// A fact can exist for the key when a reopened claim is rejected
		err := tx.
			Where("character_id = ? AND raid_id = ? AND tick_index = ?", input.CharacterID, input.RaidID, input.Tick).
			Delete(&schema.AttendanceFact{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete attendance fact: %w", err)
		}

		if err := tx.Create(&input.Audit).Error; err != nil {
			return fmt.Errorf("failed to create audit entry: %w", err)
		}

		return nil
	})
}

// ListPendingClaims lists a guild's claims still awaiting a decision, oldest
// first, with character and raid preloaded
func (s *pgStore) ListPendingClaims(ctx context.Context, guildID uint64) ([]schema.TickClaim, error) {
	var claims []schema.TickClaim
	err := s.db.WithContext(ctx).
		Preload("Character").
		Preload("Raid").
		Joins("JOIN raids ON raids.id = tick_claims.raid_id").
		Where("raids.guild_id = ?", guildID).
		Where("tick_claims.approved_by IS NULL AND tick_claims.rejected_by IS NULL").
		Order("tick_claims.created_at ASC, tick_claims.id ASC").
		Find(&claims).Error
	if err != nil {
		return nil, err
	}

	return claims, nil
}

// ListDecidedClaims lists a guild's decided claims, most recent decision first
func (s *pgStore) ListDecidedClaims(ctx context.Context, guildID uint64, page, pageSize int) ([]schema.TickClaim, int64, error) {
	page, pageSize = normalizePagination(page, pageSize)

	base := s.db.WithContext(ctx).
		Model(&schema.TickClaim{}).
		Joins("JOIN raids ON raids.id = tick_claims.raid_id").
		Where("raids.guild_id = ?", guildID).
		Where("tick_claims.approved_by IS NOT NULL OR tick_claims.rejected_by IS NOT NULL")

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var claims []schema.TickClaim
	err := base.Session(&gorm.Session{}).
		Preload("Character").
		Preload("Raid").
		Order("tick_claims.updated_at DESC, tick_claims.id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&claims).Error
	if err != nil {
		return nil, 0, err
	}

	return claims, total, nil
}

// GetOrCreateItemByName retrieves an item by name, creating it as
// uncategorized when unseen
func (s *pgStore) GetOrCreateItemByName(ctx context.Context, name string) (*schema.Item, error) {
	var item schema.Item
	err := s.db.WithContext(ctx).
		Where("name = ?", name).
		First(&item).Error
	if err == nil {
		return &item, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	item = schema.Item{Name: name, Category: schema.ItemCategoryUncategorized}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	return &item, nil
}

// CreateLootAward inserts one loot award
func (s *pgStore) CreateLootAward(ctx context.Context, award *schema.LootAward) error {
	return s.db.WithContext(ctx).Create(award).Error
}

// ListLootAwards lists loot with character, item and raid preloaded, ordered
// by item category then recency
func (s *pgStore) ListLootAwards(ctx context.Context, filter LootFilter) ([]schema.LootAward, error) {
	query := s.db.WithContext(ctx).
		Preload("Character").
		Preload("Item").
		Preload("Raid").
		Joins("JOIN items ON items.id = loot_awards.item_id")

	if len(filter.RaidIDs) > 0 {
		query = query.Where("loot_awards.raid_id IN ?", filter.RaidIDs)
	}
	if filter.CharacterID != nil {
		query = query.Where("loot_awards.character_id = ?", *filter.CharacterID)
	}

	var awards []schema.LootAward
	err := query.
		Order("items.category ASC, loot_awards.created_at DESC, loot_awards.id DESC").
		Find(&awards).Error
	if err != nil {
		return nil, err
	}

	return awards, nil
}

// GetLootAwardByID retrieves one loot award with its associations
func (s *pgStore) GetLootAwardByID(ctx context.Context, id uint64) (*schema.LootAward, error) {
	var award schema.LootAward
	err := s.db.WithContext(ctx).
		Preload("Character").
		Preload("Item").
		Preload("Raid").
		Where("id = ?", id).
		First(&award).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &award, nil
}

// ReassignLootAward moves an award to another character and records the audit
// entry in the same transaction
func (s *pgStore) ReassignLootAward(ctx context.Context, id, toCharacterID uint64, entry schema.AuditEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&schema.LootAward{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"character_id": toCharacterID,
				"was_assigned": true,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to reassign loot award: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrLootNotFound
		}

		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to create audit entry: %w", err)
		}

		return nil
	})
}

// CreateAuditEntry appends a standalone audit entry
func (s *pgStore) CreateAuditEntry(ctx context.Context, entry *schema.AuditEntry) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// ListAuditEntries lists a guild's audit entries newest first
func (s *pgStore) ListAuditEntries(ctx context.Context, guildID uint64, page, pageSize int) ([]schema.AuditEntry, int64, error) {
	page, pageSize = normalizePagination(page, pageSize)

	var total int64
	if err := s.db.WithContext(ctx).
		Model(&schema.AuditEntry{}).
		Where("guild_id = ?", guildID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []schema.AuditEntry
	err := s.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("created_at DESC, id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
