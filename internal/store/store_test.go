package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnc-guild/attendance-engine/internal/domain"
	"github.com/bnc-guild/attendance-engine/internal/store/schema"
)

const testGuildID uint64 = 1

// =============================================================================
// Test Data Builders
// =============================================================================

var testNameSeq int

// seedCharacter creates a character with a unique name
func seedCharacter(t *testing.T, s Store, name string) *schema.Character {
	t.Helper()
	if name == "" {
		testNameSeq++
		name = fmt.Sprintf("character%d", testNameSeq)
	}
	character := &schema.Character{
		GuildID: testGuildID,
		Name:    name,
		Class:   "cleric",
		Level:   60,
		Rank:    "member",
	}
	require.NoError(t, s.CreateCharacter(context.Background(), character))
	return character
}

// seedBox creates a character owned by main
func seedBox(t *testing.T, s Store, main *schema.Character, name string) *schema.Character {
	t.Helper()
	box := seedCharacter(t, s, name)
	require.NoError(t, s.CreateOwnershipLink(context.Background(), &schema.OwnershipLink{
		BoxID:  box.ID,
		MainID: main.ID,
	}))
	return box
}

// seedRaid creates a raid
func seedRaid(t *testing.T, s Store, name string) *schema.Raid {
	t.Helper()
	raid := &schema.Raid{
		GuildID:    testGuildID,
		Name:       name,
		IsOfficial: true,
	}
	require.NoError(t, s.CreateRaid(context.Background(), raid))
	return raid
}

// seedFacts records one fact per tick for a character
func seedFacts(t *testing.T, s Store, characterID, raidID uint64, ticks ...int) {
	t.Helper()
	facts := make([]schema.AttendanceFact, 0, len(ticks))
	for _, tick := range ticks {
		facts = append(facts, schema.AttendanceFact{
			CharacterID: characterID,
			RaidID:      raidID,
			TickIndex:   tick,
			RecordedAt:  time.Now().UTC(),
		})
	}
	require.NoError(t, s.CreateAttendanceFacts(context.Background(), facts))
}

func buildAuditEntry(actorID uint64, entryType schema.AuditEntryType, message string) schema.AuditEntry {
	return schema.AuditEntry{
		GuildID: testGuildID,
		ActorID: actorID,
		Type:    entryType,
		Message: message,
	}
}

// =============================================================================
// Test: Characters and ownership
// =============================================================================

func testCharacters(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("create and get by id", func(t *testing.T) {
		created := seedCharacter(t, s, "alderon")

		character, err := s.GetCharacterByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, character)
		assert.Equal(t, "alderon", character.Name)
		assert.Equal(t, "cleric", character.Class)
		assert.False(t, character.Deleted)
	})

	t.Run("get missing character returns nil", func(t *testing.T) {
		character, err := s.GetCharacterByID(ctx, 999999999)
		require.NoError(t, err)
		assert.Nil(t, character)
	})

	t.Run("duplicate name among live characters is rejected", func(t *testing.T) {
		seedCharacter(t, s, "borin")

		err := s.CreateCharacter(ctx, &schema.Character{
			GuildID: testGuildID,
			Name:    "borin",
			Class:   "warrior",
			Level:   50,
		})
		assert.ErrorIs(t, err, domain.ErrDuplicateName)
	})

	t.Run("get by ids", func(t *testing.T) {
		a := seedCharacter(t, s, "")
		b := seedCharacter(t, s, "")

		characters, err := s.GetCharactersByIDs(ctx, []uint64{a.ID, b.ID})
		require.NoError(t, err)
		assert.Len(t, characters, 2)

		characters, err = s.GetCharactersByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, characters)
	})

	t.Run("mains exclude boxes", func(t *testing.T) {
		main := seedCharacter(t, s, "caladria")
		box := seedBox(t, s, main, "caladriabox")

		mains, err := s.ListMains(ctx, testGuildID)
		require.NoError(t, err)

		ids := make(map[uint64]bool, len(mains))
		for _, m := range mains {
			ids[m.ID] = true
		}
		assert.True(t, ids[main.ID])
		assert.False(t, ids[box.ID])
	})

	t.Run("ownership lookups", func(t *testing.T) {
		main := seedCharacter(t, s, "dorian")
		boxA := seedBox(t, s, main, "dorianboxa")
		boxB := seedBox(t, s, main, "dorianboxb")

		link, err := s.GetOwnershipLinkByBoxID(ctx, boxA.ID)
		require.NoError(t, err)
		require.NotNil(t, link)
		assert.Equal(t, main.ID, link.MainID)

		link, err = s.GetOwnershipLinkByBoxID(ctx, main.ID)
		require.NoError(t, err)
		assert.Nil(t, link)

		links, err := s.ListOwnershipLinksByBoxIDs(ctx, []uint64{boxA.ID, boxB.ID, main.ID})
		require.NoError(t, err)
		assert.Len(t, links, 2)

		boxes, err := s.ListBoxes(ctx, main.ID)
		require.NoError(t, err)
		require.Len(t, boxes, 2)
		assert.Equal(t, "dorianboxa", boxes[0].Name)
		assert.Equal(t, "dorianboxb", boxes[1].Name)
	})
}

// =============================================================================
// Test: Tick claim lifecycle
// =============================================================================

func testTickClaimLifecycle(t *testing.T, s Store) {
	ctx := context.Background()

	officer := seedCharacter(t, s, "")
	member := seedCharacter(t, s, "")
	raid := seedRaid(t, s, "plane of fear")

	request := func(ticks ...int) {
		require.NoError(t, s.CreateTickRequest(ctx, CreateTickRequestInput{
			CharacterID: member.ID,
			RaidID:      raid.ID,
			Ticks:       ticks,
			RequestedBy: member.ID,
			Audit:       buildAuditEntry(member.ID, schema.AuditTickRequested, "requested"),
		}))
	}

	t.Run("request creates pending claims and an audit entry", func(t *testing.T) {
		request(0, 1)

		claims, err := s.ListPendingClaims(ctx, testGuildID)
		require.NoError(t, err)
		require.Len(t, claims, 2)
		assert.True(t, claims[0].Pending())
		assert.Equal(t, member.ID, claims[0].RequestedBy)

		entries, total, err := s.ListAuditEntries(ctx, testGuildID, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, entries, 1)
		assert.Equal(t, schema.AuditTickRequested, entries[0].Type)
	})

	t.Run("approve records the fact and closes the claim", func(t *testing.T) {
		err := s.ApproveTickClaim(ctx, DecideTickClaimInput{
			CharacterID: member.ID,
			RaidID:      raid.ID,
			Tick:        0,
			DecidedBy:   officer.ID,
			DecidedAt:   time.Now().UTC(),
			Audit:       buildAuditEntry(officer.ID, schema.AuditTickApproved, "approved"),
		})
		require.NoError(t, err)

		facts, err := s.ListAttendanceFactsByRaid(ctx, raid.ID)
		require.NoError(t, err)
		require.Len(t, facts, 1)
		assert.Equal(t, member.ID, facts[0].CharacterID)
		assert.Equal(t, 0, facts[0].TickIndex)

		claims, err := s.ListPendingClaims(ctx, testGuildID)
		require.NoError(t, err)
		assert.Len(t, claims, 1)
	})

	t.Run("deciding a decided claim fails", func(t *testing.T) {
		err := s.ApproveTickClaim(ctx, DecideTickClaimInput{
			CharacterID: member.ID,
			RaidID:      raid.ID,
			Tick:        0,
			DecidedBy:   officer.ID,
			DecidedAt:   time.Now().UTC(),
			Audit:       buildAuditEntry(officer.ID, schema.AuditTickApproved, "approved again"),
		})
		assert.ErrorIs(t, err, domain.ErrClaimNotFound)

		err = s.RejectTickClaim(ctx, DecideTickClaimInput{
			CharacterID: member.ID,
			RaidID:      raid.ID,
			Tick:        0,
			DecidedBy:   officer.ID,
			DecidedAt:   time.Now().UTC(),
			Audit:       buildAuditEntry(officer.ID, schema.AuditTickRejected, "rejected"),
		})
		assert.ErrorIs(t, err, domain.ErrClaimNotFound)
	})

	t.Run("reject removes the fact for the key", func(t *testing.T) {
		err := s.RejectTickClaim(ctx, DecideTickClaimInput{
			CharacterID: member.ID,
			RaidID:      raid.ID,
			Tick:        1,
			DecidedBy:   officer.ID,
			DecidedAt:   time.Now().UTC(),
			Audit:       buildAuditEntry(officer.ID, schema.AuditTickRejected, "rejected"),
		})
		require.NoError(t, err)

		facts, err := s.ListAttendanceFactsByRaid(ctx, raid.ID)
		require.NoError(t, err)
		assert.Len(t, facts, 1)

		claims, err := s.ListPendingClaims(ctx, testGuildID)
		require.NoError(t, err)
		assert.Empty(t, claims)
	})

	t.Run("re-requesting a decided key reopens the claim", func(t *testing.T) {
		request(1)

		claims, err := s.ListPendingClaims(ctx, testGuildID)
		require.NoError(t, err)
		require.Len(t, claims, 1)
		assert.Equal(t, 1, claims[0].TickIndex)
		assert.True(t, claims[0].Pending())
	})

	t.Run("decided claims are listed newest decision first", func(t *testing.T) {
		claims, total, err := s.ListDecidedClaims(ctx, testGuildID, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, claims, 1)
		assert.Equal(t, 0, claims[0].TickIndex)
		assert.NotNil(t, claims[0].ApprovedBy)
	})

	t.Run("reopening an approved key leaves the recorded fact", func(t *testing.T) {
		request(0)

		claims, err := s.ListPendingClaims(ctx, testGuildID)
		require.NoError(t, err)
		assert.Len(t, claims, 2)

		facts, err := s.ListAttendanceFactsByRaid(ctx, raid.ID)
		require.NoError(t, err)
		require.Len(t, facts, 1)
		assert.Equal(t, 0, facts[0].TickIndex)
		assert.Equal(t, member.ID, facts[0].CharacterID)

		decided, total, err := s.ListDecidedClaims(ctx, testGuildID, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		assert.Empty(t, decided)
	})
}

// =============================================================================
// Test: Attendance facts
// =============================================================================

func testAttendanceFacts(t *testing.T, s Store) {
	ctx := context.Background()

	main := seedCharacter(t, s, "")
	box := seedBox(t, s, main, "")
	raid := seedRaid(t, s, "temple of veeshan")

	t.Run("max tick of an empty raid reports no facts", func(t *testing.T) {
		_, ok, err := s.MaxTickIndex(ctx, raid.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("duplicate facts are skipped", func(t *testing.T) {
		seedFacts(t, s, main.ID, raid.ID, 0, 1, 2)
		seedFacts(t, s, main.ID, raid.ID, 2)
		seedFacts(t, s, box.ID, raid.ID, 2, 5)

		facts, err := s.ListAttendanceFactsByRaid(ctx, raid.ID)
		require.NoError(t, err)
		assert.Len(t, facts, 5)

		maxTick, ok, err := s.MaxTickIndex(ctx, raid.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 5, maxTick)
	})

	t.Run("distinct ticks are counted across a main and its boxes", func(t *testing.T) {
		count, err := s.CountDistinctTicksAttended(ctx, raid.ID, []uint64{main.ID, box.ID})
		require.NoError(t, err)
		// ticks 0, 1, 2 and 5: the shared tick 2 counts once
		assert.Equal(t, 4, count)
	})

	t.Run("delete removes only the matching keys", func(t *testing.T) {
		entry := buildAuditEntry(main.ID, schema.AuditTicksRemoved, "removed")
		err := s.DeleteAttendanceFacts(ctx, raid.ID, []uint64{main.ID, box.ID}, []int{2}, &entry)
		require.NoError(t, err)

		facts, err := s.ListAttendanceFactsByRaid(ctx, raid.ID)
		require.NoError(t, err)
		assert.Len(t, facts, 3)
		for _, f := range facts {
			assert.NotEqual(t, 2, f.TickIndex)
		}
	})
}

// =============================================================================
// Test: Timestamp normalization
// =============================================================================

func testNormalizeFactTimestamps(t *testing.T, s Store) {
	ctx := context.Background()

	a := seedCharacter(t, s, "")
	b := seedCharacter(t, s, "")
	raid := seedRaid(t, s, "kael arena")

	base := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateAttendanceFacts(ctx, []schema.AttendanceFact{
		// tick 0 spread beyond an hour, snaps to base
		{CharacterID: a.ID, RaidID: raid.ID, TickIndex: 0, RecordedAt: base},
		{CharacterID: b.ID, RaidID: raid.ID, TickIndex: 0, RecordedAt: base.Add(2 * time.Hour)},
		// tick 1 spread below the threshold, untouched
		{CharacterID: a.ID, RaidID: raid.ID, TickIndex: 1, RecordedAt: base},
		{CharacterID: b.ID, RaidID: raid.ID, TickIndex: 1, RecordedAt: base.Add(10 * time.Minute)},
	}))

	require.NoError(t, s.NormalizeFactTimestamps(ctx, raid.ID, time.Hour))

	facts, err := s.ListAttendanceFactsByRaid(ctx, raid.ID)
	require.NoError(t, err)
	require.Len(t, facts, 4)

	for _, f := range facts {
		switch f.TickIndex {
		case 0:
			assert.True(t, f.RecordedAt.Equal(base), "tick 0 should snap to the earliest timestamp")
		case 1:
			if f.CharacterID == b.ID {
				assert.True(t, f.RecordedAt.Equal(base.Add(10*time.Minute)))
			}
		}
	}
}

// =============================================================================
// Test: Raids
// =============================================================================

func testRaids(t *testing.T, s Store) {
	ctx := context.Background()

	main := seedCharacter(t, s, "")
	box := seedBox(t, s, main, "")
	other := seedCharacter(t, s, "")
	raid := seedRaid(t, s, "sleeper's tomb")

	seedFacts(t, s, main.ID, raid.ID, 0, 1)
	seedFacts(t, s, box.ID, raid.ID, 2)
	seedFacts(t, s, other.ID, raid.ID, 0)

	t.Run("listing reports totals with boxes collapsed into mains", func(t *testing.T) {
		raids, total, err := s.ListRaids(ctx, testGuildID, 1, 10)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, total, int64(1))

		var found *RaidWithTotals
		for i := range raids {
			if raids[i].ID == raid.ID {
				found = &raids[i]
				break
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, 3, found.TotalTicks)
		// box attendance folds into the main, so two attendees
		assert.Equal(t, 2, found.TotalMains)
	})

	t.Run("get missing raid returns nil", func(t *testing.T) {
		got, err := s.GetRaid(ctx, 999999999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete cascades and writes the audit entry", func(t *testing.T) {
		err := s.DeleteRaid(ctx, raid.ID, buildAuditEntry(main.ID, schema.AuditRaidDeleted, "deleted"))
		require.NoError(t, err)

		got, err := s.GetRaid(ctx, raid.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		facts, err := s.ListAttendanceFactsByRaid(ctx, raid.ID)
		require.NoError(t, err)
		assert.Empty(t, facts)

		err = s.DeleteRaid(ctx, raid.ID, buildAuditEntry(main.ID, schema.AuditRaidDeleted, "deleted"))
		assert.ErrorIs(t, err, domain.ErrRaidNotFound)
	})
}

// =============================================================================
// Test: Loot
// =============================================================================

func testLoot(t *testing.T, s Store) {
	ctx := context.Background()

	winner := seedCharacter(t, s, "")
	receiver := seedCharacter(t, s, "")
	raid := seedRaid(t, s, "city of mist")

	t.Run("items are created once per name", func(t *testing.T) {
		first, err := s.GetOrCreateItemByName(ctx, "cloak of flames")
		require.NoError(t, err)
		assert.Equal(t, schema.ItemCategoryUncategorized, first.Category)

		second, err := s.GetOrCreateItemByName(ctx, "cloak of flames")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("awards list with associations", func(t *testing.T) {
		item, err := s.GetOrCreateItemByName(ctx, "blade of carnage")
		require.NoError(t, err)

		award := &schema.LootAward{
			RaidID:      raid.ID,
			CharacterID: winner.ID,
			ItemID:      item.ID,
			Quantity:    1,
		}
		require.NoError(t, s.CreateLootAward(ctx, award))

		awards, err := s.ListLootAwards(ctx, LootFilter{RaidIDs: []uint64{raid.ID}})
		require.NoError(t, err)
		require.Len(t, awards, 1)
		require.NotNil(t, awards[0].Item)
		assert.Equal(t, "blade of carnage", awards[0].Item.Name)
		require.NotNil(t, awards[0].Character)
		assert.Equal(t, winner.ID, awards[0].Character.ID)

		awards, err = s.ListLootAwards(ctx, LootFilter{CharacterID: &receiver.ID})
		require.NoError(t, err)
		assert.Empty(t, awards)
	})

	t.Run("reassign moves the award and marks it assigned", func(t *testing.T) {
		awards, err := s.ListLootAwards(ctx, LootFilter{RaidIDs: []uint64{raid.ID}})
		require.NoError(t, err)
		require.Len(t, awards, 1)

		err = s.ReassignLootAward(ctx, awards[0].ID, receiver.ID,
			buildAuditEntry(winner.ID, schema.AuditLootReassigned, "reassigned"))
		require.NoError(t, err)

		award, err := s.GetLootAwardByID(ctx, awards[0].ID)
		require.NoError(t, err)
		require.NotNil(t, award)
		assert.Equal(t, receiver.ID, award.CharacterID)
		assert.True(t, award.WasAssigned)

		err = s.ReassignLootAward(ctx, 999999999, receiver.ID,
			buildAuditEntry(winner.ID, schema.AuditLootReassigned, "reassigned"))
		assert.ErrorIs(t, err, domain.ErrLootNotFound)
	})
}

// =============================================================================
// Test: Audit entries
// =============================================================================

func testAuditEntries(t *testing.T, s Store) {
	ctx := context.Background()

	actor := seedCharacter(t, s, "")

	for i := 0; i < 3; i++ {
		entry := buildAuditEntry(actor.ID, schema.AuditTickRequested, fmt.Sprintf("entry %d", i))
		entry.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, s.CreateAuditEntry(ctx, &entry))
	}

	entries, total, err := s.ListAuditEntries(ctx, testGuildID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, entries, 2)
	assert.Equal(t, "entry 2", entries[0].Message)

	entries, _, err = s.ListAuditEntries(ctx, testGuildID, 2, 2)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "entry 0", entries[0].Message)
}

// =============================================================================
// Suite runner
// =============================================================================

// RunStoreTests runs the full store suite against an implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"Characters", testCharacters},
		{"TickClaimLifecycle", testTickClaimLifecycle},
		{"AttendanceFacts", testAttendanceFacts},
		{"NormalizeFactTimestamps", testNormalizeFactTimestamps},
		{"Raids", testRaids},
		{"Loot", testLoot},
		{"AuditEntries", testAuditEntries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, s)
		})
	}
}
