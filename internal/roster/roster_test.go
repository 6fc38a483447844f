package roster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnc-guild/attendance-engine/internal/domain"
	"github.com/bnc-guild/attendance-engine/internal/store/schema"
)

// fakeStore is an in-memory roster store for unit tests
type fakeStore struct {
	characters map[uint64]*schema.Character
	links      map[uint64]uint64 // box id -> main id
	nextID     uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		characters: make(map[uint64]*schema.Character),
		links:      make(map[uint64]uint64),
	}
}

func (f *fakeStore) GetCharacterByID(_ context.Context, id uint64) (*schema.Character, error) {
	return f.characters[id], nil
}

func (f *fakeStore) GetCharactersByIDs(_ context.Context, ids []uint64) ([]schema.Character, error) {
	var out []schema.Character
	for _, id := range ids {
		if c := f.characters[id]; c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListMains(_ context.Context, guildID uint64) ([]schema.Character, error) {
	var out []schema.Character
	for _, c := range f.characters {
		if c.GuildID != guildID || c.Deleted {
			continue
		}
		if _, isBox := f.links[c.ID]; isBox {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeStore) CreateCharacter(_ context.Context, character *schema.Character) error {
	for _, c := range f.characters {
		if c.GuildID == character.GuildID && c.Name == character.Name && !c.Deleted {
			return domain.ErrDuplicateName
		}
	}
	f.nextID++
	character.ID = f.nextID
	f.characters[character.ID] = character
	return nil
}

func (f *fakeStore) CreateOwnershipLink(_ context.Context, link *schema.OwnershipLink) error {
	f.links[link.BoxID] = link.MainID
	return nil
}

func (f *fakeStore) GetOwnershipLinkByBoxID(_ context.Context, boxID uint64) (*schema.OwnershipLink, error) {
	mainID, ok := f.links[boxID]
	if !ok {
		return nil, nil
	}
	return &schema.OwnershipLink{BoxID: boxID, MainID: mainID}, nil
}

func (f *fakeStore) ListOwnershipLinksByBoxIDs(_ context.Context, boxIDs []uint64) ([]schema.OwnershipLink, error) {
	var out []schema.OwnershipLink
	for _, id := range boxIDs {
		if mainID, ok := f.links[id]; ok {
			out = append(out, schema.OwnershipLink{BoxID: id, MainID: mainID})
		}
	}
	return out, nil
}

func (f *fakeStore) ListBoxes(_ context.Context, mainID uint64) ([]schema.Character, error) {
	var out []schema.Character
	for boxID, m := range f.links {
		if m != mainID {
			continue
		}
		if c := f.characters[boxID]; c != nil && !c.Deleted {
			out = append(out, *c)
		}
	}
	return out, nil
}

func seed(t *testing.T, svc *Service, name string) *schema.Character {
	t.Helper()
	character, err := svc.Register(context.Background(), CreateCharacterInput{
		Name:  name,
		Class: "shaman",
		Level: 60,
	})
	require.NoError(t, err)
	return character
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore(), 1)

	t.Run("normalizes name and class", func(t *testing.T) {
		character, err := svc.Register(ctx, CreateCharacterInput{
			Name:  "  Thorgar ",
			Class: "Warrior",
			Level: 60,
		})
		require.NoError(t, err)
		assert.Equal(t, "thorgar", character.Name)
		assert.Equal(t, "warrior", character.Class)
	})

	t.Run("rejects short names", func(t *testing.T) {
		_, err := svc.Register(ctx, CreateCharacterInput{Name: "ab", Class: "cleric", Level: 10})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("rejects out-of-range levels", func(t *testing.T) {
		_, err := svc.Register(ctx, CreateCharacterInput{Name: "valid", Class: "cleric", Level: 0})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		_, err = svc.Register(ctx, CreateCharacterInput{Name: "valid", Class: "cleric", Level: 151})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("rejects unknown classes", func(t *testing.T) {
		_, err := svc.Register(ctx, CreateCharacterInput{Name: "valid", Class: "jedi", Level: 10})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		_, err := svc.Register(ctx, CreateCharacterInput{Name: "Thorgar", Class: "cleric", Level: 10})
		assert.ErrorIs(t, err, domain.ErrDuplicateName)
	})
}

func TestLinkBox(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore(), 1)

	main := seed(t, svc, "mainchar")
	box := seed(t, svc, "boxchar")
	other := seed(t, svc, "otherchar")

	t.Run("links a box to its main", func(t *testing.T) {
		require.NoError(t, svc.LinkBox(ctx, box.ID, main.ID))

		mainID, err := svc.ResolveMain(ctx, box.ID)
		require.NoError(t, err)
		assert.Equal(t, main.ID, mainID)
	})

	t.Run("a box cannot own boxes", func(t *testing.T) {
		err := svc.LinkBox(ctx, other.ID, box.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("a box cannot be linked twice", func(t *testing.T) {
		err := svc.LinkBox(ctx, box.ID, other.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("self links are invalid", func(t *testing.T) {
		err := svc.LinkBox(ctx, main.ID, main.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("missing characters are reported", func(t *testing.T) {
		err := svc.LinkBox(ctx, 999, main.ID)
		assert.ErrorIs(t, err, domain.ErrCharacterNotFound)
	})
}

func TestResolveMain(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore(), 1)

	main := seed(t, svc, "resolvermain")
	box := seed(t, svc, "resolverbox")
	require.NoError(t, svc.LinkBox(ctx, box.ID, main.ID))

	t.Run("a main resolves to itself", func(t *testing.T) {
		got, err := svc.ResolveMain(ctx, main.ID)
		require.NoError(t, err)
		assert.Equal(t, main.ID, got)
	})

	t.Run("a box resolves to its main", func(t *testing.T) {
		got, err := svc.ResolveMain(ctx, box.ID)
		require.NoError(t, err)
		assert.Equal(t, main.ID, got)
	})

	t.Run("resolution is idempotent", func(t *testing.T) {
		once, err := svc.ResolveMain(ctx, box.ID)
		require.NoError(t, err)
		twice, err := svc.ResolveMain(ctx, once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	})

	t.Run("an unknown id resolves to itself", func(t *testing.T) {
		got, err := svc.ResolveMain(ctx, 424242)
		require.NoError(t, err)
		assert.Equal(t, uint64(424242), got)
	})
}

func TestMainsOf(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore(), 1)

	main := seed(t, svc, "bulkmain")
	boxA := seed(t, svc, "bulkboxa")
	boxB := seed(t, svc, "bulkboxb")
	require.NoError(t, svc.LinkBox(ctx, boxA.ID, main.ID))
	require.NoError(t, svc.LinkBox(ctx, boxB.ID, main.ID))

	mains, err := svc.MainsOf(ctx, []uint64{main.ID, boxA.ID, boxB.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]uint64{
		main.ID: main.ID,
		boxA.ID: main.ID,
		boxB.ID: main.ID,
		999:     999,
	}, mains)
}

func TestUnit(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore(), 1)

	main := seed(t, svc, "unitmain")
	box := seed(t, svc, "unitbox")
	require.NoError(t, svc.LinkBox(ctx, box.ID, main.ID))

	t.Run("unit of a box covers the whole main-group", func(t *testing.T) {
		unit, err := svc.Unit(ctx, box.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint64{main.ID, box.ID}, unit)
		assert.Equal(t, main.ID, unit[0])
	})

	t.Run("unit of a boxless main is just the main", func(t *testing.T) {
		solo := seed(t, svc, "solomain")
		unit, err := svc.Unit(ctx, solo.ID)
		require.NoError(t, err)
		assert.Equal(t, []uint64{solo.ID}, unit)
	})
}
