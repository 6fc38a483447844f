package roster

import (
	"context"
	"fmt"
)

// ResolveMain maps a character to its owning main. A character with no
// ownership link resolves to itself, so the operation is idempotent: only one
// level of the graph is consulted even if deeper chains exist in the data.
func (s *Service) ResolveMain(ctx context.Context, characterID uint64) (uint64, error) {
	link, err := s.store.GetOwnershipLinkByBoxID(ctx, characterID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve main: %w", err)
	}
	if link == nil {
		return characterID, nil
	}
	return link.MainID, nil
}

// MainsOf resolves many characters at once; every input id gets an entry in
// the result, mapping to itself when it is not a box.
func (s *Service) MainsOf(ctx context.Context, characterIDs []uint64) (map[uint64]uint64, error) {
	mains := make(map[uint64]uint64, len(characterIDs))
	for _, id := range characterIDs {
		mains[id] = id
	}

	links, err := s.store.ListOwnershipLinksByBoxIDs(ctx, characterIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mains: %w", err)
	}
	for _, link := range links {
		mains[link.BoxID] = link.MainID
	}

	return mains, nil
}

// Unit returns the ids of a character's whole main-group: the resolved main
// followed by all of that main's boxes. Bulk operations treat this group as
// one logical player.
func (s *Service) Unit(ctx context.Context, characterID uint64) ([]uint64, error) {
	mainID, err := s.ResolveMain(ctx, characterID)
	if err != nil {
		return nil, err
	}

	boxes, err := s.store.ListBoxes(ctx, mainID)
	if err != nil {
		return nil, fmt.Errorf("failed to list boxes: %w", err)
	}

	unit := make([]uint64, 0, len(boxes)+1)
	unit = append(unit, mainID)
	for _, box := range boxes {
		unit = append(unit, box.ID)
	}

	return unit, nil
}
