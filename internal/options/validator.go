package options

import (
	"fmt"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// CanCommit reports whether every group that offers values has a selection.
func CanCommit(groups []domain.OptionGroup, selected domain.SelectedOptions) bool {
	return Validate(groups, selected) == nil
}

// Validate checks selections against the groups offered for an item.
// Groups without values are not mandatory; see UnavailableGroups.
func Validate(groups []domain.OptionGroup, selected domain.SelectedOptions) error {
	byID := make(map[int64]domain.OptionGroup, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}

	for groupID, value := range selected {
		g, ok := byID[groupID]
		if !ok {
			return fmt.Errorf("%w: unknown option group %d", ErrInvalidSelection, groupID)
		}
		if _, ok := g.Find(value.ID); !ok {
			return fmt.Errorf("%w: value %d is not offered by %q", ErrInvalidSelection, value.ID, g.Name)
		}
	}

	var missing []string
	for _, g := range groups {
		if len(g.Values) == 0 {
			continue
		}
		if _, ok := selected[g.ID]; !ok {
			missing = append(missing, g.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSelection, strings.Join(missing, ", "))
	}
	return nil
}

// UnavailableGroups returns the groups that currently offer no values.
func UnavailableGroups(groups []domain.OptionGroup) []domain.OptionGroup {
	var out []domain.OptionGroup
	for _, g := range groups {
		if len(g.Values) == 0 {
			out = append(out, g)
		}
	}
	return out
}
