package options

import (
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/pricing"
)

type State int

const (
	StateClosed State = iota
	StateLoading
	StateReady
	StateConfirmed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateLoading:
		return "LOADING"
	case StateReady:
		return "READY"
	case StateConfirmed:
		return "CONFIRMED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Commit is what a confirmed customization hands to the cart.
type Commit struct {
	Item     domain.MenuItem
	Options  []domain.OptionValue
	Quantity int
}

// Customization drives one add-to-cart interaction:
// Closed -> Loading -> Ready -> (Confirmed | Cancelled) -> Closed.
type Customization struct {
	state    State
	last     State
	item     domain.MenuItem
	groups   []domain.OptionGroup
	selected domain.SelectedOptions
	quantity int
}

func NewCustomization() *Customization {
	return &Customization{state: StateClosed, last: StateClosed, quantity: 1}
}

func (c *Customization) State() State { return c.state }

// Outcome is the terminal state of the last finished interaction.
func (c *Customization) Outcome() State { return c.last }

func (c *Customization) Quantity() int { return c.quantity }

func (c *Customization) Selected() domain.SelectedOptions { return c.selected }

func (c *Customization) Open(item domain.MenuItem) error {
	if c.state != StateClosed {
		return c.illegal("open")
	}
	c.item = item
	c.groups = nil
	c.selected = domain.SelectedOptions{}
	c.quantity = 1
	c.state = StateLoading
	return nil
}

func (c *Customization) OptionsLoaded(groups []domain.OptionGroup) error {
	if c.state != StateLoading {
		return c.illegal("load options")
	}
	c.groups = groups
	c.state = StateReady
	return nil
}

func (c *Customization) Select(groupID, valueID int64) error {
	if c.state != StateReady {
		return c.illegal("select")
	}
	for _, g := range c.groups {
		if g.ID != groupID {
			continue
		}
		v, ok := g.Find(valueID)
		if !ok {
			return fmt.Errorf("%w: value %d is not offered by %q", ErrInvalidSelection, valueID, g.Name)
		}
		c.selected[groupID] = v
		return nil
	}
	return fmt.Errorf("%w: unknown option group %d", ErrInvalidSelection, groupID)
}

func (c *Customization) SetQuantity(quantity int) error {
	if c.state != StateReady {
		return c.illegal("set quantity")
	}
	c.quantity = pricing.ClampQuantity(quantity)
	return nil
}

// UnavailableGroups lists loaded groups with no values, shown as "no options available".
func (c *Customization) UnavailableGroups() []domain.OptionGroup {
	return UnavailableGroups(c.groups)
}

// Confirm validates the selections and closes the interaction. On validation failure the
// customization stays Ready so the user can complete it.
func (c *Customization) Confirm() (Commit, error) {
	if c.state != StateReady {
		return Commit{}, c.illegal("confirm")
	}
	if err := Validate(c.groups, c.selected); err != nil {
		return Commit{}, err
	}
	commit := Commit{
		Item:     c.item,
		Options:  c.selected.Values(),
		Quantity: c.quantity,
	}
	c.finish(StateConfirmed)
	return commit, nil
}

// Cancel always succeeds and discards selections and quantity.
func (c *Customization) Cancel() {
	c.finish(StateCancelled)
}

func (c *Customization) finish(outcome State) {
	c.last = outcome
	c.state = StateClosed
	c.item = domain.MenuItem{}
	c.groups = nil
	c.selected = nil
	c.quantity = 1
}

func (c *Customization) illegal(action string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrIllegalTransition, action, c.state)
}
