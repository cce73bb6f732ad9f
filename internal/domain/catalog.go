package domain

import "slices"

// Money is an amount in the currency's smallest unit.
type Money int64

type MenuItem struct {
	ID          int64  `bson:"id" json:"id"`
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description" json:"description"`
	ImageURL    string `bson:"image_url" json:"imageUrl"`
	BasePrice   Money  `bson:"base_price" json:"basePrice"`
}

type OptionValue struct {
	ID              int64  `bson:"id" json:"id"`
	Value           string `bson:"value" json:"value"`
	AdditionalPrice Money  `bson:"additional_price" json:"additionalPrice"`
}

// OptionGroup is one customization axis of a menu item, e.g. "Size".
type OptionGroup struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Values      []OptionValue `json:"values"`
}

// Find returns the value with the given id.
func (g OptionGroup) Find(valueID int64) (OptionValue, bool) {
	for _, v := range g.Values {
		if v.ID == valueID {
			return v, true
		}
	}
	return OptionValue{}, false
}

// SelectedOptions maps an OptionGroup id to the value chosen for it.
type SelectedOptions map[int64]OptionValue

// Values returns the selections ordered by group id.
func (s SelectedOptions) Values() []OptionValue {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	values := make([]OptionValue, 0, len(ids))
	for _, id := range ids {
		values = append(values, s[id])
	}
	return values
}
