package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// flexMoney accepts prices as JSON numbers or decimal strings and rounds to minor units.
type flexMoney struct {
	set   bool
	value domain.Money
}

func (f *flexMoney) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", b, err)
	}
	f.value = domain.Money(d.Round(0).IntPart())
	f.set = true
	return nil
}

// flexID accepts ids as JSON numbers or numeric strings.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", b, err)
	}
	*f = flexID(id)
	return nil
}

type rawMenuItem struct {
	ID          flexID    `json:"id"`
	Name        string    `json:"name"`
	MenuName    string    `json:"menuName"`
	Description string    `json:"description"`
	Detail      string    `json:"detail"`
	ImageURL    string    `json:"imageUrl"`
	Image       string    `json:"image"`
	BasePrice   flexMoney `json:"basePrice"`
	Price       flexMoney `json:"price"`
}

type rawOptionValue struct {
	ID              flexID    `json:"id"`
	Value           string    `json:"value"`
	ValueName       string    `json:"valueName"`
	Name            string    `json:"name"`
	AdditionalPrice flexMoney `json:"additionalPrice"`
	PriceAdjustment flexMoney `json:"priceAdjustment"`
	AdditionalSnake flexMoney `json:"additional_price"`
}

type rawOptionGroup struct {
	ID           flexID           `json:"id"`
	Name         string           `json:"name"`
	OptionName   string           `json:"optionName"`
	Description  string           `json:"description"`
	Values       []rawOptionValue `json:"values"`
	OptionValues []rawOptionValue `json:"optionValues"`
	ValuesSnake  []rawOptionValue `json:"option_values"`
}

func (r rawMenuItem) normalize() domain.MenuItem {
	return domain.MenuItem{
		ID:          int64(r.ID),
		Name:        firstNonEmpty(r.Name, r.MenuName),
		Description: firstNonEmpty(r.Description, r.Detail),
		ImageURL:    firstNonEmpty(r.ImageURL, r.Image),
		BasePrice:   firstPrice(r.BasePrice, r.Price),
	}
}

func (r rawOptionValue) normalize() domain.OptionValue {
	return domain.OptionValue{
		ID:              int64(r.ID),
		Value:           firstNonEmpty(r.Value, r.ValueName, r.Name),
		AdditionalPrice: firstPrice(r.AdditionalPrice, r.PriceAdjustment, r.AdditionalSnake),
	}
}

func (r rawOptionGroup) normalize() domain.OptionGroup {
	raw := r.Values
	if len(raw) == 0 {
		raw = r.OptionValues
	}
	if len(raw) == 0 {
		raw = r.ValuesSnake
	}
	values := make([]domain.OptionValue, 0, len(raw))
	for _, v := range raw {
		values = append(values, v.normalize())
	}
	return domain.OptionGroup{
		ID:          int64(r.ID),
		Name:        firstNonEmpty(r.Name, r.OptionName),
		Description: r.Description,
		Values:      values,
	}
}

// decodeList accepts either a bare list or a single object.
func decodeList[T any](data json.RawMessage) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] == '[' {
		var list []T
		err := json.Unmarshal(data, &list)
		return list, err
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPrice(values ...flexMoney) domain.Money {
	for _, v := range values {
		if v.set {
			return v.value
		}
	}
	return 0
}
