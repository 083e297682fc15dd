package domain

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
)

// CartLine is a snapshot of a product taken when it was added to a cart
type CartLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Qty       int             `json:"qty"`
}

// Cart is the ordered, in-memory set of lines an operator builds before a
// commit. There is at most one line per product. A Cart is owned by a single
// session and is not safe for concurrent use.
type Cart struct {
	kind     Kind
	selector PriceSelector
	lines    []CartLine
}

// NewCart creates an empty cart whose valuation is fixed by kind
func NewCart(kind Kind) *Cart {
	return &Cart{
		kind:     kind,
		selector: SelectorFor(kind),
	}
}

// RestoreCart rebuilds a cart from previously stored lines
func RestoreCart(kind Kind, lines []CartLine) *Cart {
	c := NewCart(kind)
	for _, l := range lines {
		if l.Qty < 1 {
			l.Qty = 1
		}
		c.lines = append(c.lines, l)
	}
	return c
}

// Kind returns the kind the cart was created with
func (c *Cart) Kind() Kind {
	return c.kind
}

// AddLine merges qty into the product's existing line, or appends a new line
// holding the product's current price and cost.
func (c *Cart) AddLine(p *Product, qty int) {
	if qty < 1 {
		qty = 1
	}
	if i := c.index(p.ID); i >= 0 {
		c.lines[i].Qty += qty
		return
	}
	c.lines = append(c.lines, CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.SalePrice,
		UnitCost:  p.CostPrice,
		Qty:       qty,
	})
}

// SetLineQty sets the quantity of an existing line, clamped to a minimum of 1
func (c *Cart) SetLineQty(productID uuid.UUID, qty int) {
	if qty < 1 {
		qty = 1
	}
	if i := c.index(productID); i >= 0 {
		c.lines[i].Qty = qty
	}
}

// RemoveLine deletes the product's line if present
func (c *Cart) RemoveLine(productID uuid.UUID) {
	if i := c.index(productID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// Line returns a copy of the product's line
func (c *Cart) Line(productID uuid.UUID) (CartLine, bool) {
	if i := c.index(productID); i >= 0 {
		return c.lines[i], true
	}
	return CartLine{}, false
}

// Lines returns a copy of the cart lines in insertion order
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Subtotal sums every line valued with the cart's price selector
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(c.selector(l).Mul(decimal.NewFromInt(int64(l.Qty))))
	}
	return total
}

// Cost sums unit cost times quantity, regardless of the cart kind
func (c *Cart) Cost() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.UnitCost.Mul(decimal.NewFromInt(int64(l.Qty))))
	}
	return total
}

// Total applies a percentage discount to the subtotal. The discount is
// clamped to [0,100] and the result is never negative.
func (c *Cart) Total(discountPercent decimal.Decimal) decimal.Decimal {
	d := ClampDiscount(discountPercent)
	total := c.Subtotal().Mul(hundred.Sub(d)).Div(hundred)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total.Round(2)
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Clear drops every line
func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) index(productID uuid.UUID) int {
	for i, l := range c.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

type cartJSON struct {
	Kind  Kind       `json:"kind"`
	Lines []CartLine `json:"lines"`
}

// MarshalJSON encodes the cart kind and lines
func (c *Cart) MarshalJSON() ([]byte, error) {
	lines := c.lines
	if lines == nil {
		lines = []CartLine{}
	}
	return json.Marshal(cartJSON{Kind: c.kind, Lines: lines})
}

// UnmarshalJSON restores a cart, re-binding the selector to the stored kind
func (c *Cart) UnmarshalJSON(data []byte) error {
	var raw cartJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !raw.Kind.Valid() {
		return ErrInvalidKind
	}
	*c = *RestoreCart(raw.Kind, raw.Lines)
	return nil
}

// ClampDiscount bounds a discount percentage to [0,100]
func ClampDiscount(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(hundred) {
		return hundred
	}
	return d
}
