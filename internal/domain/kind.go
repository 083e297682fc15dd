package domain

import "github.com/shopspring/decimal"

// Kind distinguishes sale transactions from purchase receipts. It fixes both
// the price a cart is valued at and the direction stock moves on commit.
type Kind string

const (
	KindSale     Kind = "sale"
	KindPurchase Kind = "purchase"
)

// ParseKind converts a path or query value into a Kind
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", ErrInvalidKind
	}
	return k, nil
}

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	return k == KindSale || k == KindPurchase
}

// Direction is the sign of the stock delta applied when a record of this kind
// is committed. Compensation applies the opposite sign.
func (k Kind) Direction() int {
	if k == KindPurchase {
		return 1
	}
	return -1
}

// PriceSelector picks the unit amount a cart line is valued at.
type PriceSelector func(CartLine) decimal.Decimal

// SelectorFor returns the price selector bound to a kind: sale carts use the
// unit price, purchase carts the unit cost.
func SelectorFor(k Kind) PriceSelector {
	if k == KindPurchase {
		return func(l CartLine) decimal.Decimal { return l.UnitCost }
	}
	return func(l CartLine) decimal.Decimal { return l.UnitPrice }
}
