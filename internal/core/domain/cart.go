package domain

import "time"

// MaxLineQuantity caps the quantity a single line item may reach.
const MaxLineQuantity = 9999

// LineItem references a product by id only; price and name are resolved
// from the catalogue on every read.
type LineItem struct {
	ProductID string
	Qty       int
}

type Cart struct {
	UserID    string
	Items     []LineItem
	Version   int64 // optimistic locking
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so mutations never leak into the stored value.
func (c *Cart) Clone() *Cart {
	out := *c
	out.Items = make([]LineItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}

// CartLine is a line item resolved against the current catalogue.
// Product is nil when the referenced product no longer exists.
type CartLine struct {
	ProductID   string
	Qty         int
	Product     *Product
	LineTotal   int64
	Unavailable bool
}

type CartView struct {
	UserID    string
	Items     []CartLine
	Total     int64
	CreatedAt time.Time
}
