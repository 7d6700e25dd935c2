package domain

// CartLine is one {product, quantity} pair of a cart.
type CartLine struct {
	ProductID string
	Quantity  int
}

// Cart is a transient list of products a consumer intends to order. It is a
// plain value: callers build one per request and pass it to the order workflow.
// Lines keep the order in which products were first added.
type Cart struct {
	lines []CartLine
}

// NewCart builds a cart from raw lines, merging repeated products.
func NewCart(lines ...CartLine) Cart {
	var c Cart
	for _, l := range lines {
		c.Add(l.ProductID, l.Quantity)
	}
	return c
}

// Add adds qty units of productID, summing with an existing line for the same product.
func (c *Cart) Add(productID string, qty int) {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].Quantity += qty
			return
		}
	}
	c.lines = append(c.lines, CartLine{ProductID: productID, Quantity: qty})
}

// SetQuantity overwrites the quantity of productID. A quantity <= 0 removes the line.
func (c *Cart) SetQuantity(productID string, qty int) {
	if qty <= 0 {
		c.Remove(productID)
		return
	}
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].Quantity = qty
			return
		}
	}
}

// Remove drops the line for productID, if any.
func (c *Cart) Remove(productID string) {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// Clear empties the cart.
func (c *Cart) Clear() { c.lines = nil }

// Len returns the number of distinct products.
func (c Cart) Len() int { return len(c.lines) }

// Count returns the total number of units across all lines.
func (c Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Lines returns a copy of the cart lines.
func (c Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}
