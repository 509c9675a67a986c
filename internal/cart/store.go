// Package cart keeps a shopper's cart lines and the totals derived from them.
package cart

import (
	"maps"
	"sync"
)

// Product is what a caller hands to AddToCart. Attributes carries any extra
// catalog fields (title, image, size...) that should travel with the line.
type Product struct {
	ID         string         `json:"id"`
	Price      float64        `json:"price"`
	SalePrice  *float64       `json:"salePrice,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Line is one product in the cart.
type Line struct {
	ProductID  string         `json:"id"`
	Price      float64        `json:"price"`
	SalePrice  *float64       `json:"salePrice,omitempty"`
	Quantity   int            `json:"quantity"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// UnitPrice is the sale price when one is set, otherwise the regular price.
func (l Line) UnitPrice() float64 {
	if l.SalePrice != nil {
		return *l.SalePrice
	}
	return l.Price
}

// Listener receives the cart contents after every change.
type Listener func(lines []Line)

// Store holds the lines of a single cart. Lines are kept in insertion order
// and there is at most one line per product id.
type Store struct {
	mu        sync.Mutex
	lines     []Line
	listeners map[int]Listener
	nextID    int
}

// New returns an empty cart.
func New() *Store {
	return &Store{listeners: make(map[int]Listener)}
}

// Restore returns a cart pre-filled with lines, typically from a Persister.
// Duplicate product ids are merged and lines with quantity below one dropped.
func Restore(lines []Line) *Store {
	s := New()
	for _, l := range lines {
		if l.Quantity < 1 {
			continue
		}
		if i := s.indexOf(l.ProductID); i >= 0 {
			s.lines[i].Quantity += l.Quantity
			continue
		}
		s.lines = append(s.lines, copyLine(l))
	}
	return s
}

// AddToCart increments the line for p.ID, or inserts a new line with
// quantity one. Product fields are copied at insertion time; a repeated add
// does not refresh them.
func (s *Store) AddToCart(p Product) {
	s.mu.Lock()
	if i := s.indexOf(p.ID); i >= 0 {
		s.lines[i].Quantity++
	} else {
		s.lines = append(s.lines, Line{
			ProductID:  p.ID,
			Price:      p.Price,
			SalePrice:  copyPrice(p.SalePrice),
			Quantity:   1,
			Attributes: maps.Clone(p.Attributes),
		})
	}
	s.notifyLocked()
}

// RemoveFromCart deletes the line for productID if there is one.
func (s *Store) RemoveFromCart(productID string) {
	s.mu.Lock()
	i := s.indexOf(productID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.lines = append(s.lines[:i:i], s.lines[i+1:]...)
	s.notifyLocked()
}

// UpdateQuantity sets the quantity of an existing line. Quantities below one
// are ignored rather than treated as a removal.
func (s *Store) UpdateQuantity(productID string, quantity int) {
	if quantity < 1 {
		return
	}
	s.mu.Lock()
	i := s.indexOf(productID)
	if i < 0 || s.lines[i].Quantity == quantity {
		s.mu.Unlock()
		return
	}
	s.lines[i].Quantity = quantity
	s.notifyLocked()
}

// ClearCart empties the cart.
func (s *Store) ClearCart() {
	s.mu.Lock()
	s.lines = nil
	s.notifyLocked()
}

// Snapshot is a consistent view of a cart: the totals are derived from
// exactly the lines returned.
type Snapshot struct {
	Lines      []Line
	TotalItems int
	TotalPrice float64
}

// TotalItems is the sum of all line quantities.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalItems(s.lines)
}

// TotalPrice is the sum of unit price times quantity over all lines.
func (s *Store) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalPrice(s.lines)
}

// Lines returns a copy of the current lines.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Snapshot returns the lines and both totals read under a single lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Lines:      s.snapshotLocked(),
		TotalItems: totalItems(s.lines),
		TotalPrice: totalPrice(s.lines),
	}
}

func totalItems(lines []Line) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}

func totalPrice(lines []Line) float64 {
	var total float64
	for _, l := range lines {
		total += l.UnitPrice() * float64(l.Quantity)
	}
	return total
}

// Subscribe registers fn to run after every change. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// notifyLocked releases the lock and then calls every listener with its own
// copy of the lines.
func (s *Store) notifyLocked() {
	if len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(cloneLines(snapshot))
	}
}

func (s *Store) snapshotLocked() []Line {
	return cloneLines(s.lines)
}

func (s *Store) indexOf(productID string) int {
	for i, l := range s.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func cloneLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = copyLine(l)
	}
	return out
}

func copyLine(l Line) Line {
	l.SalePrice = copyPrice(l.SalePrice)
	l.Attributes = maps.Clone(l.Attributes)
	return l
}

func copyPrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
