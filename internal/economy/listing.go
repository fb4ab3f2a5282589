package economy

// Listing is an open sell offer on the auction house. The quantity is held
// in escrow: it has already left the seller's inventory.
type Listing struct {
	ID          string  `json:"id"`
	ItemID      string  `json:"item_id"`
	Quantity    int     `json:"quantity"`
	BidPrice    float64 `json:"bid_price"`
	BuyoutPrice float64 `json:"buyout_price"`
	SellerID    string  `json:"seller_id"` // Looked up by id; the seller may be gone
	CreatedAt   int     `json:"created_at_tick"`
	ExpiresAt   int     `json:"expires_at_tick"`
}

// Expired reports whether the listing's window has closed at tick.
func (l *Listing) Expired(tick int) bool {
	return l.ExpiresAt <= tick
}

// AddListing places l on the item's open set.
func (it *Item) AddListing(l *Listing) {
	it.ActiveListings = append(it.ActiveListings, l)
}

// RemoveListing drops the listing with id from the open set and returns it,
// or nil when no such listing is open.
func (it *Item) RemoveListing(id string) *Listing {
	for i, l := range it.ActiveListings {
		if l.ID == id {
			it.ActiveListings = append(it.ActiveListings[:i], it.ActiveListings[i+1:]...)
			return l
		}
	}
	return nil
}

// TakeExpired removes and returns every listing expired at tick, preserving
// the order they were listed in.
func (it *Item) TakeExpired(tick int) []*Listing {
	var expired []*Listing
	kept := it.ActiveListings[:0]
	for _, l := range it.ActiveListings {
		if l.Expired(tick) {
			expired = append(expired, l)
			continue
		}
		kept = append(kept, l)
	}
	// Clear the tail so dropped listings can be collected.
	for i := len(kept); i < len(it.ActiveListings); i++ {
		it.ActiveListings[i] = nil
	}
	it.ActiveListings = kept
	return expired
}
