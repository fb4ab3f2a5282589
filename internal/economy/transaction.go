package economy

// MarketCounterparty is the buyer or seller id used when the other side of a
// trade is the simulated market rather than an actor.
const MarketCounterparty = "market"

// TransactionType distinguishes how a trade happened.
type TransactionType string

const (
	TxAuction TransactionType = "auction"
	TxVendor  TransactionType = "vendor"
	TxTrade   TransactionType = "trade"
)

// Transaction is an immutable record of a completed trade.
type Transaction struct {
	ID       string          `json:"id" db:"id"`
	ItemID   string          `json:"item_id" db:"item_id"`
	Quantity int             `json:"quantity" db:"quantity"`
	Price    float64         `json:"price" db:"price"` // Per unit
	BuyerID  string          `json:"buyer_id" db:"buyer_id"`
	SellerID string          `json:"seller_id" db:"seller_id"`
	Tick     int             `json:"tick" db:"tick"`
	Type     TransactionType `json:"type" db:"type"`
}

// Value is the gross gold value of the trade.
func (t Transaction) Value() float64 {
	return t.Price * float64(t.Quantity)
}
