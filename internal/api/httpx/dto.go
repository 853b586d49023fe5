package httpx

// Correlation ids and memos are 64-bit and travel as JSON strings so that
// clients with float64 numbers do not round them.

type ItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Price       uint64 `json:"price"`
	Size        string `json:"size"`
	ImageURL    string `json:"image_url"`
}

type ItemResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Price       uint64 `json:"price"`
	Size        string `json:"size"`
	Seller      string `json:"seller"`
	ImageURL    string `json:"image_url"`
	SoldAmount  uint64 `json:"sold_amount"`
	Likes       int    `json:"likes"`
	Comments    string `json:"comments"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type CommentRequest struct {
	Text string `json:"text"`
}

type CommentsResponse struct {
	Comments string `json:"comments"`
}

type CreateOrderRequest struct {
	ItemID string `json:"item_id"`
}

type CompleteOrderRequest struct {
	Seller        string `json:"seller"`
	ItemID        string `json:"item_id"`
	Price         uint64 `json:"price"`
	Block         uint64 `json:"block"`
	CorrelationID uint64 `json:"correlation_id,string"`
}

type OrderResponse struct {
	ItemID        string  `json:"item_id"`
	Price         uint64  `json:"price"`
	Status        string  `json:"status"`
	Seller        string  `json:"seller"`
	PaidAtBlock   *uint64 `json:"paid_at_block"`
	CorrelationID uint64  `json:"correlation_id,string"`
	Buyer         string  `json:"buyer,omitempty"`
	CreatedAt     string  `json:"created_at"`
	ExpiresAt     string  `json:"expires_at,omitempty"`
}

type VerifyPaymentRequest struct {
	Receiver string `json:"receiver"`
	Amount   uint64 `json:"amount"`
	Block    uint64 `json:"block"`
	Memo     uint64 `json:"memo,string"`
}

type VerifyPaymentResponse struct {
	Verified bool `json:"verified"`
}

type TransferRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
	Memo   uint64 `json:"memo,string"`
}

type TransferResponse struct {
	Block uint64 `json:"block"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
