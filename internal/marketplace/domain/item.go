package domain

// Principal identifies a caller and, through ledger.AccountAddress, a ledger account.
type Principal string

func (p Principal) String() string { return string(p) }

// Item is a listed shoe. Fields are only ever added, never repurposed.
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Price       uint64    `json:"price"`
	Size        string    `json:"size"`
	Seller      Principal `json:"seller"`
	ImageURL    string    `json:"image_url"`
	SoldAmount  uint64    `json:"sold_amount"`
	Likes       int       `json:"likes"`
	Comments    string    `json:"comments"`
}

// ItemPayload is the seller-supplied part of an Item.
type ItemPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Price       uint64 `json:"price"`
	Size        string `json:"size"`
	ImageURL    string `json:"image_url"`
}
