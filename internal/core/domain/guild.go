package domain

import "time"

// Guild is a block producer tracked on one chain.
type Guild struct {
	Name         string    `json:"name"          db:"name"` // owner account
	Chain        string    `json:"chain"         db:"chain"`
	URL          string    `json:"url"           db:"url"`
	LocationCode int       `json:"location_code" db:"location_code"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"    db:"updated_at"`
}

// Location is a geographic claim made in a topology document.
type Location struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Producer is one row of the chain's producer table.
type Producer struct {
	Owner    string `json:"owner"`
	URL      string `json:"url"`
	Location int    `json:"location"`
	IsActive bool   `json:"is_active"`
}
