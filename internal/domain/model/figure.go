package model

import "time"

// Figure is a single tracked collection item mirrored from the remote
// hobby-database service.
type Figure struct {
	ID           int64
	RemoteID     int64
	Name         string
	Character    string
	Origin       string
	Version      string
	Scale        string
	Category     string
	Manufacturer string
	Status       CollectionStatus
	Count        int
	Notes        string
	ImageURL     string
	ItemURL      string
	Companies    []CompanyRole
	Artists      []PersonRole
	Releases     []Release
	Dimensions   *Dimensions
	Purchase     *PurchaseInfo
	Merchant     *Merchant
	AddedAt      time.Time
	UpdatedAt    time.Time
}

// CompanyRole associates a named company with a typed role on an item.
type CompanyRole struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// PersonRole associates a named person (sculptor, illustrator, painter)
// with a typed role on an item.
type PersonRole struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Release is one retail release of an item. An item re-issued at a later
// date carries multiple releases with IsRerelease set on all but the first.
type Release struct {
	Date        string  `json:"date"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	IsRerelease bool    `json:"isRerelease"`
	Barcode     string  `json:"barcode,omitempty"`
}

// Dimensions holds the physical size of an item in millimeters.
type Dimensions struct {
	HeightMM int `json:"heightMm,omitempty"`
	WidthMM  int `json:"widthMm,omitempty"`
	DepthMM  int `json:"depthMm,omitempty"`
}

// PurchaseInfo records what the collector actually paid.
type PurchaseInfo struct {
	Price    float64 `json:"price,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Date     string  `json:"date,omitempty"`
}

// Merchant identifies where an item was bought.
type Merchant struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// ScrapedItem is the structured data returned by the remote scrape endpoint
// for a single item page. Empty fields mean the page did not carry that datum.
type ScrapedItem struct {
	RemoteID     int64         `json:"remote_id"`
	Name         string        `json:"name"`
	Character    string        `json:"character"`
	Origin       string        `json:"origin"`
	Version      string        `json:"version"`
	Scale        string        `json:"scale"`
	Category     string        `json:"category"`
	Manufacturer string        `json:"manufacturer"`
	ImageURL     string        `json:"image_url"`
	ReleaseDate  string        `json:"release_date"`
	Price        float64       `json:"price"`
	Currency     string        `json:"currency"`
	Companies    []CompanyRole `json:"companies"`
	Artists      []PersonRole  `json:"artists"`
	Releases     []Release     `json:"releases"`
	HeightMM     int           `json:"height_mm"`
}
