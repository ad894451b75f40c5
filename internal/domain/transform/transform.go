// Package transform maps between the flat form representation the item
// editor works with and the nested payload shape the remote API expects.
// All functions are pure: no I/O, no errors for absent optional fields.
package transform

import "figpanel/internal/domain/model"

// FormRecord is the flat, form-friendly shape of a collection item. Nested
// API sub-objects appear here both flattened (first release, dimensions,
// purchase, merchant) and, for releases and roles, as full arrays.
type FormRecord struct {
	Name         string              `json:"name,omitempty"`
	Character    string              `json:"character,omitempty"`
	Origin       string              `json:"origin,omitempty"`
	Version      string              `json:"version,omitempty"`
	Scale        string              `json:"scale,omitempty"`
	Category     string              `json:"category,omitempty"`
	Manufacturer string              `json:"manufacturer,omitempty"`
	Notes        string              `json:"notes,omitempty"`
	ItemURL      string              `json:"itemUrl,omitempty"`
	ImageURL     string              `json:"imageUrl,omitempty"`

	HeightMM int `json:"heightMm,omitempty"`
	WidthMM  int `json:"widthMm,omitempty"`
	DepthMM  int `json:"depthMm,omitempty"`

	ReleaseDate     string  `json:"releaseDate,omitempty"`
	ReleasePrice    float64 `json:"releasePrice,omitempty"`
	ReleaseCurrency string  `json:"releaseCurrency,omitempty"`

	PurchasePrice    float64 `json:"purchasePrice,omitempty"`
	PurchaseCurrency string  `json:"purchaseCurrency,omitempty"`
	PurchaseDate     string  `json:"purchaseDate,omitempty"`

	MerchantName string `json:"merchantName,omitempty"`
	MerchantURL  string `json:"merchantUrl,omitempty"`

	Releases  []model.Release     `json:"releases,omitempty"`
	Companies []model.CompanyRole `json:"companies,omitempty"`
	Artists   []model.PersonRole  `json:"artists,omitempty"`
}

// APIRecord is the nested, API-friendly shape of the same item.
type APIRecord struct {
	Name         string              `json:"name,omitempty"`
	Character    string              `json:"character,omitempty"`
	Origin       string              `json:"origin,omitempty"`
	Version      string              `json:"version,omitempty"`
	Scale        string              `json:"scale,omitempty"`
	Category     string              `json:"category,omitempty"`
	Manufacturer string              `json:"manufacturer,omitempty"`
	Notes        string              `json:"notes,omitempty"`
	ItemURL      string              `json:"itemUrl,omitempty"`
	ImageURL     string              `json:"imageUrl,omitempty"`
	Dimensions   *model.Dimensions   `json:"dimensions,omitempty"`
	Purchase     *model.PurchaseInfo `json:"purchase,omitempty"`
	Merchant     *model.Merchant     `json:"merchant,omitempty"`
	Releases     []model.Release     `json:"releases,omitempty"`
	Companies    []model.CompanyRole `json:"companies,omitempty"`
	Artists      []model.PersonRole  `json:"artists,omitempty"`
}

// ToAPIPayload reassembles a flat form record into the nested API shape.
// Sub-objects are built only when at least one constituent flat field is
// present. A supplied releases array wins over the flat release fields.
// The first company role named "Manufacturer" overwrites the top-level
// manufacturer string, which older consumers still read.
func ToAPIPayload(form FormRecord) APIRecord {
	api := APIRecord{
		Name:         form.Name,
		Character:    form.Character,
		Origin:       form.Origin,
		Version:      form.Version,
		Scale:        form.Scale,
		Category:     form.Category,
		Manufacturer: form.Manufacturer,
		Notes:        form.Notes,
		ItemURL:      form.ItemURL,
		ImageURL:     form.ImageURL,
		Companies:    form.Companies,
		Artists:      form.Artists,
	}

	if form.HeightMM != 0 || form.WidthMM != 0 || form.DepthMM != 0 {
		api.Dimensions = &model.Dimensions{
			HeightMM: form.HeightMM,
			WidthMM:  form.WidthMM,
			DepthMM:  form.DepthMM,
		}
	}

	if form.PurchasePrice != 0 || form.PurchaseCurrency != "" || form.PurchaseDate != "" {
		api.Purchase = &model.PurchaseInfo{
			Price:    form.PurchasePrice,
			Currency: form.PurchaseCurrency,
			Date:     form.PurchaseDate,
		}
	}

	if form.MerchantName != "" || form.MerchantURL != "" {
		api.Merchant = &model.Merchant{
			Name: form.MerchantName,
			URL:  form.MerchantURL,
		}
	}

	switch {
	case len(form.Releases) > 0:
		api.Releases = form.Releases
	case form.ReleaseDate != "" || form.ReleasePrice != 0 || form.ReleaseCurrency != "":
		api.Releases = []model.Release{{
			Date:        form.ReleaseDate,
			Price:       form.ReleasePrice,
			Currency:    form.ReleaseCurrency,
			IsRerelease: false,
		}}
	}

	for _, company := range form.Companies {
		if company.Role == model.RoleManufacturer {
			api.Manufacturer = company.Name
			break
		}
	}

	return api
}

// ToFormData flattens a nested API record into the form shape. The first
// release's fields are duplicated into the flat release fields while the
// full array is preserved, so both representations stay accessible.
func ToFormData(api APIRecord) FormRecord {
	form := FormRecord{
		Name:         api.Name,
		Character:    api.Character,
		Origin:       api.Origin,
		Version:      api.Version,
		Scale:        api.Scale,
		Category:     api.Category,
		Manufacturer: api.Manufacturer,
		Notes:        api.Notes,
		ItemURL:      api.ItemURL,
		ImageURL:     api.ImageURL,
		Releases:     api.Releases,
		Companies:    api.Companies,
		Artists:      api.Artists,
	}

	if api.Dimensions != nil {
		form.HeightMM = api.Dimensions.HeightMM
		form.WidthMM = api.Dimensions.WidthMM
		form.DepthMM = api.Dimensions.DepthMM
	}

	if api.Purchase != nil {
		form.PurchasePrice = api.Purchase.Price
		form.PurchaseCurrency = api.Purchase.Currency
		form.PurchaseDate = api.Purchase.Date
	}

	if api.Merchant != nil {
		form.MerchantName = api.Merchant.Name
		form.MerchantURL = api.Merchant.URL
	}

	if len(api.Releases) > 0 {
		first := api.Releases[0]
		form.ReleaseDate = first.Date
		form.ReleasePrice = first.Price
		form.ReleaseCurrency = first.Currency
	}

	return form
}

// MergeScraped copies each scraped field into the form only where the form
// field is currently empty. User-entered data is never overwritten.
func MergeScraped(form FormRecord, item model.ScrapedItem) FormRecord {
	setString(&form.Name, item.Name)
	setString(&form.Character, item.Character)
	setString(&form.Origin, item.Origin)
	setString(&form.Version, item.Version)
	setString(&form.Scale, item.Scale)
	setString(&form.Category, item.Category)
	setString(&form.Manufacturer, item.Manufacturer)
	setString(&form.ImageURL, item.ImageURL)
	setString(&form.ReleaseDate, item.ReleaseDate)
	setString(&form.ReleaseCurrency, item.Currency)

	if form.ReleasePrice == 0 {
		form.ReleasePrice = item.Price
	}
	if form.HeightMM == 0 {
		form.HeightMM = item.HeightMM
	}
	if len(form.Releases) == 0 {
		form.Releases = item.Releases
	}
	if len(form.Companies) == 0 {
		form.Companies = item.Companies
	}
	if len(form.Artists) == 0 {
		form.Artists = item.Artists
	}

	return form
}

func setString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}
