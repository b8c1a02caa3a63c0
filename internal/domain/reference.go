package domain

// Product maps a SKU to the unit size used for box capacity math.
type Product struct {
	SKU      string `json:"sku"`
	UnitSize int    `json:"unit_size"`
}

// BoxClass is one shipping box option. MaxCapacity is in the same unit
// as Product.UnitSize.
type BoxClass struct {
	Name        string `json:"name"`
	MaxCapacity int    `json:"max_capacity"`
}
