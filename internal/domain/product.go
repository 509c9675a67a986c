package domain

import "time"

// Product is a catalog entry. IDs are the human readable "P0001" style keys
// the catalog was imported with.
type Product struct {
	ID          string    `json:"id" bson:"_id"`
	PID         string    `json:"pid" bson:"pid"`
	Slug        string    `json:"slug" bson:"slug"`
	Title       string    `json:"title" bson:"title"`
	Category    string    `json:"category" bson:"category"`
	Gender      string    `json:"gender" bson:"gender"`
	Color       string    `json:"color" bson:"color"`
	ColorHex    string    `json:"colorHex" bson:"colorHex"`
	Tone        string    `json:"tone" bson:"tone"`
	SizeOptions []string  `json:"sizeOptions" bson:"sizeOptions"`
	Price       float64   `json:"price" bson:"price"`
	SalePrice   *float64  `json:"salePrice,omitempty" bson:"salePrice,omitempty"`
	Rating      float64   `json:"rating" bson:"rating"`
	Reviews     int       `json:"reviews" bson:"reviews"`
	IsNew       bool      `json:"isNew" bson:"isNew"`
	Src         string    `json:"src" bson:"src"`
	Gallery     []string  `json:"gallery" bson:"gallery"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}
