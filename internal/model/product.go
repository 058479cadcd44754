package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category string

const (
	CategoryDrones      Category = "Drones"
	CategoryRoboticArms Category = "Robotic Arms"
	CategorySensors     Category = "Sensors"
	CategoryKits        Category = "Kits"
	CategoryOther       Category = "Other"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryDrones,
	CategoryRoboticArms,
	CategorySensors,
	CategoryKits,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Image is a hosted product picture. StorageHandle is the media store token
// needed to delete it later.
type Image struct {
	URL           string `json:"url" bson:"url" validate:"required"`
	StorageHandle string `json:"public_id" bson:"public_id" validate:"required"`
}

type Specifications struct {
	Weight        string   `json:"weight,omitempty" bson:"weight,omitempty" mapstructure:"weight"`
	Dimensions    string   `json:"dimensions,omitempty" bson:"dimensions,omitempty" mapstructure:"dimensions"`
	Power         string   `json:"power,omitempty" bson:"power,omitempty" mapstructure:"power"`
	Compatibility []string `json:"compatibility,omitempty" bson:"compatibility,omitempty" mapstructure:"compatibility"`
}

type Product struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name           string             `json:"name" bson:"name" validate:"required"`
	Description    string             `json:"description" bson:"description" validate:"required"`
	Price          float64            `json:"price" bson:"price" validate:"finite,gte=0"`
	Category       Category           `json:"category" bson:"category" validate:"required,category"`
	Images         []Image            `json:"images" bson:"images" validate:"dive"`
	Features       []string           `json:"features" bson:"features"`
	Stock          int                `json:"stock" bson:"stock" validate:"gte=0"`
	Specifications Specifications     `json:"specifications" bson:"specifications"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// ProductPatch carries a partial update. Nil fields are left untouched.
type ProductPatch struct {
	Name           *string   `validate:"omitnil,min=1"`
	Description    *string   `validate:"omitnil,min=1"`
	Price          *float64  `validate:"omitnil,finite,gte=0"`
	Category       *Category `validate:"omitnil,min=1,category"`
	Images         *[]Image  `validate:"omitnil,dive"`
	Features       *[]string
	Stock          *int `validate:"omitnil,gte=0"`
	Specifications *Specifications
}

func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.Category == nil &&
		p.Images == nil && p.Features == nil && p.Stock == nil && p.Specifications == nil
}
