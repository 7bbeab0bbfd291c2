package showroomtest

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/petal-labs/showroom/core"
)

// Fixed ids of SampleProducts.
var (
	OakChairID    = uuid.MustParse("7f1c2a9e-3b4d-4e5f-8a6b-9c0d1e2f3a4b")
	GlassDoorID   = uuid.MustParse("0b4c5d6e-7f80-4a1b-9c2d-3e4f5a6b7c8d")
	SlidingDoorID = uuid.MustParse("1c5d6e7f-8091-4b2c-8d3e-4f5a6b7c8d9e")
	FloorLampID   = uuid.MustParse("2d6e7f80-91a2-4c3d-9e4f-5a6b7c8d9eaf")
	RetiredSofaID = uuid.MustParse("3e7f8091-a2b3-4d4e-8f5a-6b7c8d9eafb0")
	WalnutTableID = uuid.MustParse("4f8091a2-b3c4-4e5f-9a6b-7c8d9eafb0c1")
)

// SampleProducts returns a small catalog. RetiredSofaID is soft-deleted.
func SampleProducts() []core.Product {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	retired := base.Add(30 * 24 * time.Hour)
	img := func(s string) *string { return &s }

	return []core.Product{
		{
			ID:          OakChairID,
			Name:        "Oak Dining Chair",
			SKU:         "CH-OAK-01",
			ImageURL:    img("https://cdn.example.com/ch-oak-01.jpg"),
			Description: "Solid oak chair with a curved back",
			Price:       decimal.RequireFromString("129.90"),
			Metadata:    json.RawMessage(`{"category":"interior","in_stock":true,"material":"oak"}`),
			CreatedAt:   base,
			UpdatedAt:   base,
		},
		{
			ID:          GlassDoorID,
			Name:        "Frameless Glass Pivot Door",
			SKU:         "GD-PIV-01",
			ImageURL:    img("https://cdn.example.com/gd-piv-01.jpg"),
			Description: "Modern floor-to-ceiling tempered glass door",
			Price:       decimal.RequireFromString("2499.00"),
			Metadata:    json.RawMessage(`{"category":"exterior","in_stock":true}`),
			CreatedAt:   base.Add(24 * time.Hour),
			UpdatedAt:   base.Add(24 * time.Hour),
		},
		{
			ID:          SlidingDoorID,
			Name:        "Slim Aluminium Sliding Door",
			SKU:         "GD-SLD-02",
			Description: "Modern minimal frame sliding glass system",
			Price:       decimal.RequireFromString("1899.50"),
			Metadata:    json.RawMessage(`{"category":"exterior","in_stock":false}`),
			CreatedAt:   base.Add(48 * time.Hour),
			UpdatedAt:   base.Add(96 * time.Hour),
		},
		{
			ID:          FloorLampID,
			Name:        "Arc Floor Lamp",
			SKU:         "LP-ARC-01",
			ImageURL:    img("https://cdn.example.com/lp-arc-01.jpg"),
			Description: "Brass arc lamp with linen shade",
			Price:       decimal.RequireFromString("349.00"),
			CreatedAt:   base.Add(72 * time.Hour),
			UpdatedAt:   base.Add(72 * time.Hour),
		},
		{
			ID:          RetiredSofaID,
			Name:        "Velvet Sofa",
			SKU:         "SF-VEL-01",
			Description: "Three-seat velvet sofa",
			Price:       decimal.RequireFromString("1299.00"),
			Metadata:    json.RawMessage(`{"category":"interior"}`),
			CreatedAt:   base.Add(96 * time.Hour),
			UpdatedAt:   retired,
			DeletedAt:   &retired,
		},
		{
			ID:          WalnutTableID,
			Name:        "Walnut Coffee Table",
			SKU:         "TB-WAL-01",
			Description: "Low walnut table with rounded corners",
			Price:       decimal.RequireFromString("599.00"),
			Metadata:    json.RawMessage(`{"category":"interior","in_stock":true,"material":"walnut"}`),
			CreatedAt:   base.Add(120 * time.Hour),
			UpdatedAt:   base.Add(120 * time.Hour),
		},
	}
}
