package main

import (
	"storefront/internal/model"

	"github.com/shopspring/decimal"
)

type sampleProduct struct {
	id, title, slug, price, category string
	description, image               string
}

var samples = []sampleProduct{
	{id: "chairA", title: "Oak Lounge Chair", slug: "oak-lounge-chair", price: "299.00", category: "Seating",
		description: "Solid oak frame with a woven seat.", image: "https://images.example.com/products/oak-lounge-chair.jpg"},
	{id: "lampB", title: "Brass Floor Lamp", slug: "brass-floor-lamp", price: "89.00", category: "Lighting",
		image: "https://images.example.com/products/brass-floor-lamp.jpg"},
	{id: "tableC", title: "Walnut Side Table", slug: "walnut-side-table", price: "149.50", category: "Tables",
		description: "Compact side table in oiled walnut."},
	{id: "rugD", title: "Wool Area Rug", slug: "wool-area-rug", price: "219.99", category: "Textiles",
		description: "Hand-tufted rug, 160 x 230 cm.", image: "/media/wool-area-rug.jpg"},
	{id: "vaseE", title: "Stoneware Vase", slug: "stoneware-vase", price: "39.95", category: "Decor"},
}

// sampleCatalog returns the seed products. The relative image on rugD is kept
// so checkout's URL filtering can be seen end to end.
func sampleCatalog() []model.Product {
	products := make([]model.Product, len(samples))
	for i, s := range samples {
		p := model.Product{
			ID:            s.id,
			Title:         s.title,
			Slug:          s.slug,
			Price:         decimal.RequireFromString(s.price),
			CategoryTitle: s.category,
		}
		if s.description != "" {
			description := s.description
			p.Description = &description
		}
		if s.image != "" {
			image := s.image
			p.ImageURL = &image
		}
		products[i] = p
	}
	return products
}
