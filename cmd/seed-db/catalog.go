package main

import (
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/xenking/pickle-storefront/internal/domain/product"
)

type variantJSON struct {
	PackSize string `json:"packSize"`
	Price    int64  `json:"price"`
	Stock    int    `json:"stock"`
}

type productJSON struct {
	Name            string        `json:"name"`
	Slug            string        `json:"slug"`
	Description     string        `json:"description"`
	Category        string        `json:"category"`
	Price           int64         `json:"price"`
	DiscountPercent int           `json:"discountPercent"`
	Images          []string      `json:"images"`
	Variants        []variantJSON `json:"variants"`
	Tags            []string      `json:"tags"`
	Inactive        bool          `json:"inactive"`
}

// parseCatalog decodes and validates a seed catalog. Slugs must be unique
// because they are how reruns recognise already seeded products.
func parseCatalog(data []byte) ([]product.Product, error) {
	var raw []productJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse catalog JSON")
	}

	out := make([]product.Product, 0, len(raw))
	slugs := make(map[string]bool, len(raw))
	for i, r := range raw {
		p := product.Product{
			Name:            r.Name,
			Slug:            r.Slug,
			Description:     r.Description,
			Category:        r.Category,
			Price:           r.Price,
			DiscountPercent: r.DiscountPercent,
			Images:          r.Images,
			Tags:            r.Tags,
			IsActive:        !r.Inactive,
		}
		for _, v := range r.Variants {
			p.Variants = append(p.Variants, product.Variant{
				PackSize: product.PackSize(v.PackSize),
				Price:    v.Price,
				Stock:    v.Stock,
			})
		}
		if err := p.Validate(); err != nil {
			return nil, errors.Wrapf(err, "product #%d (%s)", i+1, r.Name)
		}
		if slugs[p.Slug] {
			return nil, errors.Errorf("product #%d: duplicate slug %q", i+1, p.Slug)
		}
		slugs[p.Slug] = true
		out = append(out, p)
	}
	return out, nil
}
