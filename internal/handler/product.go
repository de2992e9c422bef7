package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xenking/pickle-storefront/internal/domain/product"
)

type variantDTO struct {
	PackSize string `json:"packSize"`
	Price    int64  `json:"price"`
	Stock    int    `json:"stock"`
}

type reviewDTO struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type productResponse struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Slug            string       `json:"slug"`
	Description     string       `json:"description"`
	Category        string       `json:"category"`
	Price           int64        `json:"price"`
	DiscountPercent int          `json:"discountPercent"`
	Images          []string     `json:"images"`
	Variants        []variantDTO `json:"variants"`
	Tags            []string     `json:"tags"`
	Ratings         float64      `json:"ratings"`
	NumOfReviews    int          `json:"numOfReviews"`
	Reviews         []reviewDTO  `json:"reviews"`
	IsActive        bool         `json:"isActive"`
	CreatedAt       time.Time    `json:"createdAt"`
}

func toProductResponse(p *product.Product) productResponse {
	resp := productResponse{
		ID:              p.ID,
		Name:            p.Name,
		Slug:            p.Slug,
		Description:     p.Description,
		Category:        p.Category,
		Price:           p.Price,
		DiscountPercent: p.DiscountPercent,
		Images:          nonNil(p.Images),
		Variants:        make([]variantDTO, len(p.Variants)),
		Tags:            nonNil(p.Tags),
		Ratings:         p.Ratings.InexactFloat64(),
		NumOfReviews:    len(p.Reviews),
		Reviews:         make([]reviewDTO, len(p.Reviews)),
		IsActive:        p.IsActive,
		CreatedAt:       p.CreatedAt,
	}
	for i, v := range p.Variants {
		resp.Variants[i] = variantDTO{PackSize: string(v.PackSize), Price: v.Price, Stock: v.Stock}
	}
	for i, r := range p.Reviews {
		resp.Reviews[i] = reviewDTO(r)
	}
	return resp
}

func toProductList(ps []product.Product) []productResponse {
	out := make([]productResponse, len(ps))
	for i := range ps {
		out[i] = toProductResponse(&ps[i])
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// productRequest is the admin create/update body. IsActive defaults to true.
type productRequest struct {
	Name            string       `json:"name"`
	Slug            string       `json:"slug"`
	Description     string       `json:"description"`
	Category        string       `json:"category"`
	Price           int64        `json:"price"`
	DiscountPercent int          `json:"discountPercent"`
	Images          []string     `json:"images"`
	Variants        []variantDTO `json:"variants"`
	Tags            []string     `json:"tags"`
	IsActive        *bool        `json:"isActive"`
}

func (r *productRequest) toDomain() *product.Product {
	p := &product.Product{
		Name:            r.Name,
		Slug:            r.Slug,
		Description:     r.Description,
		Category:        r.Category,
		Price:           r.Price,
		DiscountPercent: r.DiscountPercent,
		Images:          r.Images,
		Variants:        make([]product.Variant, len(r.Variants)),
		Tags:            r.Tags,
		IsActive:        r.IsActive == nil || *r.IsActive,
	}
	for i, v := range r.Variants {
		p.Variants[i] = product.Variant{PackSize: product.PackSize(v.PackSize), Price: v.Price, Stock: v.Stock}
	}
	return p
}

type reviewRequest struct {
	Name    string `json:"name"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func productFilter(c echo.Context) product.Filter {
	return product.Filter{
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
	}
}

func (h *Handler) listProducts(c echo.Context) error {
	ps, err := h.products.List(c.Request().Context(), identity(c), productFilter(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProductList(ps))
}

func (h *Handler) adminListProducts(c echo.Context) error {
	f := productFilter(c)
	f.IncludeInactive = true
	ps, err := h.products.List(c.Request().Context(), identity(c), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProductList(ps))
}

func (h *Handler) topProducts(c echo.Context) error {
	ps, err := h.products.Top(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProductList(ps))
}

type categoryResponse struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Products int    `json:"products"`
}

func (h *Handler) listCategories(c echo.Context) error {
	cs, err := h.products.Categories(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]categoryResponse, len(cs))
	for i, cat := range cs {
		out[i] = categoryResponse(cat)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) getProduct(c echo.Context) error {
	p, err := h.products.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if !p.IsActive {
		return product.ErrNotFound
	}
	return c.JSON(http.StatusOK, toProductResponse(p))
}

func (h *Handler) reviewProduct(c echo.Context) error {
	var req reviewRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.products.Review(c.Request().Context(), identity(c), c.Param("id"), req.Name, req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProductResponse(p))
}

func (h *Handler) createProduct(c echo.Context) error {
	var req productRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p := req.toDomain()
	if err := h.products.Create(c.Request().Context(), identity(c), p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toProductResponse(p))
}

func (h *Handler) updateProduct(c echo.Context) error {
	var req productRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.products.Update(c.Request().Context(), identity(c), c.Param("id"), req.toDomain())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProductResponse(p))
}

func (h *Handler) deleteProduct(c echo.Context) error {
	if err := h.products.Delete(c.Request().Context(), identity(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
