package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xenking/pickle-storefront/internal/domain/cart"
	"github.com/xenking/pickle-storefront/internal/domain/product"
	"github.com/xenking/pickle-storefront/internal/domain/wishlist"
)

type cartItemDTO struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	PackSize    string `json:"packSize"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
}

type cartResponse struct {
	Items    []cartItemDTO `json:"items"`
	Subtotal int64         `json:"subtotal"`
	Version  int64         `json:"version"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	resp := cartResponse{
		Items:    make([]cartItemDTO, len(c.Items)),
		Subtotal: c.Subtotal(),
		Version:  c.Version,
	}
	for i, it := range c.Items {
		resp.Items[i] = cartItemDTO{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			PackSize:    string(it.PackSize),
			Quantity:    it.Quantity,
			Price:       it.Price,
		}
	}
	return resp
}

type addToCartRequest struct {
	ProductID string `json:"productId"`
	PackSize  string `json:"packSize"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) getCart(c echo.Context) error {
	ct, err := h.carts.Get(c.Request().Context(), identity(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCartResponse(ct))
}

func (h *Handler) addToCart(c echo.Context) error {
	var req addToCartRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ct, err := h.carts.Add(c.Request().Context(), identity(c), req.ProductID, product.PackSize(req.PackSize), req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCartResponse(ct))
}

func (h *Handler) updateCartItem(c echo.Context) error {
	var req updateCartItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ct, err := h.carts.UpdateQuantity(c.Request().Context(), identity(c), c.Param("itemId"), req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCartResponse(ct))
}

func (h *Handler) removeCartItem(c echo.Context) error {
	ct, err := h.carts.Remove(c.Request().Context(), identity(c), c.Param("itemId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCartResponse(ct))
}

type wishlistResponse struct {
	ProductIDs []string `json:"productIds"`
}

type toggleWishlistRequest struct {
	ProductID string `json:"productId"`
}

type toggleWishlistResponse struct {
	ProductIDs []string `json:"productIds"`
	Saved      bool     `json:"saved"`
}

func wishlistIDs(w *wishlist.Wishlist) []string {
	return nonNil(w.ProductIDs)
}

func (h *Handler) getWishlist(c echo.Context) error {
	w, err := h.wishlists.Get(c.Request().Context(), identity(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wishlistResponse{ProductIDs: wishlistIDs(w)})
}

func (h *Handler) toggleWishlist(c echo.Context) error {
	var req toggleWishlistRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	w, err := h.wishlists.Toggle(c.Request().Context(), identity(c), req.ProductID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toggleWishlistResponse{
		ProductIDs: wishlistIDs(w),
		Saved:      w.Contains(req.ProductID),
	})
}
