package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xenking/pickle-storefront/internal/domain/order"
)

type shippingDTO struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	PinCode string `json:"pinCode"`
	PhoneNo string `json:"phoneNo"`
}

type checkoutRequest struct {
	ShippingInfo  shippingDTO `json:"shippingInfo"`
	PaymentMethod string      `json:"paymentMethod"`
	UPIID         string      `json:"upiId"`
	CouponCode    string      `json:"couponCode"`
}

type orderItemDTO struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	PackSize  string `json:"packSize"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

type paymentDTO struct {
	Status string `json:"status"`
	UPIID  string `json:"upiId,omitempty"`
}

type trackingDTO struct {
	Status    string    `json:"status"`
	Note      string    `json:"note"`
	Timestamp time.Time `json:"timestamp"`
}

type orderResponse struct {
	ID              string         `json:"id"`
	UserID          string         `json:"userId"`
	Items           []orderItemDTO `json:"items"`
	ShippingInfo    shippingDTO    `json:"shippingInfo"`
	PaymentMethod   string         `json:"paymentMethod"`
	PaymentInfo     paymentDTO     `json:"paymentInfo"`
	ItemsPrice      int64          `json:"itemsPrice"`
	ShippingPrice   int64          `json:"shippingPrice"`
	TaxPrice        int64          `json:"taxPrice"`
	DiscountPrice   int64          `json:"discountPrice"`
	TotalPrice      int64          `json:"totalPrice"`
	CouponCode      string         `json:"couponCode,omitempty"`
	Status          string         `json:"orderStatus"`
	TrackingHistory []trackingDTO  `json:"trackingHistory"`
	DeliveredAt     *time.Time     `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           make([]orderItemDTO, len(o.Items)),
		ShippingInfo:    shippingDTO(o.ShippingInfo),
		PaymentMethod:   string(o.PaymentMethod),
		PaymentInfo:     paymentDTO{Status: string(o.PaymentInfo.Status), UPIID: o.PaymentInfo.UPIID},
		ItemsPrice:      o.ItemsPrice,
		ShippingPrice:   o.ShippingPrice,
		TaxPrice:        o.TaxPrice,
		DiscountPrice:   o.DiscountPrice,
		TotalPrice:      o.TotalPrice,
		CouponCode:      o.CouponCode,
		Status:          string(o.Status),
		TrackingHistory: make([]trackingDTO, len(o.TrackingHistory)),
		DeliveredAt:     o.DeliveredAt,
		CreatedAt:       o.CreatedAt,
	}
	for i, it := range o.Items {
		resp.Items[i] = orderItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			PackSize:  string(it.PackSize),
			Quantity:  it.Quantity,
			Price:     it.Price,
		}
	}
	for i, t := range o.TrackingHistory {
		resp.TrackingHistory[i] = trackingDTO{Status: string(t.Status), Note: t.Note, Timestamp: t.Timestamp}
	}
	return resp
}

func toOrderList(list []order.Order) []orderResponse {
	out := make([]orderResponse, len(list))
	for i := range list {
		out[i] = toOrderResponse(&list[i])
	}
	return out
}

type statusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *Handler) checkout(c echo.Context) error {
	var req checkoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	o, err := h.orders.Checkout(c.Request().Context(), identity(c), order.CheckoutRequest{
		ShippingInfo:  order.ShippingInfo(req.ShippingInfo),
		PaymentMethod: req.PaymentMethod,
		UPIID:         req.UPIID,
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) myOrders(c echo.Context) error {
	list, err := h.orders.ListMine(c.Request().Context(), identity(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderList(list))
}

func (h *Handler) getOrder(c echo.Context) error {
	o, err := h.orders.Get(c.Request().Context(), identity(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listOrders(c echo.Context) error {
	f := order.Filter{UserID: c.QueryParam("userId")}
	if s := c.QueryParam("status"); s != "" {
		st, err := order.ParseStatus(s)
		if err != nil {
			return err
		}
		f.Status = st
	}
	list, err := h.orders.List(c.Request().Context(), identity(c), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderList(list))
}

func (h *Handler) updateOrderStatus(c echo.Context) error {
	var req statusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	o, err := h.orders.UpdateStatus(c.Request().Context(), identity(c), c.Param("id"), req.Status, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}
