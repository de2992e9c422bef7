package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xenking/pickle-storefront/internal/domain/order"
	"github.com/xenking/pickle-storefront/internal/domain/support"
)

type ticketResponse struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	OrderID    string     `json:"orderId"`
	Subject    string     `json:"subject"`
	Message    string     `json:"message"`
	Status     string     `json:"status"`
	AdminReply string     `json:"adminReply,omitempty"`
	RepliedBy  string     `json:"repliedBy,omitempty"`
	RepliedAt  *time.Time `json:"repliedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func toTicketResponse(t *support.Ticket) ticketResponse {
	return ticketResponse{
		ID:         t.ID,
		UserID:     t.UserID,
		OrderID:    t.OrderID,
		Subject:    t.Subject,
		Message:    t.Message,
		Status:     string(t.Status),
		AdminReply: t.AdminReply,
		RepliedBy:  t.RepliedBy,
		RepliedAt:  t.RepliedAt,
		CreatedAt:  t.CreatedAt,
	}
}

func toTicketList(ts []support.Ticket) []ticketResponse {
	out := make([]ticketResponse, len(ts))
	for i := range ts {
		out[i] = toTicketResponse(&ts[i])
	}
	return out
}

type createTicketRequest struct {
	OrderID string `json:"orderId"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type replyRequest struct {
	Reply  string `json:"reply"`
	Status string `json:"status"`
}

func (h *Handler) createTicket(c echo.Context) error {
	var req createTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	t, err := h.support.Create(c.Request().Context(), identity(c), support.CreateRequest(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toTicketResponse(t))
}

func (h *Handler) myTickets(c echo.Context) error {
	ts, err := h.support.ListMine(c.Request().Context(), identity(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTicketList(ts))
}

func (h *Handler) listTickets(c echo.Context) error {
	ts, err := h.support.ListAll(c.Request().Context(), identity(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTicketList(ts))
}

func (h *Handler) replyTicket(c echo.Context) error {
	var req replyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	t, err := h.support.Reply(c.Request().Context(), identity(c), c.Param("id"), req.Reply, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTicketResponse(t))
}

type paymentBreakdownDTO struct {
	COD    int `json:"cod"`
	UPI    int `json:"upi"`
	Online int `json:"online"`
}

type summaryResponse struct {
	TotalOrders      int                 `json:"totalOrders"`
	Revenue          int64               `json:"revenue"`
	StatusBreakdown  map[string]int      `json:"statusBreakdown"`
	PaymentBreakdown paymentBreakdownDTO `json:"paymentBreakdown"`
	TotalProducts    int                 `json:"totalProducts"`
	ActiveProducts   int                 `json:"activeProducts"`
	SupportCount     int                 `json:"supportCount"`
	OpenTickets      int                 `json:"openTickets"`
}

func (h *Handler) dashboardSummary(c echo.Context) error {
	ctx, id := c.Request().Context(), identity(c)

	s, err := h.orders.Summary(ctx, id)
	if err != nil {
		return err
	}
	products, err := h.products.Count(ctx, id)
	if err != nil {
		return err
	}
	tickets, err := h.support.Count(ctx, id)
	if err != nil {
		return err
	}

	resp := summaryResponse{
		TotalOrders:      s.TotalOrders,
		Revenue:          s.Revenue,
		StatusBreakdown:  make(map[string]int, len(order.Statuses)),
		PaymentBreakdown: paymentBreakdownDTO(s.PaymentBreakdown),
		TotalProducts:    products.Total,
		ActiveProducts:   products.Active,
		SupportCount:     tickets.Total,
		OpenTickets:      tickets.Open,
	}
	for st, n := range s.StatusBreakdown {
		resp.StatusBreakdown[string(st)] = n
	}
	return c.JSON(http.StatusOK, resp)
}

type revenuePointDTO struct {
	Label   string    `json:"label"`
	Start   time.Time `json:"start"`
	Revenue int64     `json:"revenue"`
	Orders  int       `json:"orders"`
}

type revenueResponse struct {
	Range       string            `json:"range"`
	Granularity string            `json:"granularity"`
	Since       time.Time         `json:"since"`
	Points      []revenuePointDTO `json:"points"`
}

func (h *Handler) revenueTrend(c echo.Context) error {
	r, err := order.ParseTrendRange(c.QueryParam("range"))
	if err != nil {
		return err
	}
	t, err := h.orders.RevenueTrend(c.Request().Context(), identity(c), r)
	if err != nil {
		return err
	}
	resp := revenueResponse{
		Range:       string(t.Range),
		Granularity: string(t.Granularity),
		Since:       t.Since,
		Points:      make([]revenuePointDTO, len(t.Points)),
	}
	for i, p := range t.Points {
		resp.Points[i] = revenuePointDTO{
			Label:   t.Granularity.Label(p.Start),
			Start:   p.Start,
			Revenue: p.Revenue,
			Orders:  p.Orders,
		}
	}
	return c.JSON(http.StatusOK, resp)
}
