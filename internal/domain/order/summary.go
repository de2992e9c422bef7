package order

// PaymentBreakdown counts orders by payment family.
type PaymentBreakdown struct {
	COD    int
	UPI    int
	Online int
}

// Summary aggregates orders for the admin dashboard.
type Summary struct {
	TotalOrders int
	// Revenue is the sum of TotalPrice over orders that are not cancelled.
	Revenue          int64
	StatusBreakdown  map[Status]int
	PaymentBreakdown PaymentBreakdown
}

// Summarize computes a Summary over orders.
func Summarize(orders []Order) Summary {
	s := Summary{
		TotalOrders:     len(orders),
		StatusBreakdown: make(map[Status]int, len(Statuses)),
	}
	for _, st := range Statuses {
		s.StatusBreakdown[st] = 0
	}

	for _, o := range orders {
		if o.Status != StatusCancelled {
			s.Revenue += o.TotalPrice
		}
		s.StatusBreakdown[o.Status]++

		switch {
		case o.PaymentMethod == PaymentCOD:
			s.PaymentBreakdown.COD++
		case o.PaymentMethod.IsUPI():
			s.PaymentBreakdown.UPI++
		default:
			s.PaymentBreakdown.Online++
		}
	}
	return s
}
