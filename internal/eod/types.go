package eod

// aggRow is the per symbol and side total for one day of orders.
type aggRow struct {
	Symbol    string
	Side      string
	Orders    int
	TotalSize float64
	Notional  float64 // sum of size * price
}

func (r *aggRow) avgPrice() float64 {
	if r.TotalSize == 0 {
		return 0
	}
	return r.Notional / r.TotalSize
}
