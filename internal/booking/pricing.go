package booking

// Rates holds the surcharge percentages applied to the nightly subtotal.
type Rates struct {
	ServiceFeePercent int64
	TaxPercent        int64
}

// DefaultRates is the platform tariff: 12% service fee, 5% taxes.
var DefaultRates = Rates{ServiceFeePercent: 12, TaxPercent: 5}

// Pricing is the frozen price snapshot stored on a booking.  Amounts are
// whole currency units; the domain has no fractional currency.
type Pricing struct {
	PricePerNight int64 `json:"price_per_night"`
	Nights        int   `json:"nights"`
	Subtotal      int64 `json:"subtotal"`
	ServiceFee    int64 `json:"service_fee"`
	Taxes         int64 `json:"taxes"`
	Total         int64 `json:"total"`
}

// CalculatePricing computes the breakdown with DefaultRates.
func CalculatePricing(pricePerNight int64, nights int) Pricing {
	return DefaultRates.Calculate(pricePerNight, nights)
}

// Calculate computes subtotal, fee and taxes.  Fee and taxes are each
// rounded to the nearest unit on their own, so Total may differ by one from
// a single rounding of subtotal*(1+fee+tax).  No bounds checks are done.
func (r Rates) Calculate(pricePerNight int64, nights int) Pricing {
	subtotal := pricePerNight * int64(nights)
	fee := roundPercent(subtotal, r.ServiceFeePercent)
	taxes := roundPercent(subtotal, r.TaxPercent)
	return Pricing{
		PricePerNight: pricePerNight,
		Nights:        nights,
		Subtotal:      subtotal,
		ServiceFee:    fee,
		Taxes:         taxes,
		Total:         subtotal + fee + taxes,
	}
}

// roundPercent returns round(amount*pct/100) with halves rounded away from
// zero, using integer math only.
func roundPercent(amount, pct int64) int64 {
	p := amount * pct
	if p < 0 {
		return -((-p + 50) / 100)
	}
	return (p + 50) / 100
}
