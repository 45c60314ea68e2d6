// Package pricing applies referral discounts and converts USD prices into the
// currencies students pay in.
package pricing

import (
	"github.com/Domenick1991/coursebot/config"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discounted returns price reduced by percent, rounded to cents.
func Discounted(price decimal.Decimal, percent int) decimal.Decimal {
	if percent <= 0 {
		return price
	}
	if percent >= 100 {
		return decimal.Zero
	}
	factor := hundred.Sub(decimal.NewFromInt(int64(percent))).Div(hundred)
	return price.Mul(factor).Round(2)
}

type Quote struct {
	USD  decimal.Decimal
	RUB  decimal.Decimal
	KZT  decimal.Decimal
	ARS  decimal.Decimal
	USDT decimal.Decimal
}

type Converter struct {
	rub decimal.Decimal
	kzt decimal.Decimal
	ars decimal.Decimal
}

func NewConverter(cfg config.PaymentConfig) *Converter {
	return &Converter{
		rub: decimal.NewFromFloat(cfg.USDToRUB),
		kzt: decimal.NewFromFloat(cfg.USDToKZT),
		ars: decimal.NewFromFloat(cfg.USDToARS),
	}
}

// Quote prices usd in every payment currency. USDT is pegged 1:1.
func (c *Converter) Quote(usd decimal.Decimal) Quote {
	return Quote{
		USD:  usd.Round(2),
		RUB:  usd.Mul(c.rub).Round(2),
		KZT:  usd.Mul(c.kzt).Round(2),
		ARS:  usd.Mul(c.ars).Round(2),
		USDT: usd.Round(2),
	}
}
