// Package pricing holds the money arithmetic shared by carts, checkout and orders.
// Every total in the system is computed here.
package pricing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is the pricing input for one cart or order line.
type Line struct {
	Price    decimal.Decimal
	Discount decimal.Decimal // percent
	Quantity int
}

type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TotalDiscount  decimal.Decimal `json:"totalDiscount"`
	CouponDiscount decimal.Decimal `json:"couponDiscount"`
	Total          decimal.Decimal `json:"total"`
	ItemCount      int             `json:"itemCount"`
}

// ItemTotal is price x (1 - discount/100) x quantity, unrounded.
func ItemTotal(price, discountPercent decimal.Decimal, quantity int) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(discountPercent.Div(hundred))
	return price.Mul(factor).Mul(decimal.NewFromInt(int64(quantity)))
}

// LineGross is the line amount before the product discount.
func LineGross(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// RoundMoney rounds to cents, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CartTotals aggregates lines and applies couponDiscount to the net subtotal.
// Total never goes below zero.
func CartTotals(lines []Line, couponDiscount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	gross := decimal.Zero
	count := 0
	for _, l := range lines {
		subtotal = subtotal.Add(ItemTotal(l.Price, l.Discount, l.Quantity))
		gross = gross.Add(LineGross(l.Price, l.Quantity))
		count += l.Quantity
	}

	total := subtotal.Sub(couponDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal:       RoundMoney(subtotal),
		TotalDiscount:  RoundMoney(gross.Sub(subtotal)),
		CouponDiscount: RoundMoney(couponDiscount),
		Total:          RoundMoney(total),
		ItemCount:      count,
	}
}

// GrossSubtotal is the sum of price x quantity over lines, rounded to cents.
func GrossSubtotal(lines []Line) decimal.Decimal {
	gross := decimal.Zero
	for _, l := range lines {
		gross = gross.Add(LineGross(l.Price, l.Quantity))
	}
	return RoundMoney(gross)
}

// OrderTotal is subtotal - totalDiscount - couponDiscount + shipping, floored at zero.
func OrderTotal(subtotal, totalDiscount, couponDiscount, shipping decimal.Decimal) decimal.Decimal {
	t := subtotal.Sub(totalDiscount).Sub(couponDiscount).Add(shipping)
	if t.IsNegative() {
		return decimal.Zero
	}
	return RoundMoney(t)
}

// ToMinorUnits converts an amount to integer cents.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
