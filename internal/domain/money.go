package domain

import "github.com/shopspring/decimal"

// AmountEpsilon is the tolerance used when matching a charged amount to a price.
var AmountEpsilon = decimal.NewFromFloat(0.01)

func AmountsMatch(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(AmountEpsilon)
}

func SumAmounts(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
