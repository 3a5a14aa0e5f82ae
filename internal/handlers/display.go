package handlers

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Display strings use locale-correct digit grouping: Indian lakh/crore
// grouping for rupees ("₹1,40,313"), western grouping for dollars.
var (
	inrPrinter = message.NewPrinter(language.MustParse("en-IN"))
	usdPrinter = message.NewPrinter(language.AmericanEnglish)
)

func formatINR(amount float64) string {
	return "₹" + inrPrinter.Sprintf("%v", number.Decimal(amount, number.MaxFractionDigits(0)))
}

func formatUSD(amount float64) string {
	return "$" + usdPrinter.Sprintf("%v", number.Decimal(amount, number.MaxFractionDigits(0)))
}
