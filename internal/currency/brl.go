// Package currency formats amounts for user-facing storefront strings.
package currency

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// BRL renders an amount the way the storefront displays prices, with the
// Brazilian decimal comma: BRL(249.9) == "R$ 249,90".
func BRL(amount float64) string {
	return printer.Sprintf("R$ %.2f", amount)
}
