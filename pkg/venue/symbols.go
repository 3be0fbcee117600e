package venue

import "strings"

// SpotSymbol maps a logical pair onto the spot venue's instrument format.
// USDC pairs trade against USDT there, so "SOL/USDC" becomes "SOLUSDT".
func SpotSymbol(pair string) string {
	base, quote, found := strings.Cut(pair, "/")
	if !found {
		return pair
	}
	if quote == "USDC" {
		quote = "USDT"
	}
	return base + quote
}

// PerpSymbol maps a logical pair onto the perp venue's market name, e.g.
// "SOL/USDC" becomes "SOL-PERP".
func PerpSymbol(pair string) string {
	base, _, found := strings.Cut(pair, "/")
	if !found {
		base = pair
	}
	return base + "-PERP"
}
