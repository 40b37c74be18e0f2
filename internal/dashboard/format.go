package dashboard

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// FormatThousands renders n with "." as the thousands separator.
func FormatThousands(n int64) string {
	return ptBR.Sprintf("%d", n)
}

// FormatShort abbreviates n for chart labels: 1,2M, 12k, 950.
func FormatShort(n float64) string {
	if math.IsNaN(n) {
		n = 0
	}
	var s string
	switch abs := math.Abs(n); {
	case abs >= 1_000_000:
		s = fmt.Sprintf("%.1fM", n/1_000_000)
	case abs >= 1_000:
		s = fmt.Sprintf("%.0fk", n/1_000)
	default:
		s = fmt.Sprintf("%.0f", n)
	}
	return strings.ReplaceAll(s, ".", ",")
}

// FormatPercent renders v with the given number of decimals and a % sign.
func FormatPercent(v float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, v)
}
