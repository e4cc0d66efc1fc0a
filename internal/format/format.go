// Package format renders numbers and timestamps the way the console displays them.
package format

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Number renders v with thousands separators and the given number of decimals
// ("0,0.00" style). More than two decimals are not used by any view.
func Number(v float64, decimals int) string {
	switch decimals {
	case 0:
		return printer.Sprintf("%.0f", v)
	case 1:
		return printer.Sprintf("%.1f", v)
	default:
		return printer.Sprintf("%.2f", v)
	}
}

func Count(n int64) string {
	return printer.Sprintf("%d", n)
}

const timeLayout = "2006-01-02T15:04:05-07:00"

// Time renders t with its zone offset. The zero time renders as "n/a".
func Time(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.Format(timeLayout)
}
