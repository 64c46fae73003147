// Package core provides the dashboard domain model and formatting helpers.
//
// This file contains number formatting used by chart labels, tooltips and
// the profile summary.
package core

import (
	"strconv"

	"github.com/dustin/go-humanize"
)

// FormatThousands formats n with comma thousands separators.
//
// Examples:
//   FormatThousands(0)        -> "0"
//   FormatThousands(1234567)  -> "1,234,567"
//   FormatThousands(-9876)    -> "-9,876"
func FormatThousands(n int64) string {
	return humanize.Comma(n)
}

// FormatMegabytes renders an XP amount in MB with two decimals ("1.23 MB").
func FormatMegabytes(xp int64) string {
	return strconv.FormatFloat(float64(xp)/1_000_000, 'f', 2, 64) + " MB"
}
