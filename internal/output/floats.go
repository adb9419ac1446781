package output

import (
	"math"
	"strconv"
	"strings"
)

// RoundFloat rounds a float to max 6 decimal places
func RoundFloat(f float64) float64 {
	multiplier := math.Pow(10, 6)
	return math.Round(f*multiplier) / multiplier
}

// FormatFloat formats a float with no trailing zeros
func FormatFloat(f float64) string {
	str := strconv.FormatFloat(RoundFloat(f), 'f', 6, 64)
	str = strings.TrimRight(str, "0")
	return strings.TrimRight(str, ".")
}

// Ratio returns num/den rounded for output, or 1 when den is zero.
func Ratio(num, den int) float64 {
	if den == 0 {
		return 1
	}
	return RoundFloat(float64(num) / float64(den))
}

// FormatPercent renders a ratio in [0,1] as a percentage, e.g. "87.5%".
func FormatPercent(ratio float64) string {
	return FormatFloat(math.Round(ratio*1000)/10) + "%"
}
