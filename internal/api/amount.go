// File: internal/api/amount.go
package api

import (
	"regexp"
	"strconv"
	"strings"
)

// amountPattern accepts plain positive decimals with at most two fractional
// digits. No signs, no exponents, no grouping separators.
var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// IsValidAmount is the pure pre-check for amount-bearing actions. It runs
// before the executor is invoked and before the timing window opens, so a
// rejected amount has no side effects at all.
func IsValidAmount(s string) bool {
	s = strings.TrimSpace(s)
	if !amountPattern.MatchString(s) {
		return false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return v > 0
}
