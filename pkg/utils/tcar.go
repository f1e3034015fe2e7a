package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Constants
const (
	YEAR_MONTH_LAYOUT = "200601"
	DATE_LAYOUT       = "2006-01-02"

	// MaxTcarSeq is the largest sequence a 4-digit suffix can hold
	MaxTcarSeq = 9999
)

// YearMonth returns the "YYYYMM" prefix for t
func YearMonth(t time.Time) string {
	return t.Format(YEAR_MONTH_LAYOUT)
}

// FormatTcarNo renders "YYYYMM-NNNN"
func FormatTcarNo(yearMonth string, seq int) string {
	return fmt.Sprintf("%s-%04d", yearMonth, seq)
}

// ParseTcarSeq extracts the numeric suffix of a tcar number
func ParseTcarSeq(tcarNo string) (int, bool) {
	_, suffix, found := strings.Cut(tcarNo, "-")
	if !found || suffix == "" {
		return 0, false
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// SplitList splits a comma separated list, trimming and dropping blanks
func SplitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
