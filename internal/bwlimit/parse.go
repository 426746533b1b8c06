// Package bwlimit implements rsync's --bwlimit argument parsing and a
// token-bucket rate limiter for the data stream. Grounded in
// original_source/crates/bandwidth's parse and limiter modules: the
// suffix grammar and error taxonomy from parse/error.rs, the sleep
// coalescing and minimum-write constants from limiter/mod.rs.
package bwlimit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Parse errors, matching the three-way taxonomy in
// original_source/crates/bandwidth/src/parse/error.rs.
var (
	ErrInvalidSyntax = errors.New("bwlimit: invalid bandwidth limit syntax")
	ErrTooSmall      = errors.New("bwlimit: bandwidth limit is below the minimum of 512 bytes per second")
	ErrTooLarge      = errors.New("bwlimit: bandwidth limit exceeds the supported range")
)

// minRateBytesPerSecond is the smallest non-zero rate rsync accepts;
// below this, the limiter could not admit even one minimum-sized write
// per sleep interval.
const minRateBytesPerSecond = 512

// unitMultiplier maps the single-letter (and historical K/g-style)
// suffixes rsync recognizes to a byte multiplier. A bare number is
// interpreted as kibibytes per second, matching upstream rsync's
// --bwlimit default unit.
var unitMultiplier = map[byte]int64{
	0:   1024, // no suffix: value is already in KiB/s
	'b': 1,
	'k': 1024,
	'm': 1024 * 1024,
	'g': 1024 * 1024 * 1024,
	't': 1024 * 1024 * 1024 * 1024,
}

// ParseRate parses a --bwlimit argument into a byte-per-second rate.
// "0" and the empty string mean unlimited (rate 0, unlimited true). Accepts an
// optional decimal point and a trailing unit suffix (case-insensitive):
// K/KB, M/MB, G/GB, T/TB, or B for a literal byte count; a bare number
// without a suffix is kibibytes per second.
func ParseRate(s string) (rate int64, unlimited bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, true, nil
	}

	numEnd := 0
	for numEnd < len(s) && (s[numEnd] == '.' || (s[numEnd] >= '0' && s[numEnd] <= '9')) {
		numEnd++
	}
	if numEnd == 0 {
		return 0, false, errors.Wrapf(ErrInvalidSyntax, "%q", s)
	}

	numPart := s[:numEnd]
	suffix := strings.ToLower(strings.TrimSpace(s[numEnd:]))
	if suffix != "b" {
		suffix = strings.TrimSuffix(suffix, "b") // "KB"/"MB"/... end in a redundant trailing b
	}
	if suffix == "" {
		suffix = "\x00"
	}
	if len(suffix) != 1 {
		return 0, false, errors.Wrapf(ErrInvalidSyntax, "unrecognized unit in %q", s)
	}
	mult, ok := unitMultiplier[suffix[0]]
	if !ok {
		return 0, false, errors.Wrapf(ErrInvalidSyntax, "unrecognized unit in %q", s)
	}

	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, false, errors.Wrapf(ErrInvalidSyntax, "%q", s)
	}
	if value < 0 {
		return 0, false, errors.Wrapf(ErrInvalidSyntax, "negative rate %q", s)
	}

	scaled := value * float64(mult)
	if scaled == 0 {
		return 0, true, nil
	}
	if scaled > 0 && scaled < minRateBytesPerSecond {
		return 0, false, ErrTooSmall
	}
	const maxRate = float64(1) << 62
	if scaled > maxRate {
		return 0, false, ErrTooLarge
	}

	return int64(scaled), false, nil
}

// FormatRate renders a byte-per-second rate using the largest whole
// unit that divides it evenly, matching
// original_source's format_bandwidth_rate "prefers largest whole unit"
// behavior exercised by its daemon test suite.
func FormatRate(rate int64) string {
	if rate <= 0 {
		return "unlimited"
	}
	units := []struct {
		suffix string
		size   int64
	}{
		{"T", 1024 * 1024 * 1024 * 1024},
		{"G", 1024 * 1024 * 1024},
		{"M", 1024 * 1024},
		{"K", 1024},
	}
	for _, u := range units {
		if rate >= u.size && rate%u.size == 0 {
			return fmt.Sprintf("%d%s", rate/u.size, u.suffix)
		}
	}
	return fmt.Sprintf("%db", rate)
}
