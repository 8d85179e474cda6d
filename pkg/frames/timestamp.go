package frames

import (
	"regexp"
	"strconv"
	"strings"
)

// 只接受普通十进制，排除 NaN/Inf/指数/十六进制/正负号
var timestampPart = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ParseTimestamp converts "MM:SS" or "HH:MM:SS" to seconds. Fractional
// seconds are allowed. Anything else yields 0 rather than an error.
func ParseTimestamp(ts string) float64 {
	parts := strings.Split(strings.TrimSpace(ts), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if !timestampPart.MatchString(p) {
			return 0
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0
		}
		vals[i] = v
	}
	if len(vals) == 2 {
		return vals[0]*60 + vals[1]
	}
	return vals[0]*3600 + vals[1]*60 + vals[2]
}
