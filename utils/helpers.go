package utils

import (
	"net/url"
	"strings"
)

func IsValidInterval(interval string) bool {
	switch interval {
	case "Minute", "Hour", "Day", "Week", "Month", "Quarter", "Year":
		return true
	default:
		return false
	}
}

// IsValidDimension guards the column names interpolated into breakdown
// queries.
func IsValidDimension(dimension string) bool {
	switch dimension {
	case "device", "browser", "source":
		return true
	default:
		return false
	}
}

// CorrelationParam is the query parameter carrying the scan reference.
const CorrelationParam = "ref"

// WithCorrelation appends the correlation id to target as a query
// parameter, preserving whatever query target already has.
func WithCorrelation(target, correlationID string) string {
	if correlationID == "" {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		return target + sep + CorrelationParam + "=" + url.QueryEscape(correlationID)
	}
	q := u.Query()
	q.Set(CorrelationParam, correlationID)
	u.RawQuery = q.Encode()
	return u.String()
}
