package util

import (
	"strconv"
	"strings"
)

// ValidIPv4 reports whether ip is four dot-separated octets 0-255. The ban
// list only ever holds addresses in this shape, so anything else is rejected
// before it can reach the registry.
func ValidIPv4(ip string) bool {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		if _, err := strconv.ParseUint(p, 10, 8); err != nil {
			return false
		}
	}
	return true
}
