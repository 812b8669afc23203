package settings

import (
	"fmt"
)

// String reads a required string key from a provider settings block.
func String(conf map[string]any, key string) (string, error) {
	raw, ok := conf[key]
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}
	v, ok := raw.(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s must be a non-empty string", key)
	}
	return v, nil
}

// RecordType is the DNS record type carrying addresses of ip's family.
func RecordType(is6 bool) string {
	if is6 {
		return "AAAA"
	}
	return "A"
}
