package discovery

import "strings"

// encodeTXT builds the auxiliary metadata records carried in the mDNS
// advertisement
func encodeTXT(displayID, tenantID, name string) []string {
	return []string{
		"displayId=" + displayID,
		"tenantId=" + tenantID,
		"name=" + name,
	}
}

// parseTXT extracts key=value metadata from TXT records. Records
// without a separator are ignored.
func parseTXT(records []string) map[string]string {
	meta := make(map[string]string, len(records))
	for _, record := range records {
		key, value, found := strings.Cut(record, "=")
		if !found || key == "" {
			continue
		}
		meta[key] = value
	}
	return meta
}
