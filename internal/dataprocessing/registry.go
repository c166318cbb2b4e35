package dataprocessing

import "strings"

// activityRegistry maps an activity key to the label it was first seen with.
// One registry lives for exactly one parse.
type activityRegistry map[string]string

// resolve returns the canonical label for marker, registering marker itself
// when its key has not been seen yet in this parse.
func (r activityRegistry) resolve(marker string) string {
	key := activityKey(marker)
	if label, ok := r[key]; ok {
		return label
	}
	r[key] = marker
	return marker
}

// activityKey is the first whitespace-delimited token of a marker cell.
func activityKey(marker string) string {
	fields := strings.Fields(marker)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
