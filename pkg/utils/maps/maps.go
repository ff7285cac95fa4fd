// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package maps

// IsSubset compares two maps to determine if one of them is fully contained in the other.
func IsSubset(m1, m2 map[string]string) bool {
	if len(m1) > len(m2) {
		return false
	}

	for k, v1 := range m1 {
		if v2, ok := m2[k]; !ok || v1 != v2 {
			return false
		}
	}

	return true
}

// Merge merges source into destination, overwriting existing keys, and returns the destination.
func Merge(dest, src map[string]string) map[string]string {
	if dest == nil {
		if len(src) == 0 {
			return nil
		}
		dest = make(map[string]string, len(src))
	}

	for k, v := range src {
		dest[k] = v
	}

	return dest
}

// MergePreservingExistingKeys merges source into destination while skipping any keys that exist in the destination,
// and returns the destination.
func MergePreservingExistingKeys(dest, src map[string]string) map[string]string {
	if dest == nil {
		if len(src) == 0 {
			return nil
		}
		dest = make(map[string]string, len(src))
	}

	for k, v := range src {
		if _, exists := dest[k]; !exists {
			dest[k] = v
		}
	}

	return dest
}

