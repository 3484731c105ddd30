// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

package sync

// Dedupe removes records sharing an identity key, keeping the first
// occurrence in input order. Records with an empty key are dropped: a record
// without its natural key cannot be upserted meaningfully.
func Dedupe[T any](records []T, keyFn func(T) string) []T {
	return DedupeWith(records, keyFn, make(map[string]struct{}, len(records)))
}

// DedupeWith is Dedupe with a caller-owned seen set, so first-wins semantics
// can span successive batches such as report pages.
func DedupeWith[T any](records []T, keyFn func(T) string, seen map[string]struct{}) []T {
	if len(records) == 0 {
		return records
	}
	out := records[:0:0]
	for _, rec := range records {
		key := keyFn(rec)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}
