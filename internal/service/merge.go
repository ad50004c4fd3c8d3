package service

import (
	"sort"
	"strings"

	"github.com/shibakov/calroies-info-ms/internal/model"
)

// MergeRecords concatenates candidate lists, drops repeats of the same
// (product, brand, source) keeping the first, ranks what is left against
// query and truncates to limit. A non-positive limit keeps everything.
func MergeRecords(query string, lists [][]model.FoodRecord, limit int) []model.FoodRecord {
	seen := map[mergeKey]struct{}{}
	out := make([]model.FoodRecord, 0)
	for _, list := range lists {
		for _, rec := range list {
			key := keyOf(rec)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, rec)
		}
	}

	q := normalizeName(query)
	sort.SliceStable(out, func(i, j int) bool {
		return compareRecords(out[i], out[j], q)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type mergeKey struct {
	name, brand string
	src         model.Source
}

func keyOf(rec model.FoodRecord) mergeKey {
	return mergeKey{name: normalizeName(rec.Product), brand: normalizeName(rec.Brand), src: rec.Source}
}

func compareRecords(a, b model.FoodRecord, q string) bool {
	if pa, pb := a.Source.Priority(), b.Source.Priority(); pa != pb {
		return pa < pb
	}
	an, bn := normalizeName(a.Product), normalizeName(b.Product)
	if sa, sb := strings.HasPrefix(an, q), strings.HasPrefix(bn, q); sa != sb {
		return sa
	}
	if ca, cb := strings.Contains(an, q), strings.Contains(bn, q); ca != cb {
		return ca
	}
	return an < bn
}
