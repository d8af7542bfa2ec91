// Package merge folds records from every source into one record per
// business identity.
package merge

import (
	"go.uber.org/zap"

	"github.com/sells-group/listing-cli/internal/model"
)

// Stats summarizes one Merge call.
type Stats struct {
	Input      int
	Output     int
	Collisions int
	// FieldsFilled counts fields copied from a colliding record onto a base.
	FieldsFilled int
}

// Merge groups records by identity key. The first record seen for a key is
// the base; later records with the same key only fill fields the base lacks.
// Output keeps first-seen order, so callers control priority by input order.
func Merge(records []model.BusinessRecord) []model.BusinessRecord {
	out, _ := MergeWithStats(records)
	return out
}

// MergeWithStats is Merge plus collision counts.
func MergeWithStats(records []model.BusinessRecord) ([]model.BusinessRecord, Stats) {
	stats := Stats{Input: len(records)}
	index := make(map[string]int, len(records))
	out := make([]model.BusinessRecord, 0, len(records))

	for _, rec := range records {
		key := rec.Key()
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, rec)
			continue
		}
		stats.Collisions++
		filled := fillAbsent(&out[i], rec)
		stats.FieldsFilled += filled

		zap.L().Debug("merge: collision",
			zap.String("key", key),
			zap.String("base_source", string(out[i].Source)),
			zap.String("other_source", string(rec.Source)),
			zap.Int("fields_filled", filled),
		)
	}

	stats.Output = len(out)
	return out, stats
}

// fillAbsent copies fields from other into base where base has none, and
// returns how many were copied. Industry only replaces the default.
func fillAbsent(base *model.BusinessRecord, other model.BusinessRecord) int {
	n := 0
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&base.URL, other.URL},
		{&base.Phone, other.Phone},
		{&base.Email, other.Email},
		{&base.Address, other.Address},
		{&base.Rating, other.Rating},
	} {
		if model.IsAbsent(*f.dst) && !model.IsAbsent(f.src) {
			*f.dst = f.src
			n++
		}
	}

	if base.Industry == model.DefaultIndustry && !model.IsAbsent(other.Industry) && other.Industry != model.DefaultIndustry {
		base.Industry = other.Industry
		n++
	}
	return n
}
