package slices

// Key addresses a stored row.
type Key struct {
	Skill   string
	SortKey string
}

func (r Row) Key() Key {
	return Key{Skill: r.SkillCanonical, SortKey: r.SortKey}
}

// Previous is the part of a prior period's row momentum needs.
type Previous struct {
	JobCount     uint32
	SalaryMedian *float64
}

func previousKey(r Row) Key {
	return Key{Skill: r.SkillCanonical, SortKey: SortKey(r.Region, r.Seniority, r.WorkMode, PreviousPeriod(r.Period))}
}

// PreviousKeys lists, without duplicates, the prior period keys for rows.
func PreviousKeys(rows []Row) []Key {
	seen := make(map[Key]struct{}, len(rows))
	out := make([]Key, 0, len(rows))
	for _, r := range rows {
		k := previousKey(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// ApplyMomentum fills the change percentages and trend signal from the
// matching prior period rows and returns how many rows had one.
func ApplyMomentum(rows []Row, prev map[Key]Previous) int {
	matched := 0
	for i := range rows {
		p, ok := prev[previousKey(rows[i])]
		if !ok {
			continue
		}
		matched++
		if p.JobCount > 0 {
			delta := (float64(rows[i].JobCount) - float64(p.JobCount)) / float64(p.JobCount)
			rows[i].JobCountChangePct = ptr(delta)
			rows[i].TrendSignal = TrendSignal(delta)
		}
		if p.SalaryMedian != nil && rows[i].SalaryMedian != nil && *p.SalaryMedian > 0 {
			rows[i].MedianSalaryChangePct = ptr((*rows[i].SalaryMedian - *p.SalaryMedian) / *p.SalaryMedian)
		}
	}
	return matched
}

// Chunk splits items into consecutive groups of at most size.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
