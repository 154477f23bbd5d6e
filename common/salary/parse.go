package salary

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	hoursPerYear = 2080
	daysPerYear  = 260

	minAnnual = 20_000
	maxAnnual = 1_000_000
)

var (
	rangeNumberRe = regexp.MustCompile(`(\d+(?:\.\d+)?)(k)?`)
	hourlyRe      = regexp.MustCompile(`/?hr|hour`)
)

type Range struct {
	Min       float64
	Max       float64
	AnnualUSD float64
}

// ParseRange reads free-text pay such as "$120k-$150k", "45/hr" or
// "500 per day" and annualises the midpoint. Results outside
// [20k, 1M] are treated as noise.
func ParseRange(raw string, mentioned bool) (Range, bool) {
	if !mentioned {
		return Range{}, false
	}
	s := strings.ToLower(strings.NewReplacer(",", "", " ", "").Replace(raw))

	matches := rangeNumberRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return Range{}, false
	}

	var r Range
	for i, m := range matches {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if m[2] != "" {
			n *= 1000
		}
		if i == 0 || n < r.Min {
			r.Min = n
		}
		if i == 0 || n > r.Max {
			r.Max = n
		}
	}

	annual := (r.Min + r.Max) / 2
	if hourlyRe.MatchString(s) {
		annual *= hoursPerYear
	}
	if strings.Contains(s, "day") {
		annual *= daysPerYear
	}
	if annual < minAnnual || annual > maxAnnual {
		return Range{}, false
	}
	r.AnnualUSD = annual
	return r, true
}

type Distribution struct {
	Min float64
	Max float64
	P50 float64
	P75 float64
	P95 float64
}

// Percentiles uses the lower nearest-rank value at floor((n-1)*p).
func Percentiles(values []float64) (Distribution, bool) {
	if len(values) == 0 {
		return Distribution{}, false
	}
	a := make([]float64, len(values))
	copy(a, values)
	sort.Float64s(a)

	pick := func(p float64) float64 {
		i := int(float64(len(a)-1) * p)
		if i > len(a)-1 {
			i = len(a) - 1
		}
		return a[i]
	}

	return Distribution{
		Min: a[0],
		Max: a[len(a)-1],
		P50: pick(0.5),
		P75: pick(0.75),
		P95: pick(0.95),
	}, true
}
