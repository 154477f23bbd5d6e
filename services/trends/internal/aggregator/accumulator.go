package aggregator

import "sort"

// counter counts string keys and remembers their first-seen order.
type counter struct {
	index  map[string]int
	keys   []string
	counts []int
}

func newCounter() *counter {
	return &counter{index: make(map[string]int)}
}

func (c *counter) add(key string, n int) {
	if i, ok := c.index[key]; ok {
		c.counts[i] += n
		return
	}
	c.index[key] = len(c.keys)
	c.keys = append(c.keys, key)
	c.counts = append(c.counts, n)
}

func (c *counter) merge(other *counter) {
	for i, k := range other.keys {
		c.add(k, other.counts[i])
	}
}

// top returns the n highest counts, ties in first-seen order.
func (c *counter) top(n int) []SkillCount {
	out := make([]SkillCount, len(c.keys))
	for i, k := range c.keys {
		out[i] = SkillCount{Skill: k, Count: c.counts[i]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

type skillAggregate struct {
	count       int
	cooccurring *counter
	salaries    []float64
	remoteCount int
	industries  *counter
}

func newSkillAggregate() *skillAggregate {
	return &skillAggregate{
		cooccurring: newCounter(),
		industries:  newCounter(),
	}
}

func (a *skillAggregate) merge(other *skillAggregate) {
	a.count += other.count
	a.cooccurring.merge(other.cooccurring)
	a.salaries = append(a.salaries, other.salaries...)
	a.remoteCount += other.remoteCount
	a.industries.merge(other.industries)
}

// accumulator is scoped to a single aggregation run.
type accumulator struct {
	index      map[string]*skillAggregate
	keys       []string
	identities map[string][3]string
}

func newAccumulator() *accumulator {
	return &accumulator{
		index:      make(map[string]*skillAggregate),
		identities: make(map[string][3]string),
	}
}

func (acc *accumulator) get(skill, region, seniority string) *skillAggregate {
	key := Key(skill, region, seniority)
	agg, ok := acc.index[key]
	if !ok {
		agg = newSkillAggregate()
		acc.index[key] = agg
		acc.keys = append(acc.keys, key)
		acc.identities[key] = [3]string{skill, region, seniority}
	}
	return agg
}

func (acc *accumulator) merge(other *accumulator) {
	for _, key := range other.keys {
		id := other.identities[key]
		acc.get(id[0], id[1], id[2]).merge(other.index[key])
	}
}
