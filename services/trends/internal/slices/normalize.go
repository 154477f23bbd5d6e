package slices

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	ModeAll    = "All"
	ModeRemote = "Remote"
	ModeHybrid = "Hybrid"
	ModeOnSite = "On-site"
)

const (
	SeniorityAll       = "All"
	SeniorityUnknown   = "Unknown"
	SeniorityIntern    = "Intern"
	SeniorityJunior    = "Junior"
	SeniorityMid       = "Mid"
	SenioritySenior    = "Senior"
	SeniorityLead      = "Lead"
	SeniorityPrincipal = "Principal"
	SeniorityManager   = "Manager"
	SeniorityDirector  = "Director"
)

const RegionGlobal = "GLOBAL"

type Dimension string

const (
	DimensionTechnology Dimension = "technology"
	DimensionSkill      Dimension = "skill"
	DimensionBoth       Dimension = "both"
)

func ParseDimension(s string) (Dimension, bool) {
	switch d := Dimension(strings.ToLower(strings.TrimSpace(s))); d {
	case DimensionTechnology, DimensionSkill, DimensionBoth:
		return d, true
	case "":
		return DimensionTechnology, true
	default:
		return "", false
	}
}

var modeSeparators = regexp.MustCompile(`[\s-]+`)

// NormWorkMode maps enrichment enums and free text onto Remote, Hybrid or
// On-site. Anything unrecognised is On-site.
func NormWorkMode(raw string) string {
	base := strings.ToLower(strings.TrimSpace(raw))
	switch modeSeparators.ReplaceAllString(base, "_") {
	case "remote":
		return ModeRemote
	case "hybrid":
		return ModeHybrid
	case "on_site", "onsite", "not_specified":
		return ModeOnSite
	}
	switch {
	case strings.Contains(base, "remote"):
		return ModeRemote
	case strings.Contains(base, "hybrid"):
		return ModeHybrid
	default:
		return ModeOnSite
	}
}

var seniorityPatterns = []struct {
	re    *regexp.Regexp
	level string
}{
	{regexp.MustCompile(`intern`), SeniorityIntern},
	{regexp.MustCompile(`junior|entry`), SeniorityJunior},
	{regexp.MustCompile(`lead`), SeniorityLead},
	{regexp.MustCompile(`principal`), SeniorityPrincipal},
	{regexp.MustCompile(`manager`), SeniorityManager},
	{regexp.MustCompile(`director`), SeniorityDirector},
	{regexp.MustCompile(`senior|sr`), SenioritySenior},
	{regexp.MustCompile(`mid|intermediate`), SeniorityMid},
}

func NormSeniority(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	switch t {
	case "entry":
		return SeniorityJunior
	case "mid":
		return SeniorityMid
	case "senior":
		return SenioritySenior
	case "lead":
		return SeniorityLead
	case "executive":
		return SeniorityPrincipal
	}
	for _, p := range seniorityPatterns {
		if p.re.MatchString(t) {
			return p.level
		}
	}
	return SeniorityUnknown
}

var wordPattern = regexp.MustCompile(`\w\S*`)

func NormIndustry(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "unknown") {
		return "Unknown"
	}
	return wordPattern.ReplaceAllStringFunc(s, func(w string) string {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		return string(r)
	})
}

// Location is a parsed posting location. Region is the country-qualified
// state code, e.g. US-IL, and is only set for US locations.
type Location struct {
	Country string
	Region  string
}

var (
	locationSeparators = regexp.MustCompile(`[,|]`)
	countryAliases     = map[string]string{
		"UNITED STATES":            "US",
		"UNITED STATES OF AMERICA": "US",
		"USA":                      "US",
		"U.S.":                     "US",
		"U.S.A.":                   "US",
		"UK":                       "GB",
		"UNITED KINGDOM":           "GB",
	}
)

// ParseLocation reads "City, ST, Country" style strings. The last two
// letter token is taken as the country, so "Chicago, IL" yields country IL.
func ParseLocation(raw string) Location {
	var tokens []string
	for _, part := range locationSeparators.Split(raw, -1) {
		part = strings.ToUpper(strings.TrimSpace(part))
		if alias, ok := countryAliases[part]; ok {
			part = alias
		}
		if part != "" {
			tokens = append(tokens, part)
		}
	}

	var loc Location
	countryAt := -1
	for i := len(tokens) - 1; i >= 0; i-- {
		if isCode(tokens[i]) {
			loc.Country = tokens[i]
			countryAt = i
			break
		}
	}
	if loc.Country == "US" && countryAt > 0 && isCode(tokens[countryAt-1]) {
		loc.Region = "US-" + tokens[countryAt-1]
	}
	return loc
}

func isCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Regions lists every region a posting counts towards, GLOBAL first.
func Regions(loc Location) []string {
	out := []string{RegionGlobal}
	if loc.Country != "" {
		out = append(out, loc.Country)
	}
	if loc.Region != "" && loc.Country != "" {
		out = append(out, loc.Region)
	}
	return out
}

// Skill is a deduplicated skill name. Key is the lowercased form rows are
// stored under; Display keeps the first spelling seen.
type Skill struct {
	Key     string
	Display string
}

func CanonicalizeTech(names []string) []Skill {
	return canonicalizeNames(names)
}

func CanonicalizeSoftSkill(names []string) []Skill {
	return canonicalizeNames(names)
}

func canonicalizeNames(names []string) []Skill {
	seen := make(map[string]struct{}, len(names))
	out := make([]Skill, 0, len(names))
	for _, name := range names {
		display := strings.Join(strings.Fields(name), " ")
		if display == "" {
			continue
		}
		key := strings.ToLower(display)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Skill{Key: key, Display: display})
	}
	return out
}

// SelectPrimarySet picks the skills a posting is counted under.
func SelectPrimarySet(techs, soft []Skill, dim Dimension) []Skill {
	switch dim {
	case DimensionSkill:
		return soft
	case DimensionBoth:
		out := make([]Skill, 0, len(techs)+len(soft))
		seen := make(map[string]struct{}, len(techs)+len(soft))
		for _, s := range append(append([]Skill{}, techs...), soft...) {
			if _, ok := seen[s.Key]; ok {
				continue
			}
			seen[s.Key] = struct{}{}
			out = append(out, s)
		}
		return out
	default:
		return techs
	}
}
