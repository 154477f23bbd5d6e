package aggregator

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	RegionUS      = "us"
	RegionEurope  = "europe"
	RegionIndia   = "india"
	RegionRemote  = "remote"
	RegionOther   = "other"
	RegionUnknown = "unknown"

	SeniorityJunior = "junior"
	SeniorityMid    = "mid"
	SenioritySenior = "senior"

	SkillTypeTechnology = "technology"
	SkillTypeSoft       = "soft_skill"
)

var regionKeywords = []struct {
	region   string
	keywords []string
}{
	{RegionUS, []string{"us", "united states", "california", "new york", "texas", "washington"}},
	{RegionEurope, []string{"uk", "united kingdom", "london", "europe"}},
	{RegionIndia, []string{"india", "bangalore", "hyderabad", "mumbai"}},
	{RegionRemote, []string{"remote", "worldwide"}},
}

var techKeywords = []string{
	"aws", "python", "javascript", "typescript", "react", "docker", "kubernetes",
	"sql", "java", "node", "angular", "vue", "terraform", "mongodb", "postgresql",
	"redis", "kafka", "graphql", "api",
}

var (
	salaryNumberRe = regexp.MustCompile(`\d+[,\d]*`)
	skillLeadInRe  = regexp.MustCompile(`(?i)^(skill in|knowledge of|experience with|proficiency in)\s+`)
	skillTailRe    = regexp.MustCompile(`(?i)\s+(language|framework|library|tool|scripting)$`)
)

// Region buckets a free-text location by substring keywords, first match
// wins in the order us, europe, india, remote.
func Region(location string) string {
	if strings.TrimSpace(location) == "" {
		return RegionUnknown
	}
	loc := strings.ToLower(location)
	for _, rk := range regionKeywords {
		for _, kw := range rk.keywords {
			if strings.Contains(loc, kw) {
				return rk.region
			}
		}
	}
	return RegionOther
}

func Seniority(level string) string {
	s := strings.ToLower(level)
	switch {
	case strings.Contains(s, "entry"), strings.Contains(s, "junior"):
		return SeniorityJunior
	case strings.Contains(s, "senior"), strings.Contains(s, "lead"), strings.Contains(s, "principal"):
		return SenioritySenior
	default:
		return SeniorityMid
	}
}

// ParseSalary averages every number found in the range text.
func ParseSalary(salaryRange string) (float64, bool) {
	matches := salaryNumberRe.FindAllString(salaryRange, -1)
	if len(matches) == 0 {
		return 0, false
	}
	var sum float64
	for _, m := range matches {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			return 0, false
		}
		sum += v
	}
	return sum / float64(len(matches)), true
}

// NormalizeSkill lower-cases a skill token and strips lead-in phrases and
// trailing qualifiers. Tokens longer than three words are rejected.
func NormalizeSkill(raw string) (string, bool) {
	s := strings.TrimSpace(strings.ToLower(raw))
	for i := 0; i < 2; i++ {
		s = skillLeadInRe.ReplaceAllString(s, "")
		s = strings.TrimSpace(skillTailRe.ReplaceAllString(s, ""))
	}
	if s == "" || len(strings.Fields(s)) > 3 {
		return "", false
	}
	return s, true
}

func SkillType(skill string) string {
	lower := strings.ToLower(skill)
	for _, kw := range techKeywords {
		if strings.Contains(lower, kw) {
			return SkillTypeTechnology
		}
	}
	return SkillTypeSoft
}

func isRemote(status string) bool {
	return strings.Contains(strings.ToLower(status), "remote")
}
