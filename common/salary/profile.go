package salary

import (
	"regexp"
	"strings"
)

var titleSplitRe = regexp.MustCompile(`[^a-z0-9+]+`)

var softwareFallbackKeywords = []string{
	"software", "full stack", "frontend", "front end", "backend", "platform",
	"infrastructure", "infra", "systems", "system", "site reliability", "sre",
	"reliability", "devops", "cloud", "security", "secops", "mobile", "ios",
	"android", "embedded", "firmware", "robotics", "graphics", "ai",
	"machine learning", "ml", "automation",
}

var developerTokens = toSet("developer", "dev", "development")

var engineerTokens = toSet(
	"engineer", "eng", "swe", "software", "backend", "frontend", "architect",
	"architecture", "platform", "systems", "system", "infrastructure", "infra",
	"sre", "reliability", "site", "devops", "security", "secops", "cloud",
	"mobile", "ios", "android", "embedded", "firmware", "robotics", "automation",
)

var (
	juniorTokens = toSet("junior", "jr", "entry", "associate")
	seniorTokens = toSet("senior", "sr", "lead", "principal", "staff")
	midTokens    = toSet("mid", "intermediate")
)

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

type Profile struct {
	Normalized string
	Roles      []Role
	Seniority  Seniority
}

func (p Profile) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func BuildProfile(title string) Profile {
	normalized := strings.ToLower(title)
	var tokens []string
	for _, t := range titleSplitRe.Split(normalized, -1) {
		if t != "" {
			tokens = append(tokens, t)
		}
	}

	var developer, engineer bool
	for _, t := range tokens {
		if _, ok := developerTokens[t]; ok {
			developer = true
		}
		if _, ok := engineerTokens[t]; ok {
			engineer = true
		}
	}
	if strings.Contains(normalized, "full stack") ||
		strings.Contains(normalized, "backend") ||
		strings.Contains(normalized, "frontend") ||
		strings.Contains(normalized, "front end") {
		developer, engineer = true, true
	}

	var roles []Role
	if developer {
		roles = append(roles, RoleDeveloper)
	}
	if engineer {
		roles = append(roles, RoleEngineer)
	}
	if len(roles) == 0 {
		roles = append(roles, RoleGeneral)
	}

	return Profile{
		Normalized: normalized,
		Roles:      roles,
		Seniority:  seniorityOf(tokens),
	}
}

func seniorityOf(tokens []string) Seniority {
	for _, set := range []struct {
		tokens    map[string]struct{}
		seniority Seniority
	}{
		{juniorTokens, SeniorityJunior},
		{seniorTokens, SenioritySenior},
		{midTokens, SeniorityMid},
	} {
		for _, t := range tokens {
			if _, ok := set.tokens[t]; ok {
				return set.seniority
			}
		}
	}
	return SeniorityUnknown
}

// Matches evaluates the criterion against a profile. Developer and engineer
// criteria also accept titles that only carry a software-adjacent keyword.
func (c Criterion) Matches(p Profile) bool {
	if len(c.Roles) > 0 {
		found := false
		for _, role := range c.Roles {
			if p.HasRole(role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(c.Seniority) > 0 {
		if p.Seniority == SeniorityUnknown {
			return false
		}
		found := false
		for _, s := range c.Seniority {
			if s == p.Seniority {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	softwareRole := false
	for _, role := range c.Roles {
		if role == RoleDeveloper || role == RoleEngineer {
			softwareRole = true
			break
		}
	}

	if len(c.Includes) > 0 {
		if containsAny(p.Normalized, c.Includes) {
			return true
		}
		return softwareRole && containsAny(p.Normalized, softwareFallbackKeywords)
	}
	if softwareRole {
		return containsAny(p.Normalized, softwareFallbackKeywords)
	}
	return true
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
