package canonical

import "strings"

const DefaultHomeCountry = "us"

type Location struct {
	City    string `json:"city,omitempty"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
	Token   string `json:"token"`
}

var countryAliases = map[string]string{
	"united states":            "us",
	"united states of america": "us",
	"usa":                      "us",
	"u.s.":                     "us",
	"u.s.a.":                   "us",
	"us":                       "us",
	"united kingdom":           "uk",
	"great britain":            "uk",
	"gb":                       "uk",
	"uk":                       "uk",
	"canada":                   "ca",
	"ca":                       "ca",
}

var stateAbbreviations = map[string]struct{}{}

var stateNames = map[string]string{
	"alabama": "al", "alaska": "ak", "arizona": "az", "arkansas": "ar",
	"california": "ca", "colorado": "co", "connecticut": "ct", "delaware": "de",
	"florida": "fl", "georgia": "ga", "hawaii": "hi", "idaho": "id",
	"illinois": "il", "indiana": "in", "iowa": "ia", "kansas": "ks",
	"kentucky": "ky", "louisiana": "la", "maine": "me", "maryland": "md",
	"massachusetts": "ma", "michigan": "mi", "minnesota": "mn", "mississippi": "ms",
	"missouri": "mo", "montana": "mt", "nebraska": "ne", "nevada": "nv",
	"new hampshire": "nh", "new jersey": "nj", "new mexico": "nm", "new york": "ny",
	"north carolina": "nc", "north dakota": "nd", "ohio": "oh", "oklahoma": "ok",
	"oregon": "or", "pennsylvania": "pa", "rhode island": "ri", "south carolina": "sc",
	"south dakota": "sd", "tennessee": "tn", "texas": "tx", "utah": "ut",
	"vermont": "vt", "virginia": "va", "washington": "wa", "west virginia": "wv",
	"wisconsin": "wi", "wyoming": "wy", "district of columbia": "dc",
}

func init() {
	for _, code := range stateNames {
		stateAbbreviations[code] = struct{}{}
	}
}

// Locale carries the country assumed when an address omits one.
type Locale struct {
	HomeCountry string
}

func (l Locale) home() string {
	if l.HomeCountry == "" {
		return DefaultHomeCountry
	}
	return strings.ToLower(l.HomeCountry)
}

func ParseLocation(raw string) Location {
	return Locale{}.Parse(raw)
}

func StructuredLocation(city, region, country string) Location {
	return Locale{}.Structured(city, region, country)
}

func (l Locale) Structured(city, region, country string) Location {
	co := countryCode(country)
	if co == "" {
		co = l.home()
	}
	return newLocation(cleanPlace(city), regionCode(region), co)
}

// Parse reads a free-form location. Comma separated parts are read as
// (region), (city, region) or (city, region, country); strings without
// commas fall back to hyphens.
func (l Locale) Parse(raw string) Location {
	s := prepare(strings.ReplaceAll(raw, "\u00a0", " "))
	if s == "" {
		return Location{}
	}

	parts := splitParts(s, ",")
	if len(parts) == 1 && strings.Contains(s, "-") {
		if loc, ok := l.parseHyphenated(s); ok {
			return loc
		}
		parts = splitParts(s, "-")
	}

	switch {
	case len(parts) >= 3:
		return newLocation(cleanPlace(parts[0]), regionCode(parts[1]), countryCode(parts[2]))
	case len(parts) == 2:
		if co, ok := foreignCountry(parts[1]); ok {
			return newLocation(cleanPlace(parts[0]), "", co)
		}
		return newLocation(cleanPlace(parts[0]), regionCode(parts[1]), l.home())
	case len(parts) == 1:
		if co, ok := foreignCountry(parts[0]); ok {
			return newLocation("", "", co)
		}
		return newLocation("", regionCode(parts[0]), l.home())
	}
	return Location{}
}

// parseHyphenated peels a recognised country and state off the end of a
// hyphen separated location, so "san-francisco-ca" reads as city
// "san francisco" in "ca".
func (l Locale) parseHyphenated(s string) (Location, bool) {
	parts := splitParts(s, "-")
	if len(parts) < 2 {
		return Location{}, false
	}

	var region, country string
	if co, ok := foreignCountry(parts[len(parts)-1]); ok {
		country = co
		parts = parts[:len(parts)-1]
	}

	if n := len(parts); n >= 1 {
		if code, ok := stateCode(parts[n-1]); ok {
			region = code
			parts = parts[:n-1]
		} else if n >= 2 {
			if code, ok := stateCode(parts[n-2] + " " + parts[n-1]); ok {
				region = code
				parts = parts[:n-2]
			}
		}
	}

	if region == "" && country == "" {
		return Location{}, false
	}
	if country == "" {
		country = l.home()
	}
	return newLocation(cleanPlace(strings.Join(parts, " ")), region, country), true
}

func newLocation(city, region, country string) Location {
	loc := Location{City: city, Region: region, Country: country}
	fields := make([]string, 0, 3)
	for _, f := range []string{city, region, country} {
		if f != "" {
			fields = append(fields, f)
		}
	}
	loc.Token = strings.Join(fields, ",")
	return loc
}

func splitParts(s, sep string) []string {
	var parts []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func cleanPlace(s string) string {
	return stripPunct(prepare(s))
}

func stateCode(token string) (string, bool) {
	t := cleanPlace(token)
	if _, ok := stateAbbreviations[t]; ok {
		return t, true
	}
	if code, ok := stateNames[t]; ok {
		return code, true
	}
	return "", false
}

func regionCode(token string) string {
	t := cleanPlace(token)
	if t == "" {
		return ""
	}
	if code, ok := stateCode(t); ok {
		return code
	}
	if first, _, found := strings.Cut(t, " "); found {
		if _, ok := stateAbbreviations[first]; ok {
			return first
		}
	}
	return t
}

func countryCode(token string) string {
	t := prepare(token)
	if t == "" {
		return ""
	}
	if code, ok := countryAliases[t]; ok {
		return code
	}
	if code, ok := countryAliases[cleanPlace(t)]; ok {
		return code
	}
	return cleanPlace(t)
}

// foreignCountry recognises a country alias that cannot also be read as a
// US state. State readings win, so "ca" stays California.
func foreignCountry(token string) (string, bool) {
	if _, ok := stateCode(token); ok {
		return "", false
	}
	t := prepare(token)
	if code, ok := countryAliases[t]; ok {
		return code, true
	}
	if code, ok := countryAliases[cleanPlace(t)]; ok {
		return code, true
	}
	return "", false
}
