package canonical

import (
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var (
	punctRe         = regexp.MustCompile("[.,/#!$%^&*;:{}=\\-_`~()]")
	companySuffixRe = regexp.MustCompile(`\b(inc|llc|ltd|limited|corp|corporation|co|company)\b`)
	bracketedRe     = regexp.MustCompile(`[\[(].*?[\])]`)
	trailingTailRe  = regexp.MustCompile(`\s[-–—]\s*[a-z0-9\s]+$`)
)

var companyAliases = map[string]string{
	"meta platforms": "meta",
	"google llc":     "google",
	"alphabet":       "google",
}

var foldPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			runes.Remove(runes.In(unicode.Cf)),
			width.Fold,
		)
	},
}

// fold maps compatibility and full-width forms onto their canonical
// equivalents. ASCII input is returned untouched.
func fold(s string) string {
	if isASCII(s) {
		return s
	}
	s = strings.ToValidUTF8(s, "")
	tr := foldPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	foldPool.Put(tr)
	if err != nil {
		return s
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func prepare(s string) string {
	return strings.TrimSpace(strings.ToLower(fold(s)))
}

// collapse replaces every whitespace run with one space and trims the ends.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripPunct(s string) string {
	return collapse(punctRe.ReplaceAllString(s, " "))
}

func Company(raw string) string {
	s := stripPunct(prepare(raw))
	s = collapse(companySuffixRe.ReplaceAllString(s, " "))
	if alias, ok := companyAliases[s]; ok {
		return alias
	}
	return s
}

func Title(raw string) string {
	s := prepare(raw)
	s = bracketedRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = trailingTailRe.ReplaceAllString(s, " ")
	return stripPunct(s)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
	"Jan 2, 2006",
	"January 2, 2006",
}

const dateFormat = "2006-01-02"

// Date reduces an ISO-like date string to a UTC calendar day. Anything it
// cannot read yields "".
func Date(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(dateFormat)
		}
	}
	return ""
}

func EpochDate(millis int64) string {
	if millis == 0 {
		return ""
	}
	return time.UnixMilli(millis).UTC().Format(dateFormat)
}
