package enriched

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const UnknownIndustry = "Unknown"

// Posting is an enriched job posting with every optional field defaulted.
type Posting struct {
	JobID           string
	Title           string
	Location        string
	RemoteStatus    string
	SeniorityLevel  string
	SalaryRange     string
	SalaryMentioned bool
	Industry        string
	Technologies    []string
	Skills          []string
	ProcessedDate   time.Time
}

// FromMap builds a Posting from loosely typed enrichment output. Unknown
// shapes degrade to defaults and never fail.
func FromMap(m map[string]any) Posting {
	p := Posting{
		JobID:           firstString(m, "jobId", "job_id", "dynamo_id", "id"),
		Title:           strings.TrimSpace(firstString(m, "job_title", "title")),
		Location:        strings.TrimSpace(firstString(m, "location")),
		RemoteStatus:    strings.TrimSpace(firstString(m, "remote_status")),
		SeniorityLevel:  strings.TrimSpace(firstString(m, "seniority_level")),
		SalaryRange:     strings.TrimSpace(firstString(m, "salary_range")),
		SalaryMentioned: toBool(m["salary_mentioned"]),
		Industry:        strings.TrimSpace(firstString(m, "industry")),
		Technologies:    Strings(m["technologies"]),
		Skills:          Strings(m["skills"]),
		ProcessedDate:   toTime(m["processed_date"]),
	}

	if p.SalaryRange == "" {
		lo, okLo := toFloat(m["minimum_salary"])
		hi, okHi := toFloat(m["maximum_salary"])
		p.SalaryRange = BuildSalaryRange(lo, okLo, hi, okHi)
	}
	if p.Industry == "" {
		p.Industry = UnknownIndustry
	}
	if p.Technologies == nil {
		p.Technologies = []string{}
	}
	if p.Skills == nil {
		p.Skills = []string{}
	}
	return p
}

// BuildSalaryRange renders "min-max", or the single bound that is present.
func BuildSalaryRange(lo float64, okLo bool, hi float64, okHi bool) string {
	switch {
	case okLo && okHi:
		return fmt.Sprintf("%d-%d", int64(math.Round(lo)), int64(math.Round(hi)))
	case okLo:
		return strconv.FormatInt(int64(math.Round(lo)), 10)
	case okHi:
		return strconv.FormatInt(int64(math.Round(hi)), 10)
	default:
		return ""
	}
}

// Strings accepts []string, []any and JSON encoded arrays. Blank entries and
// case-insensitive duplicates are dropped, first spelling wins.
func Strings(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			switch s := item.(type) {
			case string:
				raw = append(raw, s)
			case map[string]any:
				// attribute-value encoded entries, {"S": "..."}
				if str, ok := s["S"].(string); ok {
					raw = append(raw, str)
				}
			}
		}
	case string:
		trimmed := strings.TrimSpace(t)
		if !strings.HasPrefix(trimmed, "[") {
			return nil
		}
		var decoded []any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
			return nil
		}
		return Strings(decoded)
	default:
		return nil
	}
	return dedupe(raw)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := toString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case [16]byte:
		return uuid.UUID(t).String()
	case fmt.Stringer:
		return t.String()
	case int, int32, int64, float64, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return t, !math.IsNaN(t)
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case interface{ Float64Value() (pgtype.Float8, error) }:
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return 0, false
		}
		return f.Float64, true
	default:
		return 0, false
	}
}

func toTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				return parsed.UTC()
			}
		}
	}
	return time.Time{}
}
