package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jobtrends/common/identity"
)

// RawLocation is either a free-form string or a structured address on the
// wire. Raw keeps the original string form.
type RawLocation struct {
	City    string `json:"city,omitempty"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
	Raw     string `json:"raw,omitempty"`
}

func (l RawLocation) Structured() bool {
	return l.City != "" || l.Region != "" || l.Country != ""
}

func (l *RawLocation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = RawLocation{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = RawLocation{Raw: s}
		return nil
	}

	type plain RawLocation
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	*l = RawLocation(p)
	return nil
}

// PostedDate accepts an ISO date string or epoch milliseconds.
type PostedDate struct {
	Text        string
	EpochMillis int64
}

func (d PostedDate) IsZero() bool {
	return d.Text == "" && d.EpochMillis == 0
}

func (d *PostedDate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*d = PostedDate{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = PostedDate{Text: s}
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			// Anything else degrades to an unknown date.
			*d = PostedDate{}
			return nil
		}
		*d = PostedDate{EpochMillis: int64(f)}
	}
	return nil
}

func (d PostedDate) MarshalJSON() ([]byte, error) {
	switch {
	case d.Text != "":
		return json.Marshal(d.Text)
	case d.EpochMillis != 0:
		return []byte(strconv.FormatInt(d.EpochMillis, 10)), nil
	default:
		return []byte("null"), nil
	}
}

type RawPosting struct {
	Source      string      `json:"source"`
	SourceType  string      `json:"sourceType,omitempty"`
	TermsURL    string      `json:"termsUrl,omitempty"`
	RobotsOK    bool        `json:"robotsOk,omitempty"`
	OriginalURL string      `json:"originalUrl,omitempty"`
	Company     string      `json:"company"`
	Title       string      `json:"title"`
	Location    RawLocation `json:"location"`
	PostedDate  PostedDate  `json:"postedDate"`
	Description string      `json:"description,omitempty"`
	Skills      []string    `json:"skills,omitempty"`
	FetchedAt   time.Time   `json:"fetchedAt"`
}

func (r RawPosting) Fields() identity.Fields {
	return identity.Fields{
		Company:           r.Company,
		Title:             r.Title,
		Location:          r.Location.Raw,
		City:              r.Location.City,
		Region:            r.Location.Region,
		Country:           r.Location.Country,
		PostedDate:        r.PostedDate.Text,
		PostedEpochMillis: r.PostedDate.EpochMillis,
	}
}

type CanonicalPosting struct {
	RawPosting
	PostingHash    string            `json:"postingHash"`
	DescriptionSig string            `json:"descriptionSig"`
	Canonical      identity.Identity `json:"canonical"`
}

func Canonicalize(h identity.Hasher, r RawPosting) CanonicalPosting {
	id := h.FromProviderFields(r.Fields())
	r.Source = strings.TrimSpace(r.Source)
	return CanonicalPosting{
		RawPosting:     r,
		PostingHash:    id.PostingHash,
		DescriptionSig: identity.DescriptionSig(r.Description),
		Canonical:      id,
	}
}

// DecodeRawPostings reads a single posting or an array of postings.
func DecodeRawPostings(data []byte) ([]RawPosting, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '[' {
		var out []RawPosting
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var one RawPosting
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, err
	}
	return []RawPosting{one}, nil
}

type PersistedPosting struct {
	CanonicalPosting
	Status      string    `json:"status"`
	RunID       string    `json:"runId"`
	Inserted    bool      `json:"inserted"`
	PersistedAt time.Time `json:"persistedAt"`
}

func (p PersistedPosting) MarshalBinary() ([]byte, error) {
	return json.Marshal(p)
}
