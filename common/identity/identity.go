package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"unicode"

	"jobtrends/common/canonical"
)

const descriptionSigLimit = 1500

// Fields are the provider-supplied attributes that define a posting. The
// structured location fields win over Location when any of them is set.
// PostedDate takes precedence over PostedEpochMillis.
type Fields struct {
	Company           string
	Title             string
	Location          string
	City              string
	Region            string
	Country           string
	PostedDate        string
	PostedEpochMillis int64
}

type Identity struct {
	PostingHash string             `json:"postingHash"`
	Company     string             `json:"company"`
	Title       string             `json:"title"`
	PostedDate  string             `json:"postedDate"`
	Location    canonical.Location `json:"location"`
}

type Hasher struct {
	Locale canonical.Locale
}

func FromProviderFields(f Fields) Identity {
	return Hasher{}.FromProviderFields(f)
}

func (h Hasher) FromProviderFields(f Fields) Identity {
	id := Identity{
		Company:    canonical.Company(f.Company),
		Title:      canonical.Title(f.Title),
		PostedDate: canonical.Date(f.PostedDate),
	}
	if id.PostedDate == "" && strings.TrimSpace(f.PostedDate) == "" {
		id.PostedDate = canonical.EpochDate(f.PostedEpochMillis)
	}

	if f.City != "" || f.Region != "" || f.Country != "" {
		id.Location = h.Locale.Structured(f.City, f.Region, f.Country)
	} else {
		id.Location = h.Locale.Parse(f.Location)
	}

	id.PostingHash = Hash(id.Company, id.Title, id.Location.Token, id.PostedDate)
	return id
}

func Hash(company, title, locationToken, postedDate string) string {
	sum := sha1.Sum([]byte(company + "|" + title + "|" + locationToken + "|" + postedDate))
	return hex.EncodeToString(sum[:])
}

// DescriptionSig fingerprints the first 1500 characters of a description
// after lower-casing and collapsing whitespace. Empty descriptions have no
// signature.
func DescriptionSig(description string) string {
	if description == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(description))
	n := 0
	inSpace := false
	for _, r := range strings.ToLower(description) {
		if n >= descriptionSigLimit {
			break
		}
		if unicode.IsSpace(r) {
			if inSpace {
				continue
			}
			inSpace = true
			r = ' '
		} else {
			inSpace = false
		}
		b.WriteRune(r)
		n++
	}

	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
