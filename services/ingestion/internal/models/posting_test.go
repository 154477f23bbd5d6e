package models

import (
	"encoding/json"
	"testing"

	"jobtrends/common/identity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRawPostingsShapes(t *testing.T) {
	data := []byte(`[
		{"source":"muse","company":"Meta Platforms, Inc.","title":"Senior Software Engineer (Backend)",
		 "location":{"city":"San Francisco","region":"California","country":"United States"},
		 "postedDate":"2025-10-15T08:00:00Z","description":"Build things"},
		{"source":"greenhouse","company":"META INC","title":"Senior Software Engineer - Reality Labs",
		 "location":"SAN FRANCISCO - CALIFORNIA","postedDate":1760515200000},
		{"source":"lever","company":"Meta","title":"Engineer","location":null,"postedDate":null}
	]`)

	postings, err := DecodeRawPostings(data)
	require.NoError(t, err)
	require.Len(t, postings, 3)

	assert.True(t, postings[0].Location.Structured())
	assert.Equal(t, "San Francisco", postings[0].Location.City)
	assert.Equal(t, "2025-10-15T08:00:00Z", postings[0].PostedDate.Text)

	assert.False(t, postings[1].Location.Structured())
	assert.Equal(t, "SAN FRANCISCO - CALIFORNIA", postings[1].Location.Raw)
	assert.Equal(t, int64(1760515200000), postings[1].PostedDate.EpochMillis)

	assert.True(t, postings[2].PostedDate.IsZero())
	assert.Equal(t, RawLocation{}, postings[2].Location)
}

func TestDecodeRawPostingsSingleObject(t *testing.T) {
	postings, err := DecodeRawPostings([]byte(`{"source":"usajobs","company":"NASA","title":"Engineer"}`))
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, "NASA", postings[0].Company)

	postings, err = DecodeRawPostings([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, postings)

	_, err = DecodeRawPostings([]byte(`{"source":`))
	assert.Error(t, err)
}

func TestCanonicalizeCrossSourceDuplicates(t *testing.T) {
	postings, err := DecodeRawPostings([]byte(`[
		{"source":"muse","company":"Meta Platforms, Inc.","title":"Senior Software Engineer (Backend)",
		 "location":{"city":"San Francisco","region":"California","country":"United States"},
		 "postedDate":"2025-10-15T08:00:00Z","description":"Build things"},
		{"source":"greenhouse","company":"META INC","title":"Senior Software Engineer - Reality Labs",
		 "location":"SAN FRANCISCO - CALIFORNIA","postedDate":1760515200000}
	]`))
	require.NoError(t, err)

	a := Canonicalize(identity.Hasher{}, postings[0])
	b := Canonicalize(identity.Hasher{}, postings[1])

	assert.Equal(t, a.PostingHash, b.PostingHash)
	assert.Equal(t, identity.DescriptionSig("Build things"), a.DescriptionSig)
	assert.Empty(t, b.DescriptionSig)
	assert.Equal(t, "2025-10-15", b.Canonical.PostedDate)
}

func TestPostedDateRoundTrip(t *testing.T) {
	out, err := json.Marshal(PostedDate{EpochMillis: 42})
	require.NoError(t, err)
	assert.Equal(t, "42", string(out))

	out, err = json.Marshal(PostedDate{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
