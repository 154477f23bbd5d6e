package migrations

import "jobtrends/common/database/schema"

var CreatePostingsTable = schema.Migration{
	Version:     1,
	Description: "Create postings table",
	Up: `
		CREATE TABLE IF NOT EXISTS postings (
			id UUID,
			posting_hash String,
			description_sig String,
			source LowCardinality(String),
			source_type LowCardinality(String),
			original_url String,
			company String,
			title String,
			location_token String,
			city String,
			region String,
			country LowCardinality(String),
			location_raw String,
			posted_date String,
			description String,
			status LowCardinality(String),
			fetched_at DateTime,
			updated_at DateTime,
			raw_data String
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY (posting_hash)
		SETTINGS index_granularity = 8192
	`,
	Down: `DROP TABLE IF EXISTS postings`,
}
