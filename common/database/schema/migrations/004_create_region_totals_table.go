package migrations

import "jobtrends/common/database/schema"

var CreateRegionTotalsTable = schema.Migration{
	Version:     4,
	Description: "Create region totals table",
	Up: `
		CREATE TABLE IF NOT EXISTS region_totals (
			period LowCardinality(String),
			region LowCardinality(String),
			job_count UInt32,
			updated_at DateTime
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY (period, region)
	`,
	Down: `DROP TABLE IF EXISTS region_totals`,
}

func All() []schema.Migration {
	return []schema.Migration{
		CreatePostingsTable,
		CreateSkillTrendsTable,
		CreateTrendSlicesTable,
		CreateRegionTotalsTable,
	}
}
