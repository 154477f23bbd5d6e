package migrations

import "jobtrends/common/database/schema"

var CreateSkillTrendsTable = schema.Migration{
	Version:     2,
	Description: "Create skill trends table",
	Up: `
		CREATE TABLE IF NOT EXISTS skill_trends (
			pk String,
			sk String,
			skill String,
			region LowCardinality(String),
			seniority LowCardinality(String),
			skill_type LowCardinality(String),
			count UInt32,
			relative_demand Float64,
			cooccurring_skills Array(String),
			cooccurring_counts Array(UInt32),
			avg_salary Nullable(Float64),
			remote_percentage Float64,
			top_industries Array(String),
			last_updated DateTime
		) ENGINE = ReplacingMergeTree(last_updated)
		ORDER BY (skill, region, seniority)
	`,
	Down: `DROP TABLE IF EXISTS skill_trends`,
}
