package migrations

import "jobtrends/common/database/schema"

var CreateTrendSlicesTable = schema.Migration{
	Version:     3,
	Description: "Create skill trend slices table",
	Up: `
		CREATE TABLE IF NOT EXISTS skill_trend_slices (
			skill_canonical String,
			sort_key String,
			skill_display String,
			region LowCardinality(String),
			seniority LowCardinality(String),
			work_mode LowCardinality(String),
			period LowCardinality(String),
			period_skill String,
			job_count_desc String,
			dimension LowCardinality(String),
			job_count UInt32,
			salary_min Nullable(Float64),
			salary_max Nullable(Float64),
			salary_median Nullable(Float64),
			salary_p75 Nullable(Float64),
			salary_p95 Nullable(Float64),
			remote_share Nullable(Float64),
			regional_share Nullable(Float64),
			global_share Nullable(Float64),
			job_count_change_pct Nullable(Float64),
			median_salary_change_pct Nullable(Float64),
			trend_signal LowCardinality(String),
			cooccurring_names Array(String),
			cooccurring_counts Array(UInt32),
			industry_names Array(String),
			industry_counts Array(UInt32),
			title_names Array(String),
			title_counts Array(UInt32),
			updated_at DateTime
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY (skill_canonical, sort_key)
	`,
	Down: `DROP TABLE IF EXISTS skill_trend_slices`,
}
