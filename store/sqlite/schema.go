package sqlite

// schema holds the DDL applied by Migrate, one statement per entry
// because the sqlite3 driver executes a single statement per Exec.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS cascade_jobs (
		id               TEXT PRIMARY KEY,
		urn              TEXT NOT NULL,
		job_type         TEXT NOT NULL,
		job_function     TEXT NOT NULL,
		params           TEXT,
		max_retries      INTEGER NOT NULL DEFAULT 3,
		retry_count      INTEGER NOT NULL DEFAULT 0,
		status           TEXT NOT NULL DEFAULT 'PENDING',
		priority         INTEGER NOT NULL DEFAULT 0,
		timeout          INTEGER NOT NULL DEFAULT 0,
		pipeline_id      TEXT,
		metadata         TEXT,
		correlation_id   TEXT NOT NULL DEFAULT '',
		progress_current INTEGER NOT NULL DEFAULT 0,
		progress_total   INTEGER NOT NULL DEFAULT 0,
		progress_message TEXT NOT NULL DEFAULT '',
		error_message    TEXT NOT NULL DEFAULT '',
		error_details    TEXT,
		worker_id        TEXT,
		started_at       TIMESTAMP,
		finished_at      TIMESTAMP,
		created_at       TIMESTAMP NOT NULL,
		updated_at       TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_cascade_jobs_pipeline
		ON cascade_jobs (pipeline_id)`,

	`CREATE INDEX IF NOT EXISTS idx_cascade_jobs_status
		ON cascade_jobs (status, created_at)`,

	`CREATE TABLE IF NOT EXISTS cascade_pipelines (
		id             TEXT PRIMARY KEY,
		urn            TEXT NOT NULL,
		name           TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL DEFAULT 'PENDING',
		correlation_id TEXT NOT NULL DEFAULT '',
		started_at     TIMESTAMP,
		finished_at    TIMESTAMP,
		created_at     TIMESTAMP NOT NULL,
		updated_at     TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS cascade_dependencies (
		job_id            TEXT NOT NULL,
		depends_on_job_id TEXT NOT NULL,
		dependency_type   TEXT NOT NULL DEFAULT 'SUCCESS_REQUIRED',
		created_at        TIMESTAMP NOT NULL,
		updated_at        TIMESTAMP NOT NULL,
		PRIMARY KEY (job_id, depends_on_job_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_cascade_dependencies_prereq
		ON cascade_dependencies (depends_on_job_id)`,

	`CREATE TABLE IF NOT EXISTS cascade_crons (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL UNIQUE,
		schedule     TEXT NOT NULL,
		function     TEXT NOT NULL,
		params       TEXT,
		enabled      INTEGER NOT NULL DEFAULT 1,
		last_run_at  TIMESTAMP,
		next_run_at  TIMESTAMP,
		locked_by    TEXT NOT NULL DEFAULT '',
		locked_until TIMESTAMP,
		created_at   TIMESTAMP NOT NULL,
		updated_at   TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_cascade_crons_due
		ON cascade_crons (next_run_at)`,
}
