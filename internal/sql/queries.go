package sql

import (
	"embed"
)

// Migrations holds the schema files applied in filename order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/lookup_patient.sql
var LookupPatient string

//go:embed queries/insert_patient.sql
var InsertPatient string

//go:embed queries/episode_exists.sql
var EpisodeExists string

//go:embed queries/insert_episode.sql
var InsertEpisode string

//go:embed queries/get_episode.sql
var GetEpisode string

//go:embed queries/update_episode.sql
var UpdateEpisode string

//go:embed queries/stage_norms.sql
var StageNorms string

//go:embed queries/upsert_norms.sql
var UpsertNorms string

//go:embed queries/list_norms.sql
var ListNorms string

//go:embed queries/insert_batch.sql
var InsertBatch string

//go:embed queries/create_migration_ledger.sql
var CreateMigrationLedger string

//go:embed queries/list_migrations.sql
var ListMigrations string

//go:embed queries/record_migration.sql
var RecordMigration string
