package db

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/archivebridge-backend/internal/domain/store"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
	"github.com/yungbote/archivebridge-backend/internal/utils"
)

// SchemaVersion identifies the table layout this build expects. The
// deployment row records which version bootstrapped the database.
const SchemaVersion = "1"

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&store.Deployment{},
		&store.Template{},
		&store.JobConfig{},
		&store.UserConfig{},
		&store.Job{},
		&store.IE{},
		&store.Record{},
		&store.Artifact{},
	)
}

/*
EnsureSchema bootstraps the database when DB_LOAD_SCHEMA is set. The
schema and the deployment marker are written in one transaction so
concurrent replicas either see a fully initialized schema or none.
DB_SCHEMA_FILE names a SQL file applied instead of the AutoMigrate
path; the file must create every table, the deployment marker
included. When the recorded version differs from SchemaVersion, the
mismatch is fatal if DB_STRICT_SCHEMA_VERSION is set and logged
otherwise.
*/
func EnsureSchema(db *gorm.DB, logg *logger.Logger) error {
	load := utils.GetEnvAsBool("DB_LOAD_SCHEMA", true, logg)
	strict := utils.GetEnvAsBool("DB_STRICT_SCHEMA_VERSION", false, logg)
	schemaFile := utils.GetEnv("DB_SCHEMA_FILE", "", logg)

	if load {
		err := db.Transaction(func(tx *gorm.DB) error {
			if schemaFile != "" {
				if err := applySchemaFile(tx, schemaFile); err != nil {
					return err
				}
			} else if err := AutoMigrateAll(tx); err != nil {
				return fmt.Errorf("migrating schema: %w", err)
			}
			var dep store.Deployment
			err := tx.Order("id asc").First(&dep).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				loaded := true
				dep = store.Deployment{SchemaLoaded: &loaded, SchemaVersion: SchemaVersion}
				return tx.Create(&dep).Error
			}
			if err != nil {
				return err
			}
			if dep.SchemaLoaded == nil || !*dep.SchemaLoaded {
				loaded := true
				dep.SchemaLoaded = &loaded
				if dep.SchemaVersion == "" {
					dep.SchemaVersion = SchemaVersion
				}
				return tx.Save(&dep).Error
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	var dep store.Deployment
	if err := db.Order("id asc").First(&dep).Error; err != nil {
		return fmt.Errorf("reading deployment marker: %w", err)
	}
	if dep.SchemaVersion != SchemaVersion {
		if strict {
			return fmt.Errorf("database schema version %q does not match expected %q", dep.SchemaVersion, SchemaVersion)
		}
		logg.Warn("Database schema version differs from expected",
			"have", dep.SchemaVersion, "want", SchemaVersion)
	}
	return nil
}

// applySchemaFile executes the statements of a SQL schema file inside
// the bootstrap transaction.
func applySchemaFile(tx *gorm.DB, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading schema file %s: %w", path, err)
	}
	for _, stmt := range splitStatements(string(raw)) {
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("applying schema file %s: %w", path, err)
		}
	}
	return nil
}

// splitStatements breaks a schema file into executable statements on
// the ";" terminator, dropping line comments and empty fragments.
// Dollar-quoted bodies are not supported.
func splitStatements(raw string) []string {
	var out []string
	for _, stmt := range strings.Split(raw, ";") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, line)
		}
		joined := strings.TrimSpace(strings.Join(lines, "\n"))
		if joined != "" {
			out = append(out, joined)
		}
	}
	return out
}
