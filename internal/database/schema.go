package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"cookiegram/internal/config"
	"cookiegram/internal/middleware"

	"gorm.io/gorm"
)

// Values accepted by DB_SCHEMA_MODE. An empty mode means hybrid.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// ErrSchemaRefused is returned when DB_SCHEMA_MODE cannot be honored for APP_ENV.
var ErrSchemaRefused = errors.New("schema plan refused")

// lockedEnvs never get AutoMigrate from hybrid mode, and auto mode needs
// DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE there.
var lockedEnvs = map[string]bool{
	"production": true,
	"prod":       true,
	"staging":    true,
	"stage":      true,
}

// SchemaPlan lists the schema steps that run for one environment.
type SchemaPlan struct {
	Mode        string
	Env         string
	SQL         bool
	AutoMigrate bool
}

// PlanSchema resolves DB_SCHEMA_MODE against APP_ENV.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	plan := SchemaPlan{
		Mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)),
		Env:  strings.ToLower(strings.TrimSpace(cfg.Env)),
	}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}
	locked := lockedEnvs[plan.Env]

	switch plan.Mode {
	case SchemaModeSQL:
		plan.SQL = true
	case SchemaModeHybrid:
		plan.SQL, plan.AutoMigrate = true, !locked
	case SchemaModeAuto:
		if locked && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("%w: auto mode in %q needs DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", ErrSchemaRefused, plan.Env)
		}
		plan.AutoMigrate = true
	default:
		return plan, fmt.Errorf("%w: unknown DB_SCHEMA_MODE %q", ErrSchemaRefused, plan.Mode)
	}
	return plan, nil
}

// Apply runs the embedded SQL migrations first, then AutoMigrate over PersistentModels.
func (p SchemaPlan) Apply(ctx context.Context, db *gorm.DB) error {
	log := middleware.Logger.With(slog.String("mode", p.Mode), slog.String("env", p.Env))

	if p.SQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
	}
	if !p.AutoMigrate {
		return nil
	}

	if lockedEnvs[p.Env] {
		log.Warn("AutoMigrate forced in a locked environment; diff the schema before deploying")
	}
	entities := PersistentModels()
	log.Info("AutoMigrate CookieGram models", slog.Int("models", len(entities)))
	if err := db.WithContext(ctx).AutoMigrate(entities...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// ApplySchema plans and applies the schema for cfg.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}
	return plan.Apply(ctx, db)
}

// SchemaReport compares a live database with the plan for its config.
type SchemaReport struct {
	Plan SchemaPlan
	// Applied and Pending stay empty when the plan skips SQL migrations.
	Applied       []int
	Pending       []Migration
	MissingTables []string
}

// InspectSchema reports missing model tables and pending SQL migrations without changing anything.
func InspectSchema(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaReport, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	report := &SchemaReport{Plan: plan}

	tables, err := modelTables(db)
	if err != nil {
		return nil, err
	}
	migrator := db.WithContext(ctx).Migrator()
	for _, table := range tables {
		if !migrator.HasTable(table) {
			report.MissingTables = append(report.MissingTables, table)
		}
	}

	if !plan.SQL {
		return report, nil
	}
	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	report.Applied = applied
	report.Pending = pendingMigrations(applied, GetMigrations())
	return report, nil
}

func modelTables(db *gorm.DB) ([]string, error) {
	entities := PersistentModels()
	tables := make([]string, 0, len(entities))
	for _, entity := range entities {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(entity); err != nil {
			return nil, fmt.Errorf("parse %T: %w", entity, err)
		}
		tables = append(tables, stmt.Schema.Table)
	}
	return tables, nil
}

func pendingMigrations(applied []int, registered []Migration) []Migration {
	var pending []Migration
	for _, m := range registered {
		if !slices.Contains(applied, m.Version) {
			pending = append(pending, m)
		}
	}
	return pending
}
