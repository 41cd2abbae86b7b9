// Command migrate plans, applies and rolls back the CookieGram schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"cookiegram/internal/config"
	"cookiegram/internal/database"

	"gorm.io/gorm"
)

type command struct {
	args    string
	summary string
	run     func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error
}

var commands = map[string]command{
	"up":     {summary: "apply pending SQL migrations", run: migrateUp},
	"auto":   {summary: "AutoMigrate every CookieGram model", run: migrateAuto},
	"plan":   {summary: "show the steps DB_SCHEMA_MODE runs for APP_ENV", run: showPlan},
	"status": {summary: "list missing tables and pending migrations", run: showStatus},
	"list":   {summary: "list embedded SQL migrations", run: listMigrations},
	"down":   {args: "<version>", summary: "roll back one SQL migration", run: migrateDown},
}

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "Abort the command after this long")
	flag.Usage = usage
	flag.Parse()

	name := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	cmd, ok := commands[name]
	if !ok {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := cmd.run(ctx, db, cfg, flag.Args()[1:]); err != nil {
		log.Fatalf("migrate %s: %v", name, err)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "usage: migrate [-timeout d] <command> [args]")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s %s\t%s\n", name, commands[name].args, commands[name].summary)
	}
	_ = w.Flush()
	flag.PrintDefaults()
}

func migrateUp(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	if err := database.RunMigrations(ctx, db); err != nil {
		return err
	}
	log.Println("sql migrations applied")
	return nil
}

func migrateAuto(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return err
	}
	log.Printf("automigrated %d models", len(database.PersistentModels()))
	return nil
}

func showPlan(_ context.Context, _ *gorm.DB, cfg *config.Config, _ []string) error {
	plan, err := database.PlanSchema(cfg)
	if err != nil {
		return err
	}
	log.Printf("env=%s mode=%s sql=%t automigrate=%t", plan.Env, plan.Mode, plan.SQL, plan.AutoMigrate)
	return nil
}

func showStatus(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	report, err := database.InspectSchema(ctx, db, cfg)
	if err != nil {
		return err
	}
	log.Printf("env=%s mode=%s applied=%d pending=%d missing_tables=%d",
		report.Plan.Env, report.Plan.Mode, len(report.Applied), len(report.Pending), len(report.MissingTables))
	for _, table := range report.MissingTables {
		log.Printf("missing table: %s", table)
	}
	for _, m := range report.Pending {
		log.Printf("pending: %s", m.String())
	}
	return nil
}

func listMigrations(_ context.Context, _ *gorm.DB, _ *config.Config, _ []string) error {
	for _, m := range database.GetMigrations() {
		log.Println(m.String())
	}
	return nil
}

func migrateDown(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	if len(args) != 1 {
		return errors.New("down takes exactly one version")
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	if err := database.RollbackMigration(ctx, db, version); err != nil {
		return err
	}
	log.Printf("rolled back migration %06d", version)
	return nil
}
