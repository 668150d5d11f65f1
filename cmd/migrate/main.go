package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"inspirepixel/migrations"
)

func main() {
	dbPath := flag.String("db", envOrDefault("DATABASE_PATH", "./data/gallery.db"), "path to sqlite database")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: migrate [-db path] <command>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  up          Migrate to the latest version")
		fmt.Fprintln(os.Stderr, "  up-one      Migrate one version up")
		fmt.Fprintln(os.Stderr, "  down        Roll back one version")
		fmt.Fprintln(os.Stderr, "  status      Show migration status")
		fmt.Fprintln(os.Stderr, "  version     Show current version")
		fmt.Fprintln(os.Stderr, "  reset       Roll back all migrations")
		fmt.Fprintln(os.Stderr, "  clear-descriptions  Delete stored image descriptions")
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	p, err := migrations.NewProvider(db)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	cmd := args[0]
	switch cmd {
	case "up":
		_, err = p.Up(ctx)
	case "up-one":
		_, err = p.UpByOne(ctx)
	case "down":
		_, err = p.Down(ctx)
	case "status":
		var statuses []*goose.MigrationStatus
		statuses, err = p.Status(ctx)
		for _, s := range statuses {
			fmt.Printf("%-8s %05d %s\n", s.State, s.Source.Version, s.Source.Path)
		}
	case "version":
		var v int64
		v, err = p.GetDBVersion(ctx)
		fmt.Println(v)
	case "reset":
		_, err = p.DownTo(ctx, 0)
	case "clear-descriptions":
		var res sql.Result
		res, err = db.ExecContext(ctx, "DELETE FROM kv WHERE substr(key, 1, 5) = 'desc_'")
		if err == nil {
			n, _ := res.RowsAffected()
			fmt.Printf("deleted %d descriptions\n", n)
		}
	default:
		log.Fatalf("unknown command: %s", cmd)
	}

	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
