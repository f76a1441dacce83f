// ponylog-export converts session files to Parquet and runs SQL over the
// result.
//
//	ponylog-export -out ./parquet session_00001.opl session_00002.opl
//	ponylog-export -dir /var/lib/ponylog -out ./parquet -summary
//	ponylog-export -out ./parquet -sql "SELECT max(g_total) FROM frames"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openpony/ponylog/internal/export"
	"github.com/openpony/ponylog/internal/logging"
	"github.com/openpony/ponylog/internal/session"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	dir := flag.String("dir", "", "export every session in this directory")
	out := flag.String("out", "./parquet", "output directory for Parquet files")
	compression := flag.String("compression", "zstd", "parquet compression: zstd, snappy, lz4, gzip, none")
	summary := flag.Bool("summary", false, "print per-session aggregates after export")
	sqlQuery := flag.String("sql", "", "run a SQL query over the exported files; the frames view is predefined")
	logLevel := flag.String("log-level", "warn", "log level")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ponylog-export %s\n", Version)
		return
	}

	logging.Init(logging.ParseLevel(*logLevel), false)

	paths := flag.Args()
	if *dir != "" {
		infos, err := session.List(*dir)
		if err != nil {
			fatal("list sessions: %v", err)
		}
		for _, info := range infos {
			paths = append(paths, info.Path)
		}
	}
	if len(paths) == 0 && *sqlQuery == "" && !*summary {
		fmt.Fprintln(os.Stderr, "nothing to do: give session files, -dir, -summary or -sql")
		flag.Usage()
		os.Exit(2)
	}
	sort.Strings(paths)

	opts := export.Options{Compression: export.ParseCompressionType(*compression)}

	exported := 0
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), session.FileExt)
		outputPath := filepath.Join(*out, name+".parquet")

		result, err := export.ExportSession(path, outputPath, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "export %s: %v\n", path, err)
			continue
		}

		line := fmt.Sprintf("%s: %d frames -> %s", result.Session, result.Frames, result.Output)
		if result.CorruptFrames > 0 {
			line += fmt.Sprintf(" (%d corrupt frames skipped)", result.CorruptFrames)
		}
		fmt.Println(line)
		exported++
	}
	if len(paths) > 0 && exported == 0 {
		os.Exit(1)
	}

	if !*summary && *sqlQuery == "" {
		return
	}

	svc, err := export.NewQueryService(*out)
	if err != nil {
		fatal("open query service: %v", err)
	}
	defer svc.Close()

	ctx := context.Background()

	if *summary {
		summaries, err := svc.Summaries(ctx)
		if err != nil {
			fatal("summaries: %v", err)
		}
		for _, s := range summaries {
			duration := float64(s.EndUs-s.StartUs) / 1e6
			fmt.Printf("%-28s %8d frames  %7.1fs  max %.1f m/s  max %.3f g  avg %.3f g\n",
				s.Session, s.Frames, duration, s.MaxSpeed, s.MaxGTotal, s.AvgGTotal)
		}
	}

	if *sqlQuery != "" {
		// Expose the exported files as a "frames" view for convenience.
		setup := fmt.Sprintf("CREATE VIEW frames AS SELECT * FROM read_parquet('%s')", svc.Pattern())
		if _, err := svc.ExecuteSQL(ctx, setup); err != nil {
			fatal("create frames view: %v", err)
		}

		rows, err := svc.ExecuteSQL(ctx, *sqlQuery)
		if err != nil {
			fatal("query: %v", err)
		}
		for _, row := range rows {
			parts := make([]string, 0, len(row))
			keys := make([]string, 0, len(row))
			for k := range row {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				parts = append(parts, fmt.Sprintf("%s=%v", k, row[k]))
			}
			fmt.Println(strings.Join(parts, "  "))
		}
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ponylog-export: "+format+"\n", args...)
	os.Exit(1)
}
