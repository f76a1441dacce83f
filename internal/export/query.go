package export

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

// QueryService runs SQL over exported Parquet files using an in-memory
// DuckDB instance.
type QueryService struct {
	mu  sync.RWMutex
	dir string
	db  *sql.DB

	stats QueryStats
}

// QueryStats holds query statistics.
type QueryStats struct {
	QueriesExecuted int64
	RowsReturned    int64
	Errors          int64
}

// SessionSummary is the per-session aggregate of an exported directory.
type SessionSummary struct {
	Session   string
	Frames    int64
	StartUs   int64
	EndUs     int64
	MaxSpeed  float64
	MaxGTotal float64
	AvgGTotal float64
}

// NewQueryService opens an in-memory DuckDB over the Parquet files in dir.
func NewQueryService(dir string) (*QueryService, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &QueryService{dir: dir, db: db}, nil
}

// Close closes the service.
func (s *QueryService) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// pattern returns the Parquet glob for the export directory.
func (s *QueryService) pattern() string {
	return filepath.Join(s.dir, "*.parquet")
}

// Summaries returns per-session aggregates over every exported file.
func (s *QueryService) Summaries(ctx context.Context) ([]SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT
			session,
			count(*)            AS frames,
			min(timestamp_us)   AS start_us,
			max(timestamp_us)   AS end_us,
			max(speed)          AS max_speed,
			max(g_total)        AS max_g,
			avg(g_total)        AS avg_g
		FROM read_parquet($1)
		GROUP BY session
		ORDER BY session
	`

	rows, err := s.db.QueryContext(ctx, query, s.pattern())
	if err != nil {
		s.stats.Errors++
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var results []SessionSummary
	for rows.Next() {
		var r SessionSummary
		if err := rows.Scan(&r.Session, &r.Frames, &r.StartUs, &r.EndUs,
			&r.MaxSpeed, &r.MaxGTotal, &r.AvgGTotal); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		results = append(results, r)
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(len(results))
	return results, rows.Err()
}

// ExecuteSQL executes a raw SQL query. The exported files are reachable
// through read_parquet with the Pattern placeholder expanded by the
// caller; useful for ad-hoc analysis from the export tool.
func (s *QueryService) ExecuteSQL(ctx context.Context, query string) ([]map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.stats.Errors++
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(len(results))
	return results, rows.Err()
}

// Pattern returns the read_parquet glob for ad-hoc queries.
func (s *QueryService) Pattern() string {
	return s.pattern()
}

// Stats returns query statistics.
func (s *QueryService) Stats() QueryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
