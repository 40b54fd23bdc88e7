package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sort"

	"github.com/marcboeker/go-duckdb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-walkmap/internal/walk"
)

// RecordStore mirrors travel-time records into DuckDB in long format so they
// can be explored with SQL:
//
//	travel_times(geoid, population, destination, minutes)
//
// Unknown travel times are stored as NULL minutes.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore creates a record store on an open connection.
func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

// Sync replaces the table contents with records. Rows are bulk-loaded with
// the DuckDB appender inside one transaction on a dedicated connection.
func (s *RecordStore) Sync(ctx context.Context, records []walk.Record, destinations []string) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return eris.Wrap(err, "store: acquire connection")
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS travel_times (
		geoid VARCHAR NOT NULL,
		population DOUBLE,
		destination VARCHAR NOT NULL,
		minutes DOUBLE
	)`); err != nil {
		return eris.Wrap(err, "store: create table")
	}

	if _, err := conn.ExecContext(ctx, `BEGIN TRANSACTION`); err != nil {
		return eris.Wrap(err, "store: begin")
	}
	defer func() {
		if err != nil {
			conn.ExecContext(context.Background(), `ROLLBACK`)
		}
	}()

	if _, err := conn.ExecContext(ctx, `DELETE FROM travel_times`); err != nil {
		return eris.Wrap(err, "store: clear table")
	}

	dests := append([]string(nil), destinations...)
	sort.Strings(dests)

	rows := 0
	err = conn.Raw(func(driverConn any) error {
		dc, ok := driverConn.(driver.Conn)
		if !ok {
			return eris.New("store: unexpected driver connection")
		}
		appender, err := duckdb.NewAppenderFromConn(dc, "", "travel_times")
		if err != nil {
			return eris.Wrap(err, "store: create appender")
		}
		for _, rec := range records {
			for _, d := range dests {
				var minutes driver.Value
				if v, ok := rec.Times.Minutes(d); ok {
					minutes = v
				}
				if err := appender.AppendRow(rec.ID, rec.Population, d, minutes); err != nil {
					appender.Close()
					return eris.Wrapf(err, "store: append %s/%s", rec.ID, d)
				}
				rows++
			}
		}
		return eris.Wrap(appender.Close(), "store: flush appender")
	})
	if err != nil {
		return err
	}

	if _, err = conn.ExecContext(ctx, `COMMIT`); err != nil {
		return eris.Wrap(err, "store: commit")
	}

	zap.L().Debug("travel times synced to duckdb",
		zap.String("component", "service.store"), zap.Int("rows", rows))
	return nil
}

// Count returns the number of rows in travel_times.
func (s *RecordStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM travel_times`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "store: count")
	}
	return n, nil
}
