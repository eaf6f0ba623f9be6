package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExecutor struct {
	queries []string
}

func (r *recordingExecutor) Exec(_ context.Context, query string, _ ...any) (pgconn.CommandTag, error) {
	r.queries = append(r.queries, query)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (r *recordingExecutor) QueryRow(_ context.Context, query string, _ ...any) pgx.Row {
	r.queries = append(r.queries, query)
	return errorRow{err: pgx.ErrNoRows}
}

func (r *recordingExecutor) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	r.queries = append(r.queries, query)
	return nil, errors.New("not supported")
}

const markedQuery = `--sql 0b6c3a0e-8f57-4c43-9a3c-2f7f5f3f4e11
update image_tasks set status = $2 where id = $1;
`

func TestExtractMarker(t *testing.T) {
	marker, body, err := ExtractMarker(markedQuery)
	if err != nil {
		t.Fatalf("ExtractMarker returned error: %v", err)
	}
	if marker != "0b6c3a0e-8f57-4c43-9a3c-2f7f5f3f4e11" {
		t.Fatalf("marker = %q", marker)
	}
	if body != "update image_tasks set status = $2 where id = $1;" {
		t.Fatalf("body = %q", body)
	}

	for _, q := range []string{"", "select 1", "--sql not-a-uuid\nselect 1"} {
		if _, _, err := ExtractMarker(q); !errors.Is(err, ErrSQLMarker) {
			t.Fatalf("ExtractMarker(%q) err = %v, want ErrSQLMarker", q, err)
		}
	}
}

func TestSQLRunnerStripsMarkerAndRejectsUnmarked(t *testing.T) {
	exec := &recordingExecutor{}
	runner := NewSQLRunner(exec, nil)

	tag, err := runner.Exec(context.Background(), markedQuery, "id", "running")
	if err != nil {
		t.Fatalf("Exec returned error: %v", err)
	}
	if tag.RowsAffected() != 1 {
		t.Fatalf("rows affected = %d", tag.RowsAffected())
	}
	if len(exec.queries) != 1 || exec.queries[0] != "update image_tasks set status = $2 where id = $1;" {
		t.Fatalf("executed queries = %#v", exec.queries)
	}

	if _, err := runner.Exec(context.Background(), "delete from image_tasks"); !errors.Is(err, ErrSQLMarker) {
		t.Fatalf("unmarked Exec err = %v", err)
	}
	var id string
	if err := runner.QueryRow(context.Background(), "select 1").Scan(&id); !errors.Is(err, ErrSQLMarker) {
		t.Fatalf("unmarked QueryRow err = %v", err)
	}
	if len(exec.queries) != 1 {
		t.Fatalf("unmarked statements must not reach the database")
	}

	if err := runner.QueryRow(context.Background(), markedQuery).Scan(&id); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("QueryRow err = %v, want ErrNoRows", err)
	}
}
