package query_test

import (
	"strings"
	"testing"

	"github.com/JaimeStill/verdict/pkg/query"
)

func runs() *query.ProjectionMap {
	return query.NewProjectionMap("", "runs", "r").
		Project("run_id", "RunID").
		Project("name", "Name").
		Project("status", "Status").
		Project("started_at", "StartedAt")
}

func TestProjectionMap(t *testing.T) {
	p := runs()

	if got := p.From(); got != "runs r" {
		t.Errorf("From = %q", got)
	}
	if got := query.NewProjectionMap("verdict", "runs", "r").From(); got != "verdict.runs r" {
		t.Errorf("schema From = %q", got)
	}
	if got := p.Column("Status"); got != "r.status" {
		t.Errorf("Column = %q", got)
	}
	if got := p.Column("unknown"); got != "unknown" {
		t.Errorf("unmapped Column = %q", got)
	}
	if !p.Mapped("Name") || p.Mapped("Nope") {
		t.Error("Mapped mismatch")
	}
	if got := p.Columns(); got != "r.run_id, r.name, r.status, r.started_at" {
		t.Errorf("Columns = %q", got)
	}
}

func TestParseSortFields(t *testing.T) {
	got := query.ParseSortFields(" Name , -StartedAt,,")
	want := []query.SortField{{Field: "Name"}, {Field: "StartedAt", Descending: true}}
	if len(got) != len(want) {
		t.Fatalf("ParseSortFields = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if query.ParseSortFields("") != nil {
		t.Error("empty input should return nil")
	}
}

func TestBuildPage(t *testing.T) {
	status := "running"
	search := "Nightly"

	sql, args := query.NewBuilder(runs(), query.SortField{Field: "StartedAt", Descending: true}).
		WhereEquals("Status", &status).
		WhereSearch(&search, "Name", "RunID").
		BuildPage(2, 10)

	want := "SELECT r.run_id, r.name, r.status, r.started_at FROM runs r" +
		" WHERE r.status = ? AND (LOWER(r.name) LIKE LOWER(?) OR LOWER(r.run_id) LIKE LOWER(?))" +
		" ORDER BY r.started_at DESC LIMIT 10 OFFSET 10"
	if sql != want {
		t.Errorf("sql =\n%s\nwant\n%s", sql, want)
	}
	if len(args) != 3 || args[0] != "running" || args[1] != "%Nightly%" {
		t.Errorf("args = %v", args)
	}
}

func TestBuilderSkipsEmptyConditions(t *testing.T) {
	var status *string
	empty := ""

	sql, args := query.NewBuilder(runs()).
		WhereEquals("Status", status).
		WhereContains("Name", &empty).
		WhereSearch(nil, "Name").
		WhereIn("Status", nil).
		BuildCount()

	if sql != "SELECT COUNT(*) FROM runs r" {
		t.Errorf("sql = %q", sql)
	}
	if len(args) != 0 {
		t.Errorf("args = %v", args)
	}
}

func TestOrderByIgnoresUnmappedFields(t *testing.T) {
	sql, _ := query.NewBuilder(runs(), query.SortField{Field: "StartedAt"}).
		OrderByFields([]query.SortField{{Field: "Name"}, {Field: "password"}}).
		Build()

	if !strings.HasSuffix(sql, " ORDER BY r.name ASC") {
		t.Errorf("sql = %q", sql)
	}
}

func TestWhereIn(t *testing.T) {
	sql, args := query.NewBuilder(runs()).
		WhereIn("Status", []any{"failed", "cancelled"}).
		BuildCount()

	if !strings.Contains(sql, "r.status IN (?, ?)") || len(args) != 2 {
		t.Errorf("sql = %q args = %v", sql, args)
	}
}

func TestBuildSingle(t *testing.T) {
	sql, args := query.NewBuilder(runs()).BuildSingle("RunID", "abc")
	if !strings.HasSuffix(sql, "FROM runs r WHERE r.run_id = ?") || args[0] != "abc" {
		t.Errorf("sql = %q args = %v", sql, args)
	}
}
