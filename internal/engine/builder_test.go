package engine

import (
	"strings"
	"testing"
)

func TestBuilderStatements(t *testing.T) {
	cases := []struct {
		name  string
		req   Request
		conds []condition
		want  string
	}{
		{
			name: "count",
			req:  Request{ProjectID: "p1", Archetype: Count, Collection: "measurements"},
			want: `SELECT COUNT(*) AS count FROM p1_measurements LIMIT 5000`,
		},
		{
			name: "sum with conditions",
			req:  Request{ProjectID: "p1", Archetype: Sum, Collection: "measurements", TargetProperty: "voltage"},
			conds: []condition{
				{expr: `"voltage" > ?`, args: []any{5.0}},
				{expr: `"phase" = ?`, args: []any{"a"}},
			},
			want: `SELECT SUM("voltage") AS sum FROM p1_measurements WHERE "voltage" > $1 AND "phase" = $2 LIMIT 5000`,
		},
		{
			name: "grouped average",
			req:  Request{ProjectID: "p1", Archetype: Average, Collection: "measurements", TargetProperty: "voltage", GroupBy: "sensor"},
			want: `SELECT "sensor", AVG("voltage") AS avg FROM p1_measurements GROUP BY "sensor" LIMIT 5000`,
		},
		{
			name: "interval fetches raw rows",
			req:  Request{ProjectID: "p1", Archetype: Maximum, Collection: "measurements", TargetProperty: "voltage", Interval: "hourly"},
			want: `SELECT * FROM p1_measurements LIMIT 5000`,
		},
		{
			name: "median fetches the target column",
			req:  Request{ProjectID: "p1", Archetype: Median, Collection: "measurements", TargetProperty: "voltage"},
			want: `SELECT "voltage" FROM p1_measurements LIMIT 5000`,
		},
		{
			name: "grouped percentile fetches everything",
			req:  Request{ProjectID: "p1", Archetype: Percentile, Collection: "measurements", TargetProperty: "voltage", GroupBy: "sensor"},
			want: `SELECT * FROM p1_measurements LIMIT 5000`,
		},
		{
			name: "extraction orders newest first",
			req:  Request{ProjectID: "p1", Archetype: Extraction, Collection: "measurements"},
			want: `SELECT * FROM p1_measurements ORDER BY "krater$timestamp" DESC LIMIT 5000`,
		},
		{
			name: "extraction column list",
			req:  Request{ProjectID: "p1", Archetype: Extraction, Collection: "measurements", TargetProperty: "voltage, current"},
			want: `SELECT "voltage", "current" FROM p1_measurements ORDER BY "krater$timestamp" DESC LIMIT 5000`,
		},
		{
			name: "latest overrides the cap",
			req:  Request{ProjectID: "p1", Archetype: Count, Collection: "measurements", Latest: 10},
			want: `SELECT COUNT(*) AS count FROM p1_measurements LIMIT 10`,
		},
		{
			name: "count unique",
			req:  Request{ProjectID: "p1", Archetype: CountUnique, Collection: "measurements", TargetProperty: "sensor"},
			want: `SELECT COUNT(DISTINCT "sensor") AS count FROM p1_measurements LIMIT 5000`,
		},
		{
			name: "select unique",
			req:  Request{ProjectID: "p1", Archetype: SelectUnique, Collection: "measurements", TargetProperty: "sensor"},
			want: `SELECT ARRAY_AGG(DISTINCT "sensor") AS "sensor" FROM p1_measurements LIMIT 5000`,
		},
	}

	b := &Builder{}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, qerr := b.Build(&tc.req, tc.conds)
			if qerr != nil {
				t.Fatalf("Build failed: %v", qerr)
			}
			if q.SQL != tc.want {
				t.Errorf("SQL = %q\nwant  %q", q.SQL, tc.want)
			}
		})
	}
}

func TestBuilderArgsFollowPlaceholderOrder(t *testing.T) {
	b := &Builder{}
	q, qerr := b.Build(
		&Request{ProjectID: "p1", Archetype: Count, Collection: "measurements"},
		[]condition{
			{expr: `"a" = ?`, args: []any{1}},
			{expr: `"b" = ?`, args: []any{2}},
			{expr: `"c" = ?`, args: []any{3}},
		},
	)
	if qerr != nil {
		t.Fatalf("Build failed: %v", qerr)
	}
	if len(q.Args) != 3 || q.Args[0] != 1 || q.Args[1] != 2 || q.Args[2] != 3 {
		t.Errorf("args = %v", q.Args)
	}
	for _, ph := range []string{"$1", "$2", "$3"} {
		if !strings.Contains(q.SQL, ph) {
			t.Errorf("SQL %q is missing placeholder %s", q.SQL, ph)
		}
	}
}

func TestBuilderRowCapOverride(t *testing.T) {
	b := &Builder{RowCap: 100}
	q, _ := b.Build(&Request{ProjectID: "p1", Archetype: Count, Collection: "measurements"}, nil)
	if !strings.HasSuffix(q.SQL, "LIMIT 100") {
		t.Errorf("SQL = %q, want LIMIT 100", q.SQL)
	}

	// latest still wins over the configured cap.
	q, _ = b.Build(&Request{ProjectID: "p1", Archetype: Count, Collection: "measurements", Latest: 7000}, nil)
	if !strings.HasSuffix(q.SQL, "LIMIT 7000") {
		t.Errorf("SQL = %q, want LIMIT 7000", q.SQL)
	}
}

func TestBuilderRejectsUnsafeExtractionColumns(t *testing.T) {
	b := &Builder{}
	_, qerr := b.Build(&Request{
		ProjectID:      "p1",
		Archetype:      Extraction,
		Collection:     "measurements",
		TargetProperty: "voltage, current; DROP TABLE p1_measurements",
	}, nil)
	if qerr == nil {
		t.Fatal("Build accepted an unsafe column list")
	}
	if qerr.Kind != ErrBadQuery {
		t.Errorf("error kind = %s, want %s", qerr.Kind, ErrBadQuery)
	}
}
