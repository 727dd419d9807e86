package csvimport

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"gabinet/internal/model"
)

func TestAutoMap(t *testing.T) {
	fields := []Field{
		{"first_name", KindText},
		{"last_name", KindText},
		{"email", KindText},
		{"tags", KindList},
	}
	got := AutoMap([]string{"First Name", "LAST-NAME", "E-mail", "Tags ", "Emails", "first_name"}, fields)
	want := map[string]string{
		"First Name": "first_name",
		"LAST-NAME":  "last_name",
		"E-mail":     "email",
		"Tags ":      "tags",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AutoMap = %v, want %v", got, want)
	}
}

func TestMapRowCoercion(t *testing.T) {
	fields := []Field{
		{"name", KindText},
		{"tags", KindList},
		{"value", KindNumber},
		{"employees", KindNumber},
		{"newsletter", KindBool},
		{"vip", KindBool},
		{"active", KindBool},
	}
	mapping := map[string]string{
		"Name": "name", "Tags": "tags", "Value": "value", "Employees": "employees",
		"Newsletter": "newsletter", "VIP": "vip", "Active": "active",
	}

	tests := []struct {
		name string
		row  Row
		want model.Record
	}{
		{
			name: "all kinds",
			row: Row{
				"Name": " Acme ", "Tags": "a; b ;;c", "Value": "12.5", "Employees": "40",
				"Newsletter": "YES", "VIP": "True", "Active": "1",
			},
			want: model.Record{
				"name": "Acme", "tags": []string{"a", "b", "c"}, "value": 12.5, "employees": 40.0,
				"newsletter": true, "vip": true, "active": false,
			},
		},
		{
			name: "bad numbers drop only that field",
			row:  Row{"Name": "Beta", "Value": "n/a", "Employees": "NaN"},
			want: model.Record{"name": "Beta"},
		},
		{
			name: "empty cells are skipped",
			row:  Row{"Name": "", "Tags": " ; ", "Newsletter": ""},
			want: model.Record{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapRow(tt.row, mapping, fields)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MapRow = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestReadCSV(t *testing.T) {
	in := "\ufeffFirst Name,Email\nAnna,anna@example.com\nJan\n"
	headers, rows, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(headers, []string{"First Name", "Email"}) {
		t.Errorf("headers = %q", headers)
	}
	if len(rows) != 2 || rows[1]["Email"] != "" || rows[0]["Email"] != "anna@example.com" {
		t.Errorf("rows = %v", rows)
	}

	headers, rows, err = ReadCSV(strings.NewReader(""))
	if err != nil || headers != nil || rows != nil {
		t.Errorf("empty input = %v, %v, %v", headers, rows, err)
	}
}

// fakeCreator fails the batches whose starting record has "fail" set.
type fakeCreator struct {
	sizes []int
}

func (f *fakeCreator) CreateBatch(_ context.Context, _ string, records []model.Record) (BatchResult, error) {
	f.sizes = append(f.sizes, len(records))
	if records[0]["fail"] == true {
		return BatchResult{}, errors.New("backend rejected batch")
	}
	return BatchResult{Created: len(records)}, nil
}

func records(n int) []model.Record {
	out := make([]model.Record, n)
	for i := range out {
		out[i] = model.Record{"name": fmt.Sprintf("row %d", i)}
	}
	return out
}

func TestRunContinuesPastFailedBatch(t *testing.T) {
	recs := records(250)
	recs[100]["fail"] = true
	fc := &fakeCreator{}
	im := &Importer{Creator: fc, BatchSize: 100}

	var progress []int
	res := im.Run(context.Background(), "contacts", recs, func(done, total int) {
		if total != 250 {
			t.Errorf("total = %d", total)
		}
		progress = append(progress, done)
	})

	if !reflect.DeepEqual(fc.sizes, []int{100, 100, 50}) {
		t.Errorf("batch sizes = %v, want [100 100 50]", fc.sizes)
	}
	if res.Created != 150 {
		t.Errorf("Created = %d, want 150", res.Created)
	}
	if len(res.Errors) != 1 || res.Errors[0].Row != 100 {
		t.Errorf("Errors = %+v, want one at row 100", res.Errors)
	}
	if !reflect.DeepEqual(progress, []int{100, 200, 250}) {
		t.Errorf("progress = %v", progress)
	}
	if res.Batches != 3 || res.Cancelled {
		t.Errorf("Batches = %d, Cancelled = %v", res.Batches, res.Cancelled)
	}
}

type rowErrorCreator struct{}

func (rowErrorCreator) CreateBatch(_ context.Context, _ string, records []model.Record) (BatchResult, error) {
	return BatchResult{Created: len(records) - 1, Errors: []RowError{{Row: 1, Error: "duplicate email"}}}, nil
}

func TestRunOffsetsRowErrors(t *testing.T) {
	im := &Importer{Creator: rowErrorCreator{}, BatchSize: 3}
	res := im.Run(context.Background(), "contacts", records(6), nil)
	if res.Created != 4 {
		t.Errorf("Created = %d, want 4", res.Created)
	}
	want := []RowError{{Row: 1, Error: "duplicate email"}, {Row: 4, Error: "duplicate email"}}
	if !reflect.DeepEqual(res.Errors, want) {
		t.Errorf("Errors = %+v, want %+v", res.Errors, want)
	}
}

type cancellingCreator struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingCreator) CreateBatch(_ context.Context, _ string, records []model.Record) (BatchResult, error) {
	c.calls++
	c.cancel()
	return BatchResult{Created: len(records)}, nil
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cc := &cancellingCreator{cancel: cancel}
	im := &Importer{Creator: cc, BatchSize: 10}

	res := im.Run(ctx, "contacts", records(30), nil)
	if cc.calls != 1 || res.Created != 10 || !res.Cancelled {
		t.Errorf("calls = %d, res = %+v", cc.calls, res)
	}
}

func TestRunEmpty(t *testing.T) {
	fc := &fakeCreator{}
	res := (&Importer{Creator: fc}).Run(context.Background(), "contacts", nil, nil)
	if res.Created != 0 || len(res.Errors) != 0 || len(fc.sizes) != 0 {
		t.Errorf("empty import = %+v, batches %v", res, fc.sizes)
	}
}

func TestImportMapsRowsBackToCSV(t *testing.T) {
	in := "Name,Employees,Tags\nAcme,10,b2b;eu\n,,\nBeta,x,\n"
	im := &Importer{Creator: rowErrorCreator{}, BatchSize: 100}

	res, err := im.Import(context.Background(), "companies", strings.NewReader(in), nil)
	if err != nil {
		t.Fatal(err)
	}
	// Row 1 is empty and skipped; the creator's row 1 is CSV row 2 ("Beta").
	want := []RowError{{Row: 1, Error: "no mapped values"}, {Row: 2, Error: "duplicate email"}}
	if !reflect.DeepEqual(res.Errors, want) {
		t.Errorf("Errors = %+v, want %+v", res.Errors, want)
	}

	if _, err := im.Import(context.Background(), "invoices", strings.NewReader(in), nil); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("err = %v, want ErrUnknownEntity", err)
	}
}
