package capture

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDayURL(t *testing.T) {
	tests := []struct {
		base, date, want string
		wantErr          bool
	}{
		{"http://127.0.0.1:8080", "2026-03-02", "http://127.0.0.1:8080/schedule/day?date=2026-03-02", false},
		{"http://127.0.0.1:8080/", "", "http://127.0.0.1:8080/schedule/day", false},
		{"http://clinic.local/app", "", "http://clinic.local/app/schedule/day", false},
		{"127.0.0.1:8080", "", "", true},
	}
	for _, tt := range tests {
		got, err := DayURL(tt.base, tt.date)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("DayURL(%q, %q) = %q, %v; want %q", tt.base, tt.date, got, err, tt.want)
		}
	}
}

func TestOptionsNormalize(t *testing.T) {
	o := Options{URL: "http://x/schedule/day", OutputPath: "out.png"}
	if err := o.normalize(); err != nil {
		t.Fatal(err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout != DefaultTimeout {
		t.Errorf("defaults = %+v", o)
	}
	if err := (&Options{OutputPath: "x.png"}).normalize(); err == nil {
		t.Error("missing URL accepted")
	}
	if err := (&Options{URL: "http://x"}).normalize(); err == nil {
		t.Error("missing output path accepted")
	}
}

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap", "schedule.png")
	if err := writeAtomic(path, []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := writeAtomic(path, []byte("two")); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "two" {
		t.Errorf("content = %q, %v", got, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("leftover temp files: %v", entries)
	}
}
