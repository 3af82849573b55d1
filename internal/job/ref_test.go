package job

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Ref
		wantErr bool
	}{
		{name: "bare name uses default namespace", input: "etl-1", want: Ref{Namespace: "batch", Name: "etl-1"}},
		{name: "namespace and name", input: "team-a/etl.nightly", want: Ref{Namespace: "team-a", Name: "etl.nightly"}},
		{name: "surrounding spaces are ignored", input: " etl ", want: Ref{Namespace: "batch", Name: "etl"}},
		{name: "empty", input: "", wantErr: true},
		{name: "empty namespace", input: "/etl", wantErr: true},
		{name: "empty name", input: "team-a/", wantErr: true},
		{name: "too many segments", input: "a/b/c", wantErr: true},
		{name: "upper case name", input: "ETL", wantErr: true},
		{name: "underscore", input: "etl_1", wantErr: true},
		{name: "dotted namespace", input: "team.a/etl", wantErr: true},
		{name: "name too long", input: strings.Repeat("a", MaxNameLength+1), wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseRef(tt.input, "batch")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRef(%q) = %v, expected error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRef(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("ParseRef(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseRefsDeduplicates(t *testing.T) {
	t.Parallel()

	got, err := ParseRefs([]string{"a", "batch/a", "other/a", "b"}, "batch")
	if err != nil {
		t.Fatalf("ParseRefs unexpected error: %v", err)
	}
	want := []Ref{
		{Namespace: "batch", Name: "a"},
		{Namespace: "other", Name: "a"},
		{Namespace: "batch", Name: "b"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseRefs mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRefsStopsAtFirstInvalid(t *testing.T) {
	t.Parallel()

	if _, err := ParseRefs([]string{"good", "Bad!"}, "batch"); err == nil {
		t.Fatal("ParseRefs expected error")
	}
}

func TestRefString(t *testing.T) {
	t.Parallel()

	if got := (Ref{Namespace: "ns", Name: "n"}).String(); got != "ns/n" {
		t.Fatalf("String() = %q", got)
	}
	if got := (Ref{Name: "n"}).String(); got != "n" {
		t.Fatalf("String() = %q", got)
	}
}
