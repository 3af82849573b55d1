package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestSecondTimeFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{3661, "01:01:01"},
		{86400 + 3600 + 5, "1-01:00:05"},
	}

	for _, tt := range tests {
		if got := SecondTimeFormat(tt.seconds); got != tt.want {
			t.Fatalf("SecondTimeFormat(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestParseKeyValueList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		items   []string
		want    map[string]string
		wantErr bool
	}{
		{
			name:  "later keys override earlier ones",
			items: []string{"A=1", "B=2", "A=3"},
			want:  map[string]string{"A": "3", "B": "2"},
		},
		{
			name:  "value may contain '=' and be empty",
			items: []string{"URL=a=b", "EMPTY="},
			want:  map[string]string{"URL": "a=b", "EMPTY": ""},
		},
		{
			name:    "missing separator",
			items:   []string{"A"},
			wantErr: true,
		},
		{
			name:    "empty key",
			items:   []string{"=1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseKeyValueList(tt.items)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseKeyValueList(%v) expected error", tt.items)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKeyValueList(%v) unexpected error: %v", tt.items, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ParseKeyValueList(%v) mismatch (-want +got):\n%s", tt.items, diff)
			}
		})
	}
}

func TestSortedKeys(t *testing.T) {
	t.Parallel()

	got := SortedKeys(map[string]string{"b": "", "c": "", "a": ""})
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Fatalf("SortedKeys mismatch (-want +got):\n%s", diff)
	}
}

func TestTrimTableExcept(t *testing.T) {
	t.Parallel()

	long := "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz"
	rows := [][]string{{long, long, "short"}}
	TrimTableExcept(rows, 1)

	want := [][]string{{long[:40] + "...", long, "short"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("TrimTableExcept mismatch (-want +got):\n%s", diff)
	}
}

func TestTrimTableExceptMultibyte(t *testing.T) {
	t.Parallel()

	reason := strings.Repeat("é", maxCellWidth+5)
	rows := [][]string{{reason, "数据管道"}}
	TrimTableExcept(rows)

	want := [][]string{{strings.Repeat("é", maxCellWidth) + "...", "数据管道"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("TrimTableExcept mismatch (-want +got):\n%s", diff)
	}
	if !utf8.ValidString(rows[0][0]) {
		t.Fatalf("trimmed cell is not valid UTF-8: %q", rows[0][0])
	}
}
