package ui

import (
	"strings"
	"testing"

	"github.com/tracktable/tracktable/pkg/dialect"
)

func TestParseSelection(t *testing.T) {
	cases := []struct {
		expr string
		n    int
		want []int
	}{
		{"1", 5, []int{1}},
		{"1,3", 5, []int{1, 3}},
		{"1,3-5", 5, []int{1, 3, 4, 5}},
		{"3-5,1", 5, []int{1, 3, 4, 5}},
		{"2,2,2", 5, []int{2}},
		{"all", 3, []int{1, 2, 3}},
		{"ALL", 2, []int{1, 2}},
		{" 1 , 2 ", 5, []int{1, 2}},
	}
	for _, tc := range cases {
		got, err := ParseSelection(tc.expr, tc.n)
		if err != nil {
			t.Fatalf("%q: %v", tc.expr, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%q: got %v, want %v", tc.expr, got, tc.want)
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Fatalf("%q: got %v, want %v", tc.expr, got, tc.want)
			}
		}
	}
}

func TestParseSelectionErrors(t *testing.T) {
	bad := []struct {
		expr string
		n    int
	}{
		{"", 5},
		{"0", 5},
		{"6", 5},
		{"2-9", 5},
		{"5-2", 5},
		{"a", 5},
		{"1-b", 5},
		{",,,", 5},
	}
	for _, tc := range bad {
		if _, err := ParseSelection(tc.expr, tc.n); err == nil {
			t.Fatalf("%q: expected error", tc.expr)
		}
	}
}

func TestSelectTables(t *testing.T) {
	in := strings.NewReader("1,3\n")
	var out strings.Builder
	c := NewConsole(in, &out)

	candidates := []dialect.TableMetadata{
		{Name: "orders", Schema: "public"},
		{Name: "customers", Schema: "public"},
		{Name: "invoices", Schema: "public"},
	}
	names := c.SelectTables(candidates)
	if len(names) != 2 || names[0] != "orders" || names[1] != "invoices" {
		t.Fatalf("names = %v", names)
	}
	if !strings.Contains(out.String(), "orders") {
		t.Fatalf("listing not rendered:\n%s", out.String())
	}
}

func TestConfirm(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"n\n", false},
		{"\n", false},
		{"sure\n", false},
		{"", false},
	}
	for _, tc := range cases {
		var out strings.Builder
		c := NewConsole(strings.NewReader(tc.input), &out)
		if got := c.Confirm("proceed?"); got != tc.want {
			t.Fatalf("input %q: got %v", tc.input, got)
		}
	}
}
