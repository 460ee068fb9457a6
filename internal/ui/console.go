// Package ui implements the interactive console: table listings, the
// selection grammar, and yes/no confirmation prompts.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tracktable/tracktable/internal/orchestrator"
	"github.com/tracktable/tracktable/pkg/dialect"
)

// Console reads selections and confirmations from in and renders to out.
type Console struct {
	in  *bufio.Reader
	out io.Writer
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

// ReadLine returns the next input line without its trailing newline. All
// console input goes through here so a single buffered reader owns the
// stream.
func (c *Console) ReadLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// RenderTables prints the numbered candidate listing users select from.
func (c *Console) RenderTables(tables []dialect.TableMetadata) {
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.AppendHeader(table.Row{"#", "Schema", "Table", "Kind"})
	for i, meta := range tables {
		t.AppendRow(table.Row{i + 1, meta.Schema, meta.Name, string(meta.Kind)})
	}
	t.Render()
}

// RenderPreviews prints synthesized DDL per table, statement by statement.
func (c *Console) RenderPreviews(previews []orchestrator.TablePreview) {
	for _, p := range previews {
		fmt.Fprintf(c.out, "\n-- %s.%s\n%s\n", p.Schema, p.Table, p.HistoryTableDDL)
		for _, stmt := range p.TriggerDDL {
			fmt.Fprintf(c.out, "%s\n", stmt)
		}
	}
}

// RenderLedger prints the session change ledger in application order.
func (c *Console) RenderLedger(entries []orchestrator.LedgerEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "No changes recorded in this session.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.AppendHeader(table.Row{"ID", "Schema", "Table", "Action", "Applied At", "User"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.ID, e.Schema, e.Table, string(e.Action),
			e.AppliedAt.Format("2006-01-02 15:04:05"), e.User,
		})
	}
	t.Render()
}

// SelectTables renders the candidates and reads a selection expression.
// An unreadable or empty line selects nothing.
func (c *Console) SelectTables(candidates []dialect.TableMetadata) []string {
	c.RenderTables(candidates)
	fmt.Fprint(c.out, "Select tables (e.g. 1,3-5 or all): ")
	line, err := c.ReadLine()
	if err != nil {
		return nil
	}
	indexes, err := ParseSelection(line, len(candidates))
	if err != nil {
		fmt.Fprintf(c.out, "Invalid selection: %v\n", err)
		return nil
	}
	names := make([]string, 0, len(indexes))
	for _, i := range indexes {
		names = append(names, candidates[i-1].Name)
	}
	return names
}

// Confirm prompts with a y/N question; anything but an explicit yes is no.
func (c *Console) Confirm(prompt string) bool {
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)
	line, err := c.ReadLine()
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// ParseSelection parses a 1-based selection expression over n items:
// comma-separated indexes and inclusive ranges ("1,3-5"), or the word
// "all". The result is sorted and deduplicated.
func ParseSelection(expr string, n int) ([]int, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty selection")
	}
	if strings.EqualFold(expr, "all") {
		out := make([]int, n)
		for i := range out {
			out[i] = i + 1
		}
		return out, nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, err := parseRange(part)
		if err != nil {
			return nil, err
		}
		if lo < 1 || hi > n {
			return nil, fmt.Errorf("selection %q out of range 1-%d", part, n)
		}
		for i := lo; i <= hi; i++ {
			seen[i] = true
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("empty selection")
	}

	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

func parseRange(part string) (int, int, error) {
	if lo, hi, ok := strings.Cut(part, "-"); ok {
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return 0, 0, fmt.Errorf("bad range start %q", lo)
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return 0, 0, fmt.Errorf("bad range end %q", hi)
		}
		if end < start {
			return 0, 0, fmt.Errorf("range %q is reversed", part)
		}
		return start, end, nil
	}
	idx, err := strconv.Atoi(part)
	if err != nil {
		return 0, 0, fmt.Errorf("bad index %q", part)
	}
	return idx, idx, nil
}
