package commit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/optibot-run/optibot/pkg/compress"
)

// messageTitle is the first line of every generated commit.
const messageTitle = "[optibot] optimize images"

// BuildMessage renders the commit message from the result set: an aggregate
// line followed by one line per file, sorted by path. The output depends
// only on the set of results, never on the order compression finished in.
func BuildMessage(results []compress.Result) string {
	sorted := make([]compress.Result, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var b strings.Builder
	b.WriteString(messageTitle)
	b.WriteString("\n\n")

	before, after := compress.Total(sorted)
	total := compress.Result{SizeBefore: before, SizeAfter: after}
	fmt.Fprintf(&b, "*Total -- %s -> %s (%.2f%%)\n", kb(before), kb(after), total.Percent())

	for _, r := range sorted {
		fmt.Fprintf(&b, "\n/%s -- %s -> %s (%.2f%%)", r.Path, kb(r.SizeBefore), kb(r.SizeAfter), r.Percent())
	}
	b.WriteString("\n")
	return b.String()
}

func kb(n int64) string {
	return fmt.Sprintf("%.2fkb", float64(n)/1024)
}
