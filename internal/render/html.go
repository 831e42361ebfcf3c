package render

import (
	"fmt"
	"io"

	"stackmaps/stackmap"
)

// Links lists the export artifacts the index page refers to.
type Links struct {
	CFGs      []string // function names with cfg/<name>.dot
	ASM       []string // function names with asm/<name>.txt
	Callgraph bool
}

var kindOrder = []stackmap.Kind{
	stackmap.Register,
	stackmap.Direct,
	stackmap.Indirect,
	stackmap.Constant,
	stackmap.ConstantIndex,
}

// WriteIndexHTML writes a small HTML page summarizing an export.
func WriteIndexHTML(w io.Writer, stats Stats, title string, links Links) {
	theme := NASA
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: "Helvetica Neue", Helvetica, Arial, sans-serif; font-size: 14px; color: %s; background: %s; margin: 2em; max-width: 900px; }
h1 { font-size: 18px; font-weight: 600; margin-bottom: 0.5em; }
h2 { font-size: 14px; font-weight: 600; margin-top: 1.5em; border-bottom: 1px solid #ddd; padding-bottom: 4px; }
table { border-collapse: collapse; margin: 0.5em 0; }
th, td { text-align: left; padding: 3px 12px 3px 0; font-size: 13px; }
th { font-weight: 600; }
td.num { text-align: right; font-variant-numeric: tabular-nums; }
.kind { display: inline-block; width: 10px; height: 10px; border-radius: 2px; margin-right: 4px; vertical-align: middle; }
.bar { height: 8px; border-radius: 2px; display: inline-block; vertical-align: middle; }
.mbar { height: 6px; border-radius: 2px; display: inline-block; vertical-align: middle; background: %s; }
.fn { font-family: "Courier New", monospace; font-size: 12px; }
</style>
</head>
<body>
`, htmlEscape(title), theme.TextColor, theme.Background, theme.Accent)

	fmt.Fprintf(w, "<h1>%s</h1>\n", htmlEscape(title))

	fmt.Fprintln(w, "<h2>Summary</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintf(w, "<tr><td>Functions</td><td class=\"num\">%d</td></tr>\n", stats.Functions)
	fmt.Fprintf(w, "<tr><td>Records</td><td class=\"num\">%d</td></tr>\n", stats.Records)
	fmt.Fprintf(w, "<tr><td>Locations</td><td class=\"num\">%d</td></tr>\n", stats.Locations)
	fmt.Fprintf(w, "<tr><td>Constants</td><td class=\"num\">%d</td></tr>\n", stats.Constants)
	if stats.MaxStackFunc != "" {
		fmt.Fprintf(w, "<tr><td>Largest frame</td><td class=\"num\">%d</td><td class=\"fn\">%s</td></tr>\n",
			stats.MaxStackSize, htmlEscape(stats.MaxStackFunc))
	}
	fmt.Fprintf(w, "<tr><td>Safepoints without callee</td><td class=\"num\">%d</td></tr>\n", stats.Unresolved)
	fmt.Fprintln(w, "</table>")

	fmt.Fprintln(w, "<h2>Location Kinds</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintln(w, "<tr><th></th><th>Kind</th><th>Count</th><th></th></tr>")
	for _, k := range kindOrder {
		count := stats.KindCounts[k]
		if count == 0 {
			continue
		}
		color := theme.KindColor(k)
		fmt.Fprintf(w, "<tr><td><span class=\"kind\" style=\"background:%s\"></span></td><td>%s</td><td class=\"num\">%d</td><td><span class=\"bar\" style=\"width:%dpx;background:%s\"></span></td></tr>\n",
			color, k, count, barWidth(count, stats.Locations, 200), color)
	}
	fmt.Fprintln(w, "</table>")

	// Browsers cannot open DOT files; list them for graphviz instead.
	fmt.Fprintln(w, "<h2>Files</h2>")
	fmt.Fprintln(w, "<p class=\"fn\">stackmaps.json<br>records.jsonl")
	if links.Callgraph {
		fmt.Fprint(w, "<br>callgraph.dot")
	}
	if len(links.CFGs) > 0 {
		fmt.Fprintf(w, "<br>cfg/ (%d functions)", len(links.CFGs))
	}
	if len(links.ASM) > 0 {
		fmt.Fprintf(w, "<br><a href=\"asm/\">asm/</a> (%d functions)", len(links.ASM))
	}
	fmt.Fprintln(w, "</p>")

	writeTop(w, "Most Safepoints", "Records", stats.TopFunctions, 20, links)
	writeTop(w, "Top Callees", "Safepoints", stats.TopCallees, 15, Links{})

	fmt.Fprintln(w, "</body></html>")
}

func writeTop(w io.Writer, heading, column string, counts []NameCount, limit int, links Links) {
	if len(counts) == 0 {
		return
	}
	hasASM := make(map[string]bool, len(links.ASM))
	for _, name := range links.ASM {
		hasASM[name] = true
	}
	fmt.Fprintf(w, "<h2>%s</h2>\n", heading)
	fmt.Fprintln(w, "<table>")
	fmt.Fprintf(w, "<tr><th>Function</th><th>%s</th><th></th></tr>\n", column)
	if len(counts) < limit {
		limit = len(counts)
	}
	maxCount := counts[0].Count
	for _, nc := range counts[:limit] {
		label := htmlEscape(nc.Name)
		if hasASM[nc.Name] {
			label = fmt.Sprintf(`%s <a href="asm/%s.txt" style="font-size:11px">[asm]</a>`, label, SafeFileName(nc.Name))
		}
		fmt.Fprintf(w, "<tr><td class=\"fn\">%s</td><td class=\"num\">%d</td><td><span class=\"mbar\" style=\"width:%dpx\"></span></td></tr>\n",
			label, nc.Count, barWidth(nc.Count, maxCount, 120))
	}
	if len(counts) > limit {
		fmt.Fprintf(w, "<tr><td>... and %d more</td></tr>\n", len(counts)-limit)
	}
	fmt.Fprintln(w, "</table>")
}
