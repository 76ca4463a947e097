// Package format renders Test Records and aggregate counters into the live
// banner stream and the final textual summary, in both the single-line and
// gtest-format layouts.
package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/dkoosis/gtestisolate/internal/clock"
	"github.com/dkoosis/gtestisolate/internal/reportcolor"
	"github.com/dkoosis/gtestisolate/internal/record"
)

// InventoryLineWidth caps how much of an inventory line (§4.7 SIGQUIT
// handler) is printed, so a pathologically long test identifier can't wrap
// the terminal into an unreadable listing.
const InventoryLineWidth = 200

// TruncateInventoryLine bounds s to InventoryLineWidth visible columns,
// accounting for wide runes the way a real terminal would.
func TruncateInventoryLine(s string) string {
	if runewidth.StringWidth(s) <= InventoryLineWidth {
		return s
	}
	return runewidth.Truncate(s, InventoryLineWidth, "…")
}

// Formatter converts Records and aggregate counters into text.
type Formatter struct {
	Out       io.Writer
	Color     reportcolor.Policy
	PrintTime bool
	GTestFmt  bool
}

// New builds a Formatter.
func New(out io.Writer, color reportcolor.Policy, printTime, gtestFormat bool) *Formatter {
	return &Formatter{Out: out, Color: color, PrintTime: printTime, GTestFmt: gtestFormat}
}

// OnStart is called when a child is spawned, and in gtest-format mode
// immediately prints the "[ RUN ]" line ahead of the test's own output.
func (f *Formatter) OnStart(rec *record.Record) {
	if !f.GTestFmt {
		return
	}
	fmt.Fprintf(f.Out, "%s %s\n", f.Color.Green("[ RUN      ]"), rec.Identity.String())
}

// tag returns the bracketed status tag and its color for a classification
// in the single-line layout.
func tag(c record.Classification) (string, func(reportcolor.Policy, string) string) {
	switch c {
	case record.Pass, record.XFail:
		return "[    OK    ]", reportcolor.Policy.Green
	case record.Timeout:
		return "[ TIMEOUT  ]", reportcolor.Policy.Red
	default: // Fail, XPass
		return "[  FAILED  ]", reportcolor.Policy.Red
	}
}

// gtestFormatTag returns the closing tag for the gtest-format layout, which
// only distinguishes OK from FAILED: anything but pass/xfail (including
// timeout and xpass) prints as FAILED there.
func gtestFormatTag(c record.Classification) (string, func(reportcolor.Policy, string) string) {
	switch c {
	case record.Pass, record.XFail:
		return "[       OK ]", reportcolor.Policy.Green
	default:
		return "[  FAILED  ]", reportcolor.Policy.Red
	}
}

// OnFinish prints a completed Record's live output: either the single-line
// "[ TAG ] name (ms)" followed by captured output, or in gtest-format the
// output followed by the closing "[ TAG ] name (ms)" line (the RUN line
// having already been printed by OnStart).
func (f *Formatter) OnFinish(rec *record.Record) {
	name := rec.Identity.String()
	var label string
	var colorFn func(reportcolor.Policy, string) string
	if f.GTestFmt {
		label, colorFn = gtestFormatTag(rec.Classification())
	} else {
		label, colorFn = tag(rec.Classification())
	}
	elapsedMs := clock.Millis(rec.ElapsedNS(rec.EndNS))

	line := colorFn(f.Color, label) + " " + name
	if f.PrintTime {
		line += fmt.Sprintf(" (%d ms)", elapsedMs)
	}

	if f.GTestFmt {
		fmt.Fprint(f.Out, rec.Output())
		fmt.Fprintln(f.Out, line)
	} else {
		fmt.Fprintln(f.Out, line)
		fmt.Fprint(f.Out, rec.Output())
	}
}

// Plural appends "s" (or "S" if uppercase) to name when value != 1.
func Plural(value int, name string, uppercase bool) string {
	s := fmt.Sprintf("%d%s", value, name)
	if value != 1 {
		if uppercase {
			s += "S"
		} else {
			s += "s"
		}
	}
	return s
}

// Counters are the aggregate tallies the scheduler accumulates.
type Counters struct {
	Pass, XPass, Fail, XFail, Timeout, Slow int
}

// SectionEntry is one member test of a footer section, with the optional
// per-test suffix text the section prints after its name (e.g. slow tests
// print "(<ms> ms, exceeded <threshold> ms)").
type SectionEntry struct {
	Name   string
	Suffix string
}

// Footer renders the final textual summary for one iteration (§4.6).
type Footer struct {
	TotalTests, TotalSuites, TotalDisabled int
	Counters                               Counters
	WallClockMS                            int64

	Slow, XPass, Timeout, Fail []SectionEntry
}

// Render writes the footer to f.Out.
func (f *Formatter) Render(footer Footer) {
	total := Plural(footer.TotalTests, " test", false)
	suites := Plural(footer.TotalSuites, " test case", false)
	fmt.Fprintf(f.Out, "%s %s from %s ran. (%d ms total)\n",
		f.Color.Green("[==========]"), total, suites, footer.WallClockMS)

	passLine := footer.Counters.Pass + footer.Counters.XFail
	fmt.Fprintf(f.Out, "%s %s.", f.Color.Green("[   PASS   ]"), Plural(passLine, " test", false))
	if footer.Counters.XFail > 0 {
		fmt.Fprintf(f.Out, " (%s)", Plural(footer.Counters.XFail, " expected failure", false))
	}
	fmt.Fprintln(f.Out)

	var trailer strings.Builder
	f.renderSection(&trailer, "[   SLOW   ]", "SLOW", footer.Slow, f.Color.Yellow)
	f.renderSection(&trailer, "[  XPASS   ]", "SHOULD HAVE FAILED", footer.XPass, f.Color.Red)
	f.renderSection(&trailer, "[ TIMEOUT  ]", "TIMEOUT", footer.Timeout, f.Color.Red)
	f.renderSection(&trailer, "[   FAIL   ]", "FAILED", footer.Fail, f.Color.Red)

	if trailer.Len() > 0 {
		fmt.Fprint(f.Out, "\n"+trailer.String())
	}

	if footer.TotalDisabled > 0 {
		if trailer.Len() == 0 {
			fmt.Fprintln(f.Out)
		}
		notice := fmt.Sprintf("  YOU HAVE %s", Plural(footer.TotalDisabled, " DISABLED TEST", true))
		fmt.Fprintln(f.Out, f.Color.Yellow(notice))
		fmt.Fprintln(f.Out)
	}
}

// renderSection prints one "[ TAG ] N test(s), listed below:" block with a
// tagged line per member, and appends this section's trailer line (e.g.
// "3 SLOW TESTS") to trailer for the caller to print once at the end.
func (f *Formatter) renderSection(
	trailer *strings.Builder, tag, title string, entries []SectionEntry, colorFn func(string) string,
) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(f.Out, "%s %s, listed below:\n", colorFn(tag), Plural(len(entries), " test", false))
	for _, e := range entries {
		line := colorFn(tag) + " " + e.Name
		if e.Suffix != "" {
			line += " " + e.Suffix
		}
		fmt.Fprintln(f.Out, line)
	}

	trailerLine := Plural(len(entries), " "+title+" TEST", true)
	if len(entries) < 10 {
		trailerLine = " " + trailerLine
	}
	trailer.WriteString(trailerLine)
	trailer.WriteByte('\n')
}
