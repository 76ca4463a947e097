// Package xmlreport writes finished Test Records as a JUnit-compatible
// document (§4.6).
package xmlreport

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkoosis/gtestisolate/internal/clock"
	"github.com/dkoosis/gtestisolate/internal/record"
)

// ErrWriteFailed wraps an error creating the XML output file. Errors from
// the writes that follow, and from closing the file, are not reported.
type ErrWriteFailed struct {
	Path string
	Err  error
}

func (e *ErrWriteFailed) Error() string {
	return fmt.Sprintf("writing xml report to %q: %v", e.Path, e.Err)
}

func (e *ErrWriteFailed) Unwrap() error { return e.Err }

// testSuite carries one suite's tests in catalog order.
type testSuite struct {
	name       string
	tests      []*record.Record
	fails      int
	elapsedMs  float64
}

// Write emits the JUnit document for the given Records (in catalog order,
// already excluding nothing — xfail exclusion happens here) to path.
func Write(path string, records []*record.Record, totalWallMS int64, startTime time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return &ErrWriteFailed{Path: path, Err: err}
	}
	defer f.Close()

	suites := groupBySuite(records)

	totalFailures := 0
	for _, s := range suites {
		totalFailures += s.fails
	}

	timestamp := startTime.Format("2006-01-02T15:04:05")

	fmt.Fprint(f, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	fmt.Fprintf(f, "<testsuites tests=\"%d\" failures=\"%d\" disabled=\"0\" errors=\"0\" timestamp=\"%s\" time=\"%.3f\" name=\"AllTests\">\n",
		len(records), totalFailures, timestamp, float64(totalWallMS)/1000.0)

	for _, s := range suites {
		fmt.Fprintf(f, "  <testsuite name=\"%s\" tests=\"%d\" failures=\"%d\" disabled=\"0\" errors=\"0\" time=\"%.3f\">\n",
			escape(s.name), len(s.tests), s.fails, s.elapsedMs/1000.0)

		for _, rec := range s.tests {
			elapsedMs := float64(clock.Millis(rec.ElapsedNS(rec.EndNS)))
			fmt.Fprintf(f, "    <testcase name=\"%s\" status=\"run\" time=\"%.3f\" classname=\"%s\"",
				escape(rec.Identity.Name), elapsedMs/1000.0, escape(s.name))

			if rec.Classification() == record.Pass {
				fmt.Fprint(f, " />\n")
				continue
			}

			fmt.Fprint(f, ">\n")
			fmt.Fprintf(f, "      <failure message=\"%s\" type=\"\"></failure>\n", escape(rec.Output()))
			fmt.Fprint(f, "    </testcase>\n")
		}
		fmt.Fprint(f, "  </testsuite>\n")
	}
	fmt.Fprint(f, "</testsuites>\n")

	return nil
}

// groupBySuite buckets records into per-suite groups in first-encounter
// order, excluding xfail tests entirely (§4.6).
func groupBySuite(records []*record.Record) []*testSuite {
	var order []string
	byName := map[string]*testSuite{}

	for _, rec := range records {
		if rec.Classification() == record.XFail {
			continue
		}
		suiteName := strings.TrimSuffix(rec.Identity.Suite, ".")
		s, ok := byName[suiteName]
		if !ok {
			s = &testSuite{name: suiteName}
			byName[suiteName] = s
			order = append(order, suiteName)
		}
		s.tests = append(s.tests, rec)
		s.elapsedMs += float64(clock.Millis(rec.ElapsedNS(rec.EndNS)))
		if rec.Classification() != record.Pass {
			s.fails++
		}
	}

	out := make([]*testSuite, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

// escape XML-escapes '<', '>', '&', '\'', '"'.
func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		case '\'':
			b.WriteString("&apos;")
		case '"':
			b.WriteString("&quot;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
