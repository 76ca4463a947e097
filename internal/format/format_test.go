package format

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/gtestisolate/internal/record"
	"github.com/dkoosis/gtestisolate/internal/reportcolor"
)

func plainColor() reportcolor.Policy {
	return reportcolor.Resolve("no", nil)
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 test", Plural(1, " test", false))
	assert.Equal(t, "0 tests", Plural(0, " test", false))
	assert.Equal(t, "2 tests", Plural(2, " test", false))
	assert.Equal(t, "3 DISABLED TESTS", Plural(3, " DISABLED TEST", true))
	assert.Equal(t, "1 DISABLED TEST", Plural(1, " DISABLED TEST", true))
}

func TestTag_SingleLineMode(t *testing.T) {
	tests := []struct {
		c    record.Classification
		want string
	}{
		{record.Pass, "[    OK    ]"},
		{record.XFail, "[    OK    ]"},
		{record.Timeout, "[ TIMEOUT  ]"},
		{record.Fail, "[  FAILED  ]"},
		{record.XPass, "[  FAILED  ]"},
	}
	for _, tt := range tests {
		label, _ := tag(tt.c)
		assert.Equal(t, tt.want, label)
	}
}

func TestGTestFormatTag_CollapsesTimeoutAndXPassIntoFailed(t *testing.T) {
	tests := []struct {
		c    record.Classification
		want string
	}{
		{record.Pass, "[       OK ]"},
		{record.XFail, "[       OK ]"},
		{record.Fail, "[  FAILED  ]"},
		{record.XPass, "[  FAILED  ]"},
		{record.Timeout, "[  FAILED  ]"},
	}
	for _, tt := range tests {
		label, _ := gtestFormatTag(tt.c)
		assert.Equal(t, tt.want, label)
	}
}

func TestOnFinish_SingleLineOrder(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, plainColor(), true, false)

	rec := record.New(record.Identity{Suite: "S.", Name: "T"}, 0, 0)
	rec.AppendOutput([]byte("some output\n"))
	rec.SetClassification(record.Pass)
	rec.StartNS, rec.EndNS = 0, 5_000_000

	f.OnFinish(rec)

	out := buf.String()
	require.Contains(t, out, "[    OK    ] S.T (5 ms)")
	assert.True(t, bytes.Index(buf.Bytes(), []byte("[    OK    ]")) < bytes.Index(buf.Bytes(), []byte("some output")),
		"single-line mode prints the tag line before the captured output")
}

func TestOnFinish_GTestFormatOrder(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, plainColor(), false, true)

	rec := record.New(record.Identity{Suite: "S.", Name: "T"}, 0, 0)
	rec.AppendOutput([]byte("some output\n"))
	rec.SetClassification(record.Pass)

	f.OnFinish(rec)

	out := buf.String()
	assert.True(t, bytes.Index([]byte(out), []byte("some output")) < bytes.Index([]byte(out), []byte("[       OK ]")),
		"gtest-format mode prints captured output before the closing tag line")
}

func TestTruncateInventoryLine(t *testing.T) {
	short := "SystemTests.SanityCheck (elapsed time 10 ms)"
	assert.Equal(t, short, TruncateInventoryLine(short))

	long := make([]byte, InventoryLineWidth+50)
	for i := range long {
		long[i] = 'a'
	}
	truncated := TruncateInventoryLine(string(long))
	assert.LessOrEqual(t, len(truncated), InventoryLineWidth+len("…"))
}

func TestRender_FooterSections(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, plainColor(), false, false)

	footer := Footer{
		TotalTests:    3,
		TotalSuites:   1,
		TotalDisabled: 2,
		Counters:      Counters{Pass: 1, Fail: 1, Timeout: 1},
		WallClockMS:   42,
		Fail:          []SectionEntry{{Name: "S.Broken"}},
		Timeout:       []SectionEntry{{Name: "S.Wedged", Suffix: "(stopped at 90000 ms)"}},
	}
	f.Render(footer)

	out := buf.String()
	assert.Contains(t, out, "3 tests from 1 test case ran. (42 ms total)")
	assert.Contains(t, out, "S.Broken")
	assert.Contains(t, out, "S.Wedged (stopped at 90000 ms)")
	assert.Contains(t, out, "YOU HAVE 2 DISABLED TESTS")
}
