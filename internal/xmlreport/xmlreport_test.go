package xmlreport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/gtestisolate/internal/record"
)

func newFinishedRecord(suite, name string, classification record.Classification, startMs, endMs int64) *record.Record {
	rec := record.New(record.Identity{Suite: suite, Name: name}, 0, 0)
	rec.StartNS = startMs * int64(time.Millisecond)
	rec.EndNS = endMs * int64(time.Millisecond)
	rec.SetClassification(classification)
	return rec
}

func TestWrite_GroupsBySuiteAndExcludesXFail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.xml")

	records := []*record.Record{
		newFinishedRecord("SystemTests.", "Sanity", record.Pass, 0, 5),
		newFinishedRecord("SystemTests.", "DISABLED_flaky", record.XFail, 0, 1),
		newFinishedRecord("OtherSuite.", "Alpha", record.Fail, 0, 10),
	}

	err := Write(path, records, 15, time.Unix(0, 0))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	xml := string(data)

	assert.Contains(t, xml, `<testsuite name="SystemTests" tests="1" failures="0"`)
	assert.Contains(t, xml, `<testsuite name="OtherSuite" tests="1" failures="1"`)
	assert.NotContains(t, xml, "DISABLED_flaky", "xfail tests are excluded from the report entirely")
	assert.Contains(t, xml, `<testcase name="Sanity" status="run" time="0.005" classname="SystemTests" />`)
	assert.Contains(t, xml, `<failure message=""`)
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "&lt;a&gt; &amp; &apos;b&apos; &quot;c&quot;", escape(`<a> & 'b' "c"`))
}

func TestWrite_InvalidPathReturnsWrappedError(t *testing.T) {
	err := Write("/nonexistent-dir/report.xml", nil, 0, time.Now())
	require.Error(t, err)

	var writeErr *ErrWriteFailed
	require.ErrorAs(t, err, &writeErr)
}
