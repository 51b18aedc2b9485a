package ingest

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "datetime,machineID,volt,rotate,pressure,vibration,model,age,failure,errorID,comp"

func TestParse_SkipsHeaderAndShortRows(t *testing.T) {
	data := strings.Join([]string{
		header,
		"2015-01-01 06:00:00,1,176.21,418.50,113.07,45.08,model3,18,0,,",
		"2015-01-01 07:00:00,1,162.87",
	}, "\n")

	history, stats, err := Parse(strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, 1, history.Len())
	assert.Equal(t, 1, history.SampleCount())
	assert.Equal(t, 2, stats.Rows)
	assert.Equal(t, 1, stats.Skipped)

	s := history.Samples("1")[0]
	assert.Equal(t, "1", s.MachineID)
	assert.InDelta(t, 176.21, s.Voltage, 1e-9)
	assert.InDelta(t, 418.50, s.RotationSpeed, 1e-9)
	assert.InDelta(t, 113.07, s.Pressure, 1e-9)
	assert.InDelta(t, 45.08, s.Vibration, 1e-9)
	assert.Equal(t, "model3", s.ModelVariant)
	assert.Equal(t, time.Date(2015, 1, 1, 6, 0, 0, 0, time.UTC), s.Timestamp)
}

func TestParse_MalformedNumbersBecomeNaN(t *testing.T) {
	data := header + "\n2015-01-01 06:00:00,7,abc,418.5,,45,model1,3,0,,\n"

	history, stats, err := Parse(strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 1, history.SampleCount())

	s := history.Samples("7")[0]
	assert.True(t, math.IsNaN(s.Voltage))
	assert.True(t, math.IsNaN(s.Pressure))
	assert.InDelta(t, 418.5, s.RotationSpeed, 1e-9)
	assert.Equal(t, 2, stats.NaNFields)
}

func TestParse_KeepsRowsWithUnparsableTimestamp(t *testing.T) {
	data := header + "\nyesterday,7,1,2,3,4,model1,3,0,,\n"

	history, stats, err := Parse(strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 1, history.SampleCount())

	s := history.Samples("7")[0]
	assert.True(t, s.Timestamp.IsZero())
	assert.Equal(t, "yesterday", s.RawTimestamp)
	assert.Equal(t, 1, stats.BadTimes)
}

func TestGroup_PreservesFirstSeenOrder(t *testing.T) {
	records := [][]string{
		{"2015-01-01 06:00:00", "3", "1", "1", "1", "1", "m", "1", "0", "", ""},
		{"2015-01-01 06:00:00", "1", "1", "1", "1", "1", "m", "1", "0", "", ""},
		{"2015-01-01 07:00:00", "3", "1", "1", "1", "1", "m", "1", "0", "", ""},
		{"2015-01-01 06:00:00", "2", "1", "1", "1", "1", "m", "1", "0", "", ""},
	}

	history, _ := Group(records, false)

	assert.Equal(t, []string{"3", "1", "2"}, history.Machines())
	assert.Len(t, history.Samples("3"), 2)
}

func TestParse_BlankLinesIgnored(t *testing.T) {
	data := header + "\n\n2015-01-01 06:00:00,1,1,1,1,1,m,1,0,,\n\n"

	history, _, err := Parse(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1, history.SampleCount())
}

func TestParse_StrayQuoteAffectsOnlyItsRow(t *testing.T) {
	data := strings.Join([]string{
		header,
		`2015-01-01 06:00:00,1,"176.2,418.5,113.1,45.1,model3,18,0,,`,
		"2015-01-01 06:00:00,2,160.0,420.0,95.5,38.0,model4,7,0,,",
		`2015-01-01 06:00:00,3,150.0,400.0,"90.1,35.0,model1,2,0,,`,
		"2015-01-01 06:00:00,4,171.0,451.0,101.0,41.0,model2,3,0,,",
		"2015-01-01 07:00:00,2,161.0,421.0,96.5,39.0,model4,7,0,,",
	}, "\n")

	history, stats, err := Parse(strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3", "4"}, history.Machines())
	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 2, stats.NaNFields)

	assert.True(t, math.IsNaN(history.Samples("1")[0].Voltage))
	assert.InDelta(t, 418.5, history.Samples("1")[0].RotationSpeed, 1e-9)
	assert.Len(t, history.Samples("2"), 2)
	assert.True(t, math.IsNaN(history.Samples("3")[0].Pressure))
	assert.InDelta(t, 101.0, history.Samples("4")[0].Pressure, 1e-9)
}

func TestReadRecords_CRLFAndSpaces(t *testing.T) {
	records, err := ReadRecords(strings.NewReader("a, b ,c\r\n\r\nd,e"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d", "e"}}, records)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestReadRecords_UnreadableSource(t *testing.T) {
	_, err := ReadRecords(failingReader{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnreadable)
}

func TestParseTimestamp_Layouts(t *testing.T) {
	for _, v := range []string{
		"2015-01-01T06:00:00Z",
		"2015-01-01 06:00:00",
		"2015-01-01T06:00:00",
		"1/1/2015 6:00",
	} {
		ts, ok := ParseTimestamp(v)
		assert.True(t, ok, v)
		assert.Equal(t, 2015, ts.Year(), v)
	}
}
