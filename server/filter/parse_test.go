package filter

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestParseDate(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)

	got, err := ParseDate("2024-01-31", ist)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, ist), got)

	got, err = ParseDate("2024-01-31T10:00:00Z", ist)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, ist, got.Location())

	_, err = ParseDate("31/01/2024", ist)
	assert.ErrorContains(t, err, "expected YYYY-MM-DD")
}

func TestUpdate_Apply(t *testing.T) {
	loc := time.UTC

	t.Run("preset", func(t *testing.T) {
		spec, err := Update{Preset: strPtr("week")}.Apply(Default(), loc)
		require.NoError(t, err)
		assert.Equal(t, Spec{Preset: PresetWeek}, spec)
	})

	t.Run("start custom range then fill dates", func(t *testing.T) {
		spec, err := Update{Custom: boolPtr(true)}.Apply(Spec{Preset: PresetYear}, loc)
		require.NoError(t, err)
		assert.True(t, spec.Custom)
		assert.Equal(t, PresetAll, spec.Preset)

		spec, err = Update{Start: strPtr("2024-01-01")}.Apply(spec, loc)
		require.NoError(t, err)
		assert.False(t, spec.RangeActive())

		spec, err = Update{End: strPtr("2024-01-31")}.Apply(spec, loc)
		require.NoError(t, err)
		assert.True(t, spec.RangeActive())
		assert.Equal(t, "2024-01-01 - 2024-01-31", spec.Label())
	})

	t.Run("preset clears range", func(t *testing.T) {
		spec, err := Update{Start: strPtr("2024-01-01"), End: strPtr("2024-01-31")}.Apply(Default(), loc)
		require.NoError(t, err)
		require.True(t, spec.RangeActive())

		spec, err = Update{Preset: strPtr("month")}.Apply(spec, loc)
		require.NoError(t, err)
		assert.Equal(t, Spec{Preset: PresetMonth}, spec)
	})

	t.Run("leaving custom mode", func(t *testing.T) {
		spec, err := Update{Start: strPtr("2024-01-01"), End: strPtr("2024-01-31")}.Apply(Default(), loc)
		require.NoError(t, err)
		spec, err = Update{Custom: boolPtr(false)}.Apply(spec, loc)
		require.NoError(t, err)
		assert.Equal(t, Default(), spec)
	})

	t.Run("clearing a bound", func(t *testing.T) {
		spec, err := Update{Start: strPtr("2024-01-01"), End: strPtr("2024-01-31")}.Apply(Default(), loc)
		require.NoError(t, err)
		spec, err = Update{End: strPtr("")}.Apply(spec, loc)
		require.NoError(t, err)
		assert.Nil(t, spec.End)
		assert.False(t, spec.RangeActive())
	})

	t.Run("same day range is valid", func(t *testing.T) {
		_, err := Update{Start: strPtr("2024-01-31"), End: strPtr("2024-01-31")}.Apply(Default(), loc)
		assert.NoError(t, err)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := Update{Preset: strPtr("decade")}.Apply(Default(), loc)
		assert.ErrorContains(t, err, "unknown preset")

		_, err = Update{Start: strPtr("not-a-date")}.Apply(Default(), loc)
		assert.ErrorContains(t, err, "invalid date")

		_, err = Update{Start: strPtr("2024-02-01"), End: strPtr("2024-01-31")}.Apply(Default(), loc)
		assert.ErrorContains(t, err, "is after end date")
	})
}

func TestParseQuery(t *testing.T) {
	loc := time.UTC

	_, ok, err := ParseQuery(url.Values{}, loc)
	require.NoError(t, err)
	assert.False(t, ok)

	spec, ok, err := ParseQuery(url.Values{"preset": {"3months"}}, loc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Spec{Preset: Preset3Months}, spec)

	spec, ok, err = ParseQuery(url.Values{"start": {"2024-01-01"}, "end": {"2024-01-31"}}, loc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, spec.RangeActive())

	_, ok, err = ParseQuery(url.Values{"preset": {"bogus"}}, loc)
	assert.True(t, ok)
	assert.Error(t, err)
}
