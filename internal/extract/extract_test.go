package extract

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nbsp = "\u00a0"

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		sep  string
		want int64
	}{
		{"1.00" + nbsp + "GB", nbsp, 1000000000},
		{"1.40" + nbsp + "GB", nbsp, 1400000000},
		{"700.50" + nbsp + "MB", nbsp, 700500000},
		{"12.00" + nbsp + "KB", nbsp, 12000},
		{"2.00 TB", " ", 2000000000000},
		{"1.00GB", nbsp, 1000000000},
		{"1GiB", "", 1 << 30},
		{"512 B", " ", 512},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSize(tt.in, tt.sep)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1)
		})
	}
}

func TestParseSize_NonMatch(t *testing.T) {
	for _, in := range []string{"", "GB", "1.40", "size: 1.40 GB", "1.4.0GB", "abc", "12 parts", "1,5GB", "-1GB"} {
		got, ok := ParseSize(in, nbsp)
		assert.False(t, ok, "input %q", in)
		assert.Zero(t, got, "input %q", in)
	}
}

func TestParseRelativeAge(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"2 days", 48 * time.Hour},
		{"5 hrs", 5 * time.Hour},
		{"2 hours", 2 * time.Hour},
		{"3d", 72 * time.Hour},
		{"1 day, 4 hours", 28 * time.Hour},
		{"1 day and 30 mins", 24*time.Hour + 30*time.Minute},
		{"1.5 days", 36 * time.Hour},
		{"2 weeks", 14 * 24 * time.Hour},
		{"10 minutes ago", 10 * time.Minute},
		{"3600", time.Hour},
		{" 45 sec ", 45 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRelativeAge(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRelativeAge_Unrecognized(t *testing.T) {
	inputs := []string{
		"", "yesterday", "2 fortnights", "about 2 days", "2 days later", "ago",
		// Out of time.Duration range.
		"99999999999 days", "300000 weeks", "9999999999999", "10000 weeks, 10000 weeks",
	}
	for _, in := range inputs {
		_, err := ParseRelativeAge(in)
		var pe *ParseError
		require.True(t, errors.As(err, &pe), "input %q: got %v", in, err)
		assert.Equal(t, "age", pe.Field)
	}
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My.Show.S01E01.720p", "My.Show.S01E01.720p"},
		{"My.Show.S01E01.720p.nfo", "My.Show.S01E01.720p"},
		{"My.Show.S01E01.720p.par2", "My.Show.S01E01.720p"},
		{"My.Show.S01E01.720p.vol03+04.par2", "My.Show.S01E01.720p"},
		{"My.Show.S01E01.720p.zip", "My.Show.S01E01.720p"},
		{"Show.Name [1/20] yEnc (1/20)", "Show.Name"},
		{"Show.Name.nfo [01/20] - yEnc (1/1)", "Show.Name"},
		// rstrip-style character stripping would eat the trailing "n"/"z".
		{"Dragon.Bizzarre.zip", "Dragon.Bizzarre"},
		{"  padded title  ", "padded title"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTitle(tt.in))
		})
	}
}

func TestCleanTitle_Idempotent(t *testing.T) {
	inputs := []string{
		"Show.Name [1/20] yEnc (1/20)",
		"a.nfo.par2.zip",
		"Show (1/2) [3/4] yEnc (5/6).nfo",
		"plain",
		"",
	}
	for _, in := range inputs {
		once := CleanTitle(in)
		assert.Equal(t, once, CleanTitle(once), "input %q", in)
	}
}

func TestStripPartCounters(t *testing.T) {
	assert.Equal(t, "Show.Name - file.mkv", StripPartCounters("Show.Name [1/20] - file.mkv"))
	assert.Equal(t, "no counters", StripPartCounters("no counters"))
}

func TestQuotedTitle(t *testing.T) {
	got, err := QuotedTitle(`[02/15] - "My.Show.S01E01.720p.part01.rar" yEnc`)
	require.NoError(t, err)
	assert.Equal(t, "My.Show.S01E01.720p.part01.rar", got)

	_, err = QuotedTitle("no quotes here")
	assert.ErrorIs(t, err, ErrFieldNotFound)

	_, err = QuotedTitle(`empty "" quotes`)
	assert.ErrorIs(t, err, ErrFieldNotFound)
}
