package sourceutil_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendloom/harvester/internal/adapter/source/sourceutil"
	"github.com/trendloom/harvester/internal/domain"
)

func TestParseEngagementCount(t *testing.T) {
	cases := map[string]int64{
		"5.2K":   5200,
		"1.2M":   1_200_000,
		"3.4B":   3_400_000_000,
		"1,234":  1234,
		"42":     42,
		"0":      0,
	}
	for in, want := range cases {
		got, err := sourceutil.ParseEngagementCount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseEngagementCount_Invalid(t *testing.T) {
	_, err := sourceutil.ParseEngagementCount("")
	assert.Error(t, err)
	_, err = sourceutil.ParseEngagementCount("abc")
	assert.Error(t, err)
}

type fakePage struct {
	bySelector map[string][]string
}

func (p fakePage) QueryAll(_ context.Context, selector string) ([]string, error) {
	if v, ok := p.bySelector[selector]; ok {
		return v, nil
	}
	return nil, nil
}

func TestSelectFirstMatch_FallsThroughToSecondSelector(t *testing.T) {
	page := fakePage{bySelector: map[string][]string{".b": {"hit"}}}
	got, err := sourceutil.SelectFirstMatch(context.Background(), page, []string{".a", ".b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"hit"}, got)
}

func TestSelectFirstMatch_AllExhaustedReturnsScrapeError(t *testing.T) {
	page := fakePage{}
	_, err := sourceutil.SelectFirstMatch(context.Background(), page, []string{".a", ".b"})
	assert.True(t, errors.Is(err, domain.ErrScrape))
}

func TestSelectFirstMatchText_FalseWhenExhausted(t *testing.T) {
	page := fakePage{}
	text, ok := sourceutil.SelectFirstMatchText(context.Background(), page, []string{".a"})
	assert.False(t, ok)
	assert.Equal(t, "", text)
}

func TestNormalizeHashtag(t *testing.T) {
	assert.Equal(t, "foo", sourceutil.NormalizeHashtag("#Foo"))
	assert.Equal(t, "bar", sourceutil.NormalizeHashtag("  Bar  "))
}
