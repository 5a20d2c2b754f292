package pagination

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/techfy/storefront-api/internal/domain"
)

func TestParseDefaults(t *testing.T) {
	got, err := Parse(url.Values{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.PageQuery{Page: 1, Limit: DefaultLimit}, got)
}

func TestParseBounds(t *testing.T) {
	cases := []struct {
		name    string
		values  url.Values
		want    domain.PageQuery
		wantErr string
	}{
		{name: "explicit", values: url.Values{"page": {"3"}, "limit": {"25"}}, want: domain.PageQuery{Page: 3, Limit: 25}},
		{name: "max limit", values: url.Values{"limit": {"50"}}, want: domain.PageQuery{Page: 1, Limit: 50}},
		{name: "limit too large", values: url.Values{"limit": {"51"}}, wantErr: "limit"},
		{name: "limit zero", values: url.Values{"limit": {"0"}}, wantErr: "limit"},
		{name: "page zero", values: url.Values{"page": {"0"}}, wantErr: "page"},
		{name: "page not a number", values: url.Values{"page": {"two"}}, wantErr: "page"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.values, Options{})
			if tc.wantErr != "" {
				var fieldErr *FieldError
				require.ErrorAs(t, err, &fieldErr)
				assert.Equal(t, tc.wantErr, fieldErr.Field)
				assert.ErrorIs(t, err, ErrInvalidPage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseClampsDefaultToMax(t *testing.T) {
	got, err := Parse(nil, Options{DefaultLimit: 80, MaxLimit: 20})
	require.NoError(t, err)
	assert.Equal(t, 20, got.Limit, "default is clamped to the max")
}
