package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		patterns []string
		want     Tag
		wantErr  error
	}{
		{
			name: "full tag ref",
			ref:  "refs/tags/v1.14.2",
			want: Tag{Ref: "refs/tags/v1.14.2", Name: "v1.14.2", Version: "1.14.2"},
		},
		{
			name: "short tag name",
			ref:  "v2.0.0",
			want: Tag{Ref: "v2.0.0", Name: "v2.0.0", Version: "2.0.0"},
		},
		{
			name: "prerelease",
			ref:  "refs/tags/v1.3.0-rc.1",
			want: Tag{Ref: "refs/tags/v1.3.0-rc.1", Name: "v1.3.0-rc.1", Version: "1.3.0-rc.1", Prerelease: true},
		},
		{
			name:    "branch ref",
			ref:     "refs/heads/main",
			wantErr: ErrNotReleaseTag,
		},
		{
			name:    "tag without v",
			ref:     "refs/tags/1.2.3",
			wantErr: ErrNotReleaseTag,
		},
		{
			name:    "empty",
			ref:     "",
			wantErr: ErrNotReleaseTag,
		},
		{
			name:    "not a version",
			ref:     "refs/tags/vnext",
			wantErr: ErrInvalidVersion,
		},
		{
			name:     "custom pattern",
			ref:      "release-1.0.0",
			patterns: []string{"release-*"},
			wantErr:  ErrInvalidVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTag(tt.ref, tt.patterns...)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTag_Newer(t *testing.T) {
	tag, err := ParseTag("v1.10.0")
	require.NoError(t, err)

	assert.True(t, tag.Newer("1.9.3"))
	assert.True(t, tag.Newer("v1.9.3"))
	assert.False(t, tag.Newer("1.10.0"))
	assert.False(t, tag.Newer("v2.0.0"))
	assert.True(t, tag.Newer("garbage"))
}
