package nodeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expectErr bool
		expected  Name
	}{
		{
			name:     "simple name",
			raw:      "colorconv@v2",
			expected: New("colorconv", 2),
		},
		{
			name:     "clone",
			raw:      "invert@v1[3]",
			expected: New("invert", 1).WithClone(3),
		},
		{
			name:     "zero clone index",
			raw:      "png-sink_2@v10[0]",
			expected: New("png-sink_2", 10).WithClone(0),
		},
		{
			name:      "error - empty string",
			raw:       "",
			expectErr: true,
		},
		{
			name:      "error - missing version",
			raw:       "invert",
			expectErr: true,
		},
		{
			name:      "error - bad clone index",
			raw:       "invert@v1[x]",
			expectErr: true,
		},
		{
			name:      "error - invalid base just hyphen",
			raw:       "-@v1",
			expectErr: true,
		},
		{
			name:      "error - invalid base double dot",
			raw:       "..@v1",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := Parse(tc.raw)

			if tc.expectErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, n)
		})
	}
}
