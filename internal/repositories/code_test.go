package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextNoteCode(t *testing.T) {
	tests := []struct {
		name string
		last string
		want string
	}{
		{name: "increments padded code", last: "NE-0041", want: "NE-0042"},
		{name: "first code", last: "NE-0000", want: "NE-0001"},
		{name: "grows past four digits", last: "NE-9999", want: "NE-10000"},
		{name: "keeps counting past four digits", last: "NE-10000", want: "NE-10001"},
		{name: "falls back on garbage", last: "DN-0007", want: "NE-0001"},
		{name: "falls back on missing sequence", last: "NE-", want: "NE-0001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, nextNoteCode(tt.last))
		})
	}
}
