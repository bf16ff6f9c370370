package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/fieldbook/pkg/core"
)

func TestParseFields(t *testing.T) {
	tests := []struct {
		name  string
		pairs []string
		raw   string
		want  core.Fields
	}{
		{
			name:  "Strings And JSON Values",
			pairs: []string{"name=Ama", "age=7", "tags=[\"a\",\"b\"]", "verified=true"},
			want:  core.Fields{"name": "Ama", "age": float64(7), "tags": []any{"a", "b"}, "verified": true},
		},
		{
			name:  "Empty Value",
			pairs: []string{"nickname="},
			want:  core.Fields{"nickname": ""},
		},
		{
			name:  "Value With Equals",
			pairs: []string{"note=a=b"},
			want:  core.Fields{"note": "a=b"},
		},
		{
			name:  "Pairs Override JSON",
			pairs: []string{"age=8"},
			raw:   `{"name": "Kofi", "age": 7}`,
			want:  core.Fields{"name": "Kofi", "age": float64(8)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFields(tt.pairs, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFields_Errors(t *testing.T) {
	_, err := parseFields([]string{"novalue"}, "")
	assert.Error(t, err)

	_, err = parseFields([]string{"=x"}, "")
	assert.Error(t, err)

	_, err = parseFields(nil, "{not json")
	assert.Error(t, err)
}
