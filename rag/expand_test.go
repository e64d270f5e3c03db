package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandQuery(t *testing.T) {
	tests := []struct {
		name     string
		question string
		k        int
		want     []string
	}{
		{
			name:     "default three variants",
			question: "vector indexing",
			k:        3,
			want: []string{
				"vector indexing",
				"Explain vector indexing",
				"What does vector indexing mean?",
			},
		},
		{
			name:     "identity only",
			question: "q",
			k:        1,
			want:     []string{"q"},
		},
		{
			name:     "k capped at template count",
			question: "overlap",
			k:        10,
			want: []string{
				"overlap",
				"Explain overlap",
				"What does overlap mean?",
				"Definition of overlap",
			},
		},
		{
			name:     "non-positive k falls back to identity",
			question: "x",
			k:        0,
			want:     []string{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandQuery(tt.question, tt.k))
		})
	}
}

func TestExpandQueryDeterministic(t *testing.T) {
	a := ExpandQuery("same question", 3)
	b := ExpandQuery("same question", 3)
	assert.Equal(t, a, b)
}
