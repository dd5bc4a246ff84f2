package store

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "ноль", limit: 0, want: DefaultListLimit},
		{name: "отрицательный", limit: -5, want: DefaultListLimit},
		{name: "в пределах", limit: 50, want: 50},
		{name: "больше максимума", limit: 10000, want: MaxListLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampLimit(tt.limit))
		})
	}
}

func TestTruncateError(t *testing.T) {
	short := "ошибка API (статус 500)"
	assert.Equal(t, short, truncateError(short))

	long := strings.Repeat("ж", MaxErrorLength+10)
	got := truncateError(long)
	assert.Equal(t, MaxErrorLength, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}
