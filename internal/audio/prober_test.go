package audio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    float64
		wantErr bool
	}{
		{name: "обычный вывод", output: "3.520000\n", want: 3.52},
		{name: "ноль", output: "0.000000", want: 0},
		{name: "пустой вывод", output: "\n", wantErr: true},
		{name: "N/A", output: "N/A\n", wantErr: true},
		{name: "мусор", output: "duration", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.output)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestProber_MissingBinary(t *testing.T) {
	prober := NewProber("/nonexistent/ffprobe", zap.NewNop())

	_, err := prober.Duration(context.Background(), "voice.wav")
	assert.Error(t, err)
}
