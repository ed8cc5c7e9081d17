package cliconfig

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestLogger_Level(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{"loud", zerolog.NoLevel, true},
	}
	for _, tt := range tests {
		l, err := Logger(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Logger(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && l.GetLevel() != tt.want {
			t.Errorf("Logger(%q) level = %v, want %v", tt.in, l.GetLevel(), tt.want)
		}
	}
}
