package logger

import "testing"

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{level: "", wantErr: false},
		{level: "debug", wantErr: false},
		{level: " WARN ", wantErr: false},
		{level: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
			if err == nil && l == nil {
				t.Fatal("expected logger")
			}
		})
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
}
