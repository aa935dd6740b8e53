package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		DebugLevel: zapcore.DebugLevel,
		InfoLevel:  zapcore.InfoLevel,
		WarnLevel:  zapcore.WarnLevel,
		ErrorLevel: zapcore.ErrorLevel,
		"verbose":  zapcore.DebugLevel,
	}
	for in, want := range tests {
		if got := toZapLevel(in); got != want {
			t.Errorf("toZapLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGetReturnsSingleton(t *testing.T) {
	a := Get(InfoLevel)
	b := GetWithFormat(ErrorLevel, FormatJSON)
	if a != b {
		t.Fatalf("expected the same logger instance")
	}
}

func TestNewIsIndependent(t *testing.T) {
	if New(InfoLevel, FormatJSON) == Get(InfoLevel) {
		t.Fatalf("New must not return the singleton")
	}
}

func TestComponentOnNil(t *testing.T) {
	var l *Logger
	l.Component("scheduler").Infow("ignored")
}
