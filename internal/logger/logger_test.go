package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("debug", &buf)
	if log.GetLevel() != zerolog.DebugLevel {
		t.Errorf("level = %v, want debug", log.GetLevel())
	}

	log.Info().Msg("hello from the pipeline")
	if !strings.Contains(buf.String(), "hello from the pipeline") {
		t.Errorf("message not written: %q", buf.String())
	}
}

func TestNewWithWriterBadLevelFallsBack(t *testing.T) {
	log := NewWithWriter("verbose", &bytes.Buffer{})
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info fallback", log.GetLevel())
	}
}
