package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tiiuae/quickscan/internal/mission"
)

func TestSetup_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quickscan.log")
	closer, err := Setup(Config{Level: "debug", Format: "json", File: path})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() {
		Setup(Config{})
	})

	log.WithField("component", "test").Debug("hello from the test")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"hello from the test"`) || !strings.Contains(string(b), `"component":"test"`) {
		t.Errorf("unexpected log file contents: %s", b)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Errorf("level = %s, want debug", log.GetLevel())
	}
}

func TestSetup_Invalid(t *testing.T) {
	t.Cleanup(func() { Setup(Config{}) })
	for _, cfg := range []Config{{Level: "loud"}, {Format: "xml"}} {
		if _, err := Setup(cfg); !errors.Is(err, mission.ErrConfiguration) {
			t.Errorf("Setup(%+v): expected configuration error, got %v", cfg, err)
		}
	}
}
