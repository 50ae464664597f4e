package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(os.Stdout)
	SetLevel(Warning)
	defer SetLevel(Notice)

	logger := New("test")
	logger.Info("hidden")
	logger.Warningf("visible %d", 42)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info message to be filtered; got %q", out)
	}
	if !strings.Contains(out, "visible 42") || !strings.Contains(out, "[test]") {
		t.Fatalf("expected warning message tagged with module name; got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	type spec struct {
		in     string
		expLvl Level
		expErr bool
	}

	specs := []spec{
		{"debug", Debug, false},
		{"INFO", Info, false},
		{"warn", Warning, false},
		{"critical", Critical, false},
		{"chatty", Notice, true},
	}

	for index, s := range specs {
		lvl, err := ParseLevel(s.in)
		if (err != nil) != s.expErr {
			t.Fatalf("[spec %d] expected error to be %t; got %v", index, s.expErr, err)
		}
		if lvl != s.expLvl {
			t.Fatalf("[spec %d] expected level %d; got %d", index, s.expLvl, lvl)
		}
	}
}
