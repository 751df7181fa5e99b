package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPrecedenceFlagsOverEnvOverFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	body := "url: ws://file:9944\nretries: 1\ncodec:\n  path: /opt/codec\nsubmit:\n  poll_interval: 5s\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONTRACT_URL", "ws://env:9944")
	t.Setenv("CONTRACT_RETRIES", "3")
	flags := GlobalFlags{ConfigPath: configPath, URL: "http://flag:9933", Retries: -1}
	settings, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.URL != "http://flag:9933" {
		t.Fatalf("expected flag to win, got url=%s", settings.URL)
	}
	if settings.Retries != 3 {
		t.Fatalf("expected retries from env, got %d", settings.Retries)
	}
	if settings.CodecPath != "/opt/codec" {
		t.Fatalf("expected codec path from file, got %s", settings.CodecPath)
	}
	if settings.PollInterval != 5*time.Second {
		t.Fatalf("expected poll interval from file, got %s", settings.PollInterval)
	}
}

func TestLoadDefaults(t *testing.T) {
	settings, err := Load(GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"), Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != OutputPlain || settings.Verbosity != VerbosityDefault {
		t.Fatalf("unexpected output defaults: %+v", settings)
	}
	if settings.URL != DefaultURL || settings.SS58Prefix != DefaultSS58Prefix {
		t.Fatalf("unexpected chain defaults: %+v", settings)
	}
	if settings.Timeout != 60*time.Second || settings.SubmitTimeout != 2*time.Minute {
		t.Fatalf("unexpected timeouts: %+v", settings)
	}
}

func TestLoadRejectsJSONWithVerbose(t *testing.T) {
	_, err := Load(GlobalFlags{OutputJSON: true, Verbose: true})
	if err == nil {
		t.Fatal("expected error with --output-json and --verbose")
	}
}

func TestLoadRejectsVerboseWithQuiet(t *testing.T) {
	_, err := Load(GlobalFlags{Verbose: true, Quiet: true})
	if err == nil {
		t.Fatal("expected error with --verbose and --quiet")
	}
}

func TestLoadRejectsUnknownOutput(t *testing.T) {
	t.Setenv("CONTRACT_OUTPUT", "yaml")
	_, err := Load(GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	if err == nil {
		t.Fatal("expected error for unknown output mode")
	}
}

func TestLoadEnableCommandsFromEnv(t *testing.T) {
	t.Setenv("CONTRACT_ENABLE_COMMANDS", "Call, instantiate --execute ,")
	settings, err := Load(GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"), Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(settings.EnableCommands) != 2 || settings.EnableCommands[0] != "call" || settings.EnableCommands[1] != "instantiate --execute" {
		t.Fatalf("unexpected allowlist: %#v", settings.EnableCommands)
	}
}
