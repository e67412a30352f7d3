package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/rockiesmagicnumber/file-reorganizer/internal"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringP("source", "s", "", "")
	flags.StringP("output", "o", "", "")
	flags.String("mode", "copy", "")
	flags.Bool("exclude-duplicates", false, "")
	flags.String("log-level", "info", "")
	flags.Bool("no-history", false, "")
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Paths.RootName != internal.DefaultRootName {
		t.Errorf("RootName = %s", cfg.Paths.RootName)
	}
	if strings.HasPrefix(cfg.Paths.Output, "~") {
		t.Errorf("Output should be expanded, got %s", cfg.Paths.Output)
	}
	if cfg.Archive.MaxDepth != internal.DefaultMaxZipDepth || cfg.Archive.MaxUncompressedBytes != internal.DefaultMaxUncompressedBytes {
		t.Errorf("Unexpected archive defaults: %+v", cfg.Archive)
	}
	if cfg.Organize.Mode != "copy" || cfg.Organize.WorkingCopy != "auto" || !cfg.Organize.SniffContent {
		t.Errorf("Unexpected organize defaults: %+v", cfg.Organize)
	}
	if !cfg.History.Enabled || cfg.Index.Digest != "sha256" || cfg.Performance.Workers != 1 {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
paths:
  output: /data/out
  root_name: Library
archive:
  max_depth: 3
organize:
  mode: move
  exclude_duplicates: true
performance:
  workers: 4
logging:
  level: debug
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Paths.Output != "/data/out" || cfg.Paths.RootName != "Library" {
		t.Errorf("Unexpected paths: %+v", cfg.Paths)
	}
	if cfg.Archive.MaxDepth != 3 || cfg.Organize.Mode != "move" || !cfg.Organize.ExcludeDuplicates {
		t.Errorf("Unexpected values: %+v %+v", cfg.Archive, cfg.Organize)
	}
	if cfg.Performance.Workers != 4 || cfg.Logging.Level != "debug" {
		t.Errorf("Unexpected values: %+v %+v", cfg.Performance, cfg.Logging)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("REORGANIZER_LOGGING_LEVEL", "warn")
	t.Setenv("REORGANIZER_ARCHIVE_MAX_DEPTH", "2")

	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Env should override file, got %s", cfg.Logging.Level)
	}
	if cfg.Archive.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2", cfg.Archive.MaxDepth)
	}
}

func TestLoad_Flags(t *testing.T) {
	flags := testFlags()
	if err := flags.Parse([]string{"-s", "/photos", "--mode", "move", "--exclude-duplicates", "--no-history"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(writeConfig(t, "organize:\n  mode: copy\nlogging:\n  level: error\n"), flags)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Paths.Source != "/photos" {
		t.Errorf("Source = %s", cfg.Paths.Source)
	}
	if cfg.Organize.Mode != "move" || !cfg.Organize.ExcludeDuplicates {
		t.Errorf("Flags should override file: %+v", cfg.Organize)
	}
	// 未显式设置的参数不覆盖配置文件
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %s, want error", cfg.Logging.Level)
	}
	if cfg.History.Enabled {
		t.Error("--no-history should disable history")
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		substr string
	}{
		{"bad mode", func(c *Config) { c.Organize.Mode = "delete" }, "操作模式"},
		{"bad working copy", func(c *Config) { c.Organize.WorkingCopy = "sometimes" }, "工作副本"},
		{"zero depth", func(c *Config) { c.Archive.MaxDepth = 0 }, "max_depth"},
		{"negative size", func(c *Config) { c.Archive.MaxUncompressedBytes = -1 }, "max_uncompressed_bytes"},
		{"zero workers", func(c *Config) { c.Performance.Workers = 0 }, "workers"},
		{"other digest", func(c *Config) { c.Index.Digest = "md5" }, "摘要算法"},
		{"root with slash", func(c *Config) { c.Paths.RootName = "a/b" }, "root_name"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, ""), nil)
			if err != nil {
				t.Fatal(err)
			}
			tc.modify(cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.substr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tc.substr)
			}
		})
	}
}
