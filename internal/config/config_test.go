package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func loadWithArgs(t *testing.T, args ...string) *Config {
	t.Helper()

	cfg, err := loadWithArgsErr(t, args...)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cfg
}

func loadWithArgsErr(t *testing.T, args ...string) (*Config, error) {
	t.Helper()

	if len(args) == 0 {
		args = []string{"test"}
	}

	oldCommandLine := flag.CommandLine
	oldArgs := os.Args

	flag.CommandLine = flag.NewFlagSet(args[0], flag.ContinueOnError)
	flag.CommandLine.SetOutput(io.Discard)
	os.Args = args

	t.Cleanup(func() {
		flag.CommandLine = oldCommandLine
		os.Args = oldArgs
	})

	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RADAR_CONFIG", "")
	cfg := loadWithArgs(t, "test")

	if cfg.Pipeline.SimilarityThreshold != 0.85 {
		t.Errorf("SimilarityThreshold = %v, want 0.85", cfg.Pipeline.SimilarityThreshold)
	}
	if cfg.Pipeline.EscalationThreshold != 0.7 {
		t.Errorf("EscalationThreshold = %v, want 0.7", cfg.Pipeline.EscalationThreshold)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("Cache.TTL = %v, want 30m", cfg.Cache.TTL)
	}
	if cfg.Pipeline.MaxConcurrentCalls != 5 {
		t.Errorf("MaxConcurrentCalls = %d, want 5", cfg.Pipeline.MaxConcurrentCalls)
	}
	if cfg.Pipeline.LearningRate != 0.1 {
		t.Errorf("LearningRate = %v, want 0.1", cfg.Pipeline.LearningRate)
	}
	if !cfg.Pipeline.EnableDeepResearch {
		t.Error("EnableDeepResearch should default to true")
	}
	if cfg.Pipeline.InitialWindow != 24*time.Hour {
		t.Errorf("InitialWindow = %v, want 24h", cfg.Pipeline.InitialWindow)
	}
	if cfg.Pipeline.ResearchMaxSources != 20 {
		t.Errorf("ResearchMaxSources = %d, want 20", cfg.Pipeline.ResearchMaxSources)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("CACHE_TTL_MINUTES", "10")
	t.Setenv("MAX_CONCURRENT_EXTERNAL_CALLS", "8")
	t.Setenv("ENABLE_DEEP_RESEARCH", "false")
	t.Setenv("REPUTABLE_SOURCES", "Reuters, AP ,")
	t.Setenv("JUDGE_TIMEOUT", "10s")
	t.Setenv("AUTH_JWT_SECRET", "s3cret")

	cfg := loadWithArgs(t, "test")

	if cfg.Pipeline.SimilarityThreshold != 0.9 {
		t.Errorf("SimilarityThreshold = %v, want 0.9", cfg.Pipeline.SimilarityThreshold)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("Cache.TTL = %v, want 10m", cfg.Cache.TTL)
	}
	if cfg.Pipeline.MaxConcurrentCalls != 8 {
		t.Errorf("MaxConcurrentCalls = %d, want 8", cfg.Pipeline.MaxConcurrentCalls)
	}
	if cfg.Pipeline.EnableDeepResearch {
		t.Error("EnableDeepResearch should be false")
	}
	if got := cfg.Pipeline.ReputableSources; len(got) != 2 || got[0] != "reuters" || got[1] != "ap" {
		t.Errorf("ReputableSources = %v", got)
	}
	if cfg.Pipeline.JudgeTimeout != 10*time.Second {
		t.Errorf("JudgeTimeout = %v", cfg.Pipeline.JudgeTimeout)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("JWTSecret = %q", cfg.Auth.JWTSecret)
	}
}

func TestLoad_Flags(t *testing.T) {
	cfg := loadWithArgs(t, "test", "-mcp", "-top-k", "10", "-disable-research", "-escalation-threshold", "0.8")

	if !cfg.Server.MCPMode {
		t.Error("MCPMode should be true")
	}
	if cfg.Pipeline.TopK != 10 {
		t.Errorf("TopK = %d, want 10", cfg.Pipeline.TopK)
	}
	if cfg.Pipeline.EnableDeepResearch {
		t.Error("EnableDeepResearch should be false with -disable-research")
	}
	if cfg.Pipeline.EscalationThreshold != 0.8 {
		t.Errorf("EscalationThreshold = %v, want 0.8", cfg.Pipeline.EscalationThreshold)
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radar.yaml")
	data := `
pipeline:
  similarity_threshold: 0.8
  judge_timeout: 20s
  reputable_sources: [reuters, nikkei]
sources:
  full_text_min_chars: 280
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := loadWithArgs(t, "test", "-config", path)

	if cfg.Pipeline.SimilarityThreshold != 0.8 {
		t.Errorf("SimilarityThreshold = %v, want 0.8", cfg.Pipeline.SimilarityThreshold)
	}
	if cfg.Pipeline.JudgeTimeout != 20*time.Second {
		t.Errorf("JudgeTimeout = %v, want 20s", cfg.Pipeline.JudgeTimeout)
	}
	if cfg.Pipeline.EscalationThreshold != 0.7 {
		t.Errorf("EscalationThreshold = %v, fields absent from the file must keep their value", cfg.Pipeline.EscalationThreshold)
	}
	if len(cfg.Pipeline.ReputableSources) != 2 || cfg.Pipeline.ReputableSources[1] != "nikkei" {
		t.Errorf("ReputableSources = %v", cfg.Pipeline.ReputableSources)
	}
	if cfg.Sources.FullTextMinChars != 280 {
		t.Errorf("FullTextMinChars = %d, want 280", cfg.Sources.FullTextMinChars)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "1.5")
	if _, err := loadWithArgsErr(t, "test"); err == nil {
		t.Fatal("Load() expected validation error")
	}
}

func TestLoad_ZeroEscalationThresholdRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radar.yaml")
	if err := os.WriteFile(path, []byte("pipeline:\n  hotness_escalation_threshold: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadWithArgsErr(t, "test", "-config", path); err == nil {
		t.Fatal("Load() accepted an escalation threshold of 0")
	}

	t.Setenv("HOTNESS_ESCALATION_THRESHOLD", "0")
	if _, err := loadWithArgsErr(t, "test"); err == nil {
		t.Fatal("Load() accepted HOTNESS_ESCALATION_THRESHOLD=0")
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	if _, err := loadWithArgsErr(t, "test", "-config", filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() expected error for missing config file")
	}
}
