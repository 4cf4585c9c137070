package main

import (
	"os"
	"testing"

	"github.com/renovatio/renovatio/internal/config"
	"github.com/renovatio/renovatio/internal/providers/uupd"
)

func TestExportProviderSettings(t *testing.T) {
	t.Setenv(uupd.PolicyEnv, "")

	if err := exportProviderSettings(&config.Config{NormalizerPolicy: "interpolate"}); err != nil {
		t.Fatalf("exportProviderSettings: %v", err)
	}
	if got := os.Getenv(uupd.PolicyEnv); got != "interpolate" {
		t.Fatalf("expected policy in environment, got %q", got)
	}
}

func TestExportProviderSettingsReportsSetenvFailure(t *testing.T) {
	t.Setenv(uupd.PolicyEnv, "")

	if err := exportProviderSettings(&config.Config{NormalizerPolicy: "hold\x00"}); err == nil {
		t.Fatal("expected an error for a value the environment cannot hold")
	}
}
