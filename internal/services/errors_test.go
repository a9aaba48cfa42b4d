package services_test

import (
	"errors"
	"strings"
	"testing"

	"foundry/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrSubmit, "skybox", "create", "request rejected", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrSubmit) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"skybox", "create", "request rejected"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestFatalClassification(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"parse", services.Wrap(services.ErrParse, "catalog", "open", "missing", nil), true},
		{"checkpoint", services.Wrap(services.ErrCheckpoint, "checkpoint", "load", "corrupt", nil), true},
		{"configuration", services.Wrap(services.ErrConfiguration, "config", "validate", "bad", nil), true},
		{"submit", services.Wrap(services.ErrSubmit, "skybox", "create", "quota", nil), false},
		{"poll", services.Wrap(services.ErrPoll, "skybox", "status", "network", nil), false},
		{"write", services.Wrap(services.ErrWrite, "artifacts", "write", "disk full", nil), false},
		{"timeout", services.Wrap(services.ErrTimeout, "runner", "wait", "budget exceeded", nil), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := services.Fatal(tc.err); got != tc.fatal {
			t.Fatalf("%s: Fatal = %v, want %v", tc.name, got, tc.fatal)
		}
	}
}

func TestFailureReason(t *testing.T) {
	if reason := services.FailureReason(nil); reason != "" {
		t.Fatalf("expected empty reason for nil error, got %q", reason)
	}
	timeoutErr := services.Wrap(services.ErrTimeout, "runner", "wait", "budget exceeded", nil)
	if reason := services.FailureReason(timeoutErr); reason != "timeout" {
		t.Fatalf("expected timeout reason, got %q", reason)
	}
	submitErr := services.Wrap(services.ErrSubmit, "skybox", "create", "quota", nil)
	if reason := services.FailureReason(submitErr); !strings.Contains(reason, "quota") {
		t.Fatalf("expected reason to carry detail, got %q", reason)
	}
}
