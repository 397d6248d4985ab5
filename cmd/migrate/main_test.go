package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
)

type fakeMigrator struct {
	upErr      error
	steps      []int
	forced     int
	version    uint
	dirty      bool
	versionErr error
}

func (f *fakeMigrator) Up() error { return f.upErr }

func (f *fakeMigrator) Steps(n int) error {
	f.steps = append(f.steps, n)
	return nil
}

func (f *fakeMigrator) Force(version int) error {
	f.forced = version
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }

func TestRunUpDefaultIgnoresNoChange(t *testing.T) {
	var out bytes.Buffer
	if err := run(&fakeMigrator{upErr: migrate.ErrNoChange}, nil, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "migrations complete\n" {
		t.Fatalf("unexpected output %q", out.String())
	}

	if err := run(&fakeMigrator{upErr: errors.New("syntax error")}, []string{"up"}, &out); err == nil {
		t.Fatalf("expected up failure to surface")
	}
}

func TestRunDownSteps(t *testing.T) {
	m := &fakeMigrator{}
	var out bytes.Buffer
	if err := run(m, []string{"down"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := run(m, []string{"down", "2"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.steps) != 2 || m.steps[0] != -1 || m.steps[1] != -2 {
		t.Fatalf("unexpected steps %v", m.steps)
	}
	if err := run(m, []string{"down", "zero"}, &out); err == nil {
		t.Fatalf("expected invalid step count error")
	}
}

func TestRunVersionAndForce(t *testing.T) {
	var out bytes.Buffer
	if err := run(&fakeMigrator{version: 1}, []string{"version"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "version 1 (dirty=false)\n" {
		t.Fatalf("unexpected output %q", out.String())
	}

	out.Reset()
	if err := run(&fakeMigrator{versionErr: migrate.ErrNilVersion}, []string{"version"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "no migrations applied\n" {
		t.Fatalf("unexpected output %q", out.String())
	}

	m := &fakeMigrator{}
	if err := run(m, []string{"force", "1"}, &out); err != nil || m.forced != 1 {
		t.Fatalf("expected force to version 1, got %d (%v)", m.forced, err)
	}
	if err := run(m, []string{"force"}, &out); err == nil {
		t.Fatalf("expected missing version error")
	}
	if err := run(m, []string{"sideways"}, &out); err == nil {
		t.Fatalf("expected unknown command error")
	}
}
