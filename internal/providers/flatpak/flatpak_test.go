package flatpak

import (
	"context"
	"testing"

	"github.com/renovatio/renovatio/internal/execute"
	"github.com/renovatio/renovatio/internal/providers"
)

func TestUpdateBothInstallations(t *testing.T) {
	f := execute.NewFake().
		On("flatpak update --user -y --noninteractive", execute.Result{Stdout: "Updating org.gnome.Calculator"}).
		On("flatpak update --system -y --noninteractive", execute.Result{Stdout: "Nothing to do."})
	c := &providers.Collector{}

	if !New(f, nil).Update(context.Background(), c) {
		t.Fatal("expected success")
	}
	if calls := f.Calls(); len(calls) != 2 {
		t.Fatalf("expected user and system updates, got %v", calls)
	}
	if last := c.Last(); last.Percent != 100 || last.Message != "Finished!" {
		t.Fatalf("unexpected last record %+v", last)
	}
}

func TestUpdateUpToDate(t *testing.T) {
	f := execute.NewFake().
		On("flatpak update --user -y --noninteractive", execute.Result{Stdout: "Nothing to do."}).
		On("flatpak update --system -y --noninteractive", execute.Result{Stdout: "Nothing to do."})
	c := &providers.Collector{}

	New(f, nil).Update(context.Background(), c)
	if c.Last().Message != "Flatpaks are up to date." {
		t.Fatalf("unexpected message %q", c.Last().Message)
	}
}

func TestUserFailureStillUpdatesSystem(t *testing.T) {
	f := execute.NewFake().
		On("flatpak update --user -y --noninteractive", execute.Result{ExitCode: 1, Stderr: "error: remote not found"}).
		On("flatpak update --system -y --noninteractive", execute.Result{Stdout: "Nothing to do."})
	c := &providers.Collector{}

	if New(f, nil).Update(context.Background(), c) {
		t.Fatal("expected failure")
	}
	if len(f.Calls()) != 2 {
		t.Fatal("system installation must still be updated")
	}
	if last := c.Last(); !last.Failed || last.Message != "Failed to update user flatpaks" {
		t.Fatalf("unexpected last record %+v", last)
	}
}
