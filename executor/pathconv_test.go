package executor_test

import (
	"testing"

	"github.com/coursekit/buildqueue/executor"
)

func TestToContainerPath(t *testing.T) {
	got, err := executor.ToContainerPath("/host/source/unit1/notebook.ipynb", "/host/source", executor.SourceMount)
	if err != nil {
		t.Fatal(err)
	}
	want := "/source/unit1/notebook.ipynb"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestToContainerPathRejectsEscape(t *testing.T) {
	_, err := executor.ToContainerPath("/host/other/file", "/host/source", executor.SourceMount)
	if err == nil {
		t.Fatal("expected error for path outside root")
	}
}

func TestFromContainerPathRoundTrip(t *testing.T) {
	host := "/host/workspace/unit1/out.html"
	container, err := executor.ToContainerPath(host, "/host/workspace", executor.WorkspaceMount)
	if err != nil {
		t.Fatal(err)
	}
	back, err := executor.FromContainerPath(container, executor.WorkspaceMount, "/host/workspace")
	if err != nil {
		t.Fatal(err)
	}
	if back != host {
		t.Fatalf("got %q, want %q", back, host)
	}
}
