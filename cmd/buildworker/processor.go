package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/coursekit/buildqueue/executor"
	"github.com/coursekit/buildqueue/job"
	"github.com/coursekit/buildqueue/runtime"
)

// commandProcessor renders one job by shelling out to an external
// converter binary, passing the job's resolved input and output paths
// as its last two arguments. The actual rendering logic (notebook
// execution, PlantUML/Draw.io diagram generation) lives entirely in
// that external binary — this process only owns dispatch, retries, and
// store bookkeeping.
//
// j.InputFile/j.OutputFile are always host-absolute paths. Under the
// direct executor there is no mount boundary, so they are used as-is.
// Under the container executor (BUILDQUEUE_MOUNT=container), they must
// be rewritten onto this container's own mount points first.
type commandProcessor struct {
	binary      string
	sourceRoot  string
	workRoot    string
	inContainer bool
}

func newCommandProcessor(binary string) *commandProcessor {
	return &commandProcessor{
		binary:      binary,
		sourceRoot:  os.Getenv("HOST_DATA_DIR"),
		workRoot:    os.Getenv("HOST_WORKSPACE"),
		inContainer: os.Getenv("BUILDQUEUE_MOUNT") == "container",
	}
}

func (p *commandProcessor) resolvePaths(j *job.Job) (in, out string, err error) {
	if !p.inContainer {
		return j.InputFile, j.OutputFile, nil
	}
	in, err = executor.ToContainerPath(j.InputFile, p.sourceRoot, executor.SourceMount)
	if err != nil {
		return "", "", fmt.Errorf("resolve input path: %w", err)
	}
	out, err = executor.ToContainerPath(j.OutputFile, p.workRoot, executor.WorkspaceMount)
	if err != nil {
		return "", "", fmt.Errorf("resolve output path: %w", err)
	}
	return in, out, nil
}

func (p *commandProcessor) Process(ctx context.Context, j *job.Job) (*runtime.Result, error) {
	in, out, err := p.resolvePaths(j)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.binary, err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, fmt.Errorf("%s: create output dir: %w", p.binary, err)
	}

	cmd := exec.CommandContext(ctx, p.binary, in, out)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", p.binary, err, stderr.String())
	}

	return &runtime.Result{Metadata: map[string]any{"renderer": p.binary}}, nil
}

func processorFor(t job.Type) (runtime.Processor, error) {
	switch t {
	case job.Notebook:
		return newCommandProcessor("buildqueue-render-notebook"), nil
	case job.PlantUML:
		return newCommandProcessor("buildqueue-render-plantuml"), nil
	case job.Drawio:
		return newCommandProcessor("buildqueue-render-drawio"), nil
	default:
		return nil, fmt.Errorf("buildworker: no processor for job type %q", t)
	}
}
