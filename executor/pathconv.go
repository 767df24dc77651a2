package executor

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Container mount points for the source tree, the workspace, and the
// shared store file inside every worker container. Path conversion
// always targets these; a container worker receives the host roots in
// HOST_DATA_DIR and HOST_WORKSPACE to convert job paths against them.
const (
	SourceMount    = "/source"
	WorkspaceMount = "/workspace"
	StoreMount     = "/data/queue.db"
)

// ToContainerPath rewrites a host-absolute path rooted under hostRoot
// into the equivalent path under containerRoot. It refuses any path
// that is not actually inside hostRoot, since allowing one through
// would let a job escape its declared mount.
func ToContainerPath(hostPath, hostRoot, containerRoot string) (string, error) {
	rel, err := filepath.Rel(hostRoot, hostPath)
	if err != nil {
		return "", fmt.Errorf("executor: %q is not relative to %q: %w", hostPath, hostRoot, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("executor: %q escapes root %q", hostPath, hostRoot)
	}
	return filepath.ToSlash(filepath.Join(containerRoot, rel)), nil
}

// FromContainerPath is the inverse of ToContainerPath: it rewrites a
// path observed inside the container (for example, one round-tripped
// through a job's OutputFile by a processor that only knows its own
// mount namespace) back onto the host.
func FromContainerPath(containerPath, containerRoot, hostRoot string) (string, error) {
	rel, err := filepath.Rel(containerRoot, containerPath)
	if err != nil {
		return "", fmt.Errorf("executor: %q is not relative to %q: %w", containerPath, containerRoot, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("executor: %q escapes root %q", containerPath, containerRoot)
	}
	return filepath.Join(hostRoot, rel), nil
}
