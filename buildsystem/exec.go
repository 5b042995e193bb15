package buildsystem

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/bazbom/bazbom/bzerr"
)

// RunReadOnly invokes a build tool in read-only dependency-listing mode
// (spec §4.A: "MAY invoke the underlying build tool in a read-only mode...
// MUST NOT trigger arbitrary user code paths"). It returns ExtractorError
// wrapping bzerr.ToolMissing when the binary itself can't be found, so
// callers don't need to special-case exec.ErrNotFound.
func RunReadOnly(ctx context.Context, module, dir, tool string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		if _, lookErr := exec.LookPath(tool); lookErr != nil {
			return "", bzerr.ToolMissing(module, tool, lookErr)
		}
		return "", bzerr.ParseFailure(module, err)
	}
	return stdout.String(), nil
}
