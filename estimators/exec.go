package estimators

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/RyanBlaney/sonido-canto/logging"
)

// runner executes an external command and returns its stdout
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// execRunner runs the command with os/exec, folding stderr into the error
func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	logging.Debug("Running external command", logging.Fields{
		"command": name + " " + strings.Join(args, " "),
	})

	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
