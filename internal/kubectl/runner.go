/**
 * Copyright (c) 2025 Peking University and Peking University
 * Changsha Institute for Computing and Digital Economy
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package kubectl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
)

var ErrKubectlNotFound = errors.New("kubectl executable not found")

// Runner invokes kubectl with args. stdin may be nil. Output written to
// stderr by kubectl is returned inside an *ExecError on failure.
type Runner interface {
	Run(ctx context.Context, stdin io.Reader, stdout io.Writer, args ...string) error
}

type ExecRunner struct {
	Path       string
	Kubeconfig string
	Context    string
}

// NewExecRunner resolves binary through $PATH once so that a missing
// kubectl is reported before any work starts.
func NewExecRunner(binary, kubeconfig, kubeContext string) (*ExecRunner, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrKubectlNotFound, binary, err)
	}
	return &ExecRunner{Path: path, Kubeconfig: kubeconfig, Context: kubeContext}, nil
}

func (r *ExecRunner) globalArgs() []string {
	args := make([]string, 0, 4)
	if r.Kubeconfig != "" {
		args = append(args, "--kubeconfig", r.Kubeconfig)
	}
	if r.Context != "" {
		args = append(args, "--context", r.Context)
	}
	return args
}

func (r *ExecRunner) Run(ctx context.Context, stdin io.Reader, stdout io.Writer, args ...string) error {
	fullArgs := append(r.globalArgs(), args...)
	log.Tracef("Running %s %s", r.Path, strings.Join(fullArgs, " "))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Path, fullArgs...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	execErr := &ExecError{
		Args:     fullArgs,
		ExitCode: -1,
		Stderr:   strings.TrimSpace(stderr.String()),
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		execErr.ExitCode = exitErr.ExitCode()
	} else {
		execErr.Err = err
	}
	log.Debugf("kubectl %s failed: %v", strings.Join(fullArgs, " "), execErr)
	return execErr
}
