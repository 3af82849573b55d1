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

package util

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type HelperCmdError = int

const (
	ErrorSuccess     HelperCmdError = 0
	ErrorGeneric     HelperCmdError = 1
	ErrorCmdArg      HelperCmdError = 2
	ErrorKubectl     HelperCmdError = 3
	ErrorBackend     HelperCmdError = 4
	ErrorJobFailed   HelperCmdError = 5
	ErrorTimeout     HelperCmdError = 6
	ErrorInterrupted HelperCmdError = 130
)

// HelperError carries the process exit code up to RunAndHandleExit.
// An empty Message means the failure has already been reported.
type HelperError struct {
	Code    HelperCmdError
	Message string
}

func (e *HelperError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Message
}

func NewHelperErr(code HelperCmdError, msg string) *HelperError {
	return &HelperError{Code: code, Message: msg}
}

// WrapHelperErr formats err into the message, e.g. "cannot load config: %v".
func WrapHelperErr(code HelperCmdError, format string, err error) *HelperError {
	return &HelperError{Code: code, Message: fmt.Sprintf(format, err)}
}

// ExitCodeOf maps an error returned by a command to the process exit code.
func ExitCodeOf(err error) HelperCmdError {
	if err == nil {
		return ErrorSuccess
	}
	var helperErr *HelperError
	if errors.As(err, &helperErr) {
		return helperErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return ErrorInterrupted
	}
	return ErrorGeneric
}

// RunEWrapperForLeafCommand walks the command tree. Leaf commands stop
// printing usage once their arguments have been accepted, and argument
// errors raised by cobra are tagged as ErrorCmdArg.
func RunEWrapperForLeafCommand(cmd *cobra.Command) {
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return NewHelperErr(ErrorCmdArg, err.Error())
	})

	if cmd.Args != nil {
		args := cmd.Args
		cmd.Args = func(c *cobra.Command, a []string) error {
			if err := args(c, a); err != nil {
				var helperErr *HelperError
				if errors.As(err, &helperErr) {
					return err
				}
				return NewHelperErr(ErrorCmdArg, err.Error())
			}
			return nil
		}
	}

	if len(cmd.Commands()) == 0 {
		if cmd.RunE != nil {
			runE := cmd.RunE
			cmd.RunE = func(c *cobra.Command, a []string) error {
				c.SilenceUsage = true
				return runE(c, a)
			}
		}
		return
	}

	for _, sub := range cmd.Commands() {
		RunEWrapperForLeafCommand(sub)
	}
}

// RunAndHandleExit executes the root command with a context cancelled on
// SIGINT/SIGTERM and exits with the code carried by the returned error.
func RunAndHandleExit(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd.SilenceErrors = true

	err := cmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		var helperErr *HelperError
		if !errors.As(err, &helperErr) || helperErr.Message != "" {
			log.Error(err)
		}
	}
	os.Exit(ExitCodeOf(err))
}
