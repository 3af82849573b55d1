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
	"errors"
	"fmt"
	"strings"
)

// ExecError is a kubectl invocation that did not exit 0.
type ExecError struct {
	Args     []string
	ExitCode int
	Stderr   string
	// Err is set when kubectl could not be started at all.
	Err error
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("kubectl %s: %v", strings.Join(e.Args, " "), e.Err)
	}
	if e.Stderr == "" {
		return fmt.Sprintf("kubectl exited with code %d", e.ExitCode)
	}
	return e.Stderr
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

var transientMessages = []string{
	"connection refused",
	"connection reset by peer",
	"i/o timeout",
	"TLS handshake timeout",
	"Unable to connect to the server",
	"ServiceUnavailable",
	"the server is currently unable to handle the request",
	"etcdserver: request timed out",
	"http2: client connection lost",
	"net/http: request canceled",
	"Client.Timeout exceeded",
}

// Transient reports failures of the connection to the API server rather
// than of the request itself.
func (e *ExecError) Transient() bool {
	if e.Err != nil {
		return false
	}
	for _, msg := range transientMessages {
		if strings.Contains(e.Stderr, msg) {
			return true
		}
	}
	return false
}

// NotFound matches kubectl's `Error from server (NotFound): ...`.
func (e *ExecError) NotFound() bool {
	return strings.Contains(e.Stderr, "(NotFound)")
}

func IsNotFound(err error) bool {
	var execErr *ExecError
	return errors.As(err, &execErr) && execErr.NotFound()
}

var rejectedMessages = []string{
	"Error from server",
	" is invalid: ",
	"error validating",
}

// IsRejected reports errors the API server returned for the request itself,
// such as validation failures, conflicts or missing permissions.
func IsRejected(err error) bool {
	var execErr *ExecError
	if !errors.As(err, &execErr) || execErr.Transient() {
		return false
	}
	for _, msg := range rejectedMessages {
		if strings.Contains(execErr.Stderr, msg) {
			return true
		}
	}
	return false
}
