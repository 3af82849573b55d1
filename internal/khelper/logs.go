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

package khelper

import (
	"context"
	"fmt"

	"K8sHelper/internal/job"
	"K8sHelper/internal/util"

	"github.com/spf13/cobra"
)

func logsExecute(cmd *cobra.Command, args []string) error {
	refs, err := parseRefs(args)
	if err != nil {
		return err
	}
	return PrintLogs(cmd.Context(), refs[0], FlagFollow)
}

// PrintLogs streams the logs of every pod of the job to stdout.
func PrintLogs(ctx context.Context, ref job.Ref, follow bool) error {
	c, err := requireClient()
	if err != nil {
		return err
	}
	if err := c.Logs(ctx, ref, follow, stdout); err != nil {
		return util.NewHelperErr(exitCodeFor(err), fmt.Sprintf("cannot get logs of job %s: %v", ref, err))
	}
	return nil
}
