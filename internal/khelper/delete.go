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

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func deleteExecute(cmd *cobra.Command, args []string) error {
	refs, err := parseRefs(args)
	if err != nil {
		return err
	}
	return DeleteJobs(cmd.Context(), refs)
}

// DeleteJobs tries every ref even after a failure.
func DeleteJobs(ctx context.Context, refs []job.Ref) error {
	c, err := requireClient()
	if err != nil {
		return err
	}

	deleted := make([]job.Ref, 0, len(refs))
	var failure util.HelperCmdError
	for _, ref := range refs {
		if err := c.Delete(ctx, ref); err != nil {
			log.Errorf("Failed to delete job %s: %v", ref, err)
			if code := exitCodeFor(err); failure == util.ErrorSuccess || code == util.ErrorKubectl {
				failure = code
			}
			continue
		}
		deleted = append(deleted, ref)
		if !FlagJson {
			fmt.Fprintf(stdout, "Job %s deleted.\n", ref)
		}
	}

	if FlagJson {
		outputJson("delete", "", deleted)
	}
	if failure != util.ErrorSuccess {
		return &util.HelperError{Code: failure}
	}
	return nil
}
