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

	"K8sHelper/internal/util"

	"github.com/spf13/cobra"
)

type checkResult struct {
	Kubectl   string `json:"kubectl"`
	Version   string `json:"version"`
	Namespace string `json:"namespace"`
}

func checkExecute(cmd *cobra.Command, args []string) error {
	return CheckKubectl(cmd.Context())
}

// CheckKubectl runs kubectl once without contacting the cluster and reports
// what the other commands will use.
func CheckKubectl(ctx context.Context) error {
	c, err := requireClient()
	if err != nil {
		return err
	}

	version, err := c.ClientVersion(ctx)
	if err != nil {
		return util.NewHelperErr(exitCodeFor(err), fmt.Sprintf("kubectl does not run: %v", err))
	}

	path := c.Binary()
	if path == "" && config != nil {
		path = config.Kubectl
	}

	result := checkResult{Kubectl: path, Version: version, Namespace: defaultNamespace}
	if FlagJson {
		outputJson("check", "", result)
		return nil
	}
	fmt.Fprintf(stdout, "kubectl:   %s (%s)\n", result.Kubectl, result.Version)
	fmt.Fprintf(stdout, "namespace: %s\n", result.Namespace)
	return nil
}
