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
	"errors"
	"io"
	"os"

	"K8sHelper/internal/job"
	"K8sHelper/internal/kubectl"
	"K8sHelper/internal/util"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	config *util.Config
	client *kubectl.Client
	// Set instead of client when kubectl cannot be found, so that commands
	// which never call kubectl (submit --dry-run) still work.
	clientErr error

	defaultNamespace string

	stdout io.Writer = os.Stdout
	stdin  io.Reader = os.Stdin
)

func setup(cmd *cobra.Command) error {
	var err error
	config, err = util.LoadConfig(FlagConfigFilePath)
	if err != nil {
		return util.WrapHelperErr(util.ErrorCmdArg, "cannot load config: %v", err)
	}

	flags := cmd.Flags()
	if flags.Changed("kubectl") {
		config.Kubectl = FlagKubectl
	}
	if flags.Changed("kubeconfig") {
		config.Kubeconfig = FlagKubeconfig
	}
	if flags.Changed("context") {
		config.Context = FlagContext
	}
	if flags.Changed("log-level") {
		if _, err := util.ParseLogLevel(FlagLogLevel); err != nil {
			return util.NewHelperErr(util.ErrorCmdArg, err.Error())
		}
		config.LogLevel = FlagLogLevel
	}

	if err := util.InitLogger(config); err != nil {
		return util.WrapHelperErr(util.ErrorGeneric, "cannot set up logging: %v", err)
	}
	util.DetectNetworkProxy()

	runner, err := kubectl.NewExecRunner(config.Kubectl, config.Kubeconfig, config.Context)
	if err != nil {
		clientErr = err
	} else {
		client = kubectl.NewClient(runner)
	}

	defaultNamespace = resolveNamespace(flags.Changed("namespace"))
	log.Debugf("Default namespace: %s", defaultNamespace)
	return nil
}

// resolveNamespace picks --namespace, then the config file, then the
// namespace of the kubeconfig context.
func resolveNamespace(flagSet bool) string {
	if flagSet && FlagNamespace != "" {
		return FlagNamespace
	}
	if config != nil && config.Namespace != "" {
		return config.Namespace
	}
	var kubeconfig, kubeContext string
	if config != nil {
		kubeconfig, kubeContext = config.Kubeconfig, config.Context
	}
	return kubectl.CurrentNamespace(kubeconfig, kubeContext)
}

func requireClient() (*kubectl.Client, error) {
	if client == nil {
		if clientErr == nil {
			clientErr = kubectl.ErrKubectlNotFound
		}
		return nil, util.WrapHelperErr(util.ErrorKubectl, "%v", clientErr)
	}
	return client, nil
}

// exitCodeFor classifies an error coming back from kubectl or the waiter.
func exitCodeFor(err error) util.HelperCmdError {
	var helperErr *util.HelperError
	var execErr *kubectl.ExecError
	switch {
	case err == nil:
		return util.ErrorSuccess
	case errors.As(err, &helperErr):
		return helperErr.Code
	case errors.Is(err, context.Canceled):
		return util.ErrorInterrupted
	case errors.Is(err, job.ErrTimeout):
		return util.ErrorTimeout
	case errors.Is(err, job.ErrNotFound):
		return util.ErrorBackend
	case kubectl.IsRejected(err):
		return util.ErrorBackend
	case errors.Is(err, kubectl.ErrKubectlNotFound), errors.As(err, &execErr):
		return util.ErrorKubectl
	default:
		return util.ErrorGeneric
	}
}

// parseRefs turns command line arguments into job references. Any invalid
// reference fails the whole command before kubectl is called.
func parseRefs(args []string) ([]job.Ref, error) {
	refs, err := job.ParseRefs(args, defaultNamespace)
	if err != nil {
		return nil, util.NewHelperErr(util.ErrorCmdArg, err.Error())
	}
	return refs, nil
}
