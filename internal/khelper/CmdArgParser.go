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
	"errors"
	"time"

	"K8sHelper/internal/util"

	"github.com/spf13/cobra"
)

var (
	FlagConfigFilePath string
	FlagKubectl        string
	FlagKubeconfig     string
	FlagContext        string
	FlagNamespace      string
	FlagJson           bool
	FlagLogLevel       string

	// submit / run
	FlagSet          []string
	FlagName         string
	FlagUnique       bool
	FlagEnv          = keyValueValue{}
	FlagLabels       = keyValueValue{}
	FlagImage        string
	FlagBackoffLimit int32
	FlagDryRun       bool
	FlagWait         bool

	// wait, and submit --wait
	FlagInterval   time.Duration
	FlagTimeout    time.Duration
	FlagRetries    int
	FlagPrintLogs  bool
	FlagDeleteDone bool

	// status / list
	FlagTree          bool
	FlagCheck         bool
	FlagAll           bool
	FlagAllNamespaces bool
	FlagSelector      string
	FlagPhases        = phaseListValue{}
	FlagFilter        string

	// logs
	FlagFollow bool

	RootCmd = &cobra.Command{
		Use:     "k8s-helper",
		Short:   "Send jobs to a Kubernetes cluster and wait for them",
		Long:    "Send jobs to a Kubernetes cluster and wait for them.\nRequires a kubectl that can reach the cluster.",
		Version: util.Version(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	SubmitCmd = &cobra.Command{
		Use:   "submit [flags] MANIFEST... | --image IMAGE [-- COMMAND...]",
		Short: "Create the jobs defined in manifest files ('-' reads stdin)",
		Args:  submitArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitExecute(cmd, args, FlagWait)
		},
	}

	RunCmd = &cobra.Command{
		Use:   "run [flags] MANIFEST... | --image IMAGE [-- COMMAND...]",
		Short: "Create jobs and wait until they finish",
		Args:  submitArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitExecute(cmd, args, true)
		},
	}

	WaitCmd = &cobra.Command{
		Use:   "wait [flags] JOB...",
		Short: "Wait until jobs succeed or fail",
		Long:  "Wait until jobs succeed or fail.\nJOB is NAME or NAMESPACE/NAME.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  waitExecute,
	}

	StatusCmd = &cobra.Command{
		Use:   "status [flags] JOB...",
		Short: "Show the status of jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE:  statusExecute,
	}

	ListCmd = &cobra.Command{
		Use:     "list [flags]",
		Aliases: []string{"ls"},
		Short:   "List jobs submitted by k8s-helper",
		Args:    cobra.NoArgs,
		RunE:    listExecute,
	}

	LogsCmd = &cobra.Command{
		Use:   "logs [flags] JOB",
		Short: "Print the logs of a job",
		Args:  cobra.ExactArgs(1),
		RunE:  logsExecute,
	}

	CheckCmd = &cobra.Command{
		Use:   "check",
		Short: "Check that kubectl can be run and show the default namespace",
		Args:  cobra.NoArgs,
		RunE:  checkExecute,
	}

	DeleteCmd = &cobra.Command{
		Use:     "delete [flags] JOB...",
		Aliases: []string{"rm"},
		Short:   "Delete jobs and their pods",
		Args:    cobra.MinimumNArgs(1),
		RunE:    deleteExecute,
	}
)

func submitArgs(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("image") {
		// ArgsLenAtDash is -1 without "--".
		if dash := cmd.ArgsLenAtDash(); dash > 0 || (dash < 0 && len(args) > 0) {
			return errors.New("--image does not take manifest files, put the command after '--'")
		}
		return nil
	}
	if len(args) == 0 {
		return errors.New("at least one manifest file or --image is required")
	}
	return nil
}

func ParseCmdArgs() {
	util.RunEWrapperForLeafCommand(RootCmd)
	util.RunAndHandleExit(RootCmd)
}

func addWaitFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&FlagInterval, "interval", util.DefaultPollInterval, "Time between two status queries")
	cmd.Flags().DurationVar(&FlagTimeout, "timeout", 0, "Give up waiting after this long, 0 waits forever")
	cmd.Flags().IntVar(&FlagRetries, "retries", 3, "Retries of a status query when the cluster is unreachable")
	cmd.Flags().BoolVar(&FlagPrintLogs, "logs", false, "Print the logs of each job once it finished")
	cmd.Flags().BoolVar(&FlagDeleteDone, "delete", false, "Delete each job once it finished")
}

func addSubmitFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&FlagSet, "set", nil, "Set a field of every job, e.g. --set spec.backoffLimit=2 (repeatable)")
	cmd.Flags().StringVar(&FlagName, "name", "", "Name of the job (single job only)")
	cmd.Flags().BoolVar(&FlagUnique, "unique", false, "Append a random suffix to job names")
	cmd.Flags().VarP(&FlagEnv, "env", "e", "Set KEY=VALUE in every container (repeatable)")
	cmd.Flags().VarP(&FlagLabels, "label", "L", "Add label KEY=VALUE to every job (repeatable)")
	cmd.Flags().StringVar(&FlagImage, "image", "", "Build a single-container job from this image instead of reading a manifest")
	cmd.Flags().Int32Var(&FlagBackoffLimit, "backoff-limit", 0, "Retries of failed pods when the job does not set spec.backoffLimit")
	cmd.Flags().BoolVar(&FlagDryRun, "dry-run", false, "Print the jobs instead of creating them")
}

func init() {
	RootCmd.SetVersionTemplate(util.VersionTemplate())
	RootCmd.CompletionOptions.DisableDefaultCmd = true
	RootCmd.PersistentFlags().StringVarP(&FlagConfigFilePath, "config", "C",
		util.DefaultConfigPath, "Path to configuration file")
	RootCmd.PersistentFlags().StringVar(&FlagKubectl, "kubectl", "", "kubectl executable (default from config, then \"kubectl\")")
	RootCmd.PersistentFlags().StringVar(&FlagKubeconfig, "kubeconfig", "", "Path to the kubeconfig file passed to kubectl")
	RootCmd.PersistentFlags().StringVar(&FlagContext, "context", "", "kubeconfig context passed to kubectl")
	RootCmd.PersistentFlags().StringVarP(&FlagNamespace, "namespace", "n", "", "Namespace of the jobs (default from config, then the kubeconfig context)")
	RootCmd.PersistentFlags().BoolVar(&FlagJson, "json", false, "Output in JSON format")
	RootCmd.PersistentFlags().StringVar(&FlagLogLevel, "log-level", "", "Log level: trace, debug, info, warn, error")

	RootCmd.AddCommand(SubmitCmd)
	{
		addSubmitFlags(SubmitCmd)
		addWaitFlags(SubmitCmd)
		SubmitCmd.Flags().BoolVarP(&FlagWait, "wait", "w", false, "Wait until the jobs finish")
	}
	RootCmd.AddCommand(RunCmd)
	{
		addSubmitFlags(RunCmd)
		addWaitFlags(RunCmd)
	}
	RootCmd.AddCommand(WaitCmd)
	{
		addWaitFlags(WaitCmd)
	}
	RootCmd.AddCommand(StatusCmd)
	{
		StatusCmd.Flags().BoolVar(&FlagTree, "tree", false, "Show conditions and pods of each job")
		StatusCmd.Flags().BoolVar(&FlagCheck, "check", false, "Exit non-zero when a job failed")
	}
	RootCmd.AddCommand(ListCmd)
	{
		ListCmd.Flags().BoolVarP(&FlagAll, "all", "a", false, "Include jobs not submitted by k8s-helper")
		ListCmd.Flags().BoolVarP(&FlagAllNamespaces, "all-namespaces", "A", false, "List jobs of every namespace")
		ListCmd.Flags().StringVarP(&FlagSelector, "selector", "l", "", "Label selector, e.g. app=etl")
		ListCmd.Flags().Var(&FlagPhases, "phase", "Only list jobs in these phases (comma separated): "+phaseNames())
		ListCmd.Flags().StringVar(&FlagFilter, "filter", "",
			"Only list jobs matching every condition, e.g. 'phase=Failed namespace!=test label.team=data'")
	}
	RootCmd.AddCommand(LogsCmd)
	{
		LogsCmd.Flags().BoolVarP(&FlagFollow, "follow", "f", false, "Stream the logs")
	}
	RootCmd.AddCommand(DeleteCmd)
	RootCmd.AddCommand(CheckCmd)
}
