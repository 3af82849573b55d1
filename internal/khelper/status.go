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
	"strings"

	"K8sHelper/internal/job"
	"K8sHelper/internal/parser"
	"K8sHelper/internal/util"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	batchv1 "k8s.io/api/batch/v1"
)

func statusExecute(cmd *cobra.Command, args []string) error {
	refs, err := parseRefs(args)
	if err != nil {
		return err
	}
	return QueryStatus(cmd.Context(), refs)
}

// QueryStatus prints one snapshot per job. Jobs that cannot be queried are
// reported and skipped; the exit code reflects the worst of them.
func QueryStatus(ctx context.Context, refs []job.Ref) error {
	c, err := requireClient()
	if err != nil {
		return err
	}

	jobs := make([]*batchv1.Job, 0, len(refs))
	var failure util.HelperCmdError
	for _, ref := range refs {
		j, err := c.GetJob(ctx, ref)
		if err != nil {
			log.Errorf("Cannot query job %s: %v", ref, err)
			if code := exitCodeFor(err); failure == util.ErrorSuccess || code == util.ErrorKubectl {
				failure = code
			}
			continue
		}
		jobs = append(jobs, j)
	}

	statuses := make([]*job.Status, 0, len(jobs))
	for _, j := range jobs {
		statuses = append(statuses, job.NewStatus(j))
	}

	switch {
	case FlagJson:
		outputJson("status", "", statuses)
	case FlagTree:
		for _, j := range jobs {
			ref := job.Ref{Namespace: j.Namespace, Name: j.Name}
			pods, err := c.ListPods(ctx, ref)
			if err != nil {
				log.Warnf("Cannot list pods of job %s: %v", ref, err)
			}
			fmt.Fprint(stdout, buildStatusTree(j, pods).String())
		}
	default:
		if len(statuses) > 0 {
			printStatusTable(statuses)
		}
	}

	if failure != util.ErrorSuccess {
		return &util.HelperError{Code: failure}
	}
	if FlagCheck {
		for _, s := range statuses {
			if s.Phase == job.PhaseFailed {
				return &util.HelperError{Code: util.ErrorJobFailed}
			}
		}
	}
	return nil
}

type listOptions struct {
	Namespace     string
	AllNamespaces bool
	// IncludeUnmanaged drops the managed-by selector.
	IncludeUnmanaged bool
	Selector         string
	Phases           phaseListValue
	Filter           *parser.Filter
}

func (o *listOptions) selector() string {
	var parts []string
	if !o.IncludeUnmanaged {
		parts = append(parts, job.ManagedSelector)
	}
	if o.Selector != "" {
		parts = append(parts, o.Selector)
	}
	return strings.Join(parts, ",")
}

func listExecute(cmd *cobra.Command, args []string) error {
	opts := listOptions{
		Namespace:        defaultNamespace,
		AllNamespaces:    FlagAllNamespaces,
		IncludeUnmanaged: FlagAll,
		Selector:         FlagSelector,
		Phases:           FlagPhases,
	}
	if FlagFilter != "" {
		filter, err := parser.ParseFilter(FlagFilter)
		if err != nil {
			return util.NewHelperErr(util.ErrorCmdArg, fmt.Sprintf("invalid --filter: %v", err))
		}
		opts.Filter = filter
	}
	return ListJobs(cmd.Context(), opts)
}

func ListJobs(ctx context.Context, opts listOptions) error {
	c, err := requireClient()
	if err != nil {
		return err
	}

	jobs, err := c.ListJobs(ctx, opts.Namespace, opts.AllNamespaces, opts.selector())
	if err != nil {
		return util.NewHelperErr(exitCodeFor(err), fmt.Sprintf("cannot list jobs: %v", err))
	}

	statuses := make([]*job.Status, 0, len(jobs))
	for i := range jobs {
		s := job.NewStatus(&jobs[i])
		if opts.Phases.Match(s.Phase) && opts.Filter.Match(s) {
			statuses = append(statuses, s)
		}
	}

	if FlagJson {
		outputJson("list", "", statuses)
		return nil
	}
	if len(statuses) == 0 {
		log.Info("No jobs found.")
		return nil
	}
	printStatusTable(statuses)
	return nil
}
