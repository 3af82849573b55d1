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
	"encoding/json"
	"fmt"
	"strings"

	"K8sHelper/internal/job"
	"K8sHelper/internal/util"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	batchv1 "k8s.io/api/batch/v1"
)

type submitOptions struct {
	Sources []string
	Sets    []string

	Image   string
	Command []string
	// ImageBackoffLimit is used by --image unless --backoff-limit is given.
	ImageBackoffLimit int32

	Overrides job.Overrides
	DryRun    bool
	// Nil means do not wait.
	Wait *waitOptions
}

func submitExecute(cmd *cobra.Command, args []string, wait bool) error {
	opts := submitOptions{
		Sets:   FlagSet,
		DryRun: FlagDryRun,
		Overrides: job.Overrides{
			DefaultNamespace: defaultNamespace,
			Name:             FlagName,
			Unique:           FlagUnique,
			Env:              FlagEnv.Map(),
			Labels:           FlagLabels.Map(),
			RunID:            job.NewRunID(),
		},
	}
	if cmd.Flags().Changed("namespace") {
		opts.Overrides.Namespace = FlagNamespace
	}

	if config != nil {
		opts.ImageBackoffLimit = config.BackoffLimit
	}
	// Manifests without spec.backoffLimit keep the cluster default unless
	// the flag asks otherwise.
	if cmd.Flags().Changed("backoff-limit") {
		if FlagBackoffLimit < 0 {
			return util.NewHelperErr(util.ErrorCmdArg, "--backoff-limit must not be negative")
		}
		backoffLimit := FlagBackoffLimit
		opts.Overrides.BackoffLimit = &backoffLimit
	}

	if cmd.Flags().Changed("image") {
		opts.Image = FlagImage
		opts.Command = args
	} else {
		opts.Sources = args
	}

	if wait {
		w, err := waitOptionsFromFlags(cmd)
		if err != nil {
			return err
		}
		opts.Wait = w
	}

	return SubmitJobs(cmd.Context(), opts)
}

// buildJobs loads, edits and validates every job of the submission. Nothing
// is sent to the cluster unless all of them are valid.
func buildJobs(opts *submitOptions) ([]*batchv1.Job, error) {
	var jobs []*batchv1.Job

	if opts.Image != "" {
		if len(opts.Sets) > 0 {
			return nil, util.NewHelperErr(util.ErrorCmdArg, "--set cannot be used with --image")
		}
		backoffLimit := opts.ImageBackoffLimit
		if opts.Overrides.BackoffLimit != nil {
			backoffLimit = *opts.Overrides.BackoffLimit
		}
		j, err := job.NewFromImage(opts.Overrides.Name, opts.Image, opts.Command, backoffLimit)
		if err != nil {
			return nil, util.NewHelperErr(util.ErrorCmdArg, err.Error())
		}
		jobs = append(jobs, j)
	} else {
		docs, err := loadDocuments(opts.Sources)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			for _, set := range opts.Sets {
				path, value, found := strings.Cut(set, "=")
				if !found || path == "" {
					return nil, util.NewHelperErr(util.ErrorCmdArg,
						fmt.Sprintf("invalid --set '%s': expected PATH=VALUE", set))
				}
				if err := doc.Set(path, value); err != nil {
					return nil, util.NewHelperErr(util.ErrorCmdArg, err.Error())
				}
			}
			j, err := doc.Decode()
			if err != nil {
				return nil, util.NewHelperErr(util.ErrorCmdArg, err.Error())
			}
			jobs = append(jobs, j)
		}
	}

	if opts.Overrides.Name != "" && len(jobs) > 1 {
		return nil, util.NewHelperErr(util.ErrorCmdArg,
			fmt.Sprintf("--name needs exactly one job, the manifests define %d", len(jobs)))
	}

	for _, j := range jobs {
		if err := opts.Overrides.Apply(j); err != nil {
			return nil, util.NewHelperErr(util.ErrorCmdArg, err.Error())
		}
	}
	return jobs, nil
}

func loadDocuments(sources []string) ([]*job.Document, error) {
	var docs []*job.Document
	stdinUsed := false
	for _, source := range sources {
		if source == "-" {
			if stdinUsed {
				return nil, util.NewHelperErr(util.ErrorCmdArg, "stdin ('-') can only be read once")
			}
			stdinUsed = true
		}
		d, err := job.LoadManifest(source, stdin)
		if err != nil {
			return nil, util.WrapHelperErr(util.ErrorCmdArg, "cannot load manifest: %v", err)
		}
		docs = append(docs, d...)
	}
	return docs, nil
}

// SubmitJobs creates the jobs one by one. The first failure stops the
// submission; jobs created before it are reported and left running.
func SubmitJobs(ctx context.Context, opts submitOptions) error {
	jobs, err := buildJobs(&opts)
	if err != nil {
		return err
	}

	if opts.DryRun {
		return printDryRun(jobs)
	}

	c, err := requireClient()
	if err != nil {
		return err
	}

	refs := make([]job.Ref, 0, len(jobs))
	for _, j := range jobs {
		manifest, err := job.Encode(j)
		if err != nil {
			return util.WrapHelperErr(util.ErrorGeneric, "cannot encode job: %v", err)
		}

		ref, err := c.Create(ctx, manifest)
		if err != nil {
			if len(refs) > 0 {
				log.Warnf("%d job(s) were created before the failure", len(refs))
			}
			name := j.Name
			if name == "" {
				name = j.GenerateName + "*"
			}
			return util.NewHelperErr(exitCodeFor(err),
				fmt.Sprintf("failed to create job %s/%s: %v", j.Namespace, name, err))
		}
		log.Infof("Created job %s", ref)
		if !FlagJson {
			fmt.Fprintf(stdout, "Job %s created.\n", ref)
		}
		refs = append(refs, ref)
	}

	if opts.Wait == nil {
		if FlagJson {
			outputJson("submit", "", refs)
		}
		return nil
	}
	return WaitJobs(ctx, refs, *opts.Wait)
}

func printDryRun(jobs []*batchv1.Job) error {
	if FlagJson {
		manifests := make([]json.RawMessage, 0, len(jobs))
		for _, j := range jobs {
			out, err := job.Encode(j)
			if err != nil {
				return util.WrapHelperErr(util.ErrorGeneric, "cannot encode job: %v", err)
			}
			manifests = append(manifests, out)
		}
		outputJson("submit", "dry run", manifests)
		return nil
	}
	for i, j := range jobs {
		out, err := job.EncodeYAML(j)
		if err != nil {
			return util.WrapHelperErr(util.ErrorGeneric, "cannot encode job: %v", err)
		}
		if i > 0 {
			fmt.Fprintln(stdout, "---")
		}
		fmt.Fprint(stdout, string(out))
	}
	return nil
}
