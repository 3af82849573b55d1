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
	"io"
	"os"
	"sync"
	"time"

	"K8sHelper/internal/job"
	"K8sHelper/internal/kubectl"
	"K8sHelper/internal/util"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type waitOptions struct {
	Interval time.Duration
	// Zero waits forever.
	Timeout time.Duration
	Retries int
	Logs    bool
	Delete  bool
}

type waitResult struct {
	Job     job.Ref     `json:"job"`
	Status  *job.Status `json:"status,omitempty"`
	Error   string      `json:"error,omitempty"`
	Deleted bool        `json:"deleted,omitempty"`
}

// Exit codes of a multi-job wait, most severe first. A known failure beats a
// timeout since it is the more definite answer.
var waitExitPriority = []util.HelperCmdError{
	util.ErrorInterrupted,
	util.ErrorKubectl,
	util.ErrorBackend,
	util.ErrorJobFailed,
	util.ErrorTimeout,
	util.ErrorGeneric,
	util.ErrorCmdArg,
}

// waitOptionsFromFlags uses the config file for every wait flag that was not
// given explicitly.
func waitOptionsFromFlags(cmd *cobra.Command) (*waitOptions, error) {
	opts := &waitOptions{
		Interval: FlagInterval,
		Timeout:  FlagTimeout,
		Retries:  FlagRetries,
		Logs:     FlagPrintLogs,
		Delete:   FlagDeleteDone,
	}
	if config != nil {
		if !cmd.Flags().Changed("interval") {
			opts.Interval = config.PollInterval
		}
		if !cmd.Flags().Changed("timeout") {
			opts.Timeout = config.WaitTimeout
		}
		if !cmd.Flags().Changed("retries") {
			opts.Retries = config.Retries
		}
	}

	if opts.Interval < util.MinPollInterval {
		return nil, util.NewHelperErr(util.ErrorCmdArg,
			fmt.Sprintf("poll interval must be at least %v", util.MinPollInterval))
	}
	if opts.Timeout < 0 {
		return nil, util.NewHelperErr(util.ErrorCmdArg, "--timeout must not be negative")
	}
	if opts.Retries < 0 {
		return nil, util.NewHelperErr(util.ErrorCmdArg, "--retries must not be negative")
	}
	return opts, nil
}

func waitExecute(cmd *cobra.Command, args []string) error {
	refs, err := parseRefs(args)
	if err != nil {
		return err
	}
	opts, err := waitOptionsFromFlags(cmd)
	if err != nil {
		return err
	}
	return WaitJobs(cmd.Context(), refs, *opts)
}

// phasePrinter serialises progress lines written by concurrent pollers.
type phasePrinter struct {
	mu sync.Mutex
}

func (p *phasePrinter) OnChange(s *job.Status) {
	log.Infof("Job %s is %s", s.Ref, s.Phase)
	if FlagJson {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(stdout, "Job %s: %s\n", s.Ref, colorPhase(s.Phase))
}

// WaitJobs waits for every ref, then runs the --logs and --delete steps for
// the jobs that finished and maps the outcome to an exit code.
func WaitJobs(ctx context.Context, refs []job.Ref, opts waitOptions) error {
	c, err := requireClient()
	if err != nil {
		return err
	}

	printer := &phasePrinter{}
	waiter := &job.Waiter{
		Getter:   c,
		Interval: opts.Interval,
		Timeout:  opts.Timeout,
		Retries:  opts.Retries,
		OnChange: printer.OnChange,
	}
	results := waiter.WaitAll(ctx, refs)

	output := make([]waitResult, 0, len(results))
	codes := make(map[util.HelperCmdError]bool)
	for _, r := range results {
		out := waitResult{Job: r.Ref, Status: r.Status}

		if r.Err != nil {
			out.Error = r.Err.Error()
			codes[exitCodeFor(r.Err)] = true
			log.Errorf("Waiting for job %s failed: %v", r.Ref, r.Err)
			output = append(output, out)
			continue
		}

		if r.Status.Phase == job.PhaseFailed {
			codes[util.ErrorJobFailed] = true
		}
		if !FlagJson {
			printOutcome(r.Status)
		}
		if opts.Logs {
			printJobLogs(ctx, c, r.Ref)
		}
		if opts.Delete {
			if err := c.Delete(ctx, r.Ref); err != nil {
				log.Errorf("Failed to delete job %s: %v", r.Ref, err)
				codes[exitCodeFor(err)] = true
			} else {
				out.Deleted = true
				log.Infof("Deleted job %s", r.Ref)
			}
		}
		output = append(output, out)
	}

	if FlagJson {
		outputJson("wait", "", output)
	}

	for _, code := range waitExitPriority {
		if codes[code] {
			// Every failure has already been reported above.
			return &util.HelperError{Code: code}
		}
	}
	return nil
}

func printOutcome(s *job.Status) {
	switch s.Phase {
	case job.PhaseSucceeded:
		fmt.Fprintf(stdout, "Job %s succeeded after %s.\n", s.Ref, formatDuration(s.Duration(time.Now())))
	case job.PhaseFailed:
		detail := s.Reason
		if detail == "" {
			detail = "no reason given"
		}
		if s.Message != "" {
			detail += ": " + s.Message
		}
		fmt.Fprintf(stdout, "Job %s failed: %s\n", s.Ref, detail)
	}
}

// printJobLogs goes to stderr under --json so stdout stays one document.
func printJobLogs(ctx context.Context, c *kubectl.Client, ref job.Ref) {
	var w io.Writer = stdout
	if FlagJson {
		w = os.Stderr
	}
	fmt.Fprintf(w, "==> logs of job %s <==\n", ref)
	if err := c.Logs(ctx, ref, false, w); err != nil {
		log.Warnf("Cannot fetch logs of job %s: %v", ref, err)
	}
}
