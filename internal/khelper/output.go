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
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"K8sHelper/internal/job"
	"K8sHelper/internal/util"

	log "github.com/sirupsen/logrus"
	"github.com/xlab/treeprint"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
)

// JsonSchema wraps every --json document printed by k8s-helper.
type JsonSchema struct {
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

func outputJson(action string, message string, data any) {
	output := JsonSchema{
		Action:  action,
		Message: message,
		Data:    data,
	}
	jsonData, err := json.Marshal(output)
	if err != nil {
		log.Errorf("Failed to encode %s output: %v", action, err)
		return
	}
	fmt.Fprintln(stdout, string(jsonData))
}

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
)

// colorPhase highlights terminal phases when stdout is a terminal.
func colorPhase(p job.Phase) string {
	f, ok := stdout.(*os.File)
	if !ok || !util.IsTerminal(f) {
		return string(p)
	}
	switch p {
	case job.PhaseSucceeded:
		return colorGreen + string(p) + colorReset
	case job.PhaseFailed:
		return colorRed + string(p) + colorReset
	default:
		return string(p)
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return util.SecondTimeFormat(int64(d / time.Second))
}

func formatStart(s *job.Status) string {
	if s.StartTime == nil {
		return "-"
	}
	return util.FormatTime(*s.StartTime, "-")
}

func printStatusTable(statuses []*job.Status) {
	header := []string{"Namespace", "Name", "Phase", "Active", "Succeeded", "Failed", "Start", "Duration", "Reason"}
	table := util.NewBorderlessTable(stdout, header)

	now := time.Now()
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		succeeded := strconv.Itoa(int(s.Succeeded))
		if s.Completions != nil {
			succeeded = fmt.Sprintf("%d/%d", s.Succeeded, *s.Completions)
		}
		reason := s.Reason
		if reason == "" {
			reason = "-"
		}
		rows = append(rows, []string{
			s.Ref.Namespace,
			s.Ref.Name,
			string(s.Phase),
			strconv.Itoa(int(s.Active)),
			succeeded,
			strconv.Itoa(int(s.Failed)),
			formatStart(s),
			formatDuration(s.Duration(now)),
			reason,
		})
	}
	util.TrimTableExcept(rows, 1)
	table.AppendBulk(rows)
	table.Render()
}

// buildStatusTree renders one job with its conditions and pods.
func buildStatusTree(j *batchv1.Job, pods []corev1.Pod) treeprint.Tree {
	s := job.NewStatus(j)
	tree := treeprint.NewWithRoot(fmt.Sprintf("job %s (%s)", s.Ref, s.Phase))

	if len(j.Status.Conditions) > 0 {
		conds := tree.AddBranch("conditions")
		for _, c := range j.Status.Conditions {
			line := fmt.Sprintf("%s=%s", c.Type, c.Status)
			if c.Reason != "" {
				line += " " + c.Reason
			}
			if c.Message != "" {
				line += ": " + c.Message
			}
			conds.AddNode(line)
		}
	}

	podsBranch := tree.AddBranch(fmt.Sprintf("pods (%d)", len(pods)))
	for _, pod := range pods {
		node := pod.Name + " " + string(pod.Status.Phase)
		if pod.Spec.NodeName != "" {
			node += " on " + pod.Spec.NodeName
		}
		podBranch := podsBranch.AddBranch(node)
		for _, cs := range pod.Status.ContainerStatuses {
			podBranch.AddNode(cs.Name + ": " + containerState(cs))
		}
	}
	return tree
}

func containerState(cs corev1.ContainerStatus) string {
	switch {
	case cs.State.Terminated != nil:
		t := cs.State.Terminated
		state := fmt.Sprintf("terminated (exit code %d)", t.ExitCode)
		if t.Reason != "" {
			state += " " + t.Reason
		}
		return state
	case cs.State.Running != nil:
		return "running"
	case cs.State.Waiting != nil:
		if cs.State.Waiting.Reason != "" {
			return "waiting " + cs.State.Waiting.Reason
		}
		return "waiting"
	default:
		return "unknown"
	}
}
