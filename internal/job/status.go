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

package job

import (
	"fmt"
	"strings"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
)

type Phase string

const (
	PhasePending   Phase = "Pending"
	PhaseRunning   Phase = "Running"
	PhaseSuspended Phase = "Suspended"
	PhaseSucceeded Phase = "Succeeded"
	PhaseFailed    Phase = "Failed"
	PhaseUnknown   Phase = "Unknown"
)

var AllPhases = []Phase{PhasePending, PhaseRunning, PhaseSuspended, PhaseSucceeded, PhaseFailed}

func (p Phase) IsTerminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// ParsePhase is case-insensitive.
func ParsePhase(s string) (Phase, error) {
	for _, p := range AllPhases {
		if strings.EqualFold(string(p), s) {
			return p, nil
		}
	}
	return PhaseUnknown, fmt.Errorf("unknown job phase '%s'", s)
}

// Status is a snapshot of a job as reported by the cluster.
type Status struct {
	Ref            Ref        `json:"job"`
	Phase          Phase      `json:"phase"`
	Active         int32      `json:"active"`
	Succeeded      int32      `json:"succeeded"`
	Failed         int32      `json:"failed"`
	Completions    *int32     `json:"completions,omitempty"`
	StartTime      *time.Time `json:"startTime,omitempty"`
	CompletionTime *time.Time `json:"completionTime,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	Message        string     `json:"message,omitempty"`

	Labels map[string]string `json:"labels,omitempty"`
}

func findCondition(job *batchv1.Job, condType batchv1.JobConditionType) *batchv1.JobCondition {
	for i := range job.Status.Conditions {
		c := &job.Status.Conditions[i]
		if c.Type == condType && c.Status == corev1.ConditionTrue {
			return c
		}
	}
	return nil
}

// PhaseOf derives the phase of a job. Failed wins over Complete because the
// controller never sets both unless the job was failed after the fact.
// FailureTarget and SuccessCriteriaMet are not terminal on their own: the
// controller follows up with Failed or Complete once the pods are gone.
func PhaseOf(job *batchv1.Job) (Phase, *batchv1.JobCondition) {
	if c := findCondition(job, batchv1.JobFailed); c != nil {
		return PhaseFailed, c
	}
	if c := findCondition(job, batchv1.JobComplete); c != nil {
		return PhaseSucceeded, c
	}
	if c := findCondition(job, batchv1.JobSuspended); c != nil {
		return PhaseSuspended, c
	}
	if job.Status.Active > 0 {
		return PhaseRunning, nil
	}
	return PhasePending, nil
}

func NewStatus(job *batchv1.Job) *Status {
	phase, cond := PhaseOf(job)
	s := &Status{
		Ref:         Ref{Namespace: job.Namespace, Name: job.Name},
		Phase:       phase,
		Active:      job.Status.Active,
		Succeeded:   job.Status.Succeeded,
		Failed:      job.Status.Failed,
		Completions: job.Spec.Completions,
		Labels:      job.Labels,
	}
	if cond != nil {
		s.Reason = cond.Reason
		s.Message = cond.Message
	}
	if job.Status.StartTime != nil {
		t := job.Status.StartTime.Time
		s.StartTime = &t
	}
	if job.Status.CompletionTime != nil {
		t := job.Status.CompletionTime.Time
		s.CompletionTime = &t
	} else if phase == PhaseFailed && cond != nil {
		// Failed jobs carry no completionTime.
		t := cond.LastTransitionTime.Time
		s.CompletionTime = &t
	}
	return s
}

// Duration is the run time so far, or the total run time once finished.
func (s *Status) Duration(now time.Time) time.Duration {
	if s.StartTime == nil {
		return 0
	}
	end := now
	if s.CompletionTime != nil {
		end = *s.CompletionTime
	}
	if end.Before(*s.StartTime) {
		return 0
	}
	return end.Sub(*s.StartTime)
}
