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
	"path"
	"strings"

	"K8sHelper/internal/util"

	"github.com/distribution/reference"
	"github.com/google/uuid"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	ManagedByLabel = "k8s-helper/managed-by"
	ManagedByValue = "k8s-helper"
	RunIDLabel     = "k8s-helper/run-id"

	uniqueSuffixLength = 8
	defaultContainer   = "main"
)

// ManagedSelector selects every job submitted through this tool.
var ManagedSelector = ManagedByLabel + "=" + ManagedByValue

// Overrides are applied to every job of a submission after --set paths.
type Overrides struct {
	// Namespace replaces whatever the manifest says.
	Namespace string
	// DefaultNamespace is used when neither Namespace nor the manifest has one.
	DefaultNamespace string
	Name             string
	Unique           bool
	Env              map[string]string
	Labels           map[string]string
	RunID            string
	BackoffLimit     *int32
}

func NewRunID() string {
	return uuid.NewString()
}

func uniqueSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:uniqueSuffixLength]
}

// WithUniqueSuffix appends "-xxxxxxxx", shortening name so the result stays
// a valid job name.
func WithUniqueSuffix(name string) string {
	maxBase := MaxNameLength - uniqueSuffixLength - 1
	if len(name) > maxBase {
		name = strings.TrimRight(name[:maxBase], "-.")
	}
	return name + "-" + uniqueSuffix()
}

func (o *Overrides) Apply(job *batchv1.Job) error {
	switch {
	case o.Namespace != "":
		job.Namespace = o.Namespace
	case job.Namespace == "":
		job.Namespace = o.DefaultNamespace
	}

	if o.Name != "" {
		job.Name = o.Name
		job.GenerateName = ""
	}
	if o.Unique && job.Name != "" {
		job.Name = WithUniqueSuffix(job.Name)
	}

	podSpec := &job.Spec.Template.Spec
	if podSpec.RestartPolicy == "" {
		podSpec.RestartPolicy = corev1.RestartPolicyNever
	}
	if job.Spec.BackoffLimit == nil && o.BackoffLimit != nil {
		limit := *o.BackoffLimit
		job.Spec.BackoffLimit = &limit
	}

	if len(o.Env) > 0 {
		for i := range podSpec.Containers {
			setEnv(&podSpec.Containers[i], o.Env)
		}
	}

	labels := job.GetLabels()
	if labels == nil {
		labels = make(map[string]string)
	}
	for k, v := range o.Labels {
		labels[k] = v
	}
	labels[ManagedByLabel] = ManagedByValue
	if o.RunID != "" {
		labels[RunIDLabel] = o.RunID
	}
	job.SetLabels(labels)

	return Validate(job)
}

// setEnv replaces variables of the same name and appends the rest in key
// order so that the rendered manifest is stable.
func setEnv(c *corev1.Container, env map[string]string) {
	applied := make(map[string]bool, len(env))
	for i, v := range c.Env {
		if val, ok := env[v.Name]; ok {
			c.Env[i] = corev1.EnvVar{Name: v.Name, Value: val}
			applied[v.Name] = true
		}
	}

	for _, k := range util.SortedKeys(env) {
		if !applied[k] {
			c.Env = append(c.Env, corev1.EnvVar{Name: k, Value: env[k]})
		}
	}
}

// NewFromImage builds a single-container job for `submit --image`. The
// image reference is checked locally so that a typo fails before kubectl.
func NewFromImage(name, image string, command []string, backoffLimit int32) (*batchv1.Job, error) {
	if image == "" {
		return nil, fmt.Errorf("an image is required")
	}
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return nil, fmt.Errorf("invalid image '%s': %w", image, err)
	}

	limit := backoffLimit
	job := &batchv1.Job{
		TypeMeta: metav1.TypeMeta{APIVersion: APIVersion, Kind: Kind},
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &limit,
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{{
						Name:    defaultContainer,
						Image:   image,
						Command: command,
					}},
				},
			},
		},
	}
	if name == "" {
		job.GenerateName = imageBaseName(named) + "-"
	}
	return job, nil
}

// imageBaseName turns "registry:5000/org/py_tool:1.2" into "py-tool".
func imageBaseName(named reference.Named) string {
	base := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '-'
	}, path.Base(reference.Path(named)))
	base = strings.Trim(base, "-")
	if base == "" {
		base = "job"
	}
	if len(base) > maxGenerateNameLength-1 {
		base = strings.TrimRight(base[:maxGenerateNameLength-1], "-")
	}
	return base
}
