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

package kubectl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"K8sHelper/internal/job"

	"github.com/tidwall/gjson"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
)

// Client maps job operations onto kubectl command lines.
type Client struct {
	Runner Runner
}

func NewClient(runner Runner) *Client {
	return &Client{Runner: runner}
}

// Binary is the resolved kubectl path, or "" when the runner does not
// execute a binary.
func (c *Client) Binary() string {
	if r, ok := c.Runner.(*ExecRunner); ok {
		return r.Path
	}
	return ""
}

func (c *Client) output(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error) {
	var stdout bytes.Buffer
	if err := c.Runner.Run(ctx, stdin, &stdout, args...); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

// ClientVersion checks that kubectl runs at all, without contacting the
// cluster.
func (c *Client) ClientVersion(ctx context.Context) (string, error) {
	out, err := c.output(ctx, nil, "version", "--client", "-o", "json")
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(out, "clientVersion.gitVersion").String(), nil
}

// Create submits one job manifest and returns the reference the API server
// assigned, which differs from the manifest when generateName is used.
func (c *Client) Create(ctx context.Context, manifest []byte) (job.Ref, error) {
	out, err := c.output(ctx, bytes.NewReader(manifest), "create", "-f", "-", "-o", "json")
	if err != nil {
		return job.Ref{}, err
	}

	meta := gjson.GetManyBytes(out, "metadata.namespace", "metadata.name")
	ref := job.Ref{Namespace: meta[0].String(), Name: meta[1].String()}
	if ref.Name == "" {
		return job.Ref{}, fmt.Errorf("kubectl create returned no object name")
	}
	return ref, nil
}

func (c *Client) GetJob(ctx context.Context, ref job.Ref) (*batchv1.Job, error) {
	out, err := c.output(ctx, nil, "get", "job", ref.Name, "-n", ref.Namespace, "-o", "json")
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", job.ErrNotFound, ref)
		}
		return nil, err
	}

	j := new(batchv1.Job)
	if err := json.Unmarshal(out, j); err != nil {
		return nil, fmt.Errorf("cannot decode job %s: %w", ref, err)
	}
	return j, nil
}

// ListJobs lists jobs in namespace, or in every namespace when
// allNamespaces is set. An empty selector matches everything.
func (c *Client) ListJobs(ctx context.Context, namespace string, allNamespaces bool, selector string) ([]batchv1.Job, error) {
	args := []string{"get", "jobs", "-o", "json"}
	if allNamespaces {
		args = append(args, "--all-namespaces")
	} else {
		args = append(args, "-n", namespace)
	}
	if selector != "" {
		args = append(args, "-l", selector)
	}

	out, err := c.output(ctx, nil, args...)
	if err != nil {
		return nil, err
	}

	var list batchv1.JobList
	if err := json.Unmarshal(out, &list); err != nil {
		return nil, fmt.Errorf("cannot decode job list: %w", err)
	}
	return list.Items, nil
}

// ListPods returns the pods the job controller created for ref.
func (c *Client) ListPods(ctx context.Context, ref job.Ref) ([]corev1.Pod, error) {
	out, err := c.output(ctx, nil, "get", "pods", "-n", ref.Namespace,
		"-l", batchv1.JobNameLabel+"="+ref.Name, "-o", "json")
	if err != nil {
		return nil, err
	}

	var list corev1.PodList
	if err := json.Unmarshal(out, &list); err != nil {
		return nil, fmt.Errorf("cannot decode pod list of %s: %w", ref, err)
	}
	return list.Items, nil
}

// Logs copies the logs of every container of every pod of the job to w.
// Pods are selected by label so that retried and parallel pods are included.
func (c *Client) Logs(ctx context.Context, ref job.Ref, follow bool, w io.Writer) error {
	args := []string{"logs", "-n", ref.Namespace,
		"-l", batchv1.JobNameLabel + "=" + ref.Name,
		"--all-containers", "--prefix"}
	if follow {
		args = append(args, "--follow")
	}
	return c.Runner.Run(ctx, nil, w, args...)
}

// Delete removes the job and, in the background, its pods. Deleting a job
// that does not exist reports ErrNotFound.
func (c *Client) Delete(ctx context.Context, ref job.Ref) error {
	out, err := c.output(ctx, nil, "delete", "job", ref.Name, "-n", ref.Namespace,
		"--cascade=background", "--ignore-not-found", "-o", "name")
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return fmt.Errorf("%w: %s", job.ErrNotFound, ref)
	}
	return nil
}
