package kubectl

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"K8sHelper/internal/job"

	"github.com/google/go-cmp/cmp"
	batchv1 "k8s.io/api/batch/v1"
)

type fakeCall struct {
	Args  []string
	Stdin string
}

// fakeRunner answers every invocation with the same output and error.
type fakeRunner struct {
	output string
	err    error
	calls  []fakeCall
}

func (f *fakeRunner) Run(ctx context.Context, stdin io.Reader, stdout io.Writer, args ...string) error {
	call := fakeCall{Args: args}
	if stdin != nil {
		in, err := io.ReadAll(stdin)
		if err != nil {
			return err
		}
		call.Stdin = string(in)
	}
	f.calls = append(f.calls, call)
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(stdout, f.output)
	return err
}

const runningJobJSON = `{
	"apiVersion": "batch/v1",
	"kind": "Job",
	"metadata": {"name": "etl", "namespace": "batch"},
	"spec": {"template": {"spec": {"containers": [{"name": "main", "image": "busybox"}]}}},
	"status": {"active": 1, "startTime": "2025-03-01T10:00:00Z"}
}`

func TestClientCreate(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: `{"metadata":{"name":"etl-x7k2p","namespace":"batch","uid":"1"}}`}
	c := NewClient(runner)

	ref, err := c.Create(context.Background(), []byte(`{"kind":"Job"}`))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if want := (job.Ref{Namespace: "batch", Name: "etl-x7k2p"}); ref != want {
		t.Fatalf("Create() = %v, want %v", ref, want)
	}

	want := []fakeCall{{Args: []string{"create", "-f", "-", "-o", "json"}, Stdin: `{"kind":"Job"}`}}
	if diff := cmp.Diff(want, runner.calls); diff != "" {
		t.Fatalf("kubectl calls mismatch (-want +got):\n%s", diff)
	}
}

func TestClientCreateWithoutName(t *testing.T) {
	t.Parallel()

	c := NewClient(&fakeRunner{output: `{}`})
	if _, err := c.Create(context.Background(), []byte(`{}`)); err == nil {
		t.Fatal("Create() expected error when kubectl returns no name")
	}
}

func TestClientGetJob(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: runningJobJSON}
	c := NewClient(runner)
	ref := job.Ref{Namespace: "batch", Name: "etl"}

	j, err := c.GetJob(context.Background(), ref)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if j.Name != "etl" || j.Status.Active != 1 {
		t.Fatalf("GetJob() = %s active=%d", j.Name, j.Status.Active)
	}
	if got := job.NewStatus(j).Phase; got != job.PhaseRunning {
		t.Fatalf("phase = %s, want Running", got)
	}

	wantArgs := []string{"get", "job", "etl", "-n", "batch", "-o", "json"}
	if diff := cmp.Diff(wantArgs, runner.calls[0].Args); diff != "" {
		t.Fatalf("kubectl args mismatch (-want +got):\n%s", diff)
	}
}

func TestClientGetJobErrors(t *testing.T) {
	t.Parallel()

	ref := job.Ref{Namespace: "batch", Name: "etl"}

	notFound := NewClient(&fakeRunner{err: &ExecError{ExitCode: 1, Stderr: `Error from server (NotFound): jobs.batch "etl" not found`}})
	if _, err := notFound.GetJob(context.Background(), ref); !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("GetJob() error = %v, want job.ErrNotFound", err)
	}

	unreachable := NewClient(&fakeRunner{err: &ExecError{ExitCode: 1, Stderr: "Unable to connect to the server: EOF"}})
	if _, err := unreachable.GetJob(context.Background(), ref); !job.IsTransient(err) {
		t.Fatalf("GetJob() error = %v, want a transient error", err)
	}

	garbage := NewClient(&fakeRunner{output: "not json"})
	if _, err := garbage.GetJob(context.Background(), ref); err == nil {
		t.Fatal("GetJob() expected a decode error")
	}
}

func TestClientListJobs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		namespace     string
		allNamespaces bool
		selector      string
		wantArgs      []string
	}{
		{
			name:      "namespace and selector",
			namespace: "batch",
			selector:  job.ManagedSelector,
			wantArgs:  []string{"get", "jobs", "-o", "json", "-n", "batch", "-l", job.ManagedSelector},
		},
		{
			name:          "all namespaces without selector",
			namespace:     "batch",
			allNamespaces: true,
			wantArgs:      []string{"get", "jobs", "-o", "json", "--all-namespaces"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := &fakeRunner{output: `{"apiVersion":"v1","kind":"List","items":[` + runningJobJSON + `]}`}
			jobs, err := NewClient(runner).ListJobs(context.Background(), tt.namespace, tt.allNamespaces, tt.selector)
			if err != nil {
				t.Fatalf("ListJobs() error = %v", err)
			}
			if len(jobs) != 1 || jobs[0].Name != "etl" {
				t.Fatalf("ListJobs() = %v", jobs)
			}
			if diff := cmp.Diff(tt.wantArgs, runner.calls[0].Args); diff != "" {
				t.Fatalf("kubectl args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClientListPods(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: `{"items":[{"metadata":{"name":"etl-abcde"},"status":{"phase":"Running"}}]}`}
	pods, err := NewClient(runner).ListPods(context.Background(), job.Ref{Namespace: "batch", Name: "etl"})
	if err != nil {
		t.Fatalf("ListPods() error = %v", err)
	}
	if len(pods) != 1 || pods[0].Name != "etl-abcde" {
		t.Fatalf("ListPods() = %v", pods)
	}

	wantArgs := []string{"get", "pods", "-n", "batch", "-l", batchv1.JobNameLabel + "=etl", "-o", "json"}
	if diff := cmp.Diff(wantArgs, runner.calls[0].Args); diff != "" {
		t.Fatalf("kubectl args mismatch (-want +got):\n%s", diff)
	}
}

func TestClientLogs(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: "[pod/etl-abcde/main] done\n"}
	var out strings.Builder
	if err := NewClient(runner).Logs(context.Background(), job.Ref{Namespace: "batch", Name: "etl"}, true, &out); err != nil {
		t.Fatalf("Logs() error = %v", err)
	}
	if out.String() != "[pod/etl-abcde/main] done\n" {
		t.Fatalf("Logs() wrote %q", out.String())
	}

	wantArgs := []string{"logs", "-n", "batch", "-l", batchv1.JobNameLabel + "=etl", "--all-containers", "--prefix", "--follow"}
	if diff := cmp.Diff(wantArgs, runner.calls[0].Args); diff != "" {
		t.Fatalf("kubectl args mismatch (-want +got):\n%s", diff)
	}
}

func TestClientDelete(t *testing.T) {
	t.Parallel()

	ref := job.Ref{Namespace: "batch", Name: "etl"}

	runner := &fakeRunner{output: "job.batch/etl\n"}
	if err := NewClient(runner).Delete(context.Background(), ref); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	wantArgs := []string{"delete", "job", "etl", "-n", "batch", "--cascade=background", "--ignore-not-found", "-o", "name"}
	if diff := cmp.Diff(wantArgs, runner.calls[0].Args); diff != "" {
		t.Fatalf("kubectl args mismatch (-want +got):\n%s", diff)
	}

	if err := NewClient(&fakeRunner{}).Delete(context.Background(), ref); !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("Delete() of a missing job error = %v, want job.ErrNotFound", err)
	}
}

func TestClientVersion(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: `{"clientVersion":{"gitVersion":"v1.34.1"}}`}
	got, err := NewClient(runner).ClientVersion(context.Background())
	if err != nil || got != "v1.34.1" {
		t.Fatalf("ClientVersion() = %q, %v", got, err)
	}
}
