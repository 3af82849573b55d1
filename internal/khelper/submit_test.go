package khelper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"K8sHelper/internal/job"
	"K8sHelper/internal/kubectl"
	"K8sHelper/internal/util"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

const manifest = `apiVersion: batch/v1
kind: Job
metadata:
  name: etl
spec:
  template:
    spec:
      containers:
      - name: main
        image: busybox
        command: ["true"]
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "job.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func testWaitOptions() *waitOptions {
	return &waitOptions{Interval: time.Millisecond, Retries: 2}
}

// clusterRunner creates every job it is given and reports it with the
// condition in finalCondition from then on.
func clusterRunner(finalCondition string) *scriptedRunner {
	return &scriptedRunner{handle: func(args []string, stdin string) (string, error) {
		switch args[0] {
		case "create":
			ns := gjson.Get(stdin, "metadata.namespace").String()
			name := gjson.Get(stdin, "metadata.name").String()
			return jobJSON(ns, name, 0, ""), nil
		case "get":
			return jobJSON(args[4], args[2], 0, finalCondition), nil
		case "delete":
			return "job.batch/" + args[2] + "\n", nil
		case "logs":
			return "[pod/x/main] hello\n", nil
		}
		return "", nil
	}}
}

func TestSubmitInvalidManifestNeverCallsKubectl(t *testing.T) {
	tests := []struct {
		name string
		opts submitOptions
	}{
		{
			name: "wrong kind",
			opts: submitOptions{Sources: []string{writeManifest(t, strings.Replace(manifest, "kind: Job", "kind: Pod", 1))}},
		},
		{
			name: "no image",
			opts: submitOptions{Sources: []string{writeManifest(t, strings.Replace(manifest, "image: busybox", "imagePullPolicy: Always", 1))}},
		},
		{
			name: "second document invalid",
			opts: submitOptions{Sources: []string{writeManifest(t, manifest+"---\n"+strings.Replace(manifest, "name: etl", "name: Bad_Name", 1))}},
		},
		{
			name: "missing file",
			opts: submitOptions{Sources: []string{filepath.Join(t.TempDir(), "missing.yaml")}},
		},
		{
			name: "bad --set",
			opts: submitOptions{Sources: []string{writeManifest(t, manifest)}, Sets: []string{"spec.backoffLimit"}},
		},
		{
			name: "--set breaks validation",
			opts: submitOptions{Sources: []string{writeManifest(t, manifest)}, Sets: []string{"spec.template.spec.restartPolicy=Always"}},
		},
		{
			name: "--name with two jobs",
			opts: submitOptions{
				Sources:   []string{writeManifest(t, manifest+"---\n"+strings.Replace(manifest, "name: etl", "name: etl-2", 1))},
				Overrides: job.Overrides{Name: "one"},
			},
		},
		{
			name: "invalid --name",
			opts: submitOptions{Sources: []string{writeManifest(t, manifest)}, Overrides: job.Overrides{Name: "UPPER"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &scriptedRunner{}
			useRunner(t, runner)

			opts := tt.opts
			opts.Wait = testWaitOptions()
			err := SubmitJobs(context.Background(), opts)
			assertExitCode(t, err, util.ErrorCmdArg)
			if calls := runner.verbs(); len(calls) != 0 {
				t.Fatalf("kubectl was called: %v", calls)
			}
		})
	}
}

func TestSubmitDryRunNeverCallsKubectl(t *testing.T) {
	out := useRunner(t, nil)

	opts := submitOptions{
		Sources: []string{writeManifest(t, manifest)},
		Sets:    []string{"spec.backoffLimit=1"},
		DryRun:  true,
		Overrides: job.Overrides{
			DefaultNamespace: "batch",
			Env:              map[string]string{"MODE": "fast"},
			RunID:            "run-1",
		},
	}
	if err := SubmitJobs(context.Background(), opts); err != nil {
		t.Fatalf("SubmitJobs(dry run) error = %v", err)
	}

	for _, want := range []string{"kind: Job", "namespace: batch", "backoffLimit: 1", "MODE", job.RunIDLabel + ": run-1", "restartPolicy: Never"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("dry run output lacks %q:\n%s", want, out.String())
		}
	}
}

func TestSubmitDryRunJSON(t *testing.T) {
	out := useRunner(t, nil)
	FlagJson = true

	opts := submitOptions{Image: "busybox", Command: []string{"echo", "hi"}, DryRun: true,
		Overrides: job.Overrides{DefaultNamespace: "batch"}}
	if err := SubmitJobs(context.Background(), opts); err != nil {
		t.Fatalf("SubmitJobs(dry run) error = %v", err)
	}

	if got := gjson.Get(out.String(), "data.0.metadata.generateName").String(); got != "busybox-" {
		t.Fatalf("generateName = %q in %s", got, out.String())
	}
	if got := gjson.Get(out.String(), "data.0.spec.template.spec.containers.0.command.1").String(); got != "hi" {
		t.Fatalf("command = %q in %s", got, out.String())
	}
}

func TestSubmitCreatesEveryJob(t *testing.T) {
	runner := clusterRunner("")
	out := useRunner(t, runner)

	opts := submitOptions{
		Sources:   []string{writeManifest(t, manifest+"---\n"+strings.Replace(manifest, "name: etl", "name: etl-2", 1))},
		Overrides: job.Overrides{Namespace: "team", RunID: "run-1"},
	}
	if err := SubmitJobs(context.Background(), opts); err != nil {
		t.Fatalf("SubmitJobs() error = %v", err)
	}

	want := "Job team/etl created.\nJob team/etl-2 created.\n"
	if out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
	if diff := cmp.Diff([]string{"create", "create"}, runner.verbs()); diff != "" {
		t.Fatalf("kubectl calls mismatch (-want +got):\n%s", diff)
	}
	if got := gjson.Get(runner.calls[0].Stdin, "metadata.labels").Map()[job.ManagedByLabel].String(); got != job.ManagedByValue {
		t.Fatalf("managed-by label = %q", got)
	}
}

func TestSubmitRejectedStopsSubmission(t *testing.T) {
	runner := &scriptedRunner{handle: func(args []string, stdin string) (string, error) {
		return "", &kubectl.ExecError{ExitCode: 1, Stderr: `Error from server (AlreadyExists): jobs.batch "etl" already exists`}
	}}
	useRunner(t, runner)

	opts := submitOptions{
		Sources: []string{writeManifest(t, manifest+"---\n"+strings.Replace(manifest, "name: etl", "name: etl-2", 1))},
		Wait:    testWaitOptions(),
	}
	err := SubmitJobs(context.Background(), opts)
	assertExitCode(t, err, util.ErrorBackend)
	if !strings.Contains(err.Error(), "AlreadyExists") {
		t.Fatalf("error does not carry kubectl's message: %v", err)
	}
	if diff := cmp.Diff([]string{"create"}, runner.verbs()); diff != "" {
		t.Fatalf("kubectl calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitAndWait(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		want      util.HelperCmdError
		wantOut   string
	}{
		{name: "succeeded", condition: "Complete", want: util.ErrorSuccess, wantOut: "Job batch/etl succeeded"},
		{name: "failed", condition: "Failed", want: util.ErrorJobFailed, wantOut: "Job batch/etl failed: RFailed: m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := clusterRunner(tt.condition)
			out := useRunner(t, runner)

			opts := submitOptions{
				Sources:   []string{writeManifest(t, manifest)},
				Overrides: job.Overrides{DefaultNamespace: "batch"},
				Wait:      testWaitOptions(),
			}
			err := SubmitJobs(context.Background(), opts)
			assertExitCode(t, err, tt.want)
			if !strings.Contains(out.String(), "Job batch/etl created.") || !strings.Contains(out.String(), tt.wantOut) {
				t.Fatalf("output:\n%s", out.String())
			}
			if diff := cmp.Diff([]string{"create", "get"}, runner.verbs()); diff != "" {
				t.Fatalf("kubectl calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// newSubmitCmd parses args with the flags of the submit command.
func newSubmitCmd(t *testing.T, args ...string) (*cobra.Command, []string) {
	t.Helper()

	cmd := &cobra.Command{Use: "submit", Args: submitArgs}
	addSubmitFlags(cmd)
	addWaitFlags(cmd)
	cmd.SetContext(context.Background())
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v) error = %v", args, err)
	}
	return cmd, cmd.Flags().Args()
}

func TestSubmitArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "manifest", args: []string{"job.yaml"}},
		{name: "nothing", args: []string{}, wantErr: true},
		{name: "image only", args: []string{"--image", "busybox"}},
		{name: "image with command", args: []string{"--image", "busybox", "--", "echo", "hi"}},
		{name: "image with manifest", args: []string{"--image", "busybox", "job.yaml"}, wantErr: true},
		{name: "image with manifest before command", args: []string{"--image", "busybox", "job.yaml", "--", "echo"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := newSubmitCmd(t, tt.args...)
			err := submitArgs(cmd, args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("submitArgs(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
		})
	}
}

func TestSubmitBackoffLimit(t *testing.T) {
	path := writeManifest(t, manifest)
	tests := []struct {
		name        string
		args        []string
		configLimit int32
		// -1 means spec.backoffLimit is left out.
		want int64
	}{
		{name: "manifest keeps cluster default", args: []string{"--dry-run", path}, configLimit: 4, want: -1},
		{name: "flag sets manifest default", args: []string{"--dry-run", "--backoff-limit", "2", path}, want: 2},
		{name: "image uses config", args: []string{"--dry-run", "--image", "busybox"}, configLimit: 4, want: 4},
		{name: "image flag wins", args: []string{"--dry-run", "--image", "busybox", "--backoff-limit", "1"}, configLimit: 4, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := useRunner(t, nil)
			FlagJson = true
			prevConfig := config
			config = &util.Config{BackoffLimit: tt.configLimit}
			t.Cleanup(func() { config = prevConfig })

			cmd, args := newSubmitCmd(t, tt.args...)
			if err := submitExecute(cmd, args, false); err != nil {
				t.Fatalf("submitExecute(%v) error = %v", tt.args, err)
			}

			limit := gjson.Get(out.String(), "data.0.spec.backoffLimit")
			switch {
			case tt.want < 0 && limit.Exists():
				t.Fatalf("backoffLimit = %s, want it left out:\n%s", limit.Raw, out.String())
			case tt.want >= 0 && limit.Int() != tt.want:
				t.Fatalf("backoffLimit = %s, want %d:\n%s", limit.Raw, tt.want, out.String())
			}
		})
	}
}
