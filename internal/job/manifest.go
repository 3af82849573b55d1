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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
)

const (
	APIVersion = "batch/v1"
	Kind       = "Job"

	// Leaves room for the 5 random characters the API server appends.
	maxGenerateNameLength = MaxNameLength - 5
)

// Document is one job definition as read from a manifest, kept in its JSON
// form so that --set paths can be applied before it is decoded.
type Document struct {
	Source string
	Index  int
	Raw    []byte
}

func (d *Document) String() string {
	return fmt.Sprintf("%s[%d]", d.Source, d.Index)
}

// LoadManifest reads every document in the file at path, or from stdin
// when path is "-". YAML and JSON are both accepted, empty documents are
// skipped and `kind: List` documents are flattened.
func LoadManifest(path string, stdin io.Reader) ([]*Document, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func(file *os.File) {
			if err := file.Close(); err != nil {
				log.Errorf("Failed to close %s: %v", file.Name(), err)
			}
		}(file)
		r = file
	}
	return ParseManifest(path, r)
}

func ParseManifest(source string, r io.Reader) ([]*Document, error) {
	docs := make([]*Document, 0)
	dec := yaml.NewDecoder(r)
	for {
		var obj map[string]any
		err := dec.Decode(&obj)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: document %d: %w", source, len(docs), err)
		}
		if len(obj) == 0 {
			continue
		}

		raw, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("%s: document %d: %w", source, len(docs), err)
		}

		if gjson.GetBytes(raw, "kind").String() == "List" {
			gjson.GetBytes(raw, "items").ForEach(func(_, item gjson.Result) bool {
				docs = append(docs, &Document{Source: source, Index: len(docs), Raw: []byte(item.Raw)})
				return true
			})
			continue
		}
		docs = append(docs, &Document{Source: source, Index: len(docs), Raw: raw})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: no job definition found", source)
	}
	return docs, nil
}

// Set assigns value at the dotted path. Values that are valid JSON (numbers,
// booleans, objects, quoted strings) are inserted as such, anything else
// becomes a string.
func (d *Document) Set(path, value string) error {
	var (
		raw []byte
		err error
	)
	if gjson.Valid(value) {
		raw, err = sjson.SetRawBytes(d.Raw, path, []byte(value))
	} else {
		raw, err = sjson.SetBytes(d.Raw, path, value)
	}
	if err != nil {
		return fmt.Errorf("%s: cannot set '%s': %w", d, path, err)
	}
	d.Raw = raw
	return nil
}

// Decode validates the document and returns it as a typed Job.
func (d *Document) Decode() (*batchv1.Job, error) {
	apiVersion := gjson.GetBytes(d.Raw, "apiVersion").String()
	kind := gjson.GetBytes(d.Raw, "kind").String()
	if apiVersion != APIVersion || kind != Kind {
		return nil, fmt.Errorf("%s: expected apiVersion %s and kind %s, got '%s' '%s'",
			d, APIVersion, Kind, apiVersion, kind)
	}

	job := new(batchv1.Job)
	dec := json.NewDecoder(bytes.NewReader(d.Raw))
	if err := dec.Decode(job); err != nil {
		return nil, fmt.Errorf("%s: %w", d, err)
	}
	if err := Validate(job); err != nil {
		return nil, fmt.Errorf("%s: %w", d, err)
	}
	return job, nil
}

// Validate checks what the tool relies on before anything reaches kubectl.
// The API server still performs the full validation.
func Validate(job *batchv1.Job) error {
	switch {
	case job.Name != "":
		if err := ValidateName(job.Name); err != nil {
			return err
		}
	case job.GenerateName != "":
		if len(job.GenerateName) > maxGenerateNameLength {
			return fmt.Errorf("generateName '%s' is longer than %d characters", job.GenerateName, maxGenerateNameLength)
		}
		if err := ValidateName(strings.TrimSuffix(job.GenerateName, "-") + "-x"); err != nil {
			return fmt.Errorf("invalid generateName '%s': %w", job.GenerateName, err)
		}
	default:
		return errors.New("metadata.name or metadata.generateName is required")
	}

	if job.Namespace != "" {
		if err := (Ref{Namespace: job.Namespace, Name: "x"}).Validate(); err != nil {
			return err
		}
	}

	podSpec := &job.Spec.Template.Spec
	if len(podSpec.Containers) == 0 {
		return errors.New("spec.template.spec.containers must not be empty")
	}
	for i, c := range podSpec.Containers {
		if c.Name == "" {
			return fmt.Errorf("spec.template.spec.containers[%d].name is required", i)
		}
		if c.Image == "" {
			return fmt.Errorf("container '%s' has no image", c.Name)
		}
	}

	switch podSpec.RestartPolicy {
	case "", corev1.RestartPolicyNever, corev1.RestartPolicyOnFailure:
	default:
		return fmt.Errorf("restartPolicy '%s' is not allowed for jobs, use Never or OnFailure", podSpec.RestartPolicy)
	}

	if job.Spec.BackoffLimit != nil && *job.Spec.BackoffLimit < 0 {
		return errors.New("spec.backoffLimit must not be negative")
	}
	return nil
}

// Encode renders the job the way kubectl expects it on stdin, without the
// empty status and creationTimestamp the typed struct carries.
func Encode(job *batchv1.Job) ([]byte, error) {
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	for _, path := range []string{"status", "metadata.creationTimestamp"} {
		if raw, err = sjson.DeleteBytes(raw, path); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// EncodeYAML is used for --dry-run output.
func EncodeYAML(job *batchv1.Job) ([]byte, error) {
	raw, err := Encode(job)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(obj); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
