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

	"k8s.io/apimachinery/pkg/util/validation"
)

// MaxNameLength is the longest job name the job controller accepts, since
// the name is copied into the pods' job-name label.
const MaxNameLength = validation.LabelValueMaxLength

// Ref identifies a job in the cluster.
type Ref struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

func (r Ref) String() string {
	if r.Namespace == "" {
		return r.Name
	}
	return r.Namespace + "/" + r.Name
}

// ParseRef accepts NAME or NAMESPACE/NAME. defaultNamespace fills the
// namespace when the reference does not carry one.
func ParseRef(s string, defaultNamespace string) (Ref, error) {
	ref := Ref{Namespace: defaultNamespace}

	parts := strings.Split(strings.TrimSpace(s), "/")
	switch len(parts) {
	case 1:
		ref.Name = parts[0]
	case 2:
		ref.Namespace, ref.Name = parts[0], parts[1]
		if ref.Namespace == "" {
			return Ref{}, fmt.Errorf("invalid job reference '%s': empty namespace", s)
		}
	default:
		return Ref{}, fmt.Errorf("invalid job reference '%s': expected NAME or NAMESPACE/NAME", s)
	}

	if err := ref.Validate(); err != nil {
		return Ref{}, fmt.Errorf("invalid job reference '%s': %w", s, err)
	}
	return ref, nil
}

func ParseRefs(args []string, defaultNamespace string) ([]Ref, error) {
	refs := make([]Ref, 0, len(args))
	seen := make(map[Ref]bool, len(args))
	for _, arg := range args {
		ref, err := ParseRef(arg, defaultNamespace)
		if err != nil {
			return nil, err
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs, nil
}

func (r Ref) Validate() error {
	if err := ValidateName(r.Name); err != nil {
		return err
	}
	if r.Namespace == "" {
		return nil
	}
	if errs := validation.IsDNS1123Label(r.Namespace); len(errs) > 0 {
		return fmt.Errorf("namespace '%s': %s", r.Namespace, strings.Join(errs, "; "))
	}
	return nil
}

func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty job name")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("job name '%s' is longer than %d characters", name, MaxNameLength)
	}
	if errs := validation.IsDNS1123Subdomain(name); len(errs) > 0 {
		return fmt.Errorf("job name '%s': %s", name, strings.Join(errs, "; "))
	}
	return nil
}
