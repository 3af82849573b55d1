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
	"strings"

	"K8sHelper/internal/job"
	"K8sHelper/internal/util"

	"github.com/spf13/pflag"
)

// phaseListValue implements pflag.Value for --phase=Running,Failed.
type phaseListValue map[job.Phase]bool

var _ pflag.Value = &phaseListValue{}

func (v *phaseListValue) String() string {
	phases := make([]string, 0, len(*v))
	for _, p := range job.AllPhases {
		if (*v)[p] {
			phases = append(phases, string(p))
		}
	}
	return strings.Join(phases, ",")
}

func (v *phaseListValue) Set(s string) error {
	if *v == nil {
		*v = make(phaseListValue)
	}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		p, err := job.ParsePhase(item)
		if err != nil {
			return err
		}
		(*v)[p] = true
	}
	return nil
}

func (v *phaseListValue) Type() string {
	return "phases"
}

// Match is true for every phase when no filter was given.
func (v phaseListValue) Match(p job.Phase) bool {
	return len(v) == 0 || v[p]
}

func phaseNames() string {
	names := make([]string, 0, len(job.AllPhases))
	for _, p := range job.AllPhases {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

// keyValueValue implements pflag.Value for repeatable KEY=VALUE flags.
// A later KEY replaces an earlier one.
type keyValueValue struct {
	values map[string]string
	items  []string
}

var _ pflag.Value = &keyValueValue{}

func (v *keyValueValue) String() string {
	return strings.Join(v.items, ",")
}

func (v *keyValueValue) Set(s string) error {
	parsed, err := util.ParseKeyValueList([]string{s})
	if err != nil {
		return err
	}
	if v.values == nil {
		v.values = make(map[string]string)
	}
	for k, val := range parsed {
		v.values[k] = val
	}
	v.items = append(v.items, s)
	return nil
}

func (v *keyValueValue) Type() string {
	return "KEY=VALUE"
}

func (v *keyValueValue) Map() map[string]string {
	return v.values
}
