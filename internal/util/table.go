/**
 * Copyright (c) 2024 Peking University and Peking University
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

package util

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

const maxCellWidth = 40

// NewBorderlessTable returns a table in the same plain layout kubectl uses.
func NewBorderlessTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetAutoFormatHeaders(true)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("   ")
	table.SetNoWhiteSpace(true)
	if len(header) > 0 {
		table.SetHeader(header)
	}
	return table
}

// TrimTableExcept shortens cells longer than maxCellWidth characters with a
// trailing `...`, leaving the columns listed in excepts untouched.
func TrimTableExcept(rows [][]string, excepts ...int) {
	keep := make(map[int]bool, len(excepts))
	for _, except := range excepts {
		keep[except] = true
	}

	for i, row := range rows {
		for j, cell := range row {
			if keep[j] {
				continue
			}
			if runes := []rune(cell); len(runes) > maxCellWidth {
				rows[i][j] = string(runes[:maxCellWidth]) + "..."
			}
		}
	}
}
