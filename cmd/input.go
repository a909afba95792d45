// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// readPaths returns the non-blank, non-comment lines of r, trimmed.
func readPaths(r io.Reader) ([]string, error) {
	var paths []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

// readInputFile reads paths from name, or from stdin when name is "-".
func readInputFile(name string, stdin io.Reader) ([]string, error) {
	if name == "-" {
		paths, err := readPaths(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read paths from stdin: %w", err)
		}
		return paths, nil
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	paths, err := readPaths(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file %s: %w", name, err)
	}
	return paths, nil
}

// schemesIn returns the distinct lowercased schemes among paths that carry
// one of the supported schemes.
func schemesIn(paths []string, supported []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range paths {
		scheme, _, ok := strings.Cut(p, "://")
		if !ok {
			continue
		}
		scheme = strings.ToLower(scheme)
		if seen[scheme] || !slices.Contains(supported, scheme) {
			continue
		}
		seen[scheme] = true
		out = append(out, scheme)
	}
	return out
}
