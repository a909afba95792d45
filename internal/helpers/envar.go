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

// Package helpers holds small environment utilities shared by main and cmd.
package helpers

import (
	"os"
	"strings"
)

// ParseBool understands the usual spellings of on/off switches. ok is false
// for anything it does not recognize, including the empty string.
func ParseBool(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on", "enable", "enabled":
		return true, true
	case "false", "0", "no", "off", "disable", "disabled":
		return false, true
	default:
		return false, false
	}
}

// GetBoolEnv reads a boolean environment variable. Unset, empty and
// unrecognized values yield defaultValue.
func GetBoolEnv(envVar string, defaultValue bool) bool {
	if v, ok := ParseBool(os.Getenv(envVar)); ok {
		return v
	}
	return defaultValue
}
