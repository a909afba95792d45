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

package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBool(t *testing.T) {
	tests := []struct {
		in     string
		want   bool
		wantOK bool
	}{
		{"true", true, true},
		{"TRUE", true, true},
		{"  yes ", true, true},
		{"1", true, true},
		{"enabled", true, true},
		{"false", false, true},
		{"Off", false, true},
		{"\tdisable\t", false, true},
		{"0", false, true},
		{"", false, false},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseBool(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetBoolEnv(t *testing.T) {
	const key = "FILESTAT_TEST_BOOL"

	t.Setenv(key, "")
	assert.True(t, GetBoolEnv(key, true))
	assert.False(t, GetBoolEnv(key, false))

	t.Setenv(key, "on")
	assert.True(t, GetBoolEnv(key, false))

	t.Setenv(key, "no")
	assert.False(t, GetBoolEnv(key, true))

	t.Setenv(key, "garbage")
	assert.True(t, GetBoolEnv(key, true))
	assert.False(t, GetBoolEnv(key, false))
}
