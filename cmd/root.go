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
	"os"

	"github.com/spf13/cobra"
)

const serviceName = "filestat"

// newRootCmd builds the command tree. Tests build their own so flag state
// does not leak between runs.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "filestat",
		Short: "Collect columnar file metadata from object storage",
		Long: `Read footer metadata (file length, stripe count, approximate raw data size)
from columnar files in S3, GCS, Azure Blob or local storage without downloading
the file contents.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	root.AddCommand(newCollectCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newGenerateSampleCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute builds the command tree and runs it.
// This is called by main.main().
func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
