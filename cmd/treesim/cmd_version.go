package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strconv"

	"github.com/nvandessel/treesim/internal/store"
	"github.com/spf13/cobra"
)

type versionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
	Schema  string `json:"schema"`
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			info := versionInfo{
				Version: version,
				Commit:  commit,
				Date:    date,
				Go:      runtime.Version(),
				Schema:  strconv.Itoa(store.SchemaVersion),
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(info)
			}
			fmt.Fprintf(out, "treesim %s (commit %s, built %s, %s, store schema v%s)\n",
				info.Version, info.Commit, info.Date, info.Go, info.Schema)
			return nil
		},
	}
}
