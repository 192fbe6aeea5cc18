package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// 构建时通过 -ldflags 注入
var (
	version   = "dev"
	buildTime = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("craftcrm %s (built %s, %s)\n", version, buildTime, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
