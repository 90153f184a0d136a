// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Command pytrim is a static-analysis toolchain for Python source:
// minimal virtual environments from observed imports, and source
// minification through function-local renames and docstring stripping.
// Implements: prd010-cli R1 (verb surface), R2 (flag binding),
//
//	R3 (exit codes).
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:           "pytrim",
		Short:         "Shrink Python deployments by static analysis",
		Long:          "pytrim analyzes Python imports to slim virtual environments, and minifies Python source by renaming function locals and stripping docstrings.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Flags shared across file and dir verbs.
	pf := rootCmd.PersistentFlags()
	pf.Bool("in-place", false, "Rewrite files in place")
	pf.Bool("dry-run", false, "Compute results without writing")
	pf.Bool("diff", false, "Print a unified diff per changed file")
	pf.Int("diff-context", 3, "Context lines for --diff")
	pf.Bool("stats", false, "Print per-run statistics")
	pf.Bool("json", false, "Machine-readable JSON output")
	pf.String("output-json", "", "Write JSON statistics to PATH")
	pf.Bool("stdin", false, "Read source from standard input")
	pf.Bool("stdout", false, "Write output to standard output")
	pf.String("backup-ext", "", "Rename the original with EXT before in-place writes")
	pf.Bool("quiet", false, "Suppress status output")
	pf.Bool("debug", false, "Verbose diagnostics to stderr")
	pf.Bool("fail-on-change", false, "Exit 3 when any file would change")
	pf.Bool("fail-on-bailout", false, "Exit 3 when any file's outcome is bailout")
	pf.Bool("fail-on-error", false, "Exit 3 when any per-file error occurs")

	for _, name := range []string{
		"in-place", "dry-run", "diff", "diff-context", "stats", "json",
		"output-json", "stdin", "stdout", "backup-ext", "quiet", "debug",
		"fail-on-change", "fail-on-bailout", "fail-on-error",
	} {
		viper.BindPFlag(name, pf.Lookup(name))
	}

	// Env vars for the shared flags bound above: PYTRIM_DEBUG,
	// PYTRIM_QUIET, etc.
	viper.SetEnvPrefix("PYTRIM")
	viper.AutomaticEnv()

	// Config file.
	viper.SetConfigName(".pytrim")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.ReadInConfig() // Ignore error; config file is optional.

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newSlimCmd())
	rootCmd.AddCommand(newMinifyCmd())
	rootCmd.AddCommand(newMinifyPlanCmd())
	rootCmd.AddCommand(newApplyPlanCmd())
	rootCmd.AddCommand(newMinifyDirCmd())
	rootCmd.AddCommand(newMinifyPlanDirCmd())
	rootCmd.AddCommand(newApplyPlanDirCmd())
	rootCmd.AddCommand(newMinifyTreeCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		var coded *codedError
		if errors.As(err, &coded) {
			if coded.err != nil && !viper.GetBool("quiet") {
				fmt.Fprintf(os.Stderr, "Error: %v\n", coded.err)
			}
			os.Exit(coded.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitUsage)
	}
}

// newVersionCmd creates the "version" command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print pytrim version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pytrim %s\n", version)
		},
	}
}
