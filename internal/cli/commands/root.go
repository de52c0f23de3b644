// Package commands implements the emschema command line.
package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "emschema",
		Short: "Compile annotation schemas into storage models",
		Long: color.CyanString(`emschema - annotation schema compiler

Compiles the annotation schemas of a connectomics dataset into table models
and PostGIS DDL. Each schema is split into an annotation table and, per
segmentation source, a linked segmentation table.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "dataset manifest (default: emschema.yaml)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log compiler activity to stderr")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newTypesCommand(opts))
	rootCmd.AddCommand(newCompileCommand(opts))
	rootCmd.AddCommand(newDDLCommand(opts))
	rootCmd.AddCommand(newApplyCommand(opts))
	rootCmd.AddCommand(newDropCommand(opts))
	rootCmd.AddCommand(newDBNameCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			title := color.New(color.FgCyan, color.Bold)

			title.Fprint(out, "emschema version: ")
			fmt.Fprintln(out, Version)
			title.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			title.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)
			title.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errReported) {
			return err
		}
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
