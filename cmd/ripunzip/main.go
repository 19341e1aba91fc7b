// Command ripunzip extracts ZIP archives by decompressing members in
// parallel, reading from either a local file or a remote URI.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.New()

var (
	outputDirectory string
	singleThreaded  bool
)

var rootCmd = &cobra.Command{
	Use:          "ripunzip",
	Short:        "Extract ZIP archives in parallel",
	SilenceUsage: true,
}

func init() {
	logrus.SetLevel(levelFromEnv())
	log.SetLevel(levelFromEnv())

	rootCmd.PersistentFlags().StringVarP(&outputDirectory, "output-directory", "o", "", "directory to extract into (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&singleThreaded, "single-threaded", false, "extract serially instead of using a worker pool")

	rootCmd.AddCommand(newFileCmd())
	rootCmd.AddCommand(newURICmd())
}

func levelFromEnv() logrus.Level {
	lvl, err := logrus.ParseLevel(os.Getenv("RIPUNZIP_LOG_LEVEL"))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("ripunzip failed")
		os.Exit(1)
	}
}

func newFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file ZIPFILE",
		Short: "Extract a local archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0])
		},
	}
}

func newURICmd() *cobra.Command {
	var readaheadLimit int64

	c := &cobra.Command{
		Use:   "uri URI",
		Short: "Extract a remote archive served over HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runURI(cmd.Context(), args[0], readaheadLimit)
		},
	}
	c.Flags().Int64Var(&readaheadLimit, "readahead-limit", 0, "how far ahead in bytes a forward seek reuses the open HTTP stream before opening a new one (0 = 4 MiB default)")
	return c
}
