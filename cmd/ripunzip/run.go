package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/DebianArch64/ripunzip/pkg/unzip"
)

func options() unzip.Options {
	return unzip.Options{
		OutputDirectory: outputDirectory,
		SingleThreaded:  singleThreaded,
	}
}

func runFile(path string) error {
	entry := logrus.NewEntry(log)
	e, err := unzip.OpenFile(path, options(), entry)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer e.Close()

	reporter := newTerminalReporter()
	defer reporter.Close()

	if err := e.Unzip(context.Background(), reporter); err != nil {
		return fmt.Errorf("extracting %s: %w", path, err)
	}
	return nil
}

func runURI(ctx context.Context, uri string, readaheadLimit int64) error {
	entry := logrus.NewEntry(log)
	opts := options()
	opts.ReadaheadLimit = readaheadLimit

	e, err := unzip.OpenURI(ctx, uri, nil, opts, entry)
	if err != nil {
		return fmt.Errorf("opening %s: %w", uri, err)
	}
	defer e.Close()

	reporter := newTerminalReporter()
	defer reporter.Close()

	if err := e.Unzip(ctx, reporter); err != nil {
		return fmt.Errorf("extracting %s: %w", uri, err)
	}
	return nil
}
