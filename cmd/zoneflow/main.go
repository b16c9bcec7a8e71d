package main

import (
	"errors"
	"fmt"
	"os"

	zferrors "github.com/zoneflow/zoneflow/pkg/errors"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var cfgErr *zferrors.ConfigurationError
	if errors.As(err, &cfgErr) {
		return 2
	}

	var loadErr *zferrors.PluginLoadError
	if errors.As(err, &loadErr) {
		return 3
	}

	return 1
}
