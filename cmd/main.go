// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/stellar/node-operator/cmd/manager"
	"github.com/stellar/node-operator/pkg/about"
	"github.com/stellar/node-operator/pkg/dev"
)

func main() {
	buildInfo := about.GetBuildInfo()

	rootCmd := &cobra.Command{
		Use:          "stellar-node-operator",
		Short:        "Kubernetes operator for Stellar network nodes",
		Version:      buildInfo.VersionString(),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(manager.Command())

	// development mode is only available as a command line flag to avoid accidentally enabling it
	rootCmd.PersistentFlags().BoolVar(&dev.Enabled, "development", false, "turns on development mode")
	_ = rootCmd.PersistentFlags().MarkHidden("development")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
