// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package container

import (
	"fmt"
	"strings"
)

const DefaultContainerRegistry = "docker.io"

var (
	containerRegistry = DefaultContainerRegistry
	containerSuffix   = ""
)

// SetContainerRegistry sets the global container registry used to download node images.
func SetContainerRegistry(registry string) {
	containerRegistry = registry
}

func SetContainerSuffix(suffix string) {
	containerSuffix = suffix
}

type Image string

const (
	StellarCoreImage Image = "stellar/stellar-core"
	HorizonImage     Image = "stellar/stellar-horizon"
	SorobanRpcImage  Image = "stellar/soroban-rpc"
)

// ImageRepository returns the full container image name by concatenating the current container registry and the image path with the given version.
func ImageRepository(img Image, version string) string {
	// don't double append suffix if already contained
	if containerSuffix != "" && strings.HasSuffix(string(img), containerSuffix) {
		return fmt.Sprintf("%s/%s:%s", containerRegistry, img, version)
	}
	return fmt.Sprintf("%s/%s%s:%s", containerRegistry, img, containerSuffix, version)
}
