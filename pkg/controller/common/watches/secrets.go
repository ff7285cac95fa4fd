// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package watches

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
)

// WatchUserProvidedSecrets registers a watch for user-provided secrets.
// Only one watch per watcher is registered:
// - if it already exists with different secrets, it is replaced to watch the new secrets.
// - if there are no secrets provided by the user, the watch is removed.
func WatchUserProvidedSecrets(
	watcher types.NamespacedName, // resource to which the watches are attached (eg. a StellarNode object)
	watched DynamicWatches, // resources already watched
	watchName string, // dynamic watch to register
	secrets []string, // user-provided secrets to watch
) error {
	if len(secrets) == 0 {
		watched.Secrets.RemoveHandlerForKey(watchName)
		return nil
	}
	userSecretNsns := make([]types.NamespacedName, 0, len(secrets))
	for _, secretName := range secrets {
		userSecretNsns = append(userSecretNsns, types.NamespacedName{
			Namespace: watcher.Namespace,
			Name:      secretName,
		})
	}
	return watched.Secrets.AddHandler(NamedWatch[*corev1.Secret]{
		Name:    watchName,
		Watched: userSecretNsns,
		Watcher: watcher,
	})
}
