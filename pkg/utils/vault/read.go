// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package vault

import (
	"fmt"
)

// ReadField fetches the contents of a single field at the given path.
// KV version 2 responses nest the fields under a "data" key; both layouts are handled.
func ReadField(c Client, secretPath string, fieldName string) (string, error) {
	secret, err := c.Read(secretPath)
	if err != nil {
		return "", err
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("no data found at %s", secretPath)
	}

	data := secret.Data
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}

	val, ok := data[fieldName]
	if !ok {
		return "", fmt.Errorf("field %s not found at %s", fieldName, secretPath)
	}
	stringVal, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("field %s at %s is not a string", fieldName, secretPath)
	}
	return stringVal, nil
}
