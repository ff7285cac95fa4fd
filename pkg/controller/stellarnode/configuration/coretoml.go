// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package configuration

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

const (
	// CoreHTTPPort is the stellar-core admin HTTP port, also used for health probes.
	CoreHTTPPort = 11626
	// CorePeerPort is the stellar-core overlay peer port.
	CorePeerPort = 11625

	// DataVolumeMountPath is where the persistent volume is mounted in node pods.
	DataVolumeMountPath = "/var/lib/stellar"
)

var coreConfigTemplate = template.Must(
	template.New("stellar-core.cfg").Funcs(sprig.TxtFuncMap()).Parse(
		`HTTP_PORT = {{ .HTTPPort }}
PEER_PORT = {{ .PeerPort }}
PUBLIC_HTTP_PORT = true
NETWORK_PASSPHRASE = {{ .NetworkPassphrase | quote }}
DATABASE = "sqlite3://{{ .DataDir }}/stellar.db"
BUCKET_DIR_PATH = "{{ .DataDir }}/buckets"
NODE_IS_VALIDATOR = {{ .NodeIsValidator }}
{{- if .QuorumSet }}

[QUORUM_SET]
THRESHOLD_PERCENT = 67
VALIDATORS = [
{{- range .QuorumSet }}
    {{ printf "%s %s" .PublicKey .ValidatorName | quote }},
{{- end }}
]
{{- end }}
{{- range $i, $url := .HistoryArchiveURLs }}

[HISTORY.archive{{ $i }}]
get = "curl -sf {{ $url }}/{0} -o {1}"
{{- if $.PublishHistory }}
put = "curl -sf -T {1} {{ $url }}/{0}"
{{- end }}
{{- end }}
`))

type coreConfigData struct {
	HTTPPort           int
	PeerPort           int
	NetworkPassphrase  string
	DataDir            string
	NodeIsValidator    bool
	QuorumSet          []stellarv1alpha1.QuorumSetEntry
	HistoryArchiveURLs []string
	PublishHistory     bool
}

// RenderCoreConfig renders the stellar-core TOML configuration for a Validator node.
func RenderCoreConfig(node stellarv1alpha1.StellarNode) ([]byte, error) {
	data := coreConfigData{
		HTTPPort:           CoreHTTPPort,
		PeerPort:           CorePeerPort,
		NetworkPassphrase:  node.Spec.Network.Passphrase(),
		DataDir:            DataVolumeMountPath,
		NodeIsValidator:    true,
		HistoryArchiveURLs: node.Spec.Network.HistoryArchiveURLs(),
	}
	if vc := node.Spec.ValidatorConfig; vc != nil {
		data.QuorumSet = vc.QuorumSet
		data.PublishHistory = vc.EnableHistoryArchive
		if len(vc.HistoryArchiveUrls) > 0 {
			data.HistoryArchiveURLs = vc.HistoryArchiveUrls
		}
	}
	return renderCoreTemplate(data)
}

// RenderCaptiveCoreConfig renders the TOML configuration of the captive
// stellar-core sidecar of a SorobanRpc node. A captive core never validates
// and never publishes history.
func RenderCaptiveCoreConfig(node stellarv1alpha1.StellarNode) ([]byte, error) {
	return renderCoreTemplate(coreConfigData{
		HTTPPort:           CoreHTTPPort,
		PeerPort:           CorePeerPort,
		NetworkPassphrase:  node.Spec.Network.Passphrase(),
		DataDir:            DataVolumeMountPath,
		NodeIsValidator:    false,
		HistoryArchiveURLs: node.Spec.Network.HistoryArchiveURLs(),
	})
}

func renderCoreTemplate(data coreConfigData) ([]byte, error) {
	var buf bytes.Buffer
	if err := coreConfigTemplate.Execute(&buf, data); err != nil {
		return nil, errors.Wrap(err, "while rendering stellar-core configuration")
	}
	return buf.Bytes(), nil
}
