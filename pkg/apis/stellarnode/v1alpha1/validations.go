// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package v1alpha1

import (
	"fmt"

	"github.com/blang/semver/v4"
	containername "github.com/google/go-containerregistry/pkg/name"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

var (
	defaultChecks = []func(*StellarNode) field.ErrorList{
		checkNameLength,
		checkNodeType,
		checkNetwork,
		checkVersion,
		checkReplicas,
		checkResources,
		checkStorage,
		checkSubConfigMatchesNodeType,
		checkValidatorConfig,
		checkHorizonConfig,
		checkSorobanConfig,
		checkServiceMesh,
		checkDisruptionBudget,
	}

	updateChecks = []func(old, curr *StellarNode) field.ErrorList{
		checkImmutableFields,
	}
)

// ValidateSpec runs all creation-time checks on the node spec.
func (n *StellarNode) ValidateSpec() field.ErrorList {
	var errs field.ErrorList
	for _, check := range defaultChecks {
		errs = append(errs, check(n)...)
	}
	return errs
}

// ValidateUpdateSpec runs the update-only checks against the previous object.
func (n *StellarNode) ValidateUpdateSpec(old *StellarNode) field.ErrorList {
	var errs field.ErrorList
	for _, check := range updateChecks {
		errs = append(errs, check(old, n)...)
	}
	return errs
}

func specPath(children ...string) *field.Path {
	path := field.NewPath("spec")
	for _, child := range children {
		path = path.Child(child)
	}
	return path
}

func checkNameLength(n *StellarNode) field.ErrorList {
	// leave room for the longest child suffix
	maxLen := 63 - len("-virtual-svc")
	if len(n.Name) > maxLen {
		return field.ErrorList{field.TooLong(field.NewPath("metadata").Child("name"), n.Name, maxLen)}
	}
	return nil
}

func checkNodeType(n *StellarNode) field.ErrorList {
	for _, t := range AllNodeTypes {
		if n.Spec.NodeType == t {
			return nil
		}
	}
	return field.ErrorList{field.NotSupported(specPath("nodeType"), n.Spec.NodeType, nodeTypeStrings())}
}

func checkNetwork(n *StellarNode) field.ErrorList {
	for _, nw := range AllNetworks {
		if n.Spec.Network == nw {
			return nil
		}
	}
	return field.ErrorList{field.NotSupported(specPath("network"), n.Spec.Network, networkStrings())}
}

// minVersions are the oldest releases the operator knows how to run. Tags that
// do not parse as a version (latest, sha-pinned builds) are waved through.
var minVersions = map[NodeType]semver.Version{
	NodeTypeValidator:  semver.MustParse("19.0.0"),
	NodeTypeHorizon:    semver.MustParse("2.0.0"),
	NodeTypeSorobanRpc: semver.MustParse("20.0.0"),
}

func checkVersion(n *StellarNode) field.ErrorList {
	if n.Spec.Version == "" {
		// defaulted by the mutating webhook
		return nil
	}
	ref, err := containername.ParseReference(n.Spec.Version, containername.WeakValidation)
	if err != nil {
		return field.ErrorList{field.Invalid(specPath("version"), n.Spec.Version,
			fmt.Sprintf("not a valid container image reference: %v; use an image reference such as stellar/stellar-core:v21.3.0", err))}
	}
	if tag, ok := ref.(containername.Tag); ok {
		if v, parseErr := semver.ParseTolerant(tag.TagStr()); parseErr == nil {
			if minVersion, known := minVersions[n.Spec.NodeType]; known && v.LT(minVersion) {
				return field.ErrorList{field.Invalid(specPath("version"), n.Spec.Version,
					fmt.Sprintf("version %s is no longer supported for nodeType %s, the minimum is %s", v, n.Spec.NodeType, minVersion))}
			}
		}
	}
	return nil
}

func checkReplicas(n *StellarNode) field.ErrorList {
	var errs field.ErrorList
	if n.Spec.Replicas != nil && *n.Spec.Replicas < 1 {
		errs = append(errs, field.Invalid(specPath("replicas"), *n.Spec.Replicas,
			"must be at least 1; scale to zero with spec.suspended instead"))
	}
	if n.Spec.NodeType == NodeTypeValidator && n.ReplicasOrDefault() != 1 {
		errs = append(errs, field.Invalid(specPath("replicas"), n.ReplicasOrDefault(),
			"validators run exactly one replica; run additional validators as separate StellarNode resources"))
	}
	return errs
}

func checkResources(n *StellarNode) field.ErrorList {
	if n.Spec.Resources == nil {
		return nil
	}
	var errs field.ErrorList
	for _, res := range []corev1.ResourceName{corev1.ResourceCPU, corev1.ResourceMemory} {
		limit, hasLimit := n.Spec.Resources.Limits[res]
		request, hasRequest := n.Spec.Resources.Requests[res]
		if hasLimit && hasRequest && limit.Cmp(request) < 0 {
			errs = append(errs, field.Invalid(specPath("resources", "limits", string(res)), limit.String(),
				fmt.Sprintf("limit is below the %s request of %s; raise the limit or lower the request", res, request.String())))
		}
	}
	return errs
}

func checkStorage(n *StellarNode) field.ErrorList {
	if n.Spec.Storage == nil {
		return nil
	}
	var errs field.ErrorList
	if !n.Spec.Storage.Size.IsZero() && n.Spec.Storage.Size.Sign() <= 0 {
		errs = append(errs, field.Invalid(specPath("storage", "size"), n.Spec.Storage.Size.String(),
			"storage size must be greater than zero"))
	}
	if p := n.Spec.Storage.RetentionPolicy; p != "" && p != RetentionPolicyDelete && p != RetentionPolicyRetain {
		errs = append(errs, field.NotSupported(specPath("storage", "retentionPolicy"), p, retentionPolicyStrings()))
	}
	return errs
}

// checkSubConfigMatchesNodeType rejects sub-configurations supplied for a different node type.
func checkSubConfigMatchesNodeType(n *StellarNode) field.ErrorList {
	var errs field.ErrorList
	misplaced := func(path string, forType NodeType) *field.Error {
		return field.Forbidden(specPath(path),
			fmt.Sprintf("%s only applies to nodeType %s (got %s); remove it or change the node type", path, forType, n.Spec.NodeType))
	}
	if n.Spec.ValidatorConfig != nil && n.Spec.NodeType != NodeTypeValidator {
		errs = append(errs, misplaced("validatorConfig", NodeTypeValidator))
	}
	if n.Spec.HorizonConfig != nil && n.Spec.NodeType != NodeTypeHorizon {
		errs = append(errs, misplaced("horizonConfig", NodeTypeHorizon))
	}
	if n.Spec.SorobanConfig != nil && n.Spec.NodeType != NodeTypeSorobanRpc {
		errs = append(errs, misplaced("sorobanConfig", NodeTypeSorobanRpc))
	}
	return errs
}

func checkValidatorConfig(n *StellarNode) field.ErrorList {
	if n.Spec.NodeType != NodeTypeValidator {
		return nil
	}
	if n.Spec.ValidatorConfig == nil {
		return field.ErrorList{field.Required(specPath("validatorConfig"),
			"validatorConfig is required for nodeType Validator")}
	}
	var errs field.ErrorList
	cfg := n.Spec.ValidatorConfig
	if cfg.SeedSecretRef == "" {
		errs = append(errs, field.Required(specPath("validatorConfig", "seedSecretRef"),
			"reference the Secret holding the validator seed, or a vault:<mount>/<path>#<field> locator"))
	}
	if cfg.EnableHistoryArchive && len(cfg.HistoryArchiveUrls) == 0 {
		errs = append(errs, field.Required(specPath("validatorConfig", "historyArchiveUrls"),
			"at least one archive URL is required when enableHistoryArchive is set"))
	}
	for i, entry := range cfg.QuorumSet {
		if entry.PublicKey == "" {
			errs = append(errs, field.Required(specPath("validatorConfig", "quorumSet").Index(i).Child("publicKey"),
				"every quorum set entry needs the peer's public key"))
		}
	}
	return errs
}

func checkHorizonConfig(n *StellarNode) field.ErrorList {
	if n.Spec.NodeType != NodeTypeHorizon {
		return nil
	}
	if n.Spec.HorizonConfig == nil {
		return field.ErrorList{field.Required(specPath("horizonConfig"),
			"horizonConfig is required for nodeType Horizon")}
	}
	var errs field.ErrorList
	if n.Spec.HorizonConfig.DatabaseSecretRef == "" {
		errs = append(errs, field.Required(specPath("horizonConfig", "databaseSecretRef"),
			"reference the Secret holding the Horizon database connection string"))
	}
	if n.Spec.HorizonConfig.StellarCoreUrl == "" {
		errs = append(errs, field.Required(specPath("horizonConfig", "stellarCoreUrl"),
			"set the URL of the stellar-core instance Horizon connects to"))
	}
	if w := n.Spec.HorizonConfig.IngestWorkers; w != nil && *w < 1 {
		errs = append(errs, field.Invalid(specPath("horizonConfig", "ingestWorkers"), *w, "must be at least 1"))
	}
	return errs
}

func checkSorobanConfig(n *StellarNode) field.ErrorList {
	if n.Spec.NodeType != NodeTypeSorobanRpc {
		return nil
	}
	if n.Spec.SorobanConfig == nil {
		return field.ErrorList{field.Required(specPath("sorobanConfig"),
			"sorobanConfig is required for nodeType SorobanRpc")}
	}
	var errs field.ErrorList
	if n.Spec.SorobanConfig.StellarCoreUrl == "" {
		errs = append(errs, field.Required(specPath("sorobanConfig", "stellarCoreUrl"),
			"set the URL of the stellar-core instance the RPC server queries"))
	}
	if m := n.Spec.SorobanConfig.MaxEventsPerRequest; m != nil && *m < 1 {
		errs = append(errs, field.Invalid(specPath("sorobanConfig", "maxEventsPerRequest"), *m, "must be at least 1"))
	}
	return errs
}

func checkServiceMesh(n *StellarNode) field.ErrorList {
	mesh := n.Spec.ServiceMesh
	if mesh == nil {
		return nil
	}
	if (mesh.Istio == nil) == (mesh.Linkerd == nil) {
		msg := "exactly one of istio or linkerd must be configured"
		return field.ErrorList{
			field.Forbidden(specPath("serviceMesh", "istio"), msg),
			field.Forbidden(specPath("serviceMesh", "linkerd"), msg),
		}
	}
	var errs field.ErrorList
	if mesh.Istio != nil {
		if mode := mesh.Istio.MtlsMode; mode != "" {
			supported := false
			for _, m := range AllMtlsModes {
				if mode == m {
					supported = true
				}
			}
			if !supported {
				errs = append(errs, field.NotSupported(specPath("serviceMesh", "istio", "mtlsMode"), mode, mtlsModeStrings()))
			}
		}
		errs = append(errs, checkCircuitBreaker(mesh.Istio.CircuitBreaker)...)
	}
	return errs
}

func checkCircuitBreaker(cb *CircuitBreakerConfig) field.ErrorList {
	if cb == nil {
		return nil
	}
	var errs field.ErrorList
	path := specPath("serviceMesh", "istio", "circuitBreaker")
	if cb.ConsecutiveErrors < 1 {
		errs = append(errs, field.Invalid(path.Child("consecutiveErrors"), cb.ConsecutiveErrors,
			"must be at least 1; a zero threshold would eject hosts on every request"))
	}
	if cb.TimeWindowSecs < 1 {
		errs = append(errs, field.Invalid(path.Child("timeWindowSecs"), cb.TimeWindowSecs, "must be at least 1"))
	}
	if cb.BaseEjectionSecs < 1 {
		errs = append(errs, field.Invalid(path.Child("baseEjectionSecs"), cb.BaseEjectionSecs, "must be at least 1"))
	}
	if cb.MaxEjectionPercent < 0 || cb.MaxEjectionPercent > 100 {
		errs = append(errs, field.Invalid(path.Child("maxEjectionPercent"), cb.MaxEjectionPercent, "must be between 0 and 100"))
	}
	return errs
}

func checkDisruptionBudget(n *StellarNode) field.ErrorList {
	if n.Spec.MinAvailable != nil && n.Spec.MaxUnavailable != nil {
		msg := "minAvailable and maxUnavailable are mutually exclusive"
		return field.ErrorList{
			field.Forbidden(specPath("minAvailable"), msg),
			field.Forbidden(specPath("maxUnavailable"), msg),
		}
	}
	return nil
}

func checkImmutableFields(old, curr *StellarNode) field.ErrorList {
	var errs field.ErrorList
	immutable := func(path *field.Path, value interface{}) {
		errs = append(errs, field.Invalid(path, value,
			"field is immutable; delete and recreate the StellarNode to change it"))
	}
	if old.Spec.NodeType != curr.Spec.NodeType {
		immutable(specPath("nodeType"), curr.Spec.NodeType)
	}
	if old.Spec.Network != curr.Spec.Network {
		immutable(specPath("network"), curr.Spec.Network)
	}
	if oldStorage, currStorage := old.Spec.Storage, curr.Spec.Storage; oldStorage != nil && currStorage != nil {
		if oldStorage.StorageClass != currStorage.StorageClass {
			immutable(specPath("storage", "storageClass"), currStorage.StorageClass)
		}
		if oldStorage.Size.Cmp(currStorage.Size) != 0 {
			immutable(specPath("storage", "size"), currStorage.Size.String())
		}
	}
	if old.Spec.ValidatorConfig != nil && curr.Spec.ValidatorConfig != nil &&
		old.Spec.ValidatorConfig.SeedSecretRef != curr.Spec.ValidatorConfig.SeedSecretRef {
		immutable(specPath("validatorConfig", "seedSecretRef"), curr.Spec.ValidatorConfig.SeedSecretRef)
	}
	return errs
}

func nodeTypeStrings() []string {
	out := make([]string, 0, len(AllNodeTypes))
	for _, t := range AllNodeTypes {
		out = append(out, string(t))
	}
	return out
}

func networkStrings() []string {
	out := make([]string, 0, len(AllNetworks))
	for _, n := range AllNetworks {
		out = append(out, string(n))
	}
	return out
}

func retentionPolicyStrings() []string {
	out := make([]string, 0, len(AllRetentionPolicies))
	for _, p := range AllRetentionPolicies {
		out = append(out, string(p))
	}
	return out
}

func mtlsModeStrings() []string {
	out := make([]string, 0, len(AllMtlsModes))
	for _, m := range AllMtlsModes {
		out = append(out, string(m))
	}
	return out
}
