// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package v1alpha1

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/scheme"
)

const (
	// Kind is the kind of the StellarNode resource.
	Kind = "StellarNode"

	// Finalizer blocks API server driven deletion until the operator has torn down
	// all owned children.
	Finalizer = "finalizer.stellar.org/stellarnode"

	// RetainedAnnotation marks a PersistentVolumeClaim that survived the deletion of
	// its owning StellarNode because of a Retain retention policy.
	RetainedAnnotation = "stellar.org/retained"
	// RetainedAtAnnotation records when the claim was orphaned on purpose.
	RetainedAtAnnotation = "stellar.org/retained-at"
)

var (
	// GroupVersion is group version used to register these objects.
	GroupVersion = schema.GroupVersion{Group: "stellar.org", Version: "v1alpha1"}

	// SchemeBuilder is used to add go types to the GroupVersionKind scheme.
	SchemeBuilder = &scheme.Builder{GroupVersion: GroupVersion}

	// AddToScheme adds the types in this group-version to the given scheme.
	AddToScheme = SchemeBuilder.AddToScheme
)

func init() {
	SchemeBuilder.Register(&StellarNode{}, &StellarNodeList{})
}

// NodeType describes the role of the managed Stellar workload.
type NodeType string

const (
	NodeTypeValidator  NodeType = "Validator"
	NodeTypeHorizon    NodeType = "Horizon"
	NodeTypeSorobanRpc NodeType = "SorobanRpc"
)

// AllNodeTypes lists the supported node types for validation messages.
var AllNodeTypes = []NodeType{NodeTypeValidator, NodeTypeHorizon, NodeTypeSorobanRpc}

// RetentionPolicy decides the fate of storage claims when the owning node is deleted.
type RetentionPolicy string

const (
	RetentionPolicyDelete RetentionPolicy = "Delete"
	RetentionPolicyRetain RetentionPolicy = "Retain"
)

// AllRetentionPolicies lists the supported retention policies for validation messages.
var AllRetentionPolicies = []RetentionPolicy{RetentionPolicyDelete, RetentionPolicyRetain}

// StellarNodePhase is the coarse-grained lifecycle phase surfaced in status.
type StellarNodePhase string

const (
	NodePhasePending  StellarNodePhase = "Pending"
	NodePhaseCreating StellarNodePhase = "Creating"
	NodePhaseRunning  StellarNodePhase = "Running"
	NodePhaseFailed   StellarNodePhase = "Failed"
	NodePhaseDeleting StellarNodePhase = "Deleting"
	NodePhaseDeleted  StellarNodePhase = "Deleted"
)

// Condition types maintained by the operator on the status subresource.
const (
	ConditionReady       = "Ready"
	ConditionProgressing = "Progressing"
)

// Condition reasons.
const (
	ReasonSpecValid       = "SpecValid"
	ReasonSpecInvalid     = "SpecInvalid"
	ReasonChildrenEnsured = "ChildrenEnsured"
	ReasonNodeSynced      = "NodeSynced"
	ReasonNodeUnhealthy   = "NodeUnhealthy"
	ReasonHealthUnknown   = "HealthUnknown"
	ReasonSuspended       = "Suspended"
	ReasonDeleting        = "Deleting"
)

// StellarNodeSpec holds the user-authored desired state of a Stellar node deployment.
type StellarNodeSpec struct {
	// NodeType is the role of the node: Validator, Horizon or SorobanRpc.
	NodeType NodeType `json:"nodeType"`

	// Network is the Stellar network the node joins.
	Network Network `json:"network"`

	// Version is the container image reference used for the main container.
	// A bare tag is resolved against the default image for the node type.
	// +kubebuilder:validation:Optional
	Version string `json:"version,omitempty"`

	// Replicas is the number of pods. Validators are limited to a single replica.
	// +kubebuilder:validation:Optional
	// +kubebuilder:validation:Minimum=1
	Replicas *int32 `json:"replicas,omitempty"`

	// Resources are the compute resources for the main container.
	// +kubebuilder:validation:Optional
	Resources *corev1.ResourceRequirements `json:"resources,omitempty"`

	// Storage configures the persistent storage claims of the node.
	// +kubebuilder:validation:Optional
	Storage *StorageConfig `json:"storage,omitempty"`

	// ValidatorConfig is required when nodeType is Validator.
	// +kubebuilder:validation:Optional
	ValidatorConfig *ValidatorConfig `json:"validatorConfig,omitempty"`

	// HorizonConfig is required when nodeType is Horizon.
	// +kubebuilder:validation:Optional
	HorizonConfig *HorizonConfig `json:"horizonConfig,omitempty"`

	// SorobanConfig is required when nodeType is SorobanRpc.
	// +kubebuilder:validation:Optional
	SorobanConfig *SorobanConfig `json:"sorobanConfig,omitempty"`

	// ServiceMesh enables generation of service mesh policies for the node.
	// +kubebuilder:validation:Optional
	ServiceMesh *ServiceMeshConfig `json:"serviceMesh,omitempty"`

	// Suspended scales the workload down to zero replicas without deleting anything.
	// +kubebuilder:validation:Optional
	Suspended bool `json:"suspended,omitempty"`

	// MinAvailable, when set, creates a PodDisruptionBudget with the given minAvailable.
	// Mutually exclusive with MaxUnavailable.
	// +kubebuilder:validation:Optional
	MinAvailable *int32 `json:"minAvailable,omitempty"`

	// MaxUnavailable, when set, creates a PodDisruptionBudget with the given maxUnavailable.
	// Mutually exclusive with MinAvailable.
	// +kubebuilder:validation:Optional
	MaxUnavailable *int32 `json:"maxUnavailable,omitempty"`
}

// StorageConfig describes the persistent storage of a node.
type StorageConfig struct {
	// StorageClass names the storage class of the claims. Immutable.
	// +kubebuilder:validation:Optional
	StorageClass string `json:"storageClass,omitempty"`
	// Size is the requested capacity per claim. Immutable.
	// +kubebuilder:validation:Optional
	Size resource.Quantity `json:"size,omitempty"`
	// RetentionPolicy decides whether claims are deleted or retained on node deletion.
	// +kubebuilder:validation:Optional
	RetentionPolicy RetentionPolicy `json:"retentionPolicy,omitempty"`
}

// QuorumSetEntry is one trusted validator in a quorum set. The structure is validated
// but otherwise opaque to the operator.
type QuorumSetEntry struct {
	ValidatorName string `json:"validatorName"`
	PublicKey     string `json:"publicKey"`
	// +kubebuilder:validation:Optional
	HomeDomain string `json:"homeDomain,omitempty"`
}

// ValidatorConfig holds configuration specific to Validator nodes.
type ValidatorConfig struct {
	// SeedSecretRef references the Secret holding the node seed, or a
	// `vault:<mount>/<path>#<field>` locator resolved through HashiCorp Vault. Immutable.
	SeedSecretRef string `json:"seedSecretRef"`
	// QuorumSet is the set of trusted peers.
	// +kubebuilder:validation:Optional
	QuorumSet []QuorumSetEntry `json:"quorumSet,omitempty"`
	// EnableHistoryArchive turns on history archive publication.
	// +kubebuilder:validation:Optional
	EnableHistoryArchive bool `json:"enableHistoryArchive,omitempty"`
	// HistoryArchiveUrls are the archive locations (http(s)://, s3://, gs://, azblob://).
	// +kubebuilder:validation:Optional
	HistoryArchiveUrls []string `json:"historyArchiveUrls,omitempty"`
}

// HorizonConfig holds configuration specific to Horizon API servers.
type HorizonConfig struct {
	// DatabaseSecretRef references the Secret with the database connection string.
	DatabaseSecretRef string `json:"databaseSecretRef"`
	// StellarCoreUrl is the URL of the stellar-core instance Horizon connects to.
	StellarCoreUrl string `json:"stellarCoreUrl"`
	// EnableIngest turns on ledger ingestion.
	// +kubebuilder:validation:Optional
	EnableIngest bool `json:"enableIngest,omitempty"`
	// IngestWorkers is the parallelism of the ingestion pipeline.
	// +kubebuilder:validation:Optional
	IngestWorkers *int32 `json:"ingestWorkers,omitempty"`
}

// CaptiveCoreConfig configures the optional captive stellar-core sidecar of a Soroban RPC node.
type CaptiveCoreConfig struct {
	// +kubebuilder:validation:Optional
	Image string `json:"image,omitempty"`
	// +kubebuilder:validation:Optional
	StorageSize *resource.Quantity `json:"storageSize,omitempty"`
}

// SorobanConfig holds configuration specific to Soroban RPC nodes.
type SorobanConfig struct {
	// +kubebuilder:validation:Optional
	DatabaseSecretRef string `json:"databaseSecretRef,omitempty"`
	// StellarCoreUrl is the URL of the stellar-core instance the RPC server queries.
	StellarCoreUrl string `json:"stellarCoreUrl"`
	// +kubebuilder:validation:Optional
	EnablePreflight bool `json:"enablePreflight,omitempty"`
	// +kubebuilder:validation:Optional
	MaxEventsPerRequest *int32 `json:"maxEventsPerRequest,omitempty"`
	// CaptiveCore enables a captive stellar-core sidecar container.
	// +kubebuilder:validation:Optional
	CaptiveCore *CaptiveCoreConfig `json:"captiveCore,omitempty"`
}

// StellarNodeStatus is the operator-authored observed state, written through the
// status subresource only.
type StellarNodeStatus struct {
	// Phase is the coarse lifecycle phase. An empty phase means Pending.
	// +kubebuilder:validation:Optional
	Phase StellarNodePhase `json:"phase,omitempty"`

	// ObservedGeneration is the most recent spec generation fully processed.
	// +kubebuilder:validation:Optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// Conditions holds the Ready and Progressing conditions.
	// +kubebuilder:validation:Optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`

	// LedgerSequence is the last known head ledger reported by a healthy pod.
	// +kubebuilder:validation:Optional
	LedgerSequence int64 `json:"ledgerSequence,omitempty"`

	// Message is a freeform operator note about the current state.
	// +kubebuilder:validation:Optional
	Message string `json:"message,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:categories=stellar,shortName=sn
// +kubebuilder:printcolumn:name="type",type="string",JSONPath=".spec.nodeType"
// +kubebuilder:printcolumn:name="network",type="string",JSONPath=".spec.network"
// +kubebuilder:printcolumn:name="phase",type="string",JSONPath=".status.phase"
// +kubebuilder:printcolumn:name="ledger",type="integer",JSONPath=".status.ledgerSequence"
// +kubebuilder:printcolumn:name="age",type="date",JSONPath=".metadata.creationTimestamp"

// StellarNode is the Schema for a managed Stellar network node.
type StellarNode struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   StellarNodeSpec   `json:"spec,omitempty"`
	Status StellarNodeStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// StellarNodeList contains a list of StellarNode.
type StellarNodeList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []StellarNode `json:"items"`
}

// IsMarkedForDeletion returns true if the StellarNode is going to be deleted.
func (n *StellarNode) IsMarkedForDeletion() bool {
	return !n.DeletionTimestamp.IsZero()
}

// HasFinalizer returns true if the cleanup finalizer is present on the object.
func (n *StellarNode) HasFinalizer() bool {
	for _, f := range n.Finalizers {
		if f == Finalizer {
			return true
		}
	}
	return false
}

// ReplicasOrDefault returns the declared replica count, defaulting to one.
func (n *StellarNode) ReplicasOrDefault() int32 {
	if n.Spec.Replicas == nil {
		return 1
	}
	return *n.Spec.Replicas
}

// NeedsStorage returns true for node types backed by a persistent claim.
func (n *StellarNode) NeedsStorage() bool {
	return n.Spec.NodeType == NodeTypeValidator || n.Spec.NodeType == NodeTypeSorobanRpc
}

// NodeTypeIsSoroban returns true when the node runs the Soroban RPC server.
func (n *StellarNode) NodeTypeIsSoroban() bool {
	return n.Spec.NodeType == NodeTypeSorobanRpc
}

// EffectivePhase maps the empty phase to Pending.
func (s StellarNodeStatus) EffectivePhase() StellarNodePhase {
	if s.Phase == "" {
		return NodePhasePending
	}
	return s.Phase
}
