// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RegistryConfig holds settings for opening a document registry.
type RegistryConfig struct {
	// Dir is the tracked corpus root. It must be an absolute path.
	Dir string `json:"dir" yaml:"dir"`

	// Name is the logical registry name. Together with Dir it derives a
	// stable backend identity, so distinct (name, dir) pairs never share
	// a backing store.
	Name string `json:"name" yaml:"name"`

	// Backend selects the storage backend (default "sqlite").
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`

	// StateDir overrides where backing stores live
	// (default ~/.config/docbase).
	StateDir string `json:"state_dir,omitempty" yaml:"state_dir,omitempty"`
}

// IngestConfig holds settings for the upload staging pipeline.
type IngestConfig struct {
	// FileTypes lists the recognized file suffixes, including the dot
	// (default .docx, .pdf, .txt, .json).
	FileTypes []string `json:"file_types" yaml:"file_types"`

	// Override controls whether an uploaded file replaces an existing
	// file of the same name in the corpus directory.
	Override bool `json:"override" yaml:"override"`

	// PoolSize bounds the staging worker pool (default: number of CPUs).
	PoolSize int `json:"pool_size" yaml:"pool_size"`
}

// ServerConfig holds settings for the HTTP upload surface.
type ServerConfig struct {
	// Addr is the listen address (default ":8100").
	Addr string `json:"addr" yaml:"addr"`

	// Group is the knowledge-base group uploads attach to when the
	// request names none (default: the registry default group).
	Group string `json:"group,omitempty" yaml:"group,omitempty"`
}

// LaunchConfig holds settings for launching the inference server.
type LaunchConfig struct {
	// ModelDir is the directory holding model weights. When it contains
	// no weight files, BaseModel is used instead.
	ModelDir string `json:"model_dir" yaml:"model_dir"`

	// BaseModel is the fallback model identifier.
	BaseModel string `json:"base_model" yaml:"base_model"`

	// TrustRemoteCode passes --trust-remote-code to the server.
	TrustRemoteCode bool `json:"trust_remote_code" yaml:"trust_remote_code"`

	// Options overrides individual server arguments (e.g. "port",
	// "tensor-parallel-size"). Unknown keys are rejected.
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty"`

	// SecretsDir is the directory of token files injected into the
	// server environment (default ".secrets/").
	SecretsDir string `json:"secrets_dir,omitempty" yaml:"secrets_dir,omitempty"`

	// ReadyTimeout bounds how long to wait for the server to answer on
	// its generate endpoint (default 5 minutes).
	ReadyTimeout time.Duration `json:"ready_timeout" yaml:"ready_timeout"`
}
