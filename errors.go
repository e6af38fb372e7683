// errors.go: structured error definitions for the go-pluginhost system
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"github.com/agilira/go-errors"
)

// Error codes for the go-pluginhost system
const (
	// Registry errors (1000-1099)
	ErrCodeDuplicateID       = "HOST_1001"
	ErrCodeInvalidDescriptor = "HOST_1002"
	ErrCodeBlockedIdentity   = "HOST_1003"
	ErrCodeRecordNotFound    = "HOST_1004"

	// Resolution errors (1100-1199)
	ErrCodeUnresolvedDependency = "RESOLVE_1101"
	ErrCodeUnlinkable           = "RESOLVE_1102"

	// Lifecycle errors (1200-1299)
	ErrCodeConstruction = "LIFECYCLE_1201"
	ErrCodeActivation   = "LIFECYCLE_1202"
	ErrCodeDeactivation = "LIFECYCLE_1203"
	ErrCodeShuttingDown = "LIFECYCLE_1204"

	// Discovery and configuration errors (1300-1399)
	ErrCodeDiscoveryError        = "DISCOVERY_1301"
	ErrCodeManifestParseError    = "DISCOVERY_1302"
	ErrCodeWatcherError          = "DISCOVERY_1303"
	ErrCodeConfigParseError      = "CONFIG_1304"
	ErrCodeConfigValidationError = "CONFIG_1305"
	ErrCodeConfigWatcherError    = "CONFIG_1306"

	// Internal errors (1900-1999)
	ErrCodeUnsupported = "INTERNAL_1901"
	ErrCodeInternal    = "INTERNAL_1902"
)

// Registry error constructors

func NewDuplicateIDError(id Identity, existingVersion, rejectedVersion string) *errors.Error {
	return errors.New(ErrCodeDuplicateID, "Duplicate plugin identity").
		WithUserMessage("A plugin with this identity is already registered").
		WithContext("plugin_id", string(id)).
		WithContext("existing_version", existingVersion).
		WithContext("rejected_version", rejectedVersion).
		WithSeverity("warning")
}

func NewInvalidDescriptorError(message string) *errors.Error {
	return errors.New(ErrCodeInvalidDescriptor, "Invalid plugin descriptor: "+message).
		WithUserMessage("The plugin descriptor failed validation").
		WithSeverity("error")
}

func NewBlockedIdentityError(id Identity) *errors.Error {
	return errors.New(ErrCodeBlockedIdentity, "Blocked plugin identity").
		WithUserMessage("The plugin identity is rejected by the configured predicate").
		WithContext("plugin_id", string(id)).
		WithSeverity("warning")
}

func NewRecordNotFoundError(id Identity) *errors.Error {
	return errors.New(ErrCodeRecordNotFound, "Plugin record not found").
		WithUserMessage("No plugin with the requested identity is registered").
		WithContext("plugin_id", string(id)).
		WithSeverity("error")
}

// Resolution error constructors

func NewUnresolvedDependencyError(requestor, want Identity) *errors.Error {
	return errors.New(ErrCodeUnresolvedDependency, "Unresolved dependency").
		WithUserMessage("A required dependency has no satisfying plugin").
		WithContext("requestor", string(requestor)).
		WithContext("dependency", string(want)).
		WithSeverity("error")
}

func NewUnlinkableError(id Identity) *errors.Error {
	return errors.New(ErrCodeUnlinkable, "Plugin is not linkable").
		WithUserMessage("The plugin cannot be constructed because its dependency graph is incomplete").
		WithContext("plugin_id", string(id)).
		WithSeverity("error")
}

// Lifecycle error constructors

func NewConstructionError(id Identity, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConstruction, "Plugin construction failed").
		WithUserMessage("The plugin constructor returned an error").
		WithContext("plugin_id", string(id)).
		WithSeverity("error")
}

func NewActivationError(id Identity, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeActivation, "Plugin activation failed").
		WithUserMessage("An activator hook returned an error").
		WithContext("plugin_id", string(id)).
		WithSeverity("error").
		AsRetryable()
}

func NewDeactivationError(id Identity, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeDeactivation, "Plugin deactivation failed").
		WithUserMessage("A deactivator hook returned an error").
		WithContext("plugin_id", string(id)).
		WithSeverity("warning")
}

func NewShuttingDownError(operation string) *errors.Error {
	return errors.New(ErrCodeShuttingDown, "Manager is shutting down").
		WithUserMessage("The plugin manager no longer accepts operations").
		WithContext("operation", operation).
		WithSeverity("warning")
}

// Discovery and configuration error constructors

func NewDiscoveryError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeDiscoveryError, "Discovery error: "+message).
		WithUserMessage("Plugin discovery failed").
		WithSeverity("error")
}

func NewManifestParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeManifestParseError, "Manifest parse error").
		WithUserMessage("Failed to parse plugin manifest").
		WithContext("manifest_path", path).
		WithSeverity("warning")
}

func NewWatcherError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeWatcherError, "Watcher error: "+message).
		WithUserMessage("Directory watching failed").
		WithSeverity("error").
		AsRetryable()
}

func NewConfigParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigParseError, "Configuration parse error").
		WithUserMessage("Failed to parse configuration file").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigValidationError(message string, cause error) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeConfigValidationError, "Configuration validation error: "+message).
			WithUserMessage("Configuration validation failed").
			WithSeverity("error")
	}
	return errors.New(ErrCodeConfigValidationError, "Configuration validation error: "+message).
		WithUserMessage("Configuration validation failed").
		WithSeverity("error")
}

func NewConfigWatcherError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigWatcherError, "Configuration watcher error: "+message).
		WithUserMessage("Configuration monitoring failed").
		WithSeverity("error")
}

// Internal error constructors

func NewUnsupportedError(operation string) *errors.Error {
	return errors.New(ErrCodeUnsupported, "Unsupported operation: "+operation).
		WithUserMessage("The requested operation is reserved for a future version").
		WithContext("operation", operation).
		WithSeverity("warning")
}

func NewInternalError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeInternal, "Internal invariant violated: "+message).
		WithUserMessage("The plugin manager detected an internal inconsistency").
		WithSeverity("critical")
}
