// Package validation provides input validation for identifiers that end up
// on a command line, so a configuration value can never smuggle shell syntax
// into a provisioning step.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Common validation errors.
var (
	ErrEmptyInput          = errors.New("input cannot be empty")
	ErrInvalidPackageName  = errors.New("invalid package name")
	ErrInvalidResourceName = errors.New("invalid resource name")
	ErrInvalidKubeName     = errors.New("invalid kubernetes name")
	ErrInvalidStepName     = errors.New("invalid step name")
	ErrInvalidLocation     = errors.New("invalid location")
	ErrInvalidUUID         = errors.New("invalid UUID")
	ErrPathTraversal       = errors.New("path traversal detected")
	ErrInvalidPath         = errors.New("invalid path")
	ErrCommandInjection    = errors.New("potential command injection detected")
)

var (
	// packageNameRegex matches apt package names: "curl", "mosquitto-clients", "g++".
	packageNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._+-]*$`)

	// resourceNameRegex matches Azure resource group, cluster and vault names.
	resourceNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

	// kubeNameRegex matches RFC 1123 labels used for namespaces and deployments.
	kubeNameRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

	// stepNameRegex matches user-declared step names.
	stepNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

	// locationRegex matches Azure region names such as "eastus2".
	locationRegex = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

	shellMetaChars = []string{";", "|", "&", "$", "`", "(", ")", "{", "}", "<", ">", "\n", "\r", "\\"}
)

// ValidatePackageName validates an apt package name.
func ValidatePackageName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}
	if len(name) > 256 {
		return fmt.Errorf("%w: name too long (max 256 characters)", ErrInvalidPackageName)
	}
	if !packageNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidPackageName, name)
	}
	if containsShellMeta(name) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, name)
	}
	return nil
}

// ValidateResourceName validates an Azure resource name (resource group,
// connected cluster, key vault, AIO instance).
func ValidateResourceName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}
	if len(name) > 90 {
		return fmt.Errorf("%w: %q is longer than 90 characters", ErrInvalidResourceName, name)
	}
	if !resourceNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q must start with a letter or digit and contain only letters, digits, '.', '_' or '-'", ErrInvalidResourceName, name)
	}
	if strings.HasSuffix(name, ".") {
		return fmt.Errorf("%w: %q cannot end with '.'", ErrInvalidResourceName, name)
	}
	return nil
}

// ValidateKubernetesName validates a namespace or workload name.
func ValidateKubernetesName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}
	if len(name) > 63 {
		return fmt.Errorf("%w: %q is longer than 63 characters", ErrInvalidKubeName, name)
	}
	if !kubeNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q must be lowercase alphanumeric or '-', starting and ending with an alphanumeric", ErrInvalidKubeName, name)
	}
	return nil
}

// ValidateStepName validates the name of a user-declared step.
func ValidateStepName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}
	if len(name) > 128 {
		return fmt.Errorf("%w: %q is longer than 128 characters", ErrInvalidStepName, name)
	}
	if !stepNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q must contain only letters, digits, '_' or '-'", ErrInvalidStepName, name)
	}
	return nil
}

// ValidateLocation validates an Azure region name.
func ValidateLocation(location string) error {
	if location == "" {
		return ErrEmptyInput
	}
	if !locationRegex.MatchString(location) {
		return fmt.Errorf("%w: %q must be a lowercase region name such as eastus2", ErrInvalidLocation, location)
	}
	return nil
}

// ValidateUUID validates subscription IDs and object IDs.
func ValidateUUID(value string) error {
	if value == "" {
		return ErrEmptyInput
	}
	if _, err := uuid.Parse(value); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidUUID, value, err)
	}
	return nil
}

// ValidatePath validates a file path and rejects traversal sequences.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyInput
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: path contains null byte", ErrInvalidPath)
	}
	if containsPathTraversal(path) {
		return fmt.Errorf("%w: %q contains traversal sequence", ErrPathTraversal, path)
	}
	return nil
}

// ValidatePathWithBase validates that path stays inside basePath.
func ValidatePathWithBase(path, basePath string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}

	cleanPath := filepath.Clean(path)
	cleanBase := filepath.Clean(basePath)
	if !filepath.IsAbs(cleanPath) {
		cleanPath = filepath.Join(cleanBase, cleanPath)
	}
	if cleanPath != cleanBase && !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) {
		return fmt.Errorf("%w: path %q escapes base directory %q", ErrPathTraversal, path, basePath)
	}
	return nil
}

func containsShellMeta(s string) bool {
	for _, char := range shellMetaChars {
		if strings.Contains(s, char) {
			return true
		}
	}
	return false
}

func containsPathTraversal(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return true
		}
	}
	lower := strings.ToLower(path)
	return strings.Contains(lower, "%2e%2e")
}
