// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the interface of the runtime that owns the memory of the arrays and executes the
// operations on them.
//
// The engine never touches array memory directly, except through the explicitly documented accessor
// DataInterface.BufferData. Everything else crosses the boundary through one of the methods of Backend: buffer
// allocation, import, release and the execution of an OpType over strided Operand descriptors.
//
// Backends report errors by returning them. A backend may still panic on bugs: the caller (see package gateway)
// recovers those and converts them to errs.InternalFault.
package backends

import (
	"os"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Backend is the API that needs to be implemented by an array backend.
type Backend interface {
	// Name returns the short name of the backend. E.g.: "go" for the SimpleGo backend.
	Name() string

	// Description is a longer description of the Backend that can be used to pretty-print.
	Description() string

	// DataInterface is the sub-interface that defines the API to allocate, access and release buffers.
	DataInterface

	// Execute runs the operation op over the operands, and returns a newly allocated buffer with the
	// contiguous result.
	//
	// The operands are not modified, and they may alias each other.
	Execute(op OpType, operands []Operand, params Params) (Result, error)

	// Finalize releases all the associated resources immediately, and makes the backend invalid.
	Finalize()
}

// Constructor takes a config string (optionally empty) and returns a Backend.
type Constructor func(config string) (Backend, error)

var (
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register backend with the given name, and a default constructor that takes as input a configuration string that is
// passed along to the backend constructor.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// List the names of the registered backends, sorted.
func List() []string {
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultConfig is the name of the default backend configuration to use if specified.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig string

// ConfigEnvVar is the environment variable with the default backend configuration to use.
//
// The format of config is "<backend_name>:<backend_configuration>".
// The "<backend_name>" is the name of a registered backend (e.g.: "go") and
// "<backend_configuration>" is backend specific (e.g.: "max_memory=1GiB,parallelism=4").
const ConfigEnvVar = "NDARRAY_BACKEND"

// New returns a new default Backend.
//
// The default is:
//
// 1. The environment NDARRAY_BACKEND is used as a configuration if defined.
// 2. Next the variable DefaultConfig is used as a configuration if defined.
// 3. The first registered backend is used with an empty configuration.
//
// It returns an error if no backend was registered.
func New() (Backend, error) {
	config, found := os.LookupEnv(ConfigEnvVar)
	if found {
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// NewWithConfig takes a configurations string formated as
// "<backend_name>:<backend_configuration>".
//
// The "<backend_name>" is the name of a registered backend (e.g.: "go") and
// "<backend_configuration>" is backend specific. If there is no ":", the whole string is taken as the backend name.
// If the backend name is empty, the first registered backend is used.
func NewWithConfig(config string) (Backend, error) {
	if len(registeredConstructors) == 0 {
		return nil, errors.Errorf(`no registered backends -- maybe import the default one with import _ "github.com/gomlx/ndarray/backends/default"?`)
	}
	backendName, backendConfig := config, ""
	if idx := strings.Index(config, ":"); idx != -1 {
		backendName = config[:idx]
		backendConfig = config[idx+1:]
	}
	if backendName == "" {
		backendName = firstRegistered
	}
	constructor, found := registeredConstructors[backendName]
	if !found {
		return nil, errors.Errorf("can't find backend %q for configuration %q given, registered backends are %v",
			backendName, config, List())
	}
	backend, err := constructor(backendConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create backend %q", backendName)
	}
	return backend, nil
}

// ParseOptions splits a backend configuration of the form "key1=value1,key2,key3=value3" into a map.
// Keys without a value are mapped to an empty string.
//
// It returns an error for an empty key or for a repeated key.
func ParseOptions(config string) (map[string]string, error) {
	options := make(map[string]string)
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, errors.Errorf("invalid backend configuration option %q in %q: empty key", part, config)
		}
		if _, found := options[key]; found {
			return nil, errors.Errorf("backend configuration option %q given more than once in %q", key, config)
		}
		options[key] = strings.TrimSpace(value)
	}
	return options, nil
}
