// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package plugin implements the plugin substrate manifest shape
// (spec §4.5, SUPPLEMENTED FEATURES): a small JSON document declaring a
// plugin's name, which event kinds it wants dispatched to it, and
// whether it opts into "also receive while off." Manifests are
// schema-validated the way the teacher validates job metadata and
// config documents (pkg/schema/validate.go), via
// santhosh-tekuri/jsonschema/v5. Loading a real shared-object plugin
// (dlopen) is a platform concern out of scope here; this package only
// validates and registers the manifest into the dispatcher.
package plugin

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/score-p/scorep-measurement-core/internal/dispatch"
)

const manifestSchema = `{
	"type": "object",
	"required": ["name", "events"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"receiveWhileOff": {"type": "boolean"},
		"events": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "string",
				"enum": ["enter", "exit", "sample", "metric", "mpi_send", "mpi_recv", "rma_get", "rma_put", "io_begin", "io_end", "parameter"]
			}
		}
	}
}`

var compiledSchema *jsonschema.Schema

func schema() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("manifest.json", strings.NewReader(manifestSchema)); err != nil {
		return nil, fmt.Errorf("plugin: adding manifest schema resource: %w", err)
	}
	s, err := c.Compile("manifest.json")
	if err != nil {
		return nil, fmt.Errorf("plugin: compiling manifest schema: %w", err)
	}
	compiledSchema = s
	return compiledSchema, nil
}

// Manifest is a validated plugin descriptor.
type Manifest struct {
	Name            string   `json:"name"`
	ReceiveWhileOff bool     `json:"receiveWhileOff"`
	Events          []string `json:"events"`
}

var eventKindByName = map[string]dispatch.EventKind{
	"enter":     dispatch.EventEnter,
	"exit":      dispatch.EventExit,
	"sample":    dispatch.EventSample,
	"metric":    dispatch.EventMetric,
	"mpi_send":  dispatch.EventMPISend,
	"mpi_recv":  dispatch.EventMPIRecv,
	"rma_get":   dispatch.EventRMAGet,
	"rma_put":   dispatch.EventRMAPut,
	"io_begin":  dispatch.EventIOBegin,
	"io_end":    dispatch.EventIOEnd,
	"parameter": dispatch.EventParameter,
}

// Parse validates raw against the manifest schema and decodes it.
func Parse(raw []byte) (*Manifest, error) {
	s, err := schema()
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("plugin: decoding manifest: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return nil, fmt.Errorf("plugin: invalid manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("plugin: decoding manifest: %w", err)
	}
	return &m, nil
}

// AsDispatchSubstrate builds a dispatch.Substrate from m, invoking
// handler for every event kind the manifest declared interest in. The
// real plugin does its own dispatch once loaded (out of scope here);
// this wiring is what the core's dispatcher sees in its place.
func (m *Manifest) AsDispatchSubstrate(handler dispatch.Callback) (*dispatch.Substrate, error) {
	sub := &dispatch.Substrate{Name: m.Name, ReceiveWhileOff: m.ReceiveWhileOff}
	for _, name := range m.Events {
		kind, ok := eventKindByName[name]
		if !ok {
			return nil, fmt.Errorf("plugin: manifest %q declares unknown event kind %q", m.Name, name)
		}
		sub.Callbacks[kind] = handler
	}
	return sub, nil
}
