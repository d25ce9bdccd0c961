// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cfgreg implements the typed SCOREP_-prefixed configuration
// variable registry (spec §6): BOOL, NUMBER, SIZE, STRING, PATH,
// BITSET, and OPTIONSET variables, sourced from the process
// environment (optionally pre-loaded from a .env-style file via
// joho/godotenv, the teacher's own dependency for local configuration).
package cfgreg

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/score-p/scorep-measurement-core/internal/diag"
)

// Type names one of spec §6's config variable types.
type Type int

const (
	TypeBool Type = iota
	TypeNumber
	TypeSize
	TypeString
	TypePath
	TypeBitset
	TypeOptionSet
)

// Var is one registered configuration variable.
type Var struct {
	Name    string // without the SCOREP_ prefix
	Type    Type
	Default string
	Vocab   []string // closed vocabulary for BITSET/OPTIONSET, name->bit for BITSET

	value string // the resolved raw string (post env-override)
}

// Registry holds every variable registered by the measurement core and
// its adapters, keyed by name.
type Registry struct {
	vars  map[string]*Var
	order []string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{vars: make(map[string]*Var)}
}

const envPrefix = "SCOREP_"

// LoadDotEnv pre-loads SCOREP_* variables from a .env-style file into
// the process environment, without overriding variables already set
// (godotenv.Load's own semantics), before Resolve reads os.Getenv.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("cfgreg: loading %s: %w", path, err)
	}
	return nil
}

// Register adds v to the registry with its default value and returns
// it for chaining (e.g. immediately calling Resolve).
func (r *Registry) Register(v *Var) *Var {
	v.value = v.Default
	r.vars[v.Name] = v
	r.order = append(r.order, v.Name)
	return v
}

// Resolve overwrites every registered variable's value from its
// SCOREP_<NAME> environment variable, if set. Parse errors abort
// initialization per spec §7 ("config and filter parsing fail loudly
// during initialization; failure aborts") by calling diag.Abort;
// Resolve itself does not return early so every variable is checked
// and reported.
func (r *Registry) Resolve() {
	for _, name := range r.order {
		v := r.vars[name]
		raw, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}
		if err := v.validate(raw); err != nil {
			diag.Abort("cfgreg: ", envPrefix+name, ": ", err.Error())
			continue
		}
		v.value = raw
	}
}

// Names returns every registered variable's name (without the SCOREP_
// prefix), in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns the registered variable named name, or nil.
func (r *Registry) Get(name string) *Var {
	return r.vars[name]
}

// Dump renders every registered variable's current value as
// "SCOREP_<NAME>=<value>" lines, in registration order — the format
// both `scorep-info config-vars` and the persisted scorep.cfg use.
func (r *Registry) Dump() string {
	var b strings.Builder
	for _, name := range r.order {
		b.WriteString(envPrefix)
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(r.vars[name].value)
		b.WriteByte('\n')
	}
	return b.String()
}

func (v *Var) validate(raw string) error {
	switch v.Type {
	case TypeNumber:
		if _, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64); err != nil {
			return fmt.Errorf("not a NUMBER: %q", raw)
		}
	case TypeSize:
		if _, err := ParseSize(raw); err != nil {
			return err
		}
	case TypeBitset:
		if _, err := ParseBitset(raw, v.Vocab); err != nil {
			return err
		}
	case TypeOptionSet:
		for _, opt := range v.Vocab {
			if strings.EqualFold(opt, raw) {
				return nil
			}
		}
		return fmt.Errorf("value %q not in vocabulary %v", raw, v.Vocab)
	}
	return nil
}

// Bool returns v's resolved BOOL value (spec §6: "true/yes/on/1/non-
// zero-int => true, false/no/off/0 => false, anything else => false").
func (v *Var) Bool() bool {
	s := strings.ToLower(strings.TrimSpace(v.value))
	switch s {
	case "true", "yes", "on":
		return true
	case "false", "no", "off", "":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n != 0
	}
	return false
}

// Number returns v's resolved NUMBER value.
func (v *Var) Number() uint64 {
	n, _ := strconv.ParseUint(strings.TrimSpace(v.value), 10, 64)
	return n
}

// Size returns v's resolved SIZE value in bytes, applying the K/M/G
// suffix (base 1024) spec §6 specifies.
func (v *Var) Size() uint64 {
	n, _ := ParseSize(v.value)
	return n
}

// String returns v's resolved STRING value verbatim.
func (v *Var) String() string { return v.value }

// IsDefault reports whether v's current value equals its registered
// default. An environment override that repeats the default value is
// not told apart from no override at all. Used by callers (e.g.
// the filter-file loader) that must tell "left at the default" apart
// from "the user explicitly configured this."
func (v *Var) IsDefault() bool { return v.value == v.Default }

// Path returns v's resolved PATH value with a leading `~` expanded to
// the current user's home directory (spec §6).
func (v *Var) Path() string {
	s := v.value
	if strings.HasPrefix(s, "~") {
		if u, err := user.Current(); err == nil {
			s = u.HomeDir + strings.TrimPrefix(s, "~")
		}
	}
	return s
}

// Bitset returns v's resolved BITSET value as a 64-bit mask.
func (v *Var) Bitset() uint64 {
	mask, _ := ParseBitset(v.value, v.Vocab)
	return mask
}

// ParseSize parses a SIZE value: an unsigned base-10 number with an
// optional K/M/G suffix (base 1024), per spec §6.
func ParseSize(raw string) (uint64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	mult := uint64(1)
	suffix := s[len(s)-1]
	switch suffix {
	case 'k', 'K':
		mult = 1024
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1024 * 1024
		s = s[:len(s)-1]
	case 'g', 'G':
		mult = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a SIZE: %q", raw)
	}
	return n * mult, nil
}
