// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package filter implements the include/exclude filter engine (spec
// §4.6): a file-scoped and a region-scoped block of shell-glob
// INCLUDE/EXCLUDE patterns, parsed once at initialization and queried
// through three pure functions for the rest of the process lifetime.
//
// Grounded on the teacher's internal/config line-oriented parsing
// style; per-handle result memoization uses
// hashicorp/golang-lru/v2, already a teacher dependency (pkg/lrucache
// wraps a hand-rolled cache — here the ecosystem generic LRU plays the
// same role with a type-safe API).
package filter

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// block is one INCLUDE/EXCLUDE pattern list (spec §4.6).
type block struct {
	includes []string
	excludes []string
}

// passes reports whether name is recorded by this block: explicitly
// INCLUDEd, or (no INCLUDE list present) not EXCLUDEd (spec §4.6).
func (b block) passes(name string) bool {
	excluded := false
	for _, p := range b.excludes {
		if ok, _ := filepath.Match(p, name); ok {
			excluded = true
			break
		}
	}
	if len(b.includes) == 0 {
		return !excluded
	}
	for _, p := range b.includes {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Filter is a parsed filter file: one region block and one file block
// (spec §4.6).
type Filter struct {
	region block
	file   block

	regionCache *lru.Cache[string, bool]
	fileCache   *lru.Cache[string, bool]
}

// New returns an empty filter (matches everything).
func New() *Filter {
	regionCache, _ := lru.New[string, bool](4096)
	fileCache, _ := lru.New[string, bool](1024)
	return &Filter{regionCache: regionCache, fileCache: fileCache}
}

const (
	regionBegin = "SCOREP_REGION_NAMES_BEGIN"
	regionEnd   = "SCOREP_REGION_NAMES_END"
	fileBegin   = "SCOREP_FILE_NAMES_BEGIN"
	fileEnd     = "SCOREP_FILE_NAMES_END"
)

// Parse reads a filter file per spec §4.6/§7: line-oriented, `#`
// comments, blank lines ignored, unknown tokens are a parse error that
// aborts initialization (the caller decides how to surface that; Parse
// itself just returns the error).
func Parse(r io.Reader) (*Filter, error) {
	f := New()
	scanner := bufio.NewScanner(r)

	var current *block
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch line {
		case regionBegin:
			if current != nil {
				return nil, fmt.Errorf("filter:%d: nested block begin", lineNo)
			}
			current = &f.region
			continue
		case fileBegin:
			if current != nil {
				return nil, fmt.Errorf("filter:%d: nested block begin", lineNo)
			}
			current = &f.file
			continue
		case regionEnd, fileEnd:
			if current == nil {
				return nil, fmt.Errorf("filter:%d: block end without matching begin", lineNo)
			}
			current = nil
			continue
		}

		if current == nil {
			return nil, fmt.Errorf("filter:%d: token %q outside any block", lineNo, line)
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "INCLUDE":
			current.includes = append(current.includes, fields[1:]...)
		case "EXCLUDE":
			current.excludes = append(current.excludes, fields[1:]...)
		default:
			return nil, fmt.Errorf("filter:%d: unknown token %q", lineNo, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		return nil, fmt.Errorf("filter: unterminated block")
	}
	return f, nil
}

// MatchFile reports whether path is filtered out by the file block
// (true = excluded from recording), per spec §8 scenario 4's naming
// ("match=true (filtered out)"). Results are cached per path in a
// bounded LRU; an evicted path is recomputed from the same parsed
// blocks, so the answer for a path never changes, matching the
// determinism §8 requires.
func (f *Filter) MatchFile(path string) bool {
	if v, ok := f.fileCache.Get(path); ok {
		return v
	}
	v := !f.file.passes(path)
	f.fileCache.Add(path, v)
	return v
}

// MatchRegion reports whether a region is filtered out: it is filtered
// out if the containing file is filtered out regardless of the region
// block, else if neither its demangled nor its mangled name passes the
// region block (spec §4.6: "a region is recorded if and only if it
// passes both blocks"). file may be "" when no file association is
// known (see MatchFunction).
func (f *Filter) MatchRegion(demangled, mangled, file string) bool {
	if file != "" && f.MatchFile(file) {
		return true
	}
	key := demangled + "\x00" + mangled
	if v, ok := f.regionCache.Get(key); ok {
		return v
	}
	v := !(f.region.passes(demangled) || f.region.passes(mangled))
	f.regionCache.Add(key, v)
	return v
}

// MatchFunction is MatchRegion with no enclosing file context, for
// callers (e.g. sampling adapters) that only have a function name and
// no source-file association.
func (f *Filter) MatchFunction(demangled, mangled string) bool {
	return f.MatchRegion(demangled, mangled, "")
}
