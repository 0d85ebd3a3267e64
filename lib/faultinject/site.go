package faultinject

import (
	"fmt"
	"path"
	"runtime"
	"strings"
)

// Site identifies one call site whose predicate may be forced to its
// failing branch.
//
// Two sites are the same when Line and Function match; File is kept
// for tracing only.
type Site struct {
	File     string
	Line     int
	Function string
}

// siteKey is the registry lookup key
type siteKey struct {
	line     int
	function string
}

func (s Site) key() siteKey {
	return siteKey{line: s.Line, function: s.Function}
}

// String returns the site as "file:line function"
func (s Site) String() string {
	return fmt.Sprintf("%s:%d %s", s.File, s.Line, s.Func())
}

// Func returns the function name as "package.Function"
func (s Site) Func() string {
	return shortFunction(s.Function)
}

// Here returns the Site of its caller.
//
// Use it directly in the predicate expression so each check gets its
// own site:
//
//	if r.Check(ws != 0, faultinject.Here(), scope, id) {
func Here() Site {
	return caller(3)
}

func caller(skip int) Site {
	pc := make([]uintptr, 1)
	if runtime.Callers(skip, pc) == 0 {
		return Site{File: "unknown"}
	}
	frame, _ := runtime.CallersFrames(pc).Next()
	return Site{
		File:     path.Base(frame.File),
		Line:     frame.Line,
		Function: frame.Function,
	}
}

// shortFunction strips the import path from a function name leaving
// "package.Function"
func shortFunction(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}
