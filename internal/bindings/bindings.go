//go:build !ios && !android && (amd64 || arm64)

// Package bindings handles locating and loading the embedded Node runtime
// shared library (libnode) using purego.
package bindings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/napigo/internal/platform"
)

// ErrNotLoaded is returned when interop functions are called before Load().
var ErrNotLoaded = errors.New("napigo: node runtime library not loaded; call napigo.Init() first")

// ErrLibraryNotFound is returned when the node runtime library cannot be found.
var ErrLibraryNotFound = errors.New("napigo: node runtime library not found")

// Known shared-library ABI versions, newest first. These are the module ABI
// numbers distributions use to version libnode (137 = Node 24, 127 = Node 22,
// 115 = Node 20, 108 = Node 18).
var libnodeVersions = []int{137, 127, 115, 108}

var (
	libNode  uintptr
	libPath  string
	loaded   bool
	loadOnce sync.Once
	loadErr  error
)

// IsLoaded returns true if the node runtime library has been successfully loaded.
func IsLoaded() bool {
	return loaded
}

// Load loads the node runtime library. It is safe to call multiple times;
// subsequent calls are no-ops. Returns an error if the library cannot be
// found or loaded.
func Load() error {
	loadOnce.Do(func() {
		loadErr = doLoad()
		if loadErr == nil {
			loaded = true
		}
	})
	return loadErr
}

func doLoad() error {
	path, err := findLibrary("node", libnodeVersions)
	if err != nil {
		return err
	}
	lib, err := tryOpen(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	libNode = lib
	libPath = path
	return nil
}

// findLibrary searches for a library, trying versioned names first.
func findLibrary(name string, versions []int) (string, error) {
	for _, searchPath := range LibrarySearchPaths() {
		for _, ver := range versions {
			libName := platform.FormatLibraryName(name, ver)
			fullPath := filepath.Join(searchPath, libName)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}

		// Try unversioned name
		libName := platform.FormatLibraryName(name, 0)
		fullPath := filepath.Join(searchPath, libName)
		if _, err := os.Stat(fullPath); err == nil {
			return fullPath, nil
		}
	}

	// Fall back to bare names and let the system loader resolve them.
	for _, ver := range append(versions, 0) {
		libName := platform.FormatLibraryName(name, ver)
		if _, err := tryOpen(libName); err == nil {
			return libName, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
}

// tryOpen attempts to open a library with RTLD_NOW | RTLD_GLOBAL.
// RTLD_GLOBAL is required: addon-style libraries loaded later resolve
// napi symbols against the runtime image.
func tryOpen(path string) (uintptr, error) {
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, err
	}
	return lib, nil
}

// LibrarySearchPaths returns the search paths for the node runtime library,
// in priority order. NAPIGO_LIBRARY_DIR overrides everything.
func LibrarySearchPaths() []string {
	var paths []string

	if dir := os.Getenv("NAPIGO_LIBRARY_DIR"); dir != "" {
		paths = append(paths, dir)
	}

	switch runtime.GOOS {
	case "linux", "freebsd":
		if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
			paths = append(paths, filepath.SplitList(ldPath)...)
		}
		paths = append(paths,
			"/usr/lib/x86_64-linux-gnu",
			"/usr/lib/aarch64-linux-gnu",
			"/usr/local/lib",
			"/usr/lib",
			"/lib",
		)

	case "darwin":
		if dyldPath := os.Getenv("DYLD_LIBRARY_PATH"); dyldPath != "" {
			paths = append(paths, filepath.SplitList(dyldPath)...)
		}
		paths = append(paths,
			"/opt/homebrew/lib", // Apple Silicon
			"/usr/local/lib",    // Intel
			"/opt/homebrew/opt/node/lib",
			"/usr/local/opt/node/lib",
		)

	case "windows":
		if winPath := os.Getenv("PATH"); winPath != "" {
			paths = append(paths, filepath.SplitList(winPath)...)
		}
		if exe, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Dir(exe))
		}
		paths = append(paths,
			"C:\\Program Files\\nodejs",
		)
	}

	// Executable directory last, for bundled deployments.
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Dir(exe))
	}

	return paths
}

// FindLibrary searches for the node runtime library and returns its full
// path without loading it. Useful for diagnostics.
func FindLibrary() (string, error) {
	for _, searchPath := range LibrarySearchPaths() {
		for _, ver := range libnodeVersions {
			libName := platform.FormatLibraryName("node", ver)
			fullPath := filepath.Join(searchPath, libName)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
		libName := platform.FormatLibraryName("node", 0)
		fullPath := filepath.Join(searchPath, libName)
		if _, err := os.Stat(fullPath); err == nil {
			return fullPath, nil
		}
	}
	return "", fmt.Errorf("%w: node", ErrLibraryNotFound)
}

// Lib returns the node runtime library handle, or 0 if not loaded.
func Lib() uintptr {
	return libNode
}

// Path returns the path the runtime library was loaded from, or empty string
// if not loaded.
func Path() string {
	return libPath
}
