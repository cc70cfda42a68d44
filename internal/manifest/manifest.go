// Package manifest discovers and decodes HCL plugin manifests.
//
// Manifests live in one subdirectory per category (source, transform,
// sink) of a plugins directory. The category of every entry is taken from
// the subdirectory it was found in.
package manifest

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/fsutil"
	"github.com/vk/framegrid/internal/plugin"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Plugin is one decoded manifest entry.
type Plugin struct {
	// Label is the block label.
	Label string
	// Implementation is the registry key, defaulting to Label.
	Implementation string
	Description    string
	Category       plugin.Category
	// Settings are the params rendered as sorted key=value lines.
	Settings []string
	// File is the manifest the entry came from.
	File string
}

// FileError is a per-file discovery failure. It is a warning, not fatal.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Result is the outcome of a directory scan.
type Result struct {
	Plugins  []Plugin
	Warnings []error
}

// Find scans the category subdirectories of dir. A missing category
// subdirectory is skipped; an unreadable dir is an error.
func Find(ctx context.Context, dir string) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	ok, err := fsutil.IsDir(dir)
	if err != nil {
		return nil, fmt.Errorf("plugins directory %s: %w", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("plugins directory %s is not a readable directory", dir)
	}

	parser := hclparse.NewParser()
	res := &Result{}
	for _, cat := range plugin.Categories {
		sub := filepath.Join(dir, cat.String())
		exists, err := fsutil.IsDir(sub)
		if err != nil {
			res.Warnings = append(res.Warnings, &FileError{Path: sub, Err: err})
			continue
		}
		if !exists {
			logger.Debug("Category directory missing, skipping.", "path", sub)
			continue
		}
		files, err := fsutil.FindFilesByExtension(sub, ".hcl")
		if err != nil {
			res.Warnings = append(res.Warnings, &FileError{Path: sub, Err: err})
			continue
		}
		logger.Debug("Discovered manifest files.", "category", cat.String(), "count", len(files))
		for _, file := range files {
			hclFile, diags := parser.ParseHCLFile(file)
			if diags.HasErrors() {
				res.Warnings = append(res.Warnings, &FileError{Path: file, Err: diags})
				continue
			}
			plugins, err := decode(hclFile.Body, file, cat)
			if err != nil {
				res.Warnings = append(res.Warnings, &FileError{Path: file, Err: err})
				continue
			}
			res.Plugins = append(res.Plugins, plugins...)
		}
	}
	for _, w := range res.Warnings {
		logger.Warn("Skipping manifest.", "error", w)
	}
	return res, nil
}

// Parse decodes manifest source held in memory.
func Parse(src []byte, filename string, cat plugin.Category) ([]Plugin, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diags
	}
	return decode(hclFile.Body, filename, cat)
}

func decode(body hcl.Body, file string, cat plugin.Category) ([]Plugin, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return nil, diags
	}
	out := make([]Plugin, 0, len(root.Plugins))
	for _, b := range root.Plugins {
		settings, err := paramsToSettings(b.Params)
		if err != nil {
			return nil, fmt.Errorf("plugin %q: %w", b.Label, err)
		}
		impl := b.Implementation
		if impl == "" {
			impl = b.Label
		}
		out = append(out, Plugin{
			Label:          b.Label,
			Implementation: impl,
			Description:    b.Description,
			Category:       cat,
			Settings:       settings,
			File:           file,
		})
	}
	return out, nil
}

// paramsToSettings flattens an object of primitive values into sorted
// key=value lines. Null values are dropped.
func paramsToSettings(params *cty.Value) ([]string, error) {
	if params == nil || params.IsNull() {
		return nil, nil
	}
	v := *params
	t := v.Type()
	if !t.IsObjectType() && !t.IsMapType() {
		return nil, fmt.Errorf("params must be an object, got %s", t.FriendlyName())
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("params must be known values")
	}

	var lines []string
	for it := v.ElementIterator(); it.Next(); {
		k, elem := it.Element()
		key := k.AsString()
		if elem.IsNull() {
			continue
		}
		if !elem.Type().IsPrimitiveType() {
			return nil, fmt.Errorf("param %q must be a string, number or bool, got %s", key, elem.Type().FriendlyName())
		}
		s, err := convert.Convert(elem, cty.String)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", key, err)
		}
		lines = append(lines, key+"="+s.AsString())
	}
	sort.Strings(lines)
	return lines, nil
}
