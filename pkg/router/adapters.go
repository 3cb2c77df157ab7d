package router

import (
	"path/filepath"
	"strings"
)

// Built-in argument adapters. All of them copy the input map; the
// caller's map is never touched.

func copyArgs(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

// Chain composes adapters left to right.
func Chain(adapters ...AdapterFunc) AdapterFunc {
	return func(args map[string]interface{}) map[string]interface{} {
		out := copyArgs(args)
		for _, a := range adapters {
			out = a(out)
		}
		return out
	}
}

// Rename returns an adapter that renames argument keys. Keys absent
// from the input are ignored.
func Rename(mapping map[string]string) AdapterFunc {
	return func(args map[string]interface{}) map[string]interface{} {
		out := copyArgs(args)
		for from, to := range mapping {
			if v, ok := out[from]; ok {
				delete(out, from)
				out[to] = v
			}
		}
		return out
	}
}

// WithDefaults returns an adapter that fills missing keys with fixed
// values.
func WithDefaults(defaults map[string]interface{}) AdapterFunc {
	return func(args map[string]interface{}) map[string]interface{} {
		out := copyArgs(args)
		for k, v := range defaults {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
		return out
	}
}

// DerivePath returns an adapter that splits a path argument into a file
// stem and output directory, for providers that want them separately.
func DerivePath(pathKey, stemKey, dirKey string) AdapterFunc {
	return func(args map[string]interface{}) map[string]interface{} {
		out := copyArgs(args)
		path, ok := out[pathKey].(string)
		if !ok || path == "" {
			return out
		}
		base := filepath.Base(path)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		if stemKey != "" {
			out[stemKey] = stem
		}
		if dirKey != "" {
			out[dirKey] = filepath.Dir(path)
		}
		return out
	}
}

// SelectorOverride returns an adapter that substitutes a known-site
// selector: when the url argument contains one of the site substrings,
// the mapped selector replaces whatever the caller supplied.
func SelectorOverride(urlKey, selectorKey string, overrides map[string]string) AdapterFunc {
	return func(args map[string]interface{}) map[string]interface{} {
		out := copyArgs(args)
		url, ok := out[urlKey].(string)
		if !ok || url == "" {
			return out
		}
		for site, selector := range overrides {
			if strings.Contains(url, site) {
				out[selectorKey] = selector
				break
			}
		}
		return out
	}
}
