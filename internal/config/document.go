package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	apperrors "cms-instance-sync/internal/errors"
)

// Document is one layer of configuration. Values are scalars, sequences
// ([]interface{}) or nested mappings (map[string]interface{}).
type Document map[string]interface{}

// Load reads the base document and, when it exists, the override document.
// A missing override is not an error; a missing or malformed base is.
func Load(basePath, overridePath string) ([]Document, error) {
	base, err := LoadFile(basePath)
	if err != nil {
		return nil, err
	}

	docs := []Document{base}
	if overridePath == "" {
		return docs, nil
	}

	if _, err := os.Stat(overridePath); err != nil {
		if os.IsNotExist(err) {
			return docs, nil
		}
		return nil, apperrors.NewConfigLoadError(overridePath, err)
	}

	override, err := LoadFile(overridePath)
	if err != nil {
		return nil, err
	}
	return append(docs, override), nil
}

// LoadFile decodes a single YAML or TOML document, chosen by extension.
func LoadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigLoadError(path, err)
	}

	raw := map[string]interface{}{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = fmt.Errorf("unsupported configuration format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, apperrors.NewConfigLoadError(path, err)
	}

	doc := Document{}
	for k, v := range raw {
		doc[k] = normalize(v)
	}
	return doc, nil
}

// normalize converts generic decoder output into string-keyed mappings
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case Document:
		return normalize(map[string]interface{}(t))
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case Document:
		return t, true
	case map[string]interface{}:
		return t, true
	default:
		return nil, false
	}
}

// Merge deep-merges documents left to right. Mappings merge key-wise,
// everything else in a later document replaces the earlier value.
// The inputs are not modified and share no maps with the result.
func Merge(docs ...Document) Document {
	result := Document{}
	for _, doc := range docs {
		mergeInto(result, doc)
	}
	return result
}

func mergeInto(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		srcMap, srcIsMap := asMap(srcVal)
		dstMap, dstIsMap := asMap(dst[key])

		if srcIsMap && dstIsMap {
			mergeInto(dstMap, srcMap)
			continue
		}
		dst[key] = normalize(srcVal)
	}
}

// Resolve walks a dotted path through doc. A missing segment, a non-mapping
// intermediate or a null value fails with an error naming the whole path.
func Resolve(doc Document, path string) (interface{}, error) {
	var current interface{} = doc
	for _, segment := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, apperrors.NewConfigKeyNotFoundError(path)
		}
		value, exists := m[segment]
		if !exists || value == nil {
			return nil, apperrors.NewConfigKeyNotFoundError(path)
		}
		current = value
	}
	return current, nil
}
