package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"

	apperrors "cms-instance-sync/internal/errors"
)

// Loader produces the ordered configuration layers.
type Loader func() ([]Document, error)

// Resolver answers dotted-path queries against the merged configuration.
// Layers are loaded and merged once, on the first query.
type Resolver struct {
	loader Loader

	once sync.Once
	tree Document
	err  error
}

// NewResolver creates a resolver over the given loader
func NewResolver(loader Loader) *Resolver {
	return &Resolver{loader: loader}
}

// NewFileResolver creates a resolver over the configuration directory dir
func NewFileResolver(dir string, environ []string) *Resolver {
	return NewResolver(FileLoader(dir, environ))
}

// FileLoader loads built-in defaults, <dir>/config.default.yml, the first
// existing override file and finally the CMS_SYNC__ environment layer.
// Variables from <dir>/.env are used only when not already in environ.
func FileLoader(dir string, environ []string) Loader {
	return func() ([]Document, error) {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			return nil, apperrors.NewConfigLoadError(dir, err)
		}

		files, err := Load(filepath.Join(expanded, BaseFileName), OverridePath(expanded))
		if err != nil {
			return nil, err
		}

		env := environ
		envFile := filepath.Join(expanded, ".env")
		if _, statErr := os.Stat(envFile); statErr == nil {
			dotenv, readErr := godotenv.Read(envFile)
			if readErr != nil {
				return nil, apperrors.NewConfigLoadError(envFile, readErr)
			}
			env = mergeEnviron(env, dotenv)
		}

		docs := append([]Document{DefaultDocument()}, files...)
		return append(docs, EnvDocument(EnvPrefix, env)), nil
	}
}

// OverridePath returns the first existing override file in dir, or "".
func OverridePath(dir string) string {
	for _, name := range OverrideFileNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func (r *Resolver) load() (Document, error) {
	r.once.Do(func() {
		docs, err := r.loader()
		if err != nil {
			r.err = err
			return
		}
		r.tree = Merge(docs...)
	})
	return r.tree, r.err
}

// Tree returns a copy of the merged configuration
func (r *Resolver) Tree() (Document, error) {
	tree, err := r.load()
	if err != nil {
		return nil, err
	}
	return Merge(tree), nil
}

// Get resolves a dotted path
func (r *Resolver) Get(path string) (interface{}, error) {
	tree, err := r.load()
	if err != nil {
		return nil, err
	}
	return Resolve(tree, path)
}

// String resolves a dotted path to a scalar rendered as text
func (r *Resolver) String(path string) (string, error) {
	value, err := r.Get(path)
	if err != nil {
		return "", err
	}
	return scalarString(path, value)
}

// StringOr is String with a fallback for absent keys. Load errors are still returned.
func (r *Resolver) StringOr(path, fallback string) (string, error) {
	value, err := r.String(path)
	if apperrors.IsType(err, apperrors.ErrorTypeConfigKeyNotFound) {
		return fallback, nil
	}
	return value, err
}

// Bool resolves a dotted path to a boolean; absent keys are false
func (r *Resolver) Bool(path string) (bool, error) {
	value, err := r.Get(path)
	if apperrors.IsType(err, apperrors.ErrorTypeConfigKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, parseErr := strconv.ParseBool(v)
		if parseErr != nil {
			return false, apperrors.NewAppError(apperrors.ErrorTypeValidation,
				fmt.Sprintf("configuration value for key %q is not a boolean", path), parseErr).
				WithContext("path", path)
		}
		return b, nil
	default:
		return false, apperrors.NewAppError(apperrors.ErrorTypeValidation,
			fmt.Sprintf("configuration value for key %q is not a boolean", path), nil).
			WithContext("path", path)
	}
}

func scalarString(path string, value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case map[string]interface{}, Document, []interface{}:
		return "", apperrors.NewAppError(apperrors.ErrorTypeValidation,
			fmt.Sprintf("configuration value for key %q is not a scalar", path), nil).
			WithContext("path", path)
	default:
		return fmt.Sprint(v), nil
	}
}
