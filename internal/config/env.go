package config

import (
	"strings"
)

// EnvDocument builds an override document from KEY=VALUE pairs whose key
// starts with prefix followed by EnvSeparator. Remaining segments are
// lower-cased: CMS_SYNC__DB__PASSWORD=x becomes db.password: x.
func EnvDocument(prefix string, environ []string) Document {
	doc := Document{}
	lead := prefix + EnvSeparator

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, lead) {
			continue
		}

		var segments []string
		for _, s := range strings.Split(strings.TrimPrefix(key, lead), EnvSeparator) {
			if s != "" {
				segments = append(segments, strings.ToLower(s))
			}
		}
		if len(segments) == 0 {
			continue
		}

		setPath(doc, segments, value)
	}
	return doc
}

func setPath(doc map[string]interface{}, segments []string, value interface{}) {
	current := doc
	for _, segment := range segments[:len(segments)-1] {
		next, ok := asMap(current[segment])
		if !ok {
			next = map[string]interface{}{}
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

// mergeEnviron returns environ with any dotenv entries whose key is not
// already set appended.
func mergeEnviron(environ []string, dotenv map[string]string) []string {
	if len(dotenv) == 0 {
		return environ
	}

	set := make(map[string]bool, len(environ))
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		set[key] = true
	}

	out := append([]string{}, environ...)
	for key, value := range dotenv {
		if !set[key] {
			out = append(out, key+"="+value)
		}
	}
	return out
}
