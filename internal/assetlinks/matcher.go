package assetlinks

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Statement is a well-formed relation statement.
type Statement struct {
	Relations []string
	Target    map[string]json.RawMessage
}

// Namespace returns the target namespace.
func (s Statement) Namespace() string {
	ns, _ := s.TargetString(KeyNamespace)
	return ns
}

// TargetString returns the string value stored under key in the target.
func (s Statement) TargetString(key string) (string, bool) {
	raw, ok := s.Target[key]
	if !ok {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

// TargetStrings returns the string array stored under key in the target.
func (s Statement) TargetStrings(key string) ([]string, error) {
	raw, ok := s.Target[key]
	if !ok {
		return nil, fmt.Errorf("target has no %q", key)
	}
	var v []string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("target %q: %w", key, err)
	}
	return v, nil
}

// StatementMatcher selects statements. Empty fields match anything.
type StatementMatcher struct {
	Relation  string
	Namespace string
	// Target lists string values the target object must carry.
	Target map[string]string
}

// AndroidAppMatcher matches link-handling statements for packageName.
func AndroidAppMatcher(packageName string) StatementMatcher {
	return StatementMatcher{
		Relation:  RelationHandleAllURLs,
		Namespace: NamespaceAndroidApp,
		Target:    map[string]string{KeyPackageName: packageName},
	}
}

// Match reports whether s satisfies every condition of m.
func (m StatementMatcher) Match(s Statement) bool {
	if m.Relation != "" && !slices.Contains(s.Relations, m.Relation) {
		return false
	}
	if m.Namespace != "" && s.Namespace() != m.Namespace {
		return false
	}
	for key, want := range m.Target {
		if got, ok := s.TargetString(key); !ok || got != want {
			return false
		}
	}
	return true
}
