package flow

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// AdminOnboarding is the id of the embedded admin onboarding flow.
const AdminOnboarding = "admin_onboarding"

//go:embed flows/*.yaml
var builtinFS embed.FS

// ParseDefinitionYAML decodes a flow definition from YAML bytes.
func ParseDefinitionYAML(data []byte) (Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Definition{}, fmt.Errorf("flow: definition payload is empty")
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("flow: decode definition: %w", err)
	}
	return def.Normalized()
}

// LoadDefinitionReader reads flow definition data from an io.Reader.
func LoadDefinitionReader(r io.Reader) (Definition, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Definition{}, fmt.Errorf("flow: read definition: %w", err)
	}
	return ParseDefinitionYAML(content)
}

// LoadDefinitionFile loads a flow definition from an explicit file path.
func LoadDefinitionFile(filePath string) (Definition, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return Definition{}, fmt.Errorf("flow: read %s: %w", filePath, err)
	}
	def, parseErr := ParseDefinitionYAML(content)
	if parseErr != nil {
		return Definition{}, fmt.Errorf("flow: %s: %w", filePath, parseErr)
	}
	return def, nil
}

// Builtin loads an embedded flow by id.
func Builtin(id string) (Definition, error) {
	content, err := builtinFS.ReadFile(path.Join("flows", id+".yaml"))
	if err != nil {
		return Definition{}, fmt.Errorf("flow: unknown builtin %q", id)
	}
	return ParseDefinitionYAML(content)
}

// BuiltinIDs lists the ids of the embedded flows.
func BuiltinIDs() []string {
	entries, err := builtinFS.ReadDir("flows")
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(ids)
	return ids
}

// Load resolves a flow from a file path, falling back to the embedded admin
// onboarding flow when path is empty.
func Load(filePath string) (Definition, error) {
	if filePath == "" {
		return Builtin(AdminOnboarding)
	}
	return LoadDefinitionFile(filePath)
}
