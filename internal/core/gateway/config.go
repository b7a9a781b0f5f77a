package gateway

import (
	"bytes"
	"context"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Descriptor Keys
// =============================================================================

const (
	// IntegrationKey marks a routing binding inside an operation.
	IntegrationKey = "x-yc-apigateway-integration"

	// AnyMethodKey binds every HTTP method of a path at once.
	AnyMethodKey = "x-yc-apigateway-any-method"

	// ProjectTagKey records which project owns a binding.
	ProjectTagKey = "x-yappa-project"

	// FunctionIDKey holds the function a binding invokes.
	FunctionIDKey = "function_id"

	integrationTypeFunctions = "cloud_functions"
	latestTag                = "$latest"
)

// =============================================================================
// Config
// =============================================================================

// Config is a gateway routing descriptor: an OpenAPI 3 document whose
// operations carry function bindings. The document is held as a YAML node
// tree so that key order, comments and unrelated content survive rewrites.
type Config struct {
	doc *yaml.Node
}

// Binding is one function binding found in a descriptor.
type Binding struct {
	Path       string
	Method     string
	FunctionID string
	Project    string
}

// Parse decodes a YAML descriptor.
func Parse(data []byte) (*Config, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, NewConfigError("Parse", "gateway config is empty", ErrEmptyConfig)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, NewConfigError("Parse", err.Error(), ErrInvalidYAML)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, NewConfigError("Parse", "document root is not a mapping", ErrNotMapping)
	}
	return &Config{doc: &doc}, nil
}

// Marshal encodes the descriptor as YAML with a fixed two-space indent.
// Equal descriptors always encode to identical bytes.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c.doc); err != nil {
		return nil, NewConfigError("Marshal", err.Error(), err)
	}
	if err := enc.Close(); err != nil {
		return nil, NewConfigError("Marshal", err.Error(), err)
	}
	return buf.Bytes(), nil
}

// Validate checks that the descriptor is a structurally valid OpenAPI 3 document.
func (c *Config) Validate(ctx context.Context) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	spec, err := loader.LoadFromData(data)
	if err != nil {
		return NewConfigError("Validate", err.Error(), ErrInvalidSpec)
	}
	if err := spec.Validate(ctx); err != nil {
		return NewConfigError("Validate", err.Error(), ErrInvalidSpec)
	}
	return nil
}

// Bindings lists every function binding in document order, including
// bindings nested below the operation level. Path and Method are set when the
// binding sits under paths.<path>.<method>.
func (c *Config) Bindings() []Binding {
	var bindings []Binding
	walkIntegrations(c.root(), nil, func(trail []string, integration *yaml.Node) {
		var binding Binding
		if len(trail) >= 2 && trail[0] == "paths" {
			binding.Path = trail[1]
			if len(trail) >= 3 {
				binding.Method = trail[2]
			}
		}
		if n := mappingValue(integration, FunctionIDKey); n != nil {
			binding.FunctionID = n.Value
		}
		if n := mappingValue(integration, ProjectTagKey); n != nil {
			binding.Project = n.Value
		}
		bindings = append(bindings, binding)
	})
	return bindings
}

// FunctionIDs returns the distinct function ids referenced by the project's
// bindings, in document order.
func (c *Config) FunctionIDs(slug string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, b := range c.Bindings() {
		if b.Project != slug || seen[b.FunctionID] {
			continue
		}
		seen[b.FunctionID] = true
		ids = append(ids, b.FunctionID)
	}
	return ids
}

// IsStale reports whether any of the project's bindings reference a function
// other than functionID.
func (c *Config) IsStale(functionID, slug string) bool {
	for _, id := range c.FunctionIDs(slug) {
		if id != functionID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the descriptor.
func (c *Config) Clone() *Config {
	return &Config{doc: cloneNode(c.doc)}
}

func (c *Config) root() *yaml.Node {
	return c.doc.Content[0]
}

// =============================================================================
// Node Helpers
// =============================================================================

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// walkIntegrations calls visit for every integration mapping in the tree,
// with the mapping keys leading to it. Integrations are not searched for
// nested integrations.
func walkIntegrations(node *yaml.Node, trail []string, visit func(trail []string, integration *yaml.Node)) {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if key.Value == IntegrationKey && value.Kind == yaml.MappingNode {
				visit(trail, value)
				continue
			}
			walkIntegrations(value, append(trail, key.Value), visit)
		}
	case yaml.SequenceNode:
		for _, child := range node.Content {
			walkIntegrations(child, trail, visit)
		}
	}
}

func setMappingScalar(node *yaml.Node, key, value string) {
	if existing := mappingValue(node, key); existing != nil {
		*existing = *strScalar(value)
		return
	}
	node.Content = append(node.Content, strScalar(key), strScalar(value))
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	clone := *n
	if n.Content != nil {
		clone.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			clone.Content[i] = cloneNode(child)
		}
	}
	if n.Alias != nil {
		clone.Alias = cloneNode(n.Alias)
	}
	return &clone
}

func strScalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func boolScalar(value bool) *yaml.Node {
	v := "false"
	if value {
		v = "true"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v}
}

func mapping(pairs ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: pairs}
}

func sequence(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: items}
}
