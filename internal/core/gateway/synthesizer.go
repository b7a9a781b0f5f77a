package gateway

import (
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Default Descriptor
// =============================================================================

// DefaultConfig builds the descriptor used when a project has none yet: every
// method of "/" and of any sub-path is routed to the project's function.
// Bindings are tagged with slug and have an empty function id until
// InjectFunctionID is applied.
//
// Example output (after injection):
//
//	openapi: 3.0.0
//	info:
//	  title: My project
//	  version: 1.0.0
//	paths:
//	  /:
//	    x-yc-apigateway-any-method:
//	      x-yc-apigateway-integration:
//	        type: cloud_functions
//	        function_id: d4e1...
//	        tag: $latest
//	        x-yappa-project: my-project
//	  /{url+}:
//	    ...
func DefaultConfig(title, slug string) *Config {
	urlParam := mapping(
		strScalar("name"), strScalar("url"),
		strScalar("in"), strScalar("path"),
		strScalar("required"), boolScalar(false),
		strScalar("description"), strScalar("path for the application"),
		strScalar("schema"), mapping(strScalar("type"), strScalar("string")),
	)

	root := mapping(
		strScalar("openapi"), strScalar("3.0.0"),
		strScalar("info"), mapping(
			strScalar("title"), strScalar(title),
			strScalar("version"), strScalar("1.0.0"),
		),
		strScalar("paths"), mapping(
			strScalar("/"), mapping(
				strScalar(AnyMethodKey), mapping(
					strScalar(IntegrationKey), defaultIntegration(slug),
				),
			),
			strScalar("/{url+}"), mapping(
				strScalar(AnyMethodKey), mapping(
					strScalar("parameters"), sequence(urlParam),
					strScalar(IntegrationKey), defaultIntegration(slug),
				),
			),
		),
	)

	return &Config{doc: &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}}
}

func defaultIntegration(slug string) *yaml.Node {
	return mapping(
		strScalar("type"), strScalar(integrationTypeFunctions),
		strScalar(FunctionIDKey), strScalar(""),
		strScalar("tag"), strScalar(latestTag),
		strScalar(ProjectTagKey), strScalar(slug),
	)
}

// =============================================================================
// Function ID Injection
// =============================================================================

// InjectFunctionID returns a copy of cfg in which every binding tagged with
// slug invokes functionID. Bindings owned by other projects are left as they
// are, and cfg itself is never modified.
//
// The transform is deterministic: the same cfg, functionID and slug always
// marshal to identical bytes.
func InjectFunctionID(cfg *Config, functionID, slug string) (*Config, error) {
	if functionID == "" {
		return nil, NewConfigError("InjectFunctionID", "function id is required", ErrEmptyFunctionID)
	}
	if cfg == nil || cfg.doc == nil {
		return nil, NewConfigError("InjectFunctionID", "gateway config is empty", ErrEmptyConfig)
	}

	out := cfg.Clone()
	injectNode(out.root(), functionID, slug)
	return out, nil
}

// injectNode rewrites the project's bindings wherever they sit in the tree,
// using the same walk as Bindings.
func injectNode(node *yaml.Node, functionID, slug string) {
	walkIntegrations(node, nil, func(_ []string, integration *yaml.Node) {
		if tag := mappingValue(integration, ProjectTagKey); tag != nil && tag.Value == slug {
			setMappingScalar(integration, FunctionIDKey, functionID)
		}
	})
}
