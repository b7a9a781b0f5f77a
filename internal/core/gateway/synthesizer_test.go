package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multiProjectConfig = `openapi: 3.0.0
info:
  title: shared gateway
  version: 1.0.0
paths:
  /:
    x-yc-apigateway-any-method:
      x-yc-apigateway-integration:
        type: cloud_functions
        function_id: old-id
        tag: $latest
        x-yappa-project: myproj
  /admin/{url+}:
    get:
      x-yc-apigateway-integration:
        type: cloud_functions
        function_id: admin-fn
        x-yappa-project: admin
    post:
      # handled by the main project
      x-yc-apigateway-integration:
        type: cloud_functions
        x-yappa-project: myproj
  /static/{file}:
    get:
      x-yc-apigateway-integration:
        type: object_storage
        bucket: assets
        object: '{file}'
`

// =============================================================================
// DefaultConfig Tests
// =============================================================================

func TestDefaultConfig_Bindings(t *testing.T) {
	cfg := DefaultConfig("My project", "my-project")

	bindings := cfg.Bindings()
	require.Len(t, bindings, 2)
	assert.Equal(t, "/", bindings[0].Path)
	assert.Equal(t, "/{url+}", bindings[1].Path)
	for _, b := range bindings {
		assert.Equal(t, AnyMethodKey, b.Method)
		assert.Equal(t, "my-project", b.Project)
		assert.Empty(t, b.FunctionID)
	}
}

func TestDefaultConfig_Validates(t *testing.T) {
	cfg, err := InjectFunctionID(DefaultConfig("My project", "my-project"), "fid-123", "my-project")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate(context.Background()))
}

func TestDefaultConfig_RoundTrip(t *testing.T) {
	data, err := DefaultConfig("My project", "my-project").Marshal()
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)

	again, err := parsed.Marshal()
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(string(data), string(again)))
	assert.Contains(t, string(data), "openapi: 3.0.0")
	assert.Contains(t, string(data), "tag: $latest")
}

// =============================================================================
// InjectFunctionID Tests
// =============================================================================

func TestInjectFunctionID_Deterministic(t *testing.T) {
	cfg, err := Parse([]byte(multiProjectConfig))
	require.NoError(t, err)

	first, err := InjectFunctionID(cfg, "fid-123", "myproj")
	require.NoError(t, err)
	second, err := InjectFunctionID(cfg, "fid-123", "myproj")
	require.NoError(t, err)

	a, err := first.Marshal()
	require.NoError(t, err)
	b, err := second.Marshal()
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(a, b))
}

func TestInjectFunctionID_Idempotent(t *testing.T) {
	cfg, err := Parse([]byte(multiProjectConfig))
	require.NoError(t, err)

	once, err := InjectFunctionID(cfg, "fid-123", "myproj")
	require.NoError(t, err)
	twice, err := InjectFunctionID(once, "fid-123", "myproj")
	require.NoError(t, err)

	a, _ := once.Marshal()
	b, _ := twice.Marshal()
	assert.Equal(t, string(a), string(b))
}

func TestInjectFunctionID_OnlyTouchesProjectBindings(t *testing.T) {
	cfg, err := Parse([]byte(multiProjectConfig))
	require.NoError(t, err)

	out, err := InjectFunctionID(cfg, "fid-123", "myproj")
	require.NoError(t, err)

	byKey := map[string]Binding{}
	for _, b := range out.Bindings() {
		byKey[b.Path+" "+b.Method] = b
	}
	assert.Equal(t, "fid-123", byKey["/ "+AnyMethodKey].FunctionID)
	assert.Equal(t, "fid-123", byKey["/admin/{url+} post"].FunctionID)
	assert.Equal(t, "admin-fn", byKey["/admin/{url+} get"].FunctionID)
	assert.Equal(t, "", byKey["/static/{file} get"].FunctionID)

	data, err := out.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "# handled by the main project")
	assert.Contains(t, string(data), "bucket: assets")
}

func TestInjectFunctionID_DoesNotMutateInput(t *testing.T) {
	cfg, err := Parse([]byte(multiProjectConfig))
	require.NoError(t, err)
	before, _ := cfg.Marshal()

	_, err = InjectFunctionID(cfg, "fid-123", "myproj")
	require.NoError(t, err)

	after, _ := cfg.Marshal()
	assert.Equal(t, string(before), string(after))
	assert.Equal(t, []string{"old-id", ""}, cfg.FunctionIDs("myproj"))
}

func TestInjectFunctionID_Errors(t *testing.T) {
	_, err := InjectFunctionID(DefaultConfig("p", "p1"), "", "p1")
	assert.True(t, errors.Is(err, ErrEmptyFunctionID))

	_, err = InjectFunctionID(nil, "fid", "p1")
	assert.True(t, errors.Is(err, ErrEmptyConfig))
}

func TestIsStale(t *testing.T) {
	cfg, err := Parse([]byte(multiProjectConfig))
	require.NoError(t, err)
	assert.True(t, cfg.IsStale("fid-123", "myproj"))

	out, err := InjectFunctionID(cfg, "fid-123", "myproj")
	require.NoError(t, err)
	assert.False(t, out.IsStale("fid-123", "myproj"))
	assert.Equal(t, []string{"fid-123"}, out.FunctionIDs("myproj"))
}

const wrappedBindingConfig = `openapi: 3.0.0
info:
  title: wrapped
  version: 1.0.0
paths:
  /hook:
    get:
      x-vendor-wrapper:
        x-yc-apigateway-integration:
          type: cloud_functions
          function_id: old
          x-yappa-project: myproj
`

func TestBindings_FindsNestedIntegrations(t *testing.T) {
	cfg, err := Parse([]byte(wrappedBindingConfig))
	require.NoError(t, err)

	want := []Binding{{Path: "/hook", Method: "get", FunctionID: "old", Project: "myproj"}}
	if diff := cmp.Diff(want, cfg.Bindings()); diff != "" {
		t.Errorf("Bindings() mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, cfg.IsStale("new", "myproj"))
	assert.Equal(t, []string{"old"}, cfg.FunctionIDs("myproj"))

	out, err := InjectFunctionID(cfg, "new", "myproj")
	require.NoError(t, err)
	assert.False(t, out.IsStale("new", "myproj"))
	assert.Equal(t, []string{"new"}, out.FunctionIDs("myproj"))
}

// =============================================================================
// Parse Tests
// =============================================================================

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("  \n"))
	assert.True(t, errors.Is(err, ErrEmptyConfig))

	_, err = Parse([]byte("paths: [unclosed"))
	assert.True(t, errors.Is(err, ErrInvalidYAML))

	_, err = Parse([]byte("- just\n- a list\n"))
	assert.True(t, errors.Is(err, ErrNotMapping))
}

func TestValidate_RejectsNonOpenAPI(t *testing.T) {
	cfg, err := Parse([]byte("info:\n  title: missing openapi version\n"))
	require.NoError(t, err)
	assert.True(t, errors.Is(cfg.Validate(context.Background()), ErrInvalidSpec))
}
