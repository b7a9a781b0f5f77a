package packaging

import (
	"bytes"
	"embed"
	"os"
	"path/filepath"
	"text/template"

	"github.com/artpar/yappa/internal/core/project"
)

//go:embed templates/handler.py.tmpl
var templatesFS embed.FS

var shimTemplate = template.Must(template.ParseFS(templatesFS, "templates/handler.py.tmpl"))

// DefaultAdapterModule is the Python package the shim delegates request
// translation to.
const DefaultAdapterModule = "yappa.handlers"

type shimData struct {
	AdapterModule   string
	ApplicationType string
	Module          string
	Attribute       string
	SettingsModule  string
	Handler         string
}

// RenderShim renders the entrypoint module for a descriptor. The module
// locates the user application and exposes the function the runtime calls.
func RenderShim(d project.EntrypointDescriptor, adapterModule string) ([]byte, error) {
	if adapterModule == "" {
		adapterModule = DefaultAdapterModule
	}
	var buf bytes.Buffer
	err := shimTemplate.Execute(&buf, shimData{
		AdapterModule:   adapterModule,
		ApplicationType: d.ApplicationType,
		Module:          d.Module,
		Attribute:       d.Attribute,
		SettingsModule:  d.SettingsModule,
		Handler:         project.HandlerFunction,
	})
	if err != nil {
		return nil, NewBuildError(StageShim, "", err.Error(), ErrShimFailed)
	}
	return buf.Bytes(), nil
}

func writeShim(dir string, d project.EntrypointDescriptor, adapterModule string) error {
	content, err := RenderShim(d, adapterModule)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, d.ShimFilename())
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return NewBuildError(StageShim, path, err.Error(), ErrShimFailed)
	}
	return nil
}
