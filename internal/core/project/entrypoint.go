package project

import (
	"fmt"

	"github.com/artpar/yappa/internal/core/validation"
)

// =============================================================================
// Entrypoint Descriptor
// =============================================================================

// HandlerFunction is the callable every generated shim module exposes.
const HandlerFunction = "handle"

// EntrypointDescriptor describes how the function runtime reaches the user's
// application: which shim module to call and which application it wraps.
type EntrypointDescriptor struct {
	ApplicationType string // wsgi, asgi or django
	Module          string // user module path, e.g. "flask_app"
	Attribute       string // callable attribute, e.g. "app"
	SettingsModule  string // Django settings module, django only
}

// NewEntrypointDescriptor validates and builds a descriptor.
// Django projects are addressed by their settings module; the entrypoint is
// optional and defaults to the project's WSGI application.
func NewEntrypointDescriptor(appType, entrypoint, settingsModule string) (EntrypointDescriptor, error) {
	if err := validation.ValidateApplicationType(appType); err != nil {
		return EntrypointDescriptor{}, err
	}

	d := EntrypointDescriptor{ApplicationType: appType}

	if appType == validation.ApplicationTypeDjango {
		if err := validation.ValidateModulePath("django_settings_module", settingsModule); err != nil {
			return EntrypointDescriptor{}, err
		}
		d.SettingsModule = settingsModule
		if entrypoint == "" {
			return d, nil
		}
	}

	module, attr, err := validation.SplitEntrypoint(entrypoint)
	if err != nil {
		return EntrypointDescriptor{}, err
	}
	d.Module = module
	d.Attribute = attr
	return d, nil
}

// ShimModule returns the name of the generated module, e.g. "wsgi_handler".
func (d EntrypointDescriptor) ShimModule() string {
	return d.ApplicationType + "_handler"
}

// ShimFilename returns the file the shim module is written to.
func (d EntrypointDescriptor) ShimFilename() string {
	return d.ShimModule() + ".py"
}

// ProviderEntrypoint returns the provider encoding "module.function" that
// the function runtime invokes.
//
// Example:
//
//	d, _ := NewEntrypointDescriptor("wsgi", "flask_app.app", "")
//	d.ProviderEntrypoint() // returns "wsgi_handler.handle"
func (d EntrypointDescriptor) ProviderEntrypoint() string {
	return d.ShimModule() + "." + HandlerFunction
}

// String returns the user-facing form "type:module.attr".
func (d EntrypointDescriptor) String() string {
	if d.Module == "" {
		return fmt.Sprintf("%s:%s", d.ApplicationType, d.SettingsModule)
	}
	return fmt.Sprintf("%s:%s.%s", d.ApplicationType, d.Module, d.Attribute)
}

// EncodeEntrypoint returns the provider entrypoint for an application type
// and entrypoint pair.
func EncodeEntrypoint(appType, entrypoint string) (string, error) {
	d, err := NewEntrypointDescriptor(appType, entrypoint, "")
	if err != nil {
		return "", err
	}
	return d.ProviderEntrypoint(), nil
}
