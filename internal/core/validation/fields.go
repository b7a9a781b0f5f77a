package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// Project Field Validation
// =============================================================================

var (
	identifierPattern = `[A-Za-z_][A-Za-z0-9_]*`
	modulePathRe      = regexp.MustCompile(`^` + identifierPattern + `(\.` + identifierPattern + `)*$`)
	slugRe            = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)
)

// Supported application types.
const (
	ApplicationTypeWSGI   = "wsgi"
	ApplicationTypeASGI   = "asgi"
	ApplicationTypeDjango = "django"
)

// ValidateNotEmpty fails when value is empty or whitespace only.
func ValidateNotEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError(field, "should not be empty", ErrEmptyField)
	}
	return nil
}

// ValidateSlug checks that a project slug is lowercase, hyphen separated and
// at least two characters long.
func ValidateSlug(slug string) error {
	if !slugRe.MatchString(slug) {
		return NewValidationError("project_slug",
			fmt.Sprintf("%q must contain only lowercase letters, digits and inner hyphens", slug),
			ErrInvalidSlug)
	}
	return nil
}

// ValidateApplicationType checks that the application type is one of wsgi, asgi or django.
func ValidateApplicationType(appType string) error {
	switch appType {
	case ApplicationTypeWSGI, ApplicationTypeASGI, ApplicationTypeDjango:
		return nil
	default:
		return NewValidationError("application_type",
			fmt.Sprintf("%q is not one of wsgi, asgi, django", appType),
			ErrInvalidApplicationType)
	}
}

// ValidateEntrypoint checks that an entrypoint names an attribute of an
// importable module, either as "package.module.attr" or "package.module:attr".
//
// Example:
//
//	ValidateEntrypoint("flask_app.app")  // returns nil
//	ValidateEntrypoint("main:app")       // returns nil
//	ValidateEntrypoint("app")            // returns error (no module)
func ValidateEntrypoint(entrypoint string) error {
	if _, _, err := SplitEntrypoint(entrypoint); err != nil {
		return err
	}
	return nil
}

// SplitEntrypoint separates an entrypoint into its module path and attribute name.
func SplitEntrypoint(entrypoint string) (module, attr string, err error) {
	entrypoint = strings.TrimSpace(entrypoint)
	if i := strings.Index(entrypoint, ":"); i >= 0 {
		module, attr = entrypoint[:i], entrypoint[i+1:]
	} else if i := strings.LastIndex(entrypoint, "."); i >= 0 {
		module, attr = entrypoint[:i], entrypoint[i+1:]
	}
	if module == "" || attr == "" || !modulePathRe.MatchString(module) || !modulePathRe.MatchString(attr) || strings.Contains(attr, ".") {
		return "", "", NewValidationError("entrypoint",
			fmt.Sprintf("%q must look like module.attribute", entrypoint),
			ErrInvalidEntrypoint)
	}
	return module, attr, nil
}

// ValidateModulePath checks a dotted Python module path such as a Django
// settings module.
func ValidateModulePath(field, path string) error {
	if !modulePathRe.MatchString(path) {
		return NewValidationError(field,
			fmt.Sprintf("%q is not a dotted module path", path),
			ErrInvalidEntrypoint)
	}
	return nil
}
