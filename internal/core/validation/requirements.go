package validation

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// Requirements File Validation
// =============================================================================

// requirementRe matches a PEP 508 requirement without URL form:
// name, optional extras, optional version specifiers, optional markers.
var requirementRe = regexp.MustCompile(
	`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?` + // name
		`(\s*\[\s*[A-Za-z0-9._-]+(\s*,\s*[A-Za-z0-9._-]+)*\s*\])?` + // extras
		`(\s*\(?\s*(===|==|~=|!=|<=|>=|<|>)\s*[A-Za-z0-9.*+!_-]+` + // first specifier
		`(\s*,\s*(===|==|~=|!=|<=|>=|<|>)\s*[A-Za-z0-9.*+!_-]+)*\s*\)?)?` + // more specifiers
		`(\s*;.*)?$`) // environment markers

// urlRequirementRe matches "name @ url" direct references.
var urlRequirementRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(\s*\[[^\]]*\])?\s*@\s*\S+`)

// ValidateRequirements checks every line of a pip requirements file.
//
// Blank lines and comments are skipped, pip options (lines starting with "-")
// are accepted as-is, and everything else must be a PEP 508 requirement.
// Line continuations ending in a backslash are joined before checking.
// The returned error names the offending line.
func ValidateRequirements(content []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	lineNo := 0
	startLine := 0
	var pending strings.Builder

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if pending.Len() == 0 {
			startLine = lineNo
		}
		if strings.HasSuffix(line, `\`) {
			pending.WriteString(strings.TrimSuffix(line, `\`))
			pending.WriteString(" ")
			continue
		}
		pending.WriteString(line)
		full := pending.String()
		pending.Reset()

		if err := validateRequirementLine(full); err != nil {
			return NewValidationError(fmt.Sprintf("requirements_file:%d", startLine), err.Error(), ErrInvalidRequirement)
		}
	}
	if err := scanner.Err(); err != nil {
		return NewValidationError("requirements_file", err.Error(), ErrInvalidRequirement)
	}
	if pending.Len() > 0 {
		if err := validateRequirementLine(pending.String()); err != nil {
			return NewValidationError(fmt.Sprintf("requirements_file:%d", startLine), err.Error(), ErrInvalidRequirement)
		}
	}
	return nil
}

func validateRequirementLine(line string) error {
	if i := strings.Index(line, " #"); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
		return nil
	}
	// Hash pins are options trailing the requirement.
	if i := strings.Index(line, " --"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if requirementRe.MatchString(line) || urlRequirementRe.MatchString(line) {
		return nil
	}
	return fmt.Errorf("%q is not a valid requirement", line)
}
