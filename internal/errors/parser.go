package errors

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// BuildErrorType classifies a line of build tool output.
type BuildErrorType int

const (
	BuildErrorTypeUnknown BuildErrorType = iota
	BuildErrorTypeTypeCheck
	BuildErrorTypeModuleNotFound
	BuildErrorTypeBundler
	BuildErrorTypePackageManager
	BuildErrorTypePermission
)

// String returns the string representation of the BuildErrorType
func (t BuildErrorType) String() string {
	switch t {
	case BuildErrorTypeTypeCheck:
		return "type_check"
	case BuildErrorTypeModuleNotFound:
		return "module_not_found"
	case BuildErrorTypeBundler:
		return "bundler"
	case BuildErrorTypePackageManager:
		return "package_manager"
	case BuildErrorTypePermission:
		return "permission"
	default:
		return "unknown"
	}
}

// ParsedError is one problem extracted from build command output.
type ParsedError struct {
	Type     BuildErrorType `json:"type"`
	File     string         `json:"file,omitempty"`
	Line     int            `json:"line,omitempty"`
	Column   int            `json:"column,omitempty"`
	Message  string         `json:"message"`
	RawError string         `json:"raw_error"`
}

// Location renders file:line:col, leaving out the parts that are unknown.
func (e *ParsedError) Location() string {
	switch {
	case e.File == "":
		return ""
	case e.Line == 0:
		return e.File
	case e.Column == 0:
		return fmt.Sprintf("%s:%d", e.File, e.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", e.File, e.Line, e.Column)
	}
}

func (e *ParsedError) String() string {
	if loc := e.Location(); loc != "" {
		return loc + ": " + e.Message
	}
	return e.Message
}

// ErrorParser extracts structured errors from the output of frontend build
// tools (tsc, esbuild, webpack, vite/rollup and the package manager running
// them).
type ErrorParser struct {
	patterns []errorPattern
}

type errorPattern struct {
	regex       *regexp.Regexp
	errorType   BuildErrorType
	parseFields func(matches []string) (file string, line int, column int, message string)
}

// NewErrorParser creates a new error parser
func NewErrorParser() *ErrorParser {
	return &ErrorParser{patterns: buildPatterns()}
}

// ParseError parses build output into structured errors, in output order.
func (ep *ErrorParser) ParseError(output string) []*ParsedError {
	var parsed []*ParsedError

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := ep.tryParse(line); err != nil {
			parsed = append(parsed, err)
		}
	}

	return parsed
}

// Summarize picks the line that best explains a failed build: the first
// parsed error that is not package-manager noise, then any parsed error,
// then the last non-empty line of output. It returns "" for empty output.
func (ep *ErrorParser) Summarize(output string) string {
	parsed := ep.ParseError(output)
	for _, err := range parsed {
		if err.Type != BuildErrorTypePackageManager {
			return err.String()
		}
	}
	if len(parsed) > 0 {
		return parsed[0].String()
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

func (ep *ErrorParser) tryParse(line string) *ParsedError {
	for _, pattern := range ep.patterns {
		matches := pattern.regex.FindStringSubmatch(line)
		if matches == nil {
			continue
		}
		file, lineNum, column, message := pattern.parseFields(matches)
		return &ParsedError{
			Type:     pattern.errorType,
			File:     file,
			Line:     lineNum,
			Column:   column,
			Message:  message,
			RawError: line,
		}
	}
	return nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func buildPatterns() []errorPattern {
	return []errorPattern{
		{
			// src/index.ts(3,10): error TS2304: Cannot find name 'foo'.
			regex:     regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): error (TS\d+): (.+)$`),
			errorType: BuildErrorTypeTypeCheck,
			parseFields: func(m []string) (string, int, int, string) {
				return m[1], atoi(m[2]), atoi(m[3]), m[4] + ": " + m[5]
			},
		},
		{
			// Module not found: Error: Can't resolve './Select' in '/app/src'
			regex:     regexp.MustCompile(`^Module not found: .+$`),
			errorType: BuildErrorTypeModuleNotFound,
			parseFields: func(m []string) (string, int, int, string) {
				return "", 0, 0, m[0]
			},
		},
		{
			// ✘ [ERROR] Could not resolve "react"
			regex:     regexp.MustCompile(`^(?:✘ )?\[ERROR\] (.+)$`),
			errorType: BuildErrorTypeBundler,
			parseFields: func(m []string) (string, int, int, string) {
				return "", 0, 0, m[1]
			},
		},
		{
			// ERROR in ./src/pages/index.tsx 12:4-18
			regex:     regexp.MustCompile(`^ERROR in (\S+)(?: (\d+):(\d+)(?:-\d+)?)?(?: (.+))?$`),
			errorType: BuildErrorTypeBundler,
			parseFields: func(m []string) (string, int, int, string) {
				message := m[4]
				if message == "" {
					message = "compilation error"
				}
				return m[1], atoi(m[2]), atoi(m[3]), message
			},
		},
		{
			// src/main.ts:4:12: ERROR: Expected ";" but found "x"
			regex:     regexp.MustCompile(`^([^\s:]+\.[A-Za-z]+):(\d+):(\d+):? (?:(?i:error):? )?(.+)$`),
			errorType: BuildErrorTypeBundler,
			parseFields: func(m []string) (string, int, int, string) {
				return m[1], atoi(m[2]), atoi(m[3]), m[4]
			},
		},
		{
			// EACCES: permission denied, open '/app/dist/umi.js'
			regex:     regexp.MustCompile(`(?i)^(?:Error: )?EACCES: permission denied, \w+ '(.+)'$`),
			errorType: BuildErrorTypePermission,
			parseFields: func(m []string) (string, int, int, string) {
				return m[1], 0, 0, "permission denied"
			},
		},
		{
			// npm ERR! code ELIFECYCLE / ERR_PNPM_RECURSIVE_RUN_FIRST_FAIL ...
			regex:     regexp.MustCompile(`^(?:npm ERR!|ERR_PNPM_\w+|error Command failed) ?(.*)$`),
			errorType: BuildErrorTypePackageManager,
			parseFields: func(m []string) (string, int, int, string) {
				return "", 0, 0, strings.TrimSpace(m[0])
			},
		},
		{
			// Error: Cannot find module 'umi'
			regex:     regexp.MustCompile(`^(?:\w*Error|error): (.+)$`),
			errorType: BuildErrorTypeUnknown,
			parseFields: func(m []string) (string, int, int, string) {
				return "", 0, 0, m[0]
			},
		},
	}
}
