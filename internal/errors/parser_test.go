package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorParserParseError(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantType BuildErrorType
		wantLoc  string
		wantMsg  string
	}{
		{
			name:     "tsc",
			line:     "src/index.ts(3,10): error TS2304: Cannot find name 'foo'.",
			wantType: BuildErrorTypeTypeCheck,
			wantLoc:  "src/index.ts:3:10",
			wantMsg:  "TS2304: Cannot find name 'foo'.",
		},
		{
			name:     "webpack module not found",
			line:     "Module not found: Error: Can't resolve './Select' in '/app/src'",
			wantType: BuildErrorTypeModuleNotFound,
			wantMsg:  "Module not found: Error: Can't resolve './Select' in '/app/src'",
		},
		{
			name:     "esbuild",
			line:     `✘ [ERROR] Could not resolve "react"`,
			wantType: BuildErrorTypeBundler,
			wantMsg:  `Could not resolve "react"`,
		},
		{
			name:     "webpack location",
			line:     "ERROR in ./src/pages/index.tsx 12:4-18",
			wantType: BuildErrorTypeBundler,
			wantLoc:  "./src/pages/index.tsx:12:4",
			wantMsg:  "compilation error",
		},
		{
			name:     "file line column",
			line:     `src/main.ts:4:12: ERROR: Expected ";" but found "x"`,
			wantType: BuildErrorTypeBundler,
			wantLoc:  "src/main.ts:4:12",
			wantMsg:  `Expected ";" but found "x"`,
		},
		{
			name:     "permission",
			line:     "Error: EACCES: permission denied, open '/app/dist/umi.js'",
			wantType: BuildErrorTypePermission,
			wantLoc:  "/app/dist/umi.js",
			wantMsg:  "permission denied",
		},
		{
			name:     "npm",
			line:     "npm ERR! code ELIFECYCLE",
			wantType: BuildErrorTypePackageManager,
			wantMsg:  "npm ERR! code ELIFECYCLE",
		},
		{
			name:     "generic",
			line:     "TypeError: Cannot read properties of undefined",
			wantType: BuildErrorTypeUnknown,
			wantMsg:  "TypeError: Cannot read properties of undefined",
		},
	}

	parser := NewErrorParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := parser.ParseError("  " + tt.line + "  \n")
			require.Len(t, parsed, 1)
			assert.Equal(t, tt.wantType, parsed[0].Type)
			assert.Equal(t, tt.wantLoc, parsed[0].Location())
			assert.Equal(t, tt.wantMsg, parsed[0].Message)
			assert.Equal(t, tt.line, parsed[0].RawError)
		})
	}
}

func TestErrorParserIgnoresProgress(t *testing.T) {
	parsed := NewErrorParser().ParseError("building...\n\n✔ Webpack compiled\n")
	assert.Empty(t, parsed)
}

func TestErrorParserSummarize(t *testing.T) {
	parser := NewErrorParser()

	t.Run("prefers tool errors over package manager noise", func(t *testing.T) {
		out := "> umi build\n" +
			"src/index.ts(3,10): error TS2304: Cannot find name 'foo'.\n" +
			"npm ERR! code ELIFECYCLE\n" +
			"npm ERR! errno 2\n"
		assert.Equal(t, "src/index.ts:3:10: TS2304: Cannot find name 'foo'.", parser.Summarize(out))
	})

	t.Run("package manager line when nothing else parsed", func(t *testing.T) {
		assert.Equal(t, "npm ERR! code ELIFECYCLE", parser.Summarize("npm ERR! code ELIFECYCLE\nnpm ERR! errno 2"))
	})

	t.Run("last line fallback", func(t *testing.T) {
		assert.Equal(t, "Killed", parser.Summarize("building...\nKilled\n\n"))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", parser.Summarize(" \n"))
	})
}

func TestBuildErrorTypeString(t *testing.T) {
	assert.Equal(t, "type_check", BuildErrorTypeTypeCheck.String())
	assert.Equal(t, "module_not_found", BuildErrorTypeModuleNotFound.String())
	assert.Equal(t, "unknown", BuildErrorType(99).String())
}
