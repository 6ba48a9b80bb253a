package hooks_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/conductor/internal/config"
	"github.com/zjrosen/conductor/internal/hooks"
)

func newValidationDispatcher() *hooks.Dispatcher {
	d := hooks.NewDispatcher()
	hooks.RegisterValidation(d, config.Defaults())
	return d
}

const validPromptContent = "---\n" +
	"number: 99\n" +
	"title: Do the thing\n" +
	"status: pending\n" +
	"---\n" +
	"Body text.\n"

// TestS5_SchemaPreHookDeniesGarbageStatus exercises the schema-pre hook
// denying a Write whose prospective status value isn't in the enum.
func TestS5_SchemaPreHookDeniesGarbageStatus(t *testing.T) {
	d := newValidationDispatcher()

	content := "---\n" +
		"number: 99\n" +
		"title: Do the thing\n" +
		"status: garbage_value\n" +
		"---\n" +
		"Body.\n"

	resp := runHook(t, d, hooks.CategoryValidation, "schema-pre", hooks.Request{
		ToolName: "Write",
		ToolInput: map[string]any{
			"file_path": filepath.Join("workspace", "prompts", "99-x.md"),
			"content":   content,
		},
	})

	require.Equal(t, hooks.DecisionDeny, resp.Decision)
	assert.Contains(t, resp.Reason, "Schema Validation")
}

// TestS6_SchemaPreHookEditToValid exercises the schema-pre hook allowing an
// Edit on a valid prompt that changes status from one allowed value to
// another, leaving the file valid.
func TestS6_SchemaPreHookEditToValid(t *testing.T) {
	dir := t.TempDir()
	// ForPath match requires a "prompts" path segment.
	promptsDir := filepath.Join(dir, "prompts")
	require.NoError(t, os.MkdirAll(promptsDir, 0o755))
	path := filepath.Join(promptsDir, "99-x.md")
	require.NoError(t, os.WriteFile(path, []byte(validPromptContent), 0o644))

	d := newValidationDispatcher()
	resp := runHook(t, d, hooks.CategoryValidation, "schema-pre", hooks.Request{
		ToolName: "Edit",
		ToolInput: map[string]any{
			"file_path":  path,
			"old_string": "status: pending",
			"new_string": "status: in_progress",
		},
	})

	assert.Equal(t, hooks.Allow, resp)
}

func TestSchemaPreHook_AllowsNonPromptPath(t *testing.T) {
	d := newValidationDispatcher()
	resp := runHook(t, d, hooks.CategoryValidation, "schema-pre", hooks.Request{
		ToolName: "Write",
		ToolInput: map[string]any{
			"file_path": "/tmp/random/notes.md",
			"content":   "whatever garbage",
		},
	})
	assert.Equal(t, hooks.Allow, resp)
}

func TestSchemaPreHook_EditMissingFileAllows(t *testing.T) {
	d := newValidationDispatcher()
	resp := runHook(t, d, hooks.CategoryValidation, "schema-pre", hooks.Request{
		ToolName: "Edit",
		ToolInput: map[string]any{
			"file_path":  "/nonexistent/prompts/1-x.md",
			"old_string": "a",
			"new_string": "b",
		},
	})
	assert.Equal(t, hooks.Allow, resp)
}

func TestSchemaPostHook_BlocksPersistedInvalidFile(t *testing.T) {
	dir := t.TempDir()
	promptsDir := filepath.Join(dir, "prompts")
	require.NoError(t, os.MkdirAll(promptsDir, 0o755))
	path := filepath.Join(promptsDir, "1-x.md")
	require.NoError(t, os.WriteFile(path, []byte("---\nnumber: 1\nstatus: pending\n---\nmissing title\n"), 0o644))

	d := newValidationDispatcher()
	resp := runHook(t, d, hooks.CategoryValidation, "schema", hooks.Request{
		ToolName: "Write",
		ToolInput: map[string]any{
			"file_path": path,
		},
	})

	require.Equal(t, hooks.DecisionBlock, resp.Decision)
	assert.Contains(t, resp.Reason, "Schema Validation")
}

func TestSchemaPreHook_FrontmatterFailureMentionsFrontmatter(t *testing.T) {
	d := newValidationDispatcher()
	resp := runHook(t, d, hooks.CategoryValidation, "schema-pre", hooks.Request{
		ToolName: "Write",
		ToolInput: map[string]any{
			"file_path": filepath.Join("prompts", "1-x.md"),
			"content":   "no frontmatter here at all",
		},
	})
	require.Equal(t, hooks.DecisionDeny, resp.Decision)
	assert.Contains(t, resp.Reason, "frontmatter")
}

func TestFormatHandler_DisabledSkips(t *testing.T) {
	d := hooks.NewDispatcher()
	cfg := config.Defaults()
	cfg.Validation.Format.Enabled = false
	hooks.RegisterValidation(d, cfg)

	resp := runHook(t, d, hooks.CategoryValidation, "format", hooks.Request{
		ToolInput: map[string]any{"file_path": "/tmp/does-not-matter.go"},
	})
	assert.Equal(t, hooks.Allow, resp)
}

func TestDiagnosticsHandler_NoFilePathAllows(t *testing.T) {
	d := newValidationDispatcher()
	resp := runHook(t, d, hooks.CategoryValidation, "diagnostics", hooks.Request{ToolInput: map[string]any{}})
	assert.Equal(t, hooks.Allow, resp)
}
