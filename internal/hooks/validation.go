package hooks

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/zjrosen/conductor/internal/config"
	"github.com/zjrosen/conductor/internal/frontmatter"
	"github.com/zjrosen/conductor/internal/log"
	"github.com/zjrosen/conductor/internal/schema"
)

// RegisterValidation binds the validation category's four hook names:
// schema-pre (pre-use deny), schema (post-use block), diagnostics
// (post-use, injects tooling errors as context) and format (post-use,
// non-blocking formatter). schema-pre and schema share one validator so
// both paths enforce identical rules.
func RegisterValidation(d *Dispatcher, cfg config.Settings) {
	d.Register(CategoryValidation, "schema-pre", schemaPreHandler)
	d.Register(CategoryValidation, "schema", schemaPostHandler)
	d.Register(CategoryValidation, "diagnostics", diagnosticsHandler)
	d.Register(CategoryValidation, "format", formatHandler(cfg.Validation.Format))
}

// schemaPreHandler validates a prompt file's prospective front-matter
// before the write lands, denying the tool call if it would leave the
// file in violation of its schema.
func schemaPreHandler(_ context.Context, req Request) (Response, error) {
	path, content, ok, err := preUseContent(req)
	if err != nil {
		return Allow, err
	}
	if !ok {
		return Allow, nil
	}

	sch, ok := schema.ForPath(path)
	if !ok {
		return Allow, nil
	}

	doc, err := frontmatter.Parse([]byte(content))
	if err != nil {
		return Deny(fmt.Sprintf("frontmatter: %s", err)), nil
	}

	if errs := sch.Validate(doc.Fields); len(errs) > 0 {
		return Deny("Schema Validation: " + strings.Join(errs, "; ")), nil
	}

	return Allow, nil
}

// schemaPostHandler mirrors schemaPreHandler's validation rules against the
// file as actually persisted to disk, blocking instead of denying since the
// write has already happened.
func schemaPostHandler(_ context.Context, req Request) (Response, error) {
	path, _ := req.ToolInput["file_path"].(string)
	if path == "" {
		return Allow, nil
	}

	sch, ok := schema.ForPath(path)
	if !ok {
		return Allow, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		log.Warn(log.CatValidator, "schema post-hook: file unreadable, allowing", "path", path, "error", err.Error())
		return Allow, nil
	}

	doc, err := frontmatter.Parse(content)
	if err != nil {
		return Block(fmt.Sprintf("frontmatter: %s", err)), nil
	}

	if errs := sch.Validate(doc.Fields); len(errs) > 0 {
		return Block("Schema Validation: " + strings.Join(errs, "; ")), nil
	}

	return Allow, nil
}

// preUseContent computes the content a Write or Edit tool call would leave
// on disk, without performing the write. ok is false when the call should
// be allowed without further validation (unsupported tool, missing file,
// missing edit inputs).
func preUseContent(req Request) (path, content string, ok bool, err error) {
	path, _ = req.ToolInput["file_path"].(string)
	if path == "" {
		return "", "", false, nil
	}

	switch req.ToolName {
	case "Write":
		w, valid := AsWriteInput(req.ToolInput)
		if !valid {
			return "", "", false, nil
		}
		return w.FilePath, w.Content, true, nil

	case "Edit":
		e, valid := AsEditInput(req.ToolInput)
		if !valid {
			return "", "", false, nil
		}
		current, readErr := os.ReadFile(e.FilePath)
		if readErr != nil {
			return "", "", false, nil
		}
		var updated string
		if e.ReplaceAll {
			updated = strings.ReplaceAll(string(current), e.OldString, e.NewString)
		} else {
			updated = strings.Replace(string(current), e.OldString, e.NewString, 1)
		}
		return e.FilePath, updated, true, nil

	default:
		return "", "", false, nil
	}
}

// diagnosticsHandler runs language tooling against the written file and, if
// it reports problems, injects them as additional context for the agent's
// next turn. It never blocks: a diagnostics failure degrades to allow.
func diagnosticsHandler(ctx context.Context, req Request) (Response, error) {
	path, _ := req.ToolInput["file_path"].(string)
	if path == "" {
		return Allow, nil
	}

	cmdline, ok := diagnosticsCommandFor(path)
	if !ok {
		return Allow, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, runErr := runTool(runCtx, cmdline, filepath.Dir(path))
	if runErr == nil {
		return Allow, nil
	}

	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return Allow, nil
	}

	return InjectContext("PostToolUse", fmt.Sprintf("diagnostics for %s:\n%s", path, trimmed)), nil
}

// diagnosticsCommandFor maps a file extension to the language tooling
// invocation that reports diagnostics for it. Extend as new languages need
// coverage; unmapped extensions skip diagnostics entirely.
func diagnosticsCommandFor(path string) ([]string, bool) {
	switch filepath.Ext(path) {
	case ".go":
		return []string{"go", "vet", "./..."}, true
	default:
		return nil, false
	}
}

// formatHandler builds the format hook from the validation.format.patterns
// settings: the first pattern whose match string is a substring of the
// file's extension runs its command, under a hard 30s timeout. A timeout
// or non-zero exit is logged and the tool call proceeds regardless.
func formatHandler(cfg config.FormatSettings) Handler {
	return func(ctx context.Context, req Request) (Response, error) {
		if !cfg.Enabled {
			return Allow, nil
		}
		path, _ := req.ToolInput["file_path"].(string)
		if path == "" {
			return Allow, nil
		}

		pattern, ok := matchFormatPattern(cfg.Patterns, path)
		if !ok {
			return Allow, nil
		}

		runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		if _, err := runTool(runCtx, strings.Fields(pattern.Command), filepath.Dir(path)); err != nil {
			if runCtx.Err() != nil {
				log.Warn(log.CatValidator, "format_timeout: formatter killed, tool proceeds", "path", path, "command", pattern.Command)
			} else {
				log.Warn(log.CatValidator, "formatter failed, tool proceeds", "path", path, "command", pattern.Command, "error", err.Error())
			}
		}
		return Allow, nil
	}
}

func matchFormatPattern(patterns []config.FormatPattern, path string) (config.FormatPattern, bool) {
	ext := filepath.Ext(path)
	for _, p := range patterns {
		if p.Match == ext || strings.Contains(ext, p.Match) {
			return p, true
		}
	}
	return config.FormatPattern{}, false
}

// runTool executes an external command with its working directory set to
// dir, returning combined stdout+stderr.
func runTool(ctx context.Context, cmdline []string, dir string) (string, error) {
	if len(cmdline) == 0 {
		return "", fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, cmdline[0], cmdline[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}
