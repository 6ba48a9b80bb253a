package promptstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zjrosen/conductor/internal/frontmatter"
	"github.com/zjrosen/conductor/internal/log"
)

// ErrNotFound is returned by FindByNumber when no prompt with the
// requested number exists.
var ErrNotFound = errors.New("promptstore: prompt not found")

// PickResult is the outcome of pickNext.
type PickResult struct {
	Prompt *Prompt
	Stats  Stats
	Reason string
}

// LoadAll reads promptsDir, parses front-matter for every *.md
// file, skips files that fail to parse (logging a warning), and returns
// the prompts sorted ascending by number.
func LoadAll(promptsDir string) ([]Prompt, error) {
	entries, err := os.ReadDir(promptsDir)
	if err != nil {
		return nil, fmt.Errorf("io_error: reading prompts directory %s: %w", promptsDir, err)
	}

	var prompts []Prompt
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}

		path := filepath.Join(promptsDir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			log.Warn(log.CatPromptStore, "io_error reading prompt file", "path", path, "error", err.Error())
			continue
		}

		p, err := decode(path, content)
		if err != nil {
			log.Warn(log.CatPromptStore, "skipping unparseable prompt file", "path", path, "error", err.Error())
			continue
		}
		prompts = append(prompts, *p)
	}

	sort.Slice(prompts, func(i, j int) bool { return prompts[i].Number < prompts[j].Number })
	return prompts, nil
}

// GetByNumber looks up a single prompt by number within an already-loaded
// ordered slice (binary search, since LoadAll returns numbers ascending).
func GetByNumber(prompts []Prompt, n int) (*Prompt, bool) {
	idx := sort.Search(len(prompts), func(i int) bool { return prompts[i].Number >= n })
	if idx < len(prompts) && prompts[idx].Number == n {
		return &prompts[idx], true
	}
	return nil, false
}

// PickNext returns the lowest-numbered pickable prompt not in excluded. A
// prompt is pickable iff status = pending and every dependency has
// status = done.
func PickNext(prompts []Prompt, excluded map[int]bool) PickResult {
	done := map[int]bool{}
	for _, p := range prompts {
		if p.Status == StatusDone {
			done[p.Number] = true
		}
	}

	for i := range prompts {
		p := &prompts[i]
		if p.Status != StatusPending {
			continue
		}
		if excluded[p.Number] {
			continue
		}
		if !depsSatisfied(p.Dependencies, done) {
			continue
		}
		return PickResult{Prompt: p, Stats: statsOf(prompts)}
	}

	return PickResult{Stats: statsOf(prompts), Reason: noPickableReason(prompts, excluded)}
}

func depsSatisfied(deps []int, done map[int]bool) bool {
	for _, d := range deps {
		if !done[d] {
			return false
		}
	}
	return true
}

func noPickableReason(prompts []Prompt, excluded map[int]bool) string {
	if len(prompts) == 0 {
		return "no prompts in workspace"
	}
	anyPending := false
	for _, p := range prompts {
		if p.Status == StatusPending && !excluded[p.Number] {
			anyPending = true
		}
	}
	if !anyPending {
		return "no pending prompts with satisfied dependencies"
	}
	return "all pending prompts are excluded or blocked on dependencies"
}

// MarkInProgress atomically rewrites path with status: in_progress,
// preserving all other front-matter keys and their order: write to a
// sibling temp file, fsync, then rename over the original.
func MarkInProgress(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("io_error: reading %s: %w", path, err)
	}

	doc, err := frontmatter.Parse(content)
	if err != nil {
		return fmt.Errorf("parse_error: %w", err)
	}

	frontmatter.SetField(doc.Node, "status", string(StatusInProgress))

	out, err := frontmatter.Render(doc.Node, doc.Body)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", path, err)
	}

	return atomicWrite(path, out)
}

// AppendProgressNote atomically appends note to the end of path's markdown
// body, leaving front-matter (including status) untouched: compaction may
// add progress notes, but reviving a stalled prompt is an operator decision,
// not something a hook should make silently. This function structurally
// cannot touch status, since it only ever rewrites the body segment.
func AppendProgressNote(path, note string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("io_error: reading %s: %w", path, err)
	}

	doc, err := frontmatter.Parse(content)
	if err != nil {
		return fmt.Errorf("parse_error: %w", err)
	}

	body := doc.Body
	if body != "" && body[len(body)-1] != '\n' {
		body += "\n"
	}
	body += note
	if body != "" && body[len(body)-1] != '\n' {
		body += "\n"
	}

	out, err := frontmatter.Render(doc.Node, body)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", path, err)
	}

	return atomicWrite(path, out)
}

// FindByNumber loads every prompt under promptsDir and returns the one
// matching n, for lifecycle hooks that only know a prompt number (via the
// PROMPT_NUMBER environment variable) and need its file path.
func FindByNumber(promptsDir string, n int) (*Prompt, error) {
	prompts, err := LoadAll(promptsDir)
	if err != nil {
		return nil, err
	}
	p, ok := GetByNumber(prompts, n)
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	temp, err := os.CreateTemp(dir, ".prompt.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Sync(); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file over %s: %w", path, err)
	}
	return nil
}
