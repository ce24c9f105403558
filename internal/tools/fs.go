package tools

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FS implements the fs_* tool handlers.
type FS struct{}

var errCredentialPath = errors.New("access to credential store paths is not permitted")

// List implements fs_list(path, recursive?, max_depth?=1).
func (FS) List(params map[string]any) (any, error) {
	path := stringParam(params, "path")
	if path == "" {
		return failMsg("path is required"), nil
	}
	recursive := boolParam(params, "recursive")
	maxDepth := intParam(params, "max_depth", 1)

	var entries []map[string]any
	baseDepth := strings.Count(filepath.Clean(path), string(os.PathSeparator))
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == path {
			return nil
		}
		depth := strings.Count(filepath.Clean(p), string(os.PathSeparator)) - baseDepth
		info, statErr := d.Info()
		size := int64(0)
		if statErr == nil {
			size = info.Size()
		}
		entries = append(entries, map[string]any{
			"path":   p,
			"name":   d.Name(),
			"is_dir": d.IsDir(),
			"size":   size,
		})
		if d.IsDir() && !recursive {
			return filepath.SkipDir
		}
		if d.IsDir() && recursive && maxDepth > 0 && depth >= maxDepth {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return fail(err), nil
	}
	return ok(map[string]any{"entries": entries}), nil
}

// Read implements fs_read(path, max_bytes?=1 MiB).
func (FS) Read(params map[string]any) (any, error) {
	path := stringParam(params, "path")
	if path == "" {
		return failMsg("path is required"), nil
	}
	if isBlockedCredentialPath(path) {
		return fail(errCredentialPath), nil
	}
	maxBytes := int64(intParam(params, "max_bytes", 1<<20))

	f, err := os.Open(path)
	if err != nil {
		return fail(err), nil
	}
	defer f.Close()

	buf := make([]byte, maxBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fail(err), nil
	}
	return ok(map[string]any{"content": string(buf[:n])}), nil
}

// ReadRange implements fs_read_range(path, start_line>=1, end_line=-1=>EOF).
func (FS) ReadRange(params map[string]any) (any, error) {
	path := stringParam(params, "path")
	if path == "" {
		return failMsg("path is required"), nil
	}
	if isBlockedCredentialPath(path) {
		return fail(errCredentialPath), nil
	}
	start := intParam(params, "start_line", 1)
	end := intParam(params, "end_line", -1)
	if start < 1 {
		return failMsg("start_line must be >= 1"), nil
	}
	if end != -1 && end < start {
		return ok(map[string]any{"content": ""}), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fail(err), nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var lines []string
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo < start {
			continue
		}
		if end != -1 && lineNo > end {
			break
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fail(err), nil
	}
	content := ""
	for i, l := range lines {
		if i > 0 {
			content += "\n"
		}
		content += l
	}
	return ok(map[string]any{"content": content}), nil
}

// Write implements fs_write(path, content, mode∈{overwrite,append},
// create_directories?).
func (FS) Write(params map[string]any) (any, error) {
	path := stringParam(params, "path")
	if path == "" {
		return failMsg("path is required"), nil
	}
	if isBlockedCredentialPath(path) {
		return fail(errCredentialPath), nil
	}
	content := stringParam(params, "content")
	mode := stringParam(params, "mode")
	if mode == "" {
		mode = "overwrite"
	}
	if boolParam(params, "create_directories") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fail(err), nil
		}
	}

	flags := os.O_WRONLY | os.O_CREATE
	switch mode {
	case "append":
		flags |= os.O_APPEND
	case "overwrite":
		flags |= os.O_TRUNC
	default:
		return failMsg("mode must be overwrite or append"), nil
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fail(err), nil
	}
	defer f.Close()
	n, err := f.WriteString(content)
	if err != nil {
		return fail(err), nil
	}
	return ok(map[string]any{"bytes_written": n}), nil
}

// Delete implements fs_delete(path, recursive?).
func (FS) Delete(params map[string]any) (any, error) {
	path := stringParam(params, "path")
	if path == "" {
		return failMsg("path is required"), nil
	}
	if isBlockedCredentialPath(path) {
		return fail(errCredentialPath), nil
	}
	var err error
	if boolParam(params, "recursive") {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return fail(err), nil
	}
	return ok(nil), nil
}

// Move implements fs_move(src, dst).
func (FS) Move(params map[string]any) (any, error) {
	src := stringParam(params, "src")
	dst := stringParam(params, "dst")
	if src == "" || dst == "" {
		return failMsg("src and dst are required"), nil
	}
	if isBlockedCredentialPath(src) || isBlockedCredentialPath(dst) {
		return fail(errCredentialPath), nil
	}
	if err := os.Rename(src, dst); err != nil {
		return fail(err), nil
	}
	return ok(nil), nil
}

// Search implements fs_search(path, pattern-glob, max_results?=100).
func (FS) Search(params map[string]any) (any, error) {
	path := stringParam(params, "path")
	pattern := stringParam(params, "pattern")
	if path == "" || pattern == "" {
		return failMsg("path and pattern are required"), nil
	}
	maxResults := intParam(params, "max_results", 100)

	var matches []string
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if len(matches) >= maxResults {
			return filepath.SkipAll
		}
		matched, matchErr := filepath.Match(pattern, d.Name())
		if matchErr == nil && matched {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipAll) {
		return fail(err), nil
	}
	return ok(map[string]any{"matches": matches}), nil
}

// Grep implements fs_grep(path, regex, glob?, max_matches?=100).
func (FS) Grep(params map[string]any) (any, error) {
	path := stringParam(params, "path")
	pattern := stringParam(params, "regex")
	if path == "" || pattern == "" {
		return failMsg("path and regex are required"), nil
	}
	glob := stringParam(params, "glob")
	maxMatches := intParam(params, "max_matches", 100)

	re, err := regexp.Compile(pattern)
	if err != nil {
		return fail(fmt.Errorf("invalid regex: %w", err)), nil
	}

	var results []map[string]any
	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if len(results) >= maxMatches {
			return filepath.SkipAll
		}
		if glob != "" {
			if matched, _ := filepath.Match(glob, d.Name()); !matched {
				return nil
			}
		}
		if isBlockedCredentialPath(p) {
			return nil
		}
		f, openErr := os.Open(p)
		if openErr != nil {
			return nil
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			if re.MatchString(scanner.Text()) {
				results = append(results, map[string]any{"path": p, "line": lineNo, "text": scanner.Text()})
				if len(results) >= maxMatches {
					break
				}
			}
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, filepath.SkipAll) {
		return fail(walkErr), nil
	}
	return ok(map[string]any{"matches": results}), nil
}

// PatchOp is one edit operation for fs_patch.
type PatchOp struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

// Patch implements fs_patch(path, ops[], dry_run?): a sequential
// find/replace pass over the file's contents.
func (FS) Patch(params map[string]any) (any, error) {
	path := stringParam(params, "path")
	if path == "" {
		return failMsg("path is required"), nil
	}
	if isBlockedCredentialPath(path) {
		return fail(errCredentialPath), nil
	}
	rawOps, _ := params["ops"].([]any)
	if len(rawOps) == 0 {
		return failMsg("ops is required"), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fail(err), nil
	}
	text := string(content)
	applied := 0
	for _, rawOp := range rawOps {
		opMap, ok := rawOp.(map[string]any)
		if !ok {
			continue
		}
		find := stringParam(opMap, "find")
		replace := stringParam(opMap, "replace")
		if find == "" {
			continue
		}
		if newText := replaceFirst(text, find, replace); newText != text {
			text = newText
			applied++
		}
	}

	if boolParam(params, "dry_run") {
		return ok(map[string]any{"preview": text, "operations_applied": applied}), nil
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fail(err), nil
	}
	return ok(map[string]any{"operations_applied": applied}), nil
}

func replaceFirst(text, find, replace string) string {
	idx := strings.Index(text, find)
	if idx < 0 {
		return text
	}
	return text[:idx] + replace + text[idx+len(find):]
}
