package editors

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// languageForFile returns the grammar for a file extension, or nil when
// comments in that kind of file are left alone.
func languageForFile(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return golang.GetLanguage()
	case ".java":
		return java.GetLanguage()
	case ".js", ".mjs", ".cjs", ".jsx":
		return javascript.GetLanguage()
	case ".ts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	case ".py":
		return python.GetLanguage()
	case ".rs":
		return rust.GetLanguage()
	case ".kt", ".kts":
		return kotlin.GetLanguage()
	default:
		return nil
	}
}

type byteRange struct{ start, end uint32 }

// stripComments removes every comment node whose text matches one of res.
// A line left empty by a removal is dropped entirely.
func stripComments(ctx context.Context, lang *sitter.Language, src []byte, res []*regexp.Regexp) ([]byte, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	defer tree.Close()

	var ranges []byteRange
	stack := []*sitter.Node{tree.RootNode()}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if strings.Contains(n.Type(), "comment") {
			if matchesAny(res, n.Content(src)) {
				ranges = append(ranges, byteRange{n.StartByte(), n.EndByte()})
			}
			continue
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, n.Child(i))
		}
	}
	if len(ranges) == 0 {
		return src, nil
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })

	out := make([]byte, 0, len(src))
	var pos uint32
	for _, r := range ranges {
		if r.start < pos {
			continue
		}
		start, end := widenToLine(src, r.start, r.end)
		out = append(out, src[pos:start]...)
		pos = end
	}
	out = append(out, src[pos:]...)
	return out, nil
}

// widenToLine extends [start, end) over surrounding blanks. A comment
// alone on its line takes the line with it; a trailing comment takes the
// blanks before it.
func widenToLine(src []byte, start, end uint32) (uint32, uint32) {
	ls := start
	for ls > 0 && (src[ls-1] == ' ' || src[ls-1] == '\t') {
		ls--
	}
	le := end
	for int(le) < len(src) && (src[le] == ' ' || src[le] == '\t' || src[le] == '\r') {
		le++
	}
	atLineStart := ls == 0 || src[ls-1] == '\n'
	atLineEnd := int(le) == len(src) || src[le] == '\n'

	switch {
	case atLineStart && atLineEnd:
		if int(le) < len(src) {
			le++
		}
		return ls, le
	case atLineEnd:
		return ls, end
	default:
		return start, end
	}
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
