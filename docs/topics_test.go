package docs

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/etnz/kabuka"
	"github.com/etnz/kabuka/config"
)

const (
	yamlConfig = "yaml config"
	textParse  = "text parse"
)

func TestTopics(t *testing.T) {
	// Every topic listed in readme.md loads, and every topic file is listed.
	file, err := os.Open("readme.md")
	if err != nil {
		t.Fatalf("failed to open readme.md: %v", err)
	}
	defer file.Close()

	var listed []string
	topicRegex := regexp.MustCompile(`^\*\s+([^:]+):.*$`)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if m := topicRegex.FindStringSubmatch(scanner.Text()); len(m) > 1 {
			listed = append(listed, strings.TrimSpace(m[1]))
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("error scanning readme.md: %v", err)
	}

	for _, topic := range listed {
		if _, err := Topic(topic); err != nil {
			t.Errorf("failed to get topic %q: %v", topic, err)
		}
	}

	names, err := Names()
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		found := false
		for _, topic := range listed {
			found = found || topic == name
		}
		if !found {
			t.Errorf("topic %q is not listed in readme.md", name)
		}
	}

	all, err := Topic(All)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		content, _ := Topic(name)
		if !strings.Contains(all, content) {
			t.Errorf("topic %q missing from %q", name, All)
		}
	}

	if _, err := Topic("nope"); err == nil {
		t.Error("Topic(nope) should fail")
	}
}

func TestCodeBlocks(t *testing.T) {
	files, err := filepath.Glob("*.md")
	if err != nil {
		t.Fatal(err)
	}
	files = append(files, "../README.md")

	for _, file := range files {
		t.Run(file, func(t *testing.T) {
			for _, b := range parseMarkdown(t, file) {
				switch b.Type {
				case yamlConfig:
					checkConfig(t, b)
				case textParse:
					checkParse(t, b)
				}
			}
		})
	}
}

// Block is a fenced code block of a markdown file.
type Block struct {
	Type    string
	Content string
	File    string
	Line    int
}

// checkConfig loads the block as a configuration file, that must be valid.
func checkConfig(t *testing.T, b *Block) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	name := filepath.Join(dir, "kabuka.yaml")
	if err := os.WriteFile(name, []byte(b.Content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(name)
	if err != nil {
		t.Errorf("%s:%d: cannot load: %v", b.File, b.Line, err)
		return
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("%s:%d: invalid configuration: %v", b.File, b.Line, err)
	}
}

// checkParse reads "raw => value" lines and checks both engines.
func checkParse(t *testing.T, b *Block) {
	t.Helper()
	for i, line := range strings.Split(strings.TrimSpace(b.Content), "\n") {
		raw, want, ok := strings.Cut(line, " => ")
		if !ok {
			t.Errorf("%s:%d: malformed line %q", b.File, b.Line+i+1, line)
			continue
		}
		v, err := strconv.ParseFloat(want, 64)
		if err != nil {
			t.Errorf("%s:%d: %v", b.File, b.Line+i+1, err)
			continue
		}
		for _, e := range []kabuka.Engine{kabuka.Builtin, kabuka.Decimal} {
			if got := e.ParseStockPrice(raw); got != v {
				t.Errorf("%s:%d: %s ParseStockPrice(%q) = %v, want %v", b.File, b.Line+i+1, e.Name(), raw, got, v)
			}
		}
	}
}

// parseMarkdown returns the fenced code blocks of file.
func parseMarkdown(t *testing.T, file string) []*Block {
	t.Helper()
	content, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("failed to read %s: %v", file, err)
	}
	root := goldmark.DefaultParser().Parse(text.NewReader(content))

	var blocks []*Block
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !entering || !ok || fcb.Info == nil {
			return ast.WalkContinue, nil
		}
		var body strings.Builder
		for i := 0; i < fcb.Lines().Len(); i++ {
			line := fcb.Lines().At(i)
			body.Write(line.Value(content))
		}
		blocks = append(blocks, &Block{
			Type:    string(fcb.Info.Segment.Value(content)),
			Content: body.String(),
			File:    file,
			Line:    lineNumber(content, fcb.Info.Segment.Start),
		})
		return ast.WalkContinue, nil
	})
	return blocks
}

// lineNumber returns the line of offset in source.
func lineNumber(source []byte, offset int) int {
	return bytes.Count(source[:offset], []byte{'\n'}) + 1
}
