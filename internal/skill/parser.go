package skill

import (
	"bufio"
	"bytes"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

// Filename is the expected manifest filename inside a skill directory.
const Filename = "SKILL.md"

const frontmatterDelimiter = "---"

type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Runtime     string `yaml:"runtime"`
	Entry       string `yaml:"entry"`
}

// parseFile reads and parses dir/SKILL.md into a Spec, with owner set
// from ownerName (the skill root's basename).
func parseFile(dir, ownerName string) (*Spec, error) {
	data, err := os.ReadFile(dir + string(os.PathSeparator) + Filename)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "read %s", Filename)
	}
	return parse(data, dir, ownerName)
}

func parse(data []byte, dir, ownerName string) (*Spec, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolError, err, "split %s front matter", Filename)
	}

	var meta frontmatter
	if err := yaml.Unmarshal(fm, &meta); err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolError, err, "parse %s front matter", Filename)
	}
	if meta.Name == "" {
		return nil, coreerr.New(coreerr.ConfigurationError, "%s: name is required", dir)
	}
	if meta.Description == "" {
		return nil, coreerr.New(coreerr.ConfigurationError, "%s: description is required", dir)
	}

	return &Spec{
		Name:        meta.Name,
		Owner:       ownerName,
		Description: meta.Description,
		Runtime:     meta.Runtime,
		Entry:       meta.Entry,
		Dir:         dir,
		Content:     strings.TrimSpace(string(body)),
	}, nil
}

// splitFrontmatter separates the leading "---"-delimited YAML block from
// the markdown body that follows it.
func splitFrontmatter(data []byte) ([]byte, []byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))

	if !scanner.Scan() {
		return nil, nil, coreerr.New(coreerr.ProtocolError, "empty %s", Filename)
	}
	if strings.TrimSpace(scanner.Text()) != frontmatterDelimiter {
		return nil, nil, coreerr.New(coreerr.ProtocolError, "missing opening front matter delimiter")
	}

	var fmLines []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == frontmatterDelimiter {
			closed = true
			break
		}
		fmLines = append(fmLines, line)
	}
	if !closed {
		return nil, nil, coreerr.New(coreerr.ProtocolError, "missing closing front matter delimiter")
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	return []byte(strings.Join(fmLines, "\n")), []byte(strings.Join(bodyLines, "\n")), nil
}
