package transfer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// resourceListFile is the YAML shape of a resource list.
type resourceListFile struct {
	URLs []string `yaml:"urls"`
}

// LoadList reads the ordered list of source URLs from path. Files ending in
// .yaml or .yml hold a "urls" sequence; any other file holds one URL per line.
func LoadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open resource list: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc resourceListFile
		if err := yaml.NewDecoder(f).Decode(&doc); err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to decode resource list %s: %w", path, err)
		}

		urls := make([]string, 0, len(doc.URLs))
		for _, u := range doc.URLs {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}

		return urls, nil
	default:
		return ReadList(f)
	}
}

// ReadList reads one URL per line. Blank lines and lines starting with # are ignored.
func ReadList(r io.Reader) ([]string, error) {
	var urls []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read resource list: %w", err)
	}

	return urls, nil
}
