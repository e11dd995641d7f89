package examples

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCorpus is the corpus used when none is configured.
const DefaultCorpus = "peel"

const corpusFile = "corpus.yaml"

//go:embed all:corpora
var embeddedCorpora embed.FS

// Load loads a corpus by name, searching first in the external directory
// (if provided), then in the embedded corpora.
func Load(name string, externalDir string) (*Corpus, error) {
	if name == "" {
		name = DefaultCorpus
	}

	if externalDir != "" {
		dir := filepath.Join(externalDir, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return loadFromFS(os.DirFS(dir), name)
		}
	}

	// embed.FS always uses forward slashes.
	subFS, err := fs.Sub(embeddedCorpora, path.Join("corpora", name))
	if err != nil {
		return nil, fmt.Errorf("corpus %q not found: %w", name, err)
	}
	return loadFromFS(subFS, name)
}

// LoadFile loads a corpus from a single YAML file.
func LoadFile(file string) (*Corpus, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}
	return parse(data, strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)))
}

// List returns the names of all available corpora, embedded first.
func List(externalDir string) ([]string, error) {
	seen := make(map[string]bool)
	var names []string

	entries, err := fs.ReadDir(embeddedCorpora, "corpora")
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				seen[e.Name()] = true
				names = append(names, e.Name())
			}
		}
	}

	if externalDir != "" {
		entries, err := os.ReadDir(externalDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus directory: %w", err)
		}
		var external []string
		for _, e := range entries {
			if e.IsDir() && !seen[e.Name()] {
				external = append(external, e.Name())
			}
		}
		sort.Strings(external)
		names = append(names, external...)
	}

	return names, nil
}

func loadFromFS(fsys fs.FS, name string) (*Corpus, error) {
	data, err := fs.ReadFile(fsys, corpusFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s for corpus %q: %w", corpusFile, name, err)
	}
	return parse(data, name)
}

func parse(data []byte, name string) (*Corpus, error) {
	var corpus Corpus
	if err := yaml.Unmarshal(data, &corpus); err != nil {
		return nil, fmt.Errorf("failed to parse corpus %q: %w", name, err)
	}
	if corpus.Name == "" {
		corpus.Name = name
	}
	if err := Validate(&corpus); err != nil {
		return nil, fmt.Errorf("invalid corpus %q: %w", name, err)
	}
	return &corpus, nil
}

// Validate checks that the corpus is usable for retrieval: at least one example,
// and every example carries a unique label and non-empty text.
func Validate(c *Corpus) error {
	if c.Len() == 0 {
		return fmt.Errorf("corpus has no examples")
	}

	labels := make(map[string]int, len(c.Examples))
	for i, ex := range c.Examples {
		if strings.TrimSpace(ex.Label) == "" {
			return fmt.Errorf("example %d has no label", i+1)
		}
		if strings.TrimSpace(ex.Text) == "" {
			return fmt.Errorf("example %q has no text", ex.Label)
		}
		if prev, ok := labels[ex.Label]; ok {
			return fmt.Errorf("duplicate label %q (examples %d and %d)", ex.Label, prev+1, i+1)
		}
		labels[ex.Label] = i
	}
	return nil
}
