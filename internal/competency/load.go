package competency

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wowl-learning/wowl/internal/errs"
)

//go:embed catalog/*.yaml
var defaultCatalogFS embed.FS

// subjectFile is the on-disk layout of one subject's competencies.
type subjectFile struct {
	Subject      Subject      `yaml:"subject"`
	Domains      []string     `yaml:"domains"`
	Competencies []Competency `yaml:"competencies"`
}

// Default returns the catalog shipped with the binary.
func Default() (*Catalog, error) {
	sub, err := fs.Sub(defaultCatalogFS, "catalog")
	if err != nil {
		return nil, fmt.Errorf("open embedded catalog: %w", err)
	}
	return LoadFS(sub)
}

// LoadDir loads every *.yaml / *.yml file under dir.
func LoadDir(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &errs.ConfigurationError{Source: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, errs.Configuration(dir, "not a directory")
	}
	return LoadFS(os.DirFS(dir))
}

// LoadFS loads every YAML file in fsys. Files are read in lexical order so
// that declaration order, and thus tie-breaking, is stable.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch path.Ext(p) {
		case ".yaml", ".yml":
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, &errs.ConfigurationError{Source: "competency catalog", Err: err}
	}
	sort.Strings(files)

	var defs []Competency
	domains := make(map[Subject][]string)
	for _, p := range files {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, &errs.ConfigurationError{Source: p, Err: err}
		}
		sf, err := parseSubjectFile(data)
		if err != nil {
			return nil, &errs.ConfigurationError{Source: p, Err: err}
		}
		if _, dup := domains[sf.Subject]; dup {
			domains[sf.Subject] = appendMissing(domains[sf.Subject], sf.Domains)
		} else {
			domains[sf.Subject] = sf.Domains
		}
		defs = append(defs, sf.Competencies...)
	}
	if len(defs) == 0 {
		return nil, errs.Configuration("competency catalog", "no competencies found")
	}
	return New(defs, domains)
}

func parseSubjectFile(data []byte) (*subjectFile, error) {
	var sf subjectFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if sf.Subject == "" {
		return nil, fmt.Errorf("missing subject")
	}
	sf.Subject = Subject(strings.ToLower(string(sf.Subject)))
	for i := range sf.Competencies {
		if sf.Competencies[i].Subject == "" {
			sf.Competencies[i].Subject = sf.Subject
		}
	}
	return &sf, nil
}

func appendMissing(dst, src []string) []string {
	for _, s := range src {
		if !declaresDomain(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}
