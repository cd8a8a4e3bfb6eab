// Package formula renders Homebrew formulas for a released Python package.
package formula

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"unicode"

	"github.com/bft-labs/tagship/internal/domain"
)

// DefaultTemplate installs the sdist into a virtualenv. It declares no
// resource stanzas, so only the package itself is installed; a package
// with runtime dependencies needs its own template (--formula-template)
// listing them as resources.
const DefaultTemplate = `class {{ .Class }} < Formula
  include Language::Python::Virtualenv

  desc "{{ .Description }}"
  homepage "{{ .Homepage }}"
  url "{{ .URL }}"
  sha256 "{{ .SHA256 }}"
  license "{{ .License }}"

  depends_on "{{ .Python }}"

  def install
    virtualenv_install_with_resources
  end

  test do
    assert_match version.to_s, shell_output("#{bin}/{{ .Name }} --version")
  end
end
`

// Formula is the data passed to the template.
type Formula struct {
	Class       string
	Name        string
	Version     string
	Description string
	Homepage    string
	URL         string
	SHA256      string
	License     string
	Python      string
}

// Metadata describes the package beyond what the index reports.
type Metadata struct {
	Description string
	Homepage    string
	License     string
	Python      string
}

// DefaultMetadata matches the ggshield formula.
var DefaultMetadata = Metadata{
	Description: "Detect secrets in source code, scan your repos for leaks",
	Homepage:    "https://github.com/GitGuardian/ggshield",
	License:     "MIT",
	Python:      "python@3.12",
}

// Renderer renders formulas from a template.
type Renderer struct {
	tmpl *template.Template
	meta Metadata
}

// New parses text as the formula template. An empty text selects
// DefaultTemplate.
func New(text string, meta Metadata) (*Renderer, error) {
	if text == "" {
		text = DefaultTemplate
	}
	tmpl, err := template.New("formula").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse formula template: %w", err)
	}
	return &Renderer{tmpl: tmpl, meta: meta}, nil
}

// NewFromFile reads the template from path. An empty path selects
// DefaultTemplate.
func NewFromFile(path string, meta Metadata) (*Renderer, error) {
	if path == "" {
		return New("", meta)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read formula template: %w", err)
	}
	return New(string(data), meta)
}

// Render produces the formula of pkg at version from its source dist.
func (r *Renderer) Render(pkg, version string, sdist domain.SourceDist) ([]byte, error) {
	if sdist.URL == "" || sdist.SHA256 == "" {
		return nil, fmt.Errorf("%w: %s==%s sdist has no url or digest", domain.ErrPackageNotFound, pkg, version)
	}
	data := Formula{
		Class:       ClassName(pkg),
		Name:        pkg,
		Version:     version,
		Description: r.meta.Description,
		Homepage:    r.meta.Homepage,
		URL:         sdist.URL,
		SHA256:      sdist.SHA256,
		License:     r.meta.License,
		Python:      r.meta.Python,
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render formula: %w", err)
	}
	return buf.Bytes(), nil
}

// ClassName converts a package name to the Homebrew class name:
// "ggshield" becomes "Ggshield", "my-tool_x" becomes "MyToolX".
func ClassName(pkg string) string {
	var b strings.Builder
	upper := true
	for _, r := range pkg {
		if r == '-' || r == '_' || r == '.' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Path returns the location of the formula of pkg inside a tap.
func Path(pkg string) string {
	return "Formula/" + pkg + ".rb"
}
