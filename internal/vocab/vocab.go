// Package vocab loads the immutable phrase table that maps spoken words to
// canonical slot values.
//
// A [Vocabulary] is built once at startup from one of three sources and then
// injected into the components that need it:
//
//   - the embedded default ([Default]);
//   - a YAML file ([LoadYAML]) of the form slot type → canonical → phrases;
//   - a directory tree ([LoadDir]) laid out as <label>/<canonical>.voc with
//     one phrase per line. Label directories may be plural ("things") and a
//     "helpers" directory is ignored.
//
// Canonical names must be lower-case identifiers (letters, digits and
// underscores). The canonical name itself, with underscores read as spaces,
// is always included as a phrase.
package vocab

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voicehac/pkg/slots"
)

//go:embed default.yaml
var defaultYAML []byte

// helpersDir is skipped when loading a .voc directory tree.
const helpersDir = "helpers"

var canonicalPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ErrEmpty is returned when a source defines no entries at all.
var ErrEmpty = errors.New("vocab: no entries")

// Entry is one canonical value of a slot type with its phrases.
type Entry struct {
	Type      slots.SlotType
	Canonical string

	// Phrases are lower-case, trimmed and unique.
	Phrases []string
}

// Vocabulary is an immutable phrase table. It is safe for concurrent use.
type Vocabulary struct {
	entries []Entry
	index   map[slots.SlotType]map[string]int
}

// New builds a Vocabulary from entries. Entries sharing type and canonical
// name are merged. Invalid slot types and canonical names are rejected.
func New(entries []Entry) (*Vocabulary, error) {
	v := &Vocabulary{index: make(map[slots.SlotType]map[string]int)}
	var errs []error
	for _, e := range entries {
		if !e.Type.IsValid() {
			errs = append(errs, fmt.Errorf("vocab: entry %q: invalid slot type %q", e.Canonical, e.Type))
			continue
		}
		canonical := strings.ToLower(strings.TrimSpace(e.Canonical))
		if !canonicalPattern.MatchString(canonical) {
			errs = append(errs, fmt.Errorf("vocab: %s: canonical name %q is not an identifier", e.Type, e.Canonical))
			continue
		}
		v.add(e.Type, canonical, e.Phrases)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if len(v.entries) == 0 {
		return nil, ErrEmpty
	}
	slices.SortFunc(v.entries, func(a, b Entry) int {
		if c := strings.Compare(string(a.Type), string(b.Type)); c != 0 {
			return c
		}
		return strings.Compare(a.Canonical, b.Canonical)
	})
	for t := range v.index {
		clear(v.index[t])
	}
	for i, e := range v.entries {
		v.index[e.Type][e.Canonical] = i
	}
	return v, nil
}

func (v *Vocabulary) add(t slots.SlotType, canonical string, phrases []string) {
	byName, ok := v.index[t]
	if !ok {
		byName = make(map[string]int)
		v.index[t] = byName
	}
	i, ok := byName[canonical]
	if !ok {
		v.entries = append(v.entries, Entry{Type: t, Canonical: canonical})
		i = len(v.entries) - 1
		byName[canonical] = i
		v.entries[i].Phrases = appendPhrase(nil, strings.ReplaceAll(canonical, "_", " "))
	}
	for _, p := range phrases {
		v.entries[i].Phrases = appendPhrase(v.entries[i].Phrases, p)
	}
}

func appendPhrase(list []string, p string) []string {
	p = strings.Join(strings.Fields(strings.ToLower(p)), " ")
	if p == "" || slices.Contains(list, p) {
		return list
	}
	return append(list, p)
}

// Entries returns every entry sorted by slot type and canonical name. The
// returned slice must not be modified.
func (v *Vocabulary) Entries() []Entry {
	return v.entries
}

// Canonicals returns the canonical names defined for t in sorted order.
func (v *Vocabulary) Canonicals(t slots.SlotType) []string {
	var out []string
	for _, e := range v.entries {
		if e.Type == t {
			out = append(out, e.Canonical)
		}
	}
	return out
}

// Lookup returns the entry for t and canonical.
func (v *Vocabulary) Lookup(t slots.SlotType, canonical string) (Entry, bool) {
	i, ok := v.index[t][canonical]
	if !ok {
		return Entry{}, false
	}
	return v.entries[i], true
}

// Phrases flattens the table into one span per phrase, with Text holding the
// phrase. This is the form recognisers consume.
func (v *Vocabulary) Phrases() []slots.Span {
	var out []slots.Span
	for _, e := range v.entries {
		for _, p := range e.Phrases {
			out = append(out, slots.Span{Type: e.Type, Canonical: e.Canonical, Text: p})
		}
	}
	return out
}

// Default returns the embedded vocabulary. It panics if the embedded file is
// invalid, which is caught by the package tests.
func Default() *Vocabulary {
	v, err := LoadYAML(strings.NewReader(string(defaultYAML)))
	if err != nil {
		panic("vocab: embedded default: " + err.Error())
	}
	return v
}

// Load reads a vocabulary from path. Directories are read with [LoadDir];
// anything else is parsed as YAML. An empty path yields [Default].
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		return Default(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	if info.IsDir() {
		v, err := LoadDir(os.DirFS(path))
		if err != nil {
			return nil, fmt.Errorf("vocab: load %q: %w", path, err)
		}
		return v, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()
	v, err := LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("vocab: load %q: %w", path, err)
	}
	return v, nil
}

// LoadYAML decodes a vocabulary document:
//
//	thing:
//	  light: [light, lamp]
//	action:
//	  "on": [turn on, switch on]
func LoadYAML(r io.Reader) (*Vocabulary, error) {
	var doc map[string]map[string][]string
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("vocab: decode yaml: %w", err)
	}

	var entries []Entry
	var errs []error
	for label, canon := range doc {
		t, err := slots.ParseSlotType(label)
		if err != nil {
			errs = append(errs, fmt.Errorf("vocab: %w", err))
			continue
		}
		for name, phrases := range canon {
			entries = append(entries, Entry{Type: t, Canonical: name, Phrases: phrases})
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return New(entries)
}

// LoadDir reads a <label>/<canonical>.voc tree from fsys. Blank lines are
// skipped. Files without the .voc extension are ignored.
func LoadDir(fsys fs.FS) (*Vocabulary, error) {
	labels, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("vocab: read root: %w", err)
	}

	var entries []Entry
	var errs []error
	for _, label := range labels {
		if !label.IsDir() || strings.EqualFold(label.Name(), helpersDir) {
			continue
		}
		t, err := slots.ParseSlotType(label.Name())
		if err != nil {
			errs = append(errs, fmt.Errorf("vocab: %w", err))
			continue
		}
		files, err := fs.Glob(fsys, path.Join(label.Name(), "*.voc"))
		if err != nil {
			return nil, fmt.Errorf("vocab: glob %s: %w", label.Name(), err)
		}
		for _, file := range files {
			phrases, err := readLines(fsys, file)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			entries = append(entries, Entry{
				Type:      t,
				Canonical: strings.TrimSuffix(path.Base(file), ".voc"),
				Phrases:   phrases,
			})
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return New(entries)
}

func readLines(fsys fs.FS, name string) ([]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("vocab: open %s: %w", name, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vocab: read %s: %w", name, err)
	}
	return lines, nil
}
