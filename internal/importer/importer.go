package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tally-dev/tally/internal/model"
)

// Parser converts a bank CSV file into transactions for one account.
type Parser interface {
	Parse(r io.Reader, accountID string) ([]model.Transaction, error)
	Format() string
}

// TransferMatcher finds the account a description refers to.
type TransferMatcher interface {
	MatchTransfer(self, description string) (model.Account, bool)
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes an importable file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats returns the registered format names, sorted.
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	r.Register(&OFXParser{})
	return r
}

// NewRegistryWithMappings returns the default registry plus one MappedParser per mapping.
func NewRegistryWithMappings(mappings map[string]ColumnMapping) (*Registry, error) {
	r := DefaultRegistry()
	for name, m := range mappings {
		if r.Get(name) != nil {
			return nil, fmt.Errorf("import format %q is already defined", name)
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("import format %q: %w", name, err)
		}
		r.Register(&MappedParser{Name: name, Mapping: m})
	}
	return r, nil
}

// DetectTransfers returns copies of txns with Transfer set to the counterpart account
// when a description mentions another known account. The input is not modified.
func DetectTransfers(txns []model.Transaction, m TransferMatcher) []model.Transaction {
	out := make([]model.Transaction, len(txns))
	for i, txn := range txns {
		out[i] = txn
		if txn.Transfer != "" {
			continue
		}
		if acct, ok := m.MatchTransfer(txn.AccountID, txn.Description); ok {
			out[i].Transfer = acct.ID
		}
	}
	return out
}

// rawFields keeps every column of a row keyed by its header.
func rawFields(header, rec []string) map[string]string {
	raw := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(rec) {
			raw[strings.TrimSpace(h)] = rec[i]
		}
	}
	return raw
}

// importDir is the subdirectory for import CSVs.
const importDir = "import"

// processedDir is the subdirectory for processed CSVs.
const processedDir = "import/processed"

// Scan returns CSV and OFX files in <repoRoot>/import/.
func Scan(repoRoot string) ([]FileInfo, error) {
	dir := filepath.Join(repoRoot, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !importable(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

func importable(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".ofx", ".qfx":
		return true
	}
	return false
}

// GuessFormat returns the built-in format implied by a file extension, or "".
func GuessFormat(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ofx", ".qfx":
		return "ofx"
	}
	return ""
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(repoRoot, fileName string) error {
	src := filepath.Join(repoRoot, importDir, fileName)
	dstDir := filepath.Join(repoRoot, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
