package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/accounts"
	"github.com/tally-dev/tally/internal/config"
	"github.com/tally-dev/tally/internal/gitops"
	"github.com/tally-dev/tally/internal/history"
	"github.com/tally-dev/tally/internal/importer"
	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/logging"
	"github.com/tally-dev/tally/internal/rules"
	"github.com/tally-dev/tally/internal/runlog"
)

// project is an opened tally directory: its root, config and logger.
type project struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
}

// openProject loads tally.yaml from --repo and installs the configured logger.
func openProject(cmd *cobra.Command, opts *rootOptions, component string) (*project, error) {
	root, err := filepath.Abs(opts.repo)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s is not a tally project (no %s); run \"tally init\" first", root, config.FileName)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	format := cfg.Logging.Format
	if opts.logFormat != "" {
		format = opts.logFormat
	}
	logger, err := logging.New(cmd.ErrOrStderr(), level, format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	return &project{
		root:   root,
		cfg:    cfg,
		logger: logging.For(component),
		now:    time.Now,
	}, nil
}

func (p *project) path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.root, rel)
}

func (p *project) rulesPath() string {
	return p.path(p.cfg.Classify.RulesFile)
}

func (p *project) loadRules() (*rules.RuleSet, error) {
	return rules.Load(p.rulesPath())
}

func (p *project) ledger() *ledger.Service {
	return ledger.NewService(p.root)
}

func (p *project) accounts() (*accounts.Service, error) {
	return accounts.Load(p.root)
}

func (p *project) registry() (*importer.Registry, error) {
	return importer.NewRegistryWithMappings(p.cfg.Imports)
}

// openHistory returns nil when history is disabled.
func (p *project) openHistory() (*history.Store, error) {
	if !p.cfg.History.Enabled {
		return nil, nil
	}
	return history.Open(p.path(p.cfg.History.Path))
}

// commit records paths in git when auto-commit is on. Failures are logged, not returned,
// since the files on disk are already correct.
func (p *project) commit(ctx context.Context, message string, paths ...string) string {
	if !p.cfg.Git.AutoCommit || !gitops.IsRepo(p.root) {
		return ""
	}
	author := gitops.Author{Name: p.cfg.Git.AuthorName, Email: p.cfg.Git.AuthorEmail}
	hash, err := gitops.Commit(ctx, p.root, message, author, paths...)
	if err != nil {
		p.logger.WarnContext(ctx, "git commit failed", "error", err)
		return ""
	}
	return hash
}

// record appends a run log row. Failures are logged, not returned.
func (p *project) record(ctx context.Context, e runlog.Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = p.now()
	}
	if err := runlog.Append(p.root, []runlog.Entry{e}); err != nil {
		p.logger.WarnContext(ctx, "failed to write run log", "error", err)
	}
}
