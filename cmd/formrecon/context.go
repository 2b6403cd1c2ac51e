package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rpattn/formrecon/internal/config"
	"github.com/rpattn/formrecon/internal/db"
	"github.com/rpattn/formrecon/internal/engine"
	"github.com/rpattn/formrecon/internal/logging"
	"github.com/rpattn/formrecon/internal/repository"
)

type commandContext struct {
	configFlag *string
	envFiles   *[]string
	logLevel   *string

	configOnce sync.Once
	config     config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *zap.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, envFiles *[]string, logLevel *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		envFiles:   envFiles,
		logLevel:   logLevel,
	}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		var opts config.LoadOptions
		if c.configFlag != nil {
			if path := strings.TrimSpace(*c.configFlag); path != "" {
				if filepath.Ext(path) == "" {
					opts.ConfigPath = path
				} else {
					opts.ConfigFile = path
				}
			}
		}
		if c.envFiles != nil && len(*c.envFiles) > 0 {
			opts.EnvFiles = *c.envFiles
		}
		cfg, err := config.Load(opts)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevel != nil && strings.TrimSpace(*c.logLevel) != "" {
			cfg.Log.Level = strings.TrimSpace(*c.logLevel)
			if err := cfg.Log.Validate(); err != nil {
				c.configErr = err
				return
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// failureLogger returns the configured logger, or a default stderr logger
// when configuration never loaded.
func (c *commandContext) failureLogger() *zap.Logger {
	if c.logger != nil {
		return c.logger
	}
	logger, err := logging.New(logging.DefaultOptions())
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func (c *commandContext) ensureLogger() (*zap.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.New(cfg.Log)
	})
	return c.logger, c.loggerErr
}

// stores holds the open connections to both databases.
type stores struct {
	formd *db.Connection
	adv   *db.Connection
}

func (s *stores) Close() {
	if s.formd != nil {
		s.formd.Close()
	}
	if s.adv != nil {
		s.adv.Close()
	}
}

// openStores connects to both databases and wires the repositories over
// them. Offering notices and match links live in the Form D store; advisers
// and funds in the ADV store; issues in whichever issues.store names.
func (c *commandContext) openStores(ctx context.Context, logger *zap.Logger) (*stores, engine.Repositories, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, engine.Repositories{}, err
	}

	s := &stores{}
	s.formd, err = db.NewConnection(ctx, cfg.FormD, logger.Named("formd"))
	if err != nil {
		return nil, engine.Repositories{}, fmt.Errorf("connect to form d store: %w", err)
	}
	s.adv, err = db.NewConnection(ctx, cfg.ADV, logger.Named("adv"))
	if err != nil {
		s.Close()
		return nil, engine.Repositories{}, fmt.Errorf("connect to adv store: %w", err)
	}

	issuePool := s.adv.Pool
	if cfg.IssueStore == config.StoreFormD {
		issuePool = s.formd.Pool
	}
	repos := engine.Repositories{
		Filings:  repository.NewFilingRepository(s.formd.Pool),
		Links:    repository.NewMatchLinkRepository(s.formd.Pool),
		Advisers: repository.NewAdviserRepository(s.adv.Pool),
		Funds:    repository.NewFundRepository(s.adv.Pool),
		Issues:   repository.NewIssueRepository(issuePool, logger.Named("issues")),
	}
	return s, repos, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
