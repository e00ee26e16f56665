package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kingrea/modgraph/descriptors"
	"github.com/kingrea/modgraph/internal/config"
	"github.com/kingrea/modgraph/internal/graph"
	"github.com/kingrea/modgraph/internal/logbook"
	"github.com/kingrea/modgraph/internal/metrics"
	"github.com/kingrea/modgraph/internal/platform"
	"github.com/kingrea/modgraph/internal/registry"
	"github.com/kingrea/modgraph/internal/report"
	"github.com/kingrea/modgraph/internal/resolver"
	"github.com/kingrea/modgraph/internal/scheduler"
	"github.com/kingrea/modgraph/internal/tui"
)

type command struct {
	flags flagSet
	run   func(*cli) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"init":     {flags: flagsProject, run: runInit},
		"resolve":  {flags: flagsContext | flagsOutput, run: runResolve},
		"waves":    {flags: flagsContext | flagsOutput | flagsWaves, run: runWaves},
		"why":      {flags: flagsContext, run: runWhy},
		"graph":    {flags: flagsContext, run: runGraph},
		"validate": {flags: flagsContext | flagsOutput, run: runValidate},
		"browse":   {flags: flagsContext, run: runBrowse},
	}
}

// cli carries the parsed invocation of one subcommand.
type cli struct {
	opts   *options
	args   []string
	stdout io.Writer
	stderr io.Writer
}

// workspace is everything loaded before a resolution can run.
type workspace struct {
	cfg      *config.Config
	registry *registry.Registry
	loadRep  *report.Report
	book     *logbook.Logbook
	metrics  *metrics.Recorder
	resolver *resolver.Resolver
}

func (c *cli) projectDir() (string, error) {
	project := strings.TrimSpace(c.opts.project)
	if project == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		project = cwd
	}
	return filepath.Abs(project)
}

func (c *cli) loadConfig() (*config.Config, error) {
	project, err := c.projectDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.NewConfig(project, c.opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openWorkspace loads the config and every descriptor. Descriptor problems
// are returned in loadRep rather than as an error.
func (c *cli) openWorkspace() (*workspace, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	set, loadRep, err := descriptors.LoadDirs(cfg.DescriptorDirs()...)
	if err != nil {
		return nil, fmt.Errorf("load descriptors: %w", err)
	}
	reg := registry.New()
	loadRep.Merge(descriptors.RegisterAll(reg, set))

	book, err := logbook.New(cfg.JournalPath())
	if err != nil {
		fmt.Fprintf(c.stderr, "modgraph: journal disabled: %v\n", err)
		book = nil
	}
	book.Info("loaded %d modules and %d targets from %s", reg.Len(), len(reg.Targets()), strings.Join(cfg.DescriptorDirs(), ", "))

	rec := metrics.New()
	res, err := resolver.New(reg,
		resolver.WithExternals(cfg.SystemLibraries()...),
		resolver.WithFlagDefaults(cfg.FlagDefaults()),
		resolver.WithLogbook(book),
		resolver.WithMetrics(rec),
	)
	if err != nil {
		return nil, err
	}
	return &workspace{cfg: cfg, registry: reg, loadRep: loadRep, book: book, metrics: rec, resolver: res}, nil
}

// requireLoaded prints descriptor problems and fails when any were found.
func (c *cli) requireLoaded(ws *workspace) error {
	if !ws.loadRep.HasErrors() {
		return nil
	}
	if err := c.writeReport(ws.loadRep); err != nil {
		return err
	}
	return errReported
}

func (c *cli) context(ws *workspace, platformName string) (platform.Context, error) {
	pctx, err := ws.cfg.Context(config.ContextOverrides{
		Platform:      platformName,
		Configuration: c.opts.configuration,
		EngineVersion: c.opts.engineVersion,
		Flags:         c.opts.flags.bools(),
	})
	if err != nil {
		return platform.Context{}, &usageError{err: err}
	}
	if c.opts.target != "" {
		// The resolver seeds config defaults under the target's flags; only
		// explicit -flag values may override the target.
		pctx.Flags = c.opts.flags.bools()
	}
	return pctx, nil
}

func (c *cli) platforms() []string {
	var names []string
	for _, name := range strings.Split(c.opts.platform, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return []string{""}
	}
	return names
}

// resolveOne resolves the single context selected by the flags.
func (c *cli) resolveOne(ws *workspace) (resolver.Result, error) {
	platforms := c.platforms()
	if len(platforms) > 1 {
		return resolver.Result{}, usagef("this command takes a single -platform, got %d", len(platforms))
	}
	pctx, err := c.context(ws, platforms[0])
	if err != nil {
		return resolver.Result{}, err
	}
	result := ws.resolver.ResolveRequest(resolver.Request{Target: c.opts.target, Context: pctx})
	return result, c.writeMetrics(ws)
}

func (c *cli) writeMetrics(ws *workspace) error {
	path := strings.TrimSpace(c.opts.metricsFile)
	if path == "" {
		path = ws.cfg.Project.MetricsFile
	}
	if path == "" {
		return nil
	}
	if err := ws.metrics.WriteTextfile(path); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func (c *cli) color() bool {
	return !c.opts.noColor && os.Getenv("NO_COLOR") == ""
}

func runInit(c *cli) error {
	if len(c.args) > 0 {
		return usagef("init takes no arguments")
	}
	project, err := c.projectDir()
	if err != nil {
		return err
	}
	if err := config.InitProjectDir(project); err != nil {
		return fmt.Errorf("init %s: %w", config.ProjectDirName, err)
	}
	if name := strings.TrimSpace(c.opts.platform); name != "" {
		cfg, err := c.loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.SetDefaultPlatform(name); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.stdout, "Initialized %s in %s\n", config.ProjectDirName, project)
	return nil
}

func runResolve(c *cli) error {
	if len(c.args) > 0 {
		return usagef("resolve takes no arguments")
	}
	ws, err := c.openWorkspace()
	if err != nil {
		return err
	}
	if err := c.requireLoaded(ws); err != nil {
		return err
	}
	var reqs []resolver.Request
	for _, name := range c.platforms() {
		pctx, err := c.context(ws, name)
		if err != nil {
			return err
		}
		reqs = append(reqs, resolver.Request{Target: c.opts.target, Context: pctx})
	}
	results, err := ws.resolver.ResolveAll(context.Background(), reqs)
	if err != nil {
		return err
	}
	if err := c.writeMetrics(ws); err != nil {
		return err
	}
	if err := c.writeResults(results); err != nil {
		return err
	}
	for _, result := range results {
		if !result.OK() {
			return errReported
		}
	}
	return nil
}

func runWaves(c *cli) error {
	if len(c.args) > 0 {
		return usagef("waves takes no arguments")
	}
	if c.opts.maxParallel < 0 {
		return usagef("-max-parallel must not be negative")
	}
	ws, err := c.openWorkspace()
	if err != nil {
		return err
	}
	if err := c.requireLoaded(ws); err != nil {
		return err
	}
	result, err := c.resolveOne(ws)
	if err != nil {
		return err
	}
	if !result.OK() {
		if err := c.writeReport(result.Report); err != nil {
			return err
		}
		return errReported
	}
	sched, err := scheduler.New(result.Graph)
	if err != nil {
		return err
	}
	waves, err := sched.Plan(c.opts.maxParallel)
	if err != nil {
		return err
	}
	ws.book.Scope(result.Context.Key()).Info("planned %d waves (max parallel %d)", len(waves), c.opts.maxParallel)
	return c.writeWaves(result, waves)
}

func runWhy(c *cli) error {
	if len(c.args) != 2 {
		return usagef("why expects <from> <to>")
	}
	from, to := c.args[0], c.args[1]
	ws, err := c.openWorkspace()
	if err != nil {
		return err
	}
	if err := c.requireLoaded(ws); err != nil {
		return err
	}
	result, err := c.resolveOne(ws)
	if err != nil {
		return err
	}
	if result.Graph == nil {
		if err := c.writeReport(result.Report); err != nil {
			return err
		}
		return errReported
	}
	for _, name := range []string{from, to} {
		if _, ok := result.Graph.Node(name); !ok {
			if reason, excluded := result.Excluded[name]; excluded {
				return fmt.Errorf("%s is excluded: %s", name, reason)
			}
			return fmt.Errorf("%s is not part of the %s graph", name, result.Context.Key())
		}
	}
	path := result.Graph.Path(from, to)
	if path == nil {
		fmt.Fprintf(c.stdout, "%s does not depend on %s\n", from, to)
		return errReported
	}
	fmt.Fprintln(c.stdout, strings.Join(path, " -> "))
	return nil
}

func runGraph(c *cli) error {
	if len(c.args) > 0 {
		return usagef("graph takes no arguments")
	}
	ws, err := c.openWorkspace()
	if err != nil {
		return err
	}
	if err := c.requireLoaded(ws); err != nil {
		return err
	}
	result, err := c.resolveOne(ws)
	if err != nil {
		return err
	}
	if result.Graph != nil {
		if err := result.Graph.WriteDOT(c.stdout, graph.DOTOptions{Externals: true}); err != nil {
			return err
		}
	}
	if result.OK() {
		return nil
	}
	if err := result.Report.WriteText(c.stderr, report.TextOptions{Color: c.color()}); err != nil {
		return err
	}
	return errReported
}

// runValidate resolves every configured platform, or the default one when
// none are configured, and reports everything found along the way.
func runValidate(c *cli) error {
	if len(c.args) > 0 {
		return usagef("validate takes no arguments")
	}
	ws, err := c.openWorkspace()
	if err != nil {
		return err
	}
	platforms := c.platforms()
	if platforms[0] == "" && len(ws.cfg.Platforms()) > 0 {
		platforms = ws.cfg.Platforms()
	}
	var reqs []resolver.Request
	for _, name := range platforms {
		pctx, err := c.context(ws, name)
		if err != nil {
			return err
		}
		reqs = append(reqs, resolver.Request{Target: c.opts.target, Context: pctx})
	}
	results, err := ws.resolver.ResolveAll(context.Background(), reqs)
	if err != nil {
		return err
	}
	if err := c.writeMetrics(ws); err != nil {
		return err
	}
	if err := c.writeValidation(ws.loadRep, results); err != nil {
		return err
	}
	failed := ws.loadRep.HasErrors()
	for _, result := range results {
		failed = failed || !result.OK()
	}
	if failed {
		return errReported
	}
	return nil
}

func runBrowse(c *cli) error {
	if len(c.args) > 0 {
		return usagef("browse takes no arguments")
	}
	ws, err := c.openWorkspace()
	if err != nil {
		return err
	}
	if err := c.requireLoaded(ws); err != nil {
		return err
	}
	result, err := c.resolveOne(ws)
	if err != nil {
		return err
	}
	if err := tui.Run(result, tui.WithLogbook(ws.book)); err != nil {
		return fmt.Errorf("run browser: %w", err)
	}
	return nil
}
