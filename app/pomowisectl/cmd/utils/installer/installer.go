// Package installer runs the release pipeline end to end: resolve the platform
// and version, download and verify the archive, extract it into the bin
// directory and record the installation.
package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/checksum"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/config"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/downloader"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/extractor"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/fetcher"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/filesystem"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/installmeta"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/platform"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/release"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/runner"
)

// Options is everything one install run needs. OS and Arch are passed in
// rather than read from the runtime so the pipeline can be driven for any target.
type Options struct {
	App         string
	Helper      string
	Source      release.Source
	Version     string
	InstallRoot string
	OS          string
	Arch        string

	Force             bool
	MaxAttempts       int
	BackoffBase       time.Duration
	AttemptTimeout    time.Duration
	Extractor         string
	MinisignPublicKey string

	Progress downloader.ProgressCallback
	Sleep    downloader.SleepFunc
}

// FromConfig maps the loaded configuration onto Options.
func FromConfig(cfg *config.Config, osName, arch string) Options {
	return Options{
		App:    cfg.App,
		Helper: cfg.Helper,
		Source: release.Source{
			Host:    cfg.Host,
			APIHost: cfg.APIHost,
			Org:     cfg.Org,
			Repo:    cfg.Repo,
		},
		Version:           cfg.Version,
		InstallRoot:       cfg.InstallRoot,
		OS:                osName,
		Arch:              arch,
		MaxAttempts:       cfg.MaxAttempts,
		BackoffBase:       cfg.BackoffBase,
		AttemptTimeout:    cfg.AttemptTimeout,
		Extractor:         cfg.Extractor,
		MinisignPublicKey: cfg.MinisignPublicKey,
	}
}

// BinDir is where binaries are installed.
func (o Options) BinDir() string {
	return filepath.Join(o.InstallRoot, "bin")
}

// Outcome describes a finished run.
type Outcome struct {
	Target   platform.Target
	Version  string
	Asset    release.Asset
	Download *downloader.Result
	Report   extractor.Report
	// UpToDate is set when the requested version was already installed and
	// nothing was downloaded.
	UpToDate bool
}

type Installer struct {
	opts    Options
	fs      filesystem.FileSystem
	fetcher fetcher.Fetcher
	runner  runner.Runner
	meta    installmeta.Store
	logger  *slog.Logger
}

func New(opts Options, fs filesystem.FileSystem, f fetcher.Fetcher, r runner.Runner, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{
		opts:    opts,
		fs:      fs,
		fetcher: f,
		runner:  r,
		meta:    installmeta.New(fs, opts.InstallRoot),
		logger:  logger,
	}
}

// ExpectedBinaries returns the file names the archive must provide for t.
func (in *Installer) ExpectedBinaries(t platform.Target) []string {
	names := []string{t.BinaryName(in.opts.App)}
	if in.opts.Helper != "" {
		names = append(names, t.BinaryName(in.opts.Helper))
	}
	return names
}

// ResolveVersion turns "latest" into a concrete version using the releases API.
func (in *Installer) ResolveVersion(ctx context.Context) (string, error) {
	if in.opts.Version != "" && in.opts.Version != release.Latest {
		return release.TrimV(in.opts.Version), nil
	}
	v, _, err := release.NewClient(in.opts.Source, in.fetcher, in.logger).Latest(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve latest version: %w", err)
	}
	return v, nil
}

// Install runs the pipeline.
func (in *Installer) Install(ctx context.Context) (*Outcome, error) {
	target, err := platform.Resolve(in.opts.OS, in.opts.Arch)
	if err != nil {
		return nil, err
	}

	version, err := in.ResolveVersion(ctx)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Target: target, Version: version}
	expected := in.ExpectedBinaries(target)
	binDir := in.opts.BinDir()

	if !in.opts.Force {
		current, err := in.upToDate(ctx, version, binDir, expected)
		if err != nil {
			return nil, err
		}
		if current {
			in.logger.Info("Requested version already installed", "version", version, "path", binDir)
			out.UpToDate = true
			return out, nil
		}
	}

	out.Asset = in.opts.Source.Resolve(in.opts.App, version, target)
	in.logger.Info("Installing", "version", version, "target", target.Triple, "url", out.Asset.URL)

	if err := in.fs.CreateDir(ctx, in.opts.InstallRoot, 0o755); err != nil {
		return nil, err
	}

	orchestrator, err := in.orchestrator()
	if err != nil {
		return nil, err
	}
	res, err := orchestrator.Download(ctx, downloader.Job{
		ArchiveURL:  out.Asset.URL,
		ChecksumURL: out.Asset.ChecksumURL,
		FinalPath:   filepath.Join(in.opts.InstallRoot, out.Asset.Name),
	})
	if err != nil {
		return nil, err
	}
	out.Download = res

	ex, err := extractor.New(in.opts.Extractor, target.Windows, in.runner, in.logger)
	if err != nil {
		return nil, err
	}
	report, err := extractor.NewFinalizer(ex, in.fs, target.Windows, in.logger).Finalize(ctx, res.Path, binDir, expected)
	if err != nil {
		return nil, err
	}
	out.Report = report

	if err := in.meta.Save(ctx, installmeta.Record{
		Version:  version,
		Triple:   target.Triple,
		Source:   installmeta.SourceRelease,
		Binaries: report.Installed,
		SHA256:   res.SHA256,
	}); err != nil {
		// The binaries are in place; a missing record only disables the up-to-date check.
		in.logger.Warn("Failed to save install record", "path", in.meta.Path(), "error", err)
	}

	return out, nil
}

func (in *Installer) orchestrator() (*downloader.Orchestrator, error) {
	checksumOpts := []checksum.Option{checksum.WithLogger(in.logger)}
	if in.opts.MinisignPublicKey != "" {
		v, err := checksum.NewSignatureVerifier(in.opts.MinisignPublicKey)
		if err != nil {
			return nil, err
		}
		checksumOpts = append(checksumOpts, checksum.WithSignatureVerifier(v))
	}

	engineOpts := []downloader.EngineOption{downloader.WithEngineLogger(in.logger)}
	if in.opts.Progress != nil {
		engineOpts = append(engineOpts, downloader.WithProgressCallback(in.opts.Progress))
	}

	orchOpts := []downloader.OrchestratorOption{
		downloader.WithMaxAttempts(in.opts.MaxAttempts),
		downloader.WithLogger(in.logger),
	}
	if in.opts.BackoffBase > 0 {
		orchOpts = append(orchOpts, downloader.WithBackoffBase(in.opts.BackoffBase))
	}
	if in.opts.AttemptTimeout > 0 {
		orchOpts = append(orchOpts, downloader.WithAttemptTimeout(in.opts.AttemptTimeout))
	}
	if in.opts.Sleep != nil {
		orchOpts = append(orchOpts, downloader.WithSleep(in.opts.Sleep))
	}

	return downloader.NewOrchestrator(
		checksum.NewResolver(in.fetcher, checksumOpts...),
		downloader.NewEngine(in.fetcher, engineOpts...),
		downloader.NewCommitter(in.fs, in.logger),
		orchOpts...,
	), nil
}

func (in *Installer) upToDate(ctx context.Context, version, binDir string, expected []string) (bool, error) {
	rec, err := in.meta.Load(ctx)
	if errors.Is(err, installmeta.ErrNotInstalled) {
		return false, nil
	}
	if err != nil {
		// A corrupt record is replaced by this install.
		in.logger.Warn("Ignoring unreadable install record", "path", in.meta.Path(), "error", err)
		return false, nil
	}
	if rec.Version != version {
		return false, nil
	}
	for _, name := range expected {
		ok, err := in.fs.CheckIfFileExists(ctx, filepath.Join(binDir, name))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// RecordBuild stores an install record for binaries produced by a source build.
func (in *Installer) RecordBuild(ctx context.Context, ref string, installed []string) error {
	version := release.TrimV(ref)
	if version == "" {
		version = "source"
	}
	names := make([]string, 0, len(installed))
	for _, p := range installed {
		names = append(names, filepath.Base(p))
	}
	return in.meta.Save(ctx, installmeta.Record{
		Version:  version,
		Source:   installmeta.SourceBuild,
		Binaries: names,
	})
}

// Installed returns the current install record.
func (in *Installer) Installed(ctx context.Context) (*installmeta.Record, error) {
	return in.meta.Load(ctx)
}
