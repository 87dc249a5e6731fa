package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sessionstarter/internal/callgraph"
	"sessionstarter/internal/classify"
	"sessionstarter/internal/config"
	"sessionstarter/internal/engine"
	"sessionstarter/internal/logging"
	"sessionstarter/internal/output"
	"sessionstarter/internal/session"
	"sessionstarter/internal/sigs"
)

type startOptions struct {
	infile     string
	file       string
	configPath string
	logLevel   string
	reportPath string
	dotPath    string
	dryRun     bool
}

func newRootCmd(d deps) *cobra.Command {
	var opts startOptions

	cmd := &cobra.Command{
		Use:   "sessionstarter",
		Short: "Prepare an r2 session: analyze, apply signatures, name helper functions",
		Long: `Prepare a radare2 session against a suspected malware target.

Run from inside r2 (e.g. "#!pipe sessionstarter") to work on the open session,
or pass --file to start r2 on a binary. When the binary has no functions yet
it is analyzed with "aa; aar; aac". With --infile, "bytes" zignatures from the
given file or directory rename recognized library code. Finally import-jump
thunks, wrappers and global-assignment stubs are renamed to jmp_<import>,
wrapper_<callee> and globalassign_<name>.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("log-level") {
				opts.logLevel = ""
			}
			return runStart(d, opts)
		},
	}

	cmd.SetOut(d.stdout)
	cmd.SetErr(d.stderr)

	f := cmd.Flags()
	f.StringVarP(&opts.infile, "infile", "i", "", "Input for matching. Can be a file or directory.")
	f.StringVarP(&opts.file, "file", "f", "", "Binary to open in a new radare2 process instead of the current session")
	f.StringVar(&opts.configPath, "config", "", "TOML config file (defaults to the built-in config)")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	f.StringVar(&opts.reportPath, "report", "", "Write the rename report as JSON to this path")
	f.StringVar(&opts.dotPath, "dot", "", "Write a DOT graph of renamed functions to this path")
	f.BoolVar(&opts.dryRun, "dry-run", false, "Classify and report without renaming")

	cmd.AddCommand(newRulesCmd(d))
	return cmd
}

func runStart(d deps, opts startOptions) (err error) {
	// Checked before anything talks to the engine.
	if err := session.ValidateInput(d.fs, opts.infile); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}

	log, err := logging.New(d.stderr, level, "sessionstarter")
	if err != nil {
		return err
	}

	// One r2 per run; every pass shares it.
	conn := engine.NewConn(func() (engine.Pipe, error) { return d.dial(opts.file) })
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	open := conn.Opener()

	renamer := sigs.NewRenamer(open, log.With().Str("pass", "signatures").Logger(),
		sigs.WithFs(d.fs), sigs.WithDryRun(opts.dryRun))
	classifier := classify.New(classify.Prefixes{
		ImportJump:   cfg.Rename.ImportJumpPrefix,
		Wrapper:      cfg.Rename.WrapperPrefix,
		GlobalAssign: cfg.Rename.GlobalAssignPrefix,
	})

	starter, err := session.New(open, log,
		session.WithAnalysis(cfg.Engine.Analysis),
		session.WithClassifier(classifier),
		session.WithSignatureRenamer(renamer),
		session.WithDryRun(opts.dryRun),
	)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	report, err := starter.Start(opts.infile)
	if err != nil {
		return err
	}

	counts := report.Counts()
	log.Info().
		Bool("analyzed", report.Analyzed).
		Int("functions", report.Functions).
		Int("signatures", report.Signatures).
		Int("signature", counts[sigs.KindSignature]).
		Int("import_jump", counts[string(classify.KindImportJump)]).
		Int("wrapper", counts[string(classify.KindWrapper)]).
		Int("global_assign", counts[string(classify.KindGlobalAssign)]).
		Bool("dry_run", report.DryRun).
		Msg("session ready")

	if opts.reportPath != "" {
		if err := output.WriteReportJSON(opts.reportPath, report); err != nil {
			return err
		}
		log.Info().Str("path", opts.reportPath).Msg("wrote report")
	}
	if opts.dotPath != "" {
		dot := callgraph.RenderDOT(report.Renames, "renamed functions")
		if err := output.WriteDOT(opts.dotPath, dot); err != nil {
			return err
		}
		log.Info().Str("path", opts.dotPath).Msg("wrote graph")
	}
	return nil
}
