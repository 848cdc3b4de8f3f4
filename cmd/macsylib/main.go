package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/macsylib/macsylib/logger"
	"github.com/macsylib/macsylib/pkg/candidate"
	"github.com/macsylib/macsylib/pkg/cluster"
	"github.com/macsylib/macsylib/pkg/config"
	"github.com/macsylib/macsylib/pkg/hit"
	"github.com/macsylib/macsylib/pkg/hmmer"
	"github.com/macsylib/macsylib/pkg/model"
	"github.com/macsylib/macsylib/pkg/modelpkg"
	"github.com/macsylib/macsylib/pkg/replicon"
	"github.com/macsylib/macsylib/pkg/report"
	"github.com/macsylib/macsylib/pkg/resolve"
	"github.com/macsylib/macsylib/pkg/score"
	"github.com/macsylib/macsylib/pkg/seqdb"
)

// Exit codes per the detection run's contract: 0 success, 1 user error
// (bad config, unknown model), 2 data error (malformed model package or
// report), 3 runtime error (hmmsearch invocation failure), 4 timeout
// reached on at least one replicon.
const (
	exitOK           = 0
	exitUserError    = 1
	exitDataError    = 2
	exitRuntimeError = 3
	exitTimeout      = 4
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	if err := logger.InitLogger(zapcore.InfoLevel); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env found, using local environment")
	}

	var (
		sequenceDB      = flag.String("sequence-db", "", "FASTA sequence database to search")
		dbType          = flag.String("db-type", "ordered_replicon", "database layout: ordered_replicon, gembase or unordered")
		topologyFile    = flag.String("topology-file", "", "optional per-replicon topology overrides")
		modelsDir       = flag.String("models-dir", "", "model package directory (comma-separated for several packages)")
		families        = flag.String("family", "", "comma-separated model families to detect (default: all loaded)")
		names           = flag.String("model", "", "comma-separated fully qualified model names to detect (overrides -family)")
		outDir          = flag.String("out-dir", "", "directory reports are written to")
		workDir         = flag.String("work-dir", "", "directory hmmsearch reports are written to")
		cfgFile         = flag.String("cfg-file", "", "run-specific YAML configuration file (highest precedence below CLI flags)")
		hmmerBin        = flag.String("hmmer-bin", "", "path to the hmmsearch binary")
		eValue          = flag.Float64("e-value-search", 0, "hmmsearch -E threshold")
		coverageProfile = flag.Float64("coverage-profile", 0, "minimum profile coverage for hit selection")
		iEvalueSel      = flag.Float64("i-evalue-select", 0, "maximum independent e-value for hit selection")
		cpu             = flag.Int("cpu", 0, "CPUs passed to each hmmsearch invocation")
		worker          = flag.Int("worker", 0, "number of concurrent hmmsearch workers")
		timeoutSec      = flag.Int("timeout", 0, "wall-clock budget in seconds for the whole run (0: unbounded)")
		logLevel        = flag.String("log-level", "", "debug, info, warn or error")
	)
	flag.Parse()

	cli := config.RunConfig{
		Base: config.BaseOptions{SequenceDB: *sequenceDB, DBType: *dbType},
		Models: config.ModelsOptions{
			Families: splitNonEmpty(*families),
			Models:   splitNonEmpty(*names),
		},
		Hmmer: config.HmmerOptions{
			Bin:             *hmmerBin,
			EValue:          *eValue,
			CoverageProfile: *coverageProfile,
			IEvalueSel:      *iEvalueSel,
			CPU:             *cpu,
		},
		Directories: config.DirectoriesOptions{
			ModelsDirs: splitNonEmpty(*modelsDir),
			WorkDir:    *workDir,
			OutDir:     *outDir,
		},
		General: config.GeneralOptions{
			Worker:     *worker,
			TimeoutSec: *timeoutSec,
			LogLevel:   *logLevel,
		},
	}

	cfg, err := config.Load(config.LayerPaths{
		SystemWide: "/etc/macsylib/config.yaml",
		User:       userConfigPath(),
		Project:    "./macsylib.yaml",
		CfgFile:    *cfgFile,
	}, cli)
	if err != nil {
		logger.Error("loading configuration", zap.Error(err))
		return exitUserError
	}

	if len(cfg.Directories.ModelsDirs) == 0 {
		logger.Error("no model package directory given (-models-dir)")
		return exitUserError
	}

	level, err := zapLevel(cfg.General.LogLevel)
	if err == nil {
		logger.SetLevel(level)
	}

	cfg.Base.SequenceDB = config.SequenceDBFromEnv(cfg.Base.SequenceDB, func(msg string) { logger.Warn(msg) })
	if cfg.Base.SequenceDB == "" {
		logger.Error("no sequence database given (-sequence-db or MACSYLIB_SEQUENCE_DB)")
		return exitUserError
	}

	logger.Info("macsylib starting", zap.String("version", version), zap.String("sequence_db", cfg.Base.SequenceDB))

	ctx := context.Background()
	var cancel context.CancelFunc
	if cfg.General.TimeoutSec > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.General.TimeoutSec)*time.Second)
		defer cancel()
	}

	cat := model.NewCatalog()
	var loadedPackages []*modelpkg.Package
	for _, dir := range cfg.Directories.ModelsDirs {
		pkg, err := modelpkg.Load(cat, dir)
		if err != nil {
			logger.Error("loading model package", zap.String("dir", dir), zap.Error(err))
			return exitDataError
		}
		loadedPackages = append(loadedPackages, pkg)
		logger.Info("loaded model package", zap.String("family", pkg.Family), zap.Int("models", len(pkg.Models)))
	}

	models, err := cat.ModelsToDetect(model.Selector{
		Families: cfg.Models.Families,
		Names:    cfg.Models.Models,
	})
	if err != nil {
		logger.Error("resolving models to detect", zap.Error(err))
		return exitUserError
	}
	if len(models) == 0 {
		logger.Error("no model matched the requested selection")
		return exitUserError
	}
	models = applyModelOverrides(models, cfg.ModelsOpt)

	layout, err := replicon.ParseLayout(cfg.Base.DBType)
	if err != nil {
		logger.Error("parsing db-type", zap.Error(err))
		return exitUserError
	}
	registry := replicon.NewRegistry(layout)
	if *topologyFile != "" {
		f, err := os.Open(*topologyFile)
		if err != nil {
			logger.Error("opening topology file", zap.Error(err))
			return exitUserError
		}
		err = registry.LoadTopologyFile(f)
		f.Close()
		if err != nil {
			logger.Error("parsing topology file", zap.Error(err))
			return exitUserError
		}
	}

	indexPath := filepath.Join(cfg.Directories.WorkDir, "sequence_index.db")
	sdb, err := seqdb.Open(cfg.Base.SequenceDB, indexPath, 4096)
	if err != nil {
		logger.Error("opening sequence database", zap.Error(err))
		return exitDataError
	}
	defer sdb.Close()
	seqCount, _ := sdb.Len()
	logger.Info("sequence database indexed", zap.Int("sequences", seqCount))

	factory := hmmer.NewProfileFactory()
	genes := genesToSearch(models)
	jobs := make([]hmmer.Job, 0, len(genes))
	for _, g := range genes {
		p, err := factory.Get(g.Family, g)
		if err != nil {
			logger.Error("resolving gene profile", zap.String("gene", g.FQN()), zap.Error(err))
			return exitDataError
		}
		jobs = append(jobs, hmmer.Job{Gene: g, Profile: p})
	}

	runner := &hmmer.Runner{
		Bin:        cfg.Hmmer.Bin,
		WorkDir:    cfg.Directories.WorkDir,
		SequenceDB: cfg.Base.SequenceDB,
		EValue:     cfg.Hmmer.EValue,
		CPU:        cfg.Hmmer.CPU,
	}
	logger.Info("running hmmsearch", zap.Int("jobs", len(jobs)), zap.Int("worker", effectiveWorkers(cfg.General.Worker)))
	results := hmmer.RunAll(ctx, runner, jobs, effectiveWorkers(cfg.General.Worker))

	stream := hit.NewStream()
	runtimeFailures := 0
	for _, res := range results {
		if res.Err != nil {
			logger.Error("hmmsearch job failed", zap.String("gene", res.Job.Gene.FQN()), zap.Error(res.Err))
			runtimeFailures++
			continue
		}
		hits, err := parseReport(res.ReportPath, res.Job.Gene)
		if err != nil {
			logger.Error("parsing hmmsearch report", zap.String("gene", res.Job.Gene.FQN()), zap.Error(err))
			return exitDataError
		}
		if err := stream.Add(hits, cfg.Hmmer.IEvalueSel, cfg.Hmmer.CoverageProfile); err != nil {
			logger.Error("indexing hits", zap.Error(err))
			return exitDataError
		}
	}
	if runtimeFailures > 0 {
		return exitRuntimeError
	}
	if err := stream.Finalize(); err != nil {
		logger.Error("finalizing hit stream", zap.Error(err))
		return exitDataError
	}

	outDirPath := cfg.Directories.OutDir
	if err := os.MkdirAll(outDirPath, 0o755); err != nil {
		logger.Error("creating output directory", zap.Error(err))
		return exitRuntimeError
	}

	timedOutAny := false
	var allCandidates []*candidate.CandidateSystem
	var allSystems []*candidate.CandidateSystem
	var allRejected []*candidate.RejectedCandidate
	var allSolutions []*resolve.Solution
	var warnings []string
	solutionScore := make(map[*candidate.CandidateSystem]score.Score)

	weights := weightsFromConfig(cfg.ScoreOpt)

	for _, repliconName := range stream.Replicons() {
		repliconHits := stream.ByReplicon(repliconName)
		repl := &replicon.Replicon{
			Name:     repliconName,
			Size:     maxPosition(repliconHits),
			Topology: registry.TopologyFor(repliconName),
		}

		var candidatesOnReplicon []*candidate.CandidateSystem
		for _, m := range models {
			clusterResult := cluster.Clusterize(m, repl, repliconHits)
			systems, rejected := candidate.Build(m, repliconName, clusterResult)
			candidatesOnReplicon = append(candidatesOnReplicon, systems...)
			allRejected = append(allRejected, rejected...)
			for _, sys := range systems {
				solutionScore[sys] = score.Candidate(sys, weights)
				warnings = append(warnings, sys.Warnings...)
			}
		}
		allCandidates = append(allCandidates, candidatesOnReplicon...)

		result := resolve.Resolve(ctx, candidatesOnReplicon, weights)
		if result.State == resolve.StateTimeout {
			timedOutAny = true
			warnings = append(warnings, fmt.Sprintf("WARNING: resolver timed out on replicon %q, reporting the best solution found so far", repliconName))
			logger.Warn("resolver timed out", zap.String("replicon", repliconName))
		}
		allSolutions = append(allSolutions, result.All...)
		if result.Best != nil {
			allSystems = append(allSystems, result.Best.Systems...)
		}
	}
	warnings = dedupStrings(warnings)

	if err := writeReports(outDirPath, allCandidates, allSystems, allSolutions, allRejected, solutionScore, warnings, loadedPackages); err != nil {
		logger.Error("writing reports", zap.Error(err))
		return exitRuntimeError
	}

	logger.Info("macsylib finished", zap.Int("systems", len(allSystems)), zap.Int("rejected", len(allRejected)))

	if timedOutAny {
		return exitTimeout
	}
	return exitOK
}

func parseReport(path string, gene *model.CoreGene) ([]*hit.Hit, error) {
	r, err := hit.OpenReportFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return hit.ParseReport(r, gene)
}

// genesToSearch collects every distinct CoreGene the selected models can
// match, directly or via an Exchangeable, including forbidden-role genes
// (their hits are needed to evaluate the FORBIDDEN_PRESENT rejection rule).
func genesToSearch(models []*model.Model) []*model.CoreGene {
	seen := make(map[*model.CoreGene]bool)
	var out []*model.CoreGene
	var visit func(g *model.ModelGene)
	visit = func(g *model.ModelGene) {
		if !seen[g.Gene] {
			seen[g.Gene] = true
			out = append(out, g.Gene)
		}
		for _, ex := range g.Exchangeables {
			visit(ex)
		}
	}
	for _, m := range models {
		for _, g := range m.Genes {
			visit(g)
		}
	}
	return out
}

// maxPosition approximates a replicon's protein count from the highest
// hit position observed on it. Sequence databases laid out as
// ordered_replicon or gembase segments report positions local to the
// replicon, so this is exact whenever every protein on the replicon
// produced at least one candidate hit for some searched gene (in fact
// whenever the last protein did), and a lower bound otherwise.
// Replicon.Distance reads Size only on circular replicons, where it
// computes the wrap-around distance of every pair of hits; an
// underestimated Size shortens that distance.
func maxPosition(hits []*hit.Hit) int {
	max := 0
	for _, h := range hits {
		if h.Position > max {
			max = h.Position
		}
	}
	return max
}

func applyModelOverrides(models []*model.Model, overrides map[string]config.ModelOverride) []*model.Model {
	for _, m := range models {
		ov, ok := overrides[m.FQN]
		if !ok {
			continue
		}
		if ov.InterGeneMaxSpace != nil {
			m.InterGeneMaxSpace = *ov.InterGeneMaxSpace
		}
		if ov.MinMandatoryGenesRequired != nil {
			m.MinMandatoryGenesRequired = *ov.MinMandatoryGenesRequired
		}
		if ov.MinGenesRequired != nil {
			m.MinGenesRequired = *ov.MinGenesRequired
		}
		if ov.MaxNbGenes != nil {
			m.MaxNbGenes = *ov.MaxNbGenes
		}
		if ov.MultiLoci != nil {
			m.MultiLoci = *ov.MultiLoci
		}
	}
	return models
}

func weightsFromConfig(opt config.ScoreOptions) score.Weights {
	w := score.DefaultWeights()
	if opt.MandatoryWeight != nil {
		w.MandatoryWeight = *opt.MandatoryWeight
	}
	if opt.AccessoryWeight != nil {
		w.AccessoryWeight = *opt.AccessoryWeight
	}
	if opt.ExchangeableWeight != nil {
		w.ExchangeableWeight = *opt.ExchangeableWeight
	}
	if opt.OutOfCluster != nil {
		w.OutOfCluster = *opt.OutOfCluster
	}
	if opt.RedundancyPenalty != nil {
		w.RedundancyPenalty = *opt.RedundancyPenalty
	}
	return w
}

func effectiveWorkers(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "macsylib", "config.yaml")
}

func zapLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func writeReports(
	outDir string,
	allCandidates []*candidate.CandidateSystem,
	systems []*candidate.CandidateSystem,
	solutions []*resolve.Solution,
	rejected []*candidate.RejectedCandidate,
	solutionScore map[*candidate.CandidateSystem]score.Score,
	warnings []string,
	packages []*modelpkg.Package,
) error {
	usedIn := report.UsedInIndex(allCandidates)
	commandLine := strings.Join(os.Args, " ")
	pkgVersion := modelPackageVersions(packages)

	rowsOfSystem := func(sys *candidate.CandidateSystem) []report.Row {
		return report.RowsForSystem(sys, sys.Wholeness(), solutionScore[sys].Total, solutionScore[sys], usedIn)
	}

	bestPath := filepath.Join(outDir, "best_solution.tsv")
	if err := writeTSV(bestPath, commandLine, pkgVersion, warnings, func(w *os.File) error {
		var rows []report.Row
		for _, sys := range systems {
			rows = append(rows, rowsOfSystem(sys)...)
		}
		return report.WriteRows(w, rows)
	}); err != nil {
		return err
	}

	allSystemsPath := filepath.Join(outDir, "all_systems.tsv")
	if err := writeTSV(allSystemsPath, commandLine, pkgVersion, warnings, func(w *os.File) error {
		var rows []report.Row
		for _, sys := range allCandidates {
			rows = append(rows, rowsOfSystem(sys)...)
		}
		return report.WriteRows(w, rows)
	}); err != nil {
		return err
	}

	lonersPath := filepath.Join(outDir, "best_solution_loners.tsv")
	if err := writeTSV(lonersPath, commandLine, pkgVersion, warnings, func(w *os.File) error {
		var rows []report.Row
		for _, sys := range systems {
			rows = append(rows, report.LonerRowsForSystem(sys, sys.Wholeness(), solutionScore[sys].Total, solutionScore[sys], usedIn)...)
		}
		return report.WriteRows(w, rows)
	}); err != nil {
		return err
	}

	multiPath := filepath.Join(outDir, "best_solution_multisystems.tsv")
	if err := writeTSV(multiPath, commandLine, pkgVersion, warnings, func(w *os.File) error {
		var rows []report.Row
		for _, sys := range systems {
			rows = append(rows, report.MultiSystemRowsForSystem(sys, sys.Wholeness(), solutionScore[sys].Total, solutionScore[sys], usedIn)...)
		}
		return report.WriteRows(w, rows)
	}); err != nil {
		return err
	}

	allPath := filepath.Join(outDir, "all_best_solutions.tsv")
	if err := writeTSV(allPath, commandLine, pkgVersion, warnings, func(w *os.File) error {
		return report.WriteAllBestSolutions(w, solutions, func(sol *resolve.Solution) []report.Row {
			var rows []report.Row
			for _, sys := range sol.Systems {
				rows = append(rows, rowsOfSystem(sys)...)
			}
			return rows
		})
	}); err != nil {
		return err
	}

	rejectedPath := filepath.Join(outDir, "rejected_candidates.tsv")
	if err := writeTSV(rejectedPath, commandLine, pkgVersion, warnings, func(w *os.File) error {
		return report.WriteRejectedCandidates(w, rejected)
	}); err != nil {
		return err
	}

	textPath := filepath.Join(outDir, "best_solution.txt")
	if err := writeTSV(textPath, commandLine, pkgVersion, warnings, func(w *os.File) error {
		return report.WriteSystemsText(w, systems, rowsOfSystem)
	}); err != nil {
		return err
	}

	return nil
}

func writeTSV(path, commandLine, pkgVersion string, warnings []string, body func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := report.WritePreamble(f, version, commandLine, pkgVersion, warnings); err != nil {
		return err
	}
	return body(f)
}

// dedupStrings removes repeats while keeping first-seen order, so the
// same loner-adequacy warning raised by several candidates or replicons
// appears once per output file.
func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func modelPackageVersions(packages []*modelpkg.Package) string {
	var versions []string
	for _, pkg := range packages {
		if pkg.Metadata != nil {
			versions = append(versions, pkg.Family+"="+pkg.Metadata.Vers)
		}
	}
	return strings.Join(versions, ",")
}
