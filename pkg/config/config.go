// Package config builds a RunConfig by layering six configuration sources
// (spec §6.3): system-wide, user, model package, project, --cfg-file and
// CLI, in ascending precedence. Each layer is a YAML file read with
// gopkg.in/yaml.v3; .env values are read the way the teacher's main.go
// reads GGTABLE_DATA, with a logged fallback instead of a hard failure.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BaseOptions names the sequence database and the model search targets.
type BaseOptions struct {
	SequenceDB string   `yaml:"sequence_db"`
	DBType     string   `yaml:"db_type"`
	Replicons  []string `yaml:"replicons"`
}

// ModelsOptions selects which model families/definitions to run.
type ModelsOptions struct {
	Families []string `yaml:"families"`
	Models   []string `yaml:"models"`
}

// ModelOverride holds per-model threshold overrides keyed by FQN
// (spec §6.3's "models_opt overrides per-model thresholds using
// fully-qualified model names").
type ModelOverride struct {
	InterGeneMaxSpace         *int  `yaml:"inter_gene_max_space"`
	MinMandatoryGenesRequired *int  `yaml:"min_mandatory_genes_required"`
	MinGenesRequired          *int  `yaml:"min_genes_required"`
	MaxNbGenes                *int  `yaml:"max_nb_genes"`
	MultiLoci                 *bool `yaml:"multi_loci"`
}

// HmmerOptions configures the external HMMER invocation.
type HmmerOptions struct {
	Bin             string  `yaml:"bin"`
	EValue          float64 `yaml:"e_value_search"`
	CoverageProfile float64 `yaml:"coverage_profile"`
	IEvalueSel      float64 `yaml:"i_evalue_select"`
	CPU             int     `yaml:"cpu"`
}

// ScoreOptions configures the Scorer's weights (spec §4.5).
type ScoreOptions struct {
	MandatoryWeight    *float64 `yaml:"mandatory_weight"`
	AccessoryWeight    *float64 `yaml:"accessory_weight"`
	ExchangeableWeight *float64 `yaml:"exchangeable_weight"`
	OutOfCluster       *float64 `yaml:"out_of_cluster"`
	RedundancyPenalty  *float64 `yaml:"redundancy_penalty"`
}

// DirectoriesOptions names the filesystem locations a run reads from and
// writes to.
type DirectoriesOptions struct {
	ModelsDirs []string `yaml:"models_dirs"`
	WorkDir    string   `yaml:"work_dir"`
	OutDir     string   `yaml:"out_dir"`
}

// GeneralOptions configures run-wide behaviour not specific to any other
// group.
type GeneralOptions struct {
	Worker       int    `yaml:"worker"`
	TimeoutSec   int    `yaml:"timeout"`
	LogLevel     string `yaml:"log_level"`
}

// RunConfig is the fully merged configuration for one run (spec §6.3).
type RunConfig struct {
	Base        BaseOptions              `yaml:"base"`
	Models      ModelsOptions            `yaml:"models"`
	ModelsOpt   map[string]ModelOverride `yaml:"models_opt"`
	Hmmer       HmmerOptions             `yaml:"hmmer"`
	ScoreOpt    ScoreOptions             `yaml:"score_opt"`
	Directories DirectoriesOptions       `yaml:"directories"`
	General     GeneralOptions           `yaml:"general"`
}

// Default returns the baseline RunConfig every layer merges on top of.
func Default() RunConfig {
	return RunConfig{
		Hmmer: HmmerOptions{
			Bin:             "hmmsearch",
			EValue:          1.0,
			CoverageProfile: 0.5,
			IEvalueSel:      0.1,
			CPU:             1,
		},
		Directories: DirectoriesOptions{
			WorkDir: "./macsylib_work",
			OutDir:  "./macsylib_results",
		},
		General: GeneralOptions{
			Worker:   1,
			LogLevel: "info",
		},
	}
}

// LayerPaths names the files for each precedence layer below CLI
// (spec §6.3's "system-wide < user < model package < project <
// --cfg-file"); any entry left empty is skipped.
type LayerPaths struct {
	SystemWide   string
	User         string
	ModelPackage string
	Project      string
	CfgFile      string
}

// Load reads every existing layer in precedence order, merges it onto
// Default(), then merges cli last so CLI flags always win.
func Load(paths LayerPaths, cli RunConfig) (*RunConfig, error) {
	cfg := Default()
	for _, p := range []string{paths.SystemWide, paths.User, paths.ModelPackage, paths.Project, paths.CfgFile} {
		if p == "" {
			continue
		}
		layer, err := loadLayer(p)
		if err != nil {
			return nil, fmt.Errorf("loading config layer %s: %w", p, err)
		}
		cfg = Merge(cfg, layer)
	}
	cfg = Merge(cfg, cli)
	return &cfg, nil
}

func loadLayer(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, nil
		}
		return RunConfig{}, err
	}
	var layer RunConfig
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return RunConfig{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return layer, nil
}

// Merge layers overlay on top of base: a zero-valued overlay field keeps
// base's value, any other value replaces it. This is the same
// higher-layer-wins rule spec §6.3 describes, applied field by field
// since RunConfig mixes strings, slices and per-model override maps.
func Merge(base, overlay RunConfig) RunConfig {
	out := base

	out.Base = mergeBase(base.Base, overlay.Base)
	out.Models = mergeModels(base.Models, overlay.Models)
	out.ModelsOpt = mergeModelsOpt(base.ModelsOpt, overlay.ModelsOpt)
	out.Hmmer = mergeHmmer(base.Hmmer, overlay.Hmmer)
	out.ScoreOpt = mergeScore(base.ScoreOpt, overlay.ScoreOpt)
	out.Directories = mergeDirectories(base.Directories, overlay.Directories)
	out.General = mergeGeneral(base.General, overlay.General)
	return out
}

func mergeBase(b, o BaseOptions) BaseOptions {
	if o.SequenceDB != "" {
		b.SequenceDB = o.SequenceDB
	}
	if o.DBType != "" {
		b.DBType = o.DBType
	}
	if len(o.Replicons) > 0 {
		b.Replicons = o.Replicons
	}
	return b
}

func mergeModels(b, o ModelsOptions) ModelsOptions {
	if len(o.Families) > 0 {
		b.Families = o.Families
	}
	if len(o.Models) > 0 {
		b.Models = o.Models
	}
	return b
}

func mergeModelsOpt(b, o map[string]ModelOverride) map[string]ModelOverride {
	if len(o) == 0 {
		return b
	}
	out := make(map[string]ModelOverride, len(b)+len(o))
	for fqn, ov := range b {
		out[fqn] = ov
	}
	for fqn, ov := range o {
		existing := out[fqn]
		if ov.InterGeneMaxSpace != nil {
			existing.InterGeneMaxSpace = ov.InterGeneMaxSpace
		}
		if ov.MinMandatoryGenesRequired != nil {
			existing.MinMandatoryGenesRequired = ov.MinMandatoryGenesRequired
		}
		if ov.MinGenesRequired != nil {
			existing.MinGenesRequired = ov.MinGenesRequired
		}
		if ov.MaxNbGenes != nil {
			existing.MaxNbGenes = ov.MaxNbGenes
		}
		if ov.MultiLoci != nil {
			existing.MultiLoci = ov.MultiLoci
		}
		out[fqn] = existing
	}
	return out
}

func mergeHmmer(b, o HmmerOptions) HmmerOptions {
	if o.Bin != "" {
		b.Bin = o.Bin
	}
	if o.EValue != 0 {
		b.EValue = o.EValue
	}
	if o.CoverageProfile != 0 {
		b.CoverageProfile = o.CoverageProfile
	}
	if o.IEvalueSel != 0 {
		b.IEvalueSel = o.IEvalueSel
	}
	if o.CPU != 0 {
		b.CPU = o.CPU
	}
	return b
}

func mergeScore(b, o ScoreOptions) ScoreOptions {
	if o.MandatoryWeight != nil {
		b.MandatoryWeight = o.MandatoryWeight
	}
	if o.AccessoryWeight != nil {
		b.AccessoryWeight = o.AccessoryWeight
	}
	if o.ExchangeableWeight != nil {
		b.ExchangeableWeight = o.ExchangeableWeight
	}
	if o.OutOfCluster != nil {
		b.OutOfCluster = o.OutOfCluster
	}
	if o.RedundancyPenalty != nil {
		b.RedundancyPenalty = o.RedundancyPenalty
	}
	return b
}

func mergeDirectories(b, o DirectoriesOptions) DirectoriesOptions {
	if len(o.ModelsDirs) > 0 {
		b.ModelsDirs = o.ModelsDirs
	}
	if o.WorkDir != "" {
		b.WorkDir = o.WorkDir
	}
	if o.OutDir != "" {
		b.OutDir = o.OutDir
	}
	return b
}

func mergeGeneral(b, o GeneralOptions) GeneralOptions {
	if o.Worker != 0 {
		b.Worker = o.Worker
	}
	if o.TimeoutSec != 0 {
		b.TimeoutSec = o.TimeoutSec
	}
	if o.LogLevel != "" {
		b.LogLevel = o.LogLevel
	}
	return b
}

// SequenceDBFromEnv resolves the sequence database path from the
// MACSYLIB_SEQUENCE_DB environment variable, falling back to cfg's value
// the way the teacher's main.go falls back to a default data directory
// when GGTABLE_DATA is unset. warn is called with the fallback reason
// when the environment variable is absent; pass a no-op when that
// logging isn't wanted (e.g. in tests).
func SequenceDBFromEnv(cfg string, warn func(string)) string {
	if v := os.Getenv("MACSYLIB_SEQUENCE_DB"); v != "" {
		return v
	}
	if warn != nil {
		warn("MACSYLIB_SEQUENCE_DB not set, using configured sequence_db")
	}
	return cfg
}
