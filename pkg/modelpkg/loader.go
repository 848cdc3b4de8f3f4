// Package modelpkg loads a model package directory (metadata.yml,
// definitions/*.xml, profiles/*.hmm) into a pkg/model.Catalog.
package modelpkg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/macsylib/macsylib/pkg/model"
)

// Package is one loaded model package: its metadata plus the models it
// contributed to the catalog.
type Package struct {
	Dir      string
	Family   string
	Metadata *Metadata
	Models   []*model.Model
}

// Load walks <dir>/definitions/**/*.xml, resolves each gene's profile
// under <dir>/profiles/, and registers every model it finds into cat.
// The family name is the package directory's base name, matching the
// FQN shape family/path/name used across the catalog (spec §4.1).
func Load(cat *model.Catalog, dir string) (*Package, error) {
	family := filepath.Base(filepath.Clean(dir))

	md, err := loadMetadata(dir)
	if err != nil {
		return nil, err
	}

	defsDir := filepath.Join(dir, "definitions")
	profilesDir := filepath.Join(dir, "profiles")

	pkg := &Package{Dir: dir, Family: family, Metadata: md}

	err = filepath.Walk(defsDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || !strings.HasSuffix(path, ".xml") {
			return nil
		}
		rel, err := filepath.Rel(defsDir, path)
		if err != nil {
			return err
		}
		fqn := fqnFor(family, rel)

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		xm, err := decodeModelXML(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		m, err := buildModel(cat, family, fqn, profilesDir, xm)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := cat.AddModel(m); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		pkg.Models = append(pkg.Models, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(pkg.Models) == 0 {
		return nil, fmt.Errorf("model package %s: no model definitions found under %s", dir, defsDir)
	}
	return pkg, nil
}

// fqnFor turns "sub/dir/T2SS.xml" into "family/sub/dir/T2SS".
func fqnFor(family, relXMLPath string) string {
	noExt := strings.TrimSuffix(relXMLPath, filepath.Ext(relXMLPath))
	noExt = filepath.ToSlash(noExt)
	return family + "/" + noExt
}

func buildModel(cat *model.Catalog, family, fqn, profilesDir string, xm *xmlModel) (*model.Model, error) {
	m := &model.Model{
		FQN:                       fqn,
		InterGeneMaxSpace:         xm.InterGeneMaxSpace,
		MinMandatoryGenesRequired: xm.MinMandatoryGenesRequired,
		MinGenesRequired:          xm.MinGenesRequired,
		MaxNbGenes:                xm.MaxNbGenes,
		MultiLoci:                 xm.MultiLoci,
	}

	genes := make([]*model.ModelGene, 0, len(xm.Genes))
	for _, xg := range xm.Genes {
		role, err := model.ParseRole(xg.Presence)
		if err != nil {
			return nil, fmt.Errorf("gene %s: %w", xg.Name, err)
		}
		profilePath := filepath.Join(profilesDir, xg.Name+".hmm")
		if _, statErr := os.Stat(profilePath); statErr != nil {
			return nil, fmt.Errorf("gene %s: unreachable profile %s", xg.Name, profilePath)
		}
		core := cat.InternGene(family, xg.Name, profilePath)
		mg := &model.ModelGene{
			Gene:        core,
			Role:        role,
			Loner:       xg.Loner,
			MultiModel:  xg.MultiModel,
			MultiSystem: xg.MultiSystem,
		}
		if xg.InterGeneMaxSpace != nil {
			mg.InterGeneMaxSpace = xg.InterGeneMaxSpace
		}

		if xg.Exchangeables != nil {
			for _, ref := range xg.Exchangeables.Genes {
				exProfile := filepath.Join(profilesDir, ref.Name+".hmm")
				if _, statErr := os.Stat(exProfile); statErr != nil {
					return nil, fmt.Errorf("gene %s: unreachable exchangeable profile %s", ref.Name, exProfile)
				}
				exCore := cat.InternGene(family, ref.Name, exProfile)
				exGene := &model.ModelGene{
					Gene:        exCore,
					Role:        mg.Role,
					Loner:       mg.Loner,
					MultiModel:  mg.MultiModel,
					MultiSystem: mg.MultiSystem,
					AlternateOf: mg,
				}
				mg.Exchangeables = append(mg.Exchangeables, exGene)
			}
		}

		genes = append(genes, mg)
	}
	m.Genes = genes
	return m, nil
}
