package modelpkg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macsylib/macsylib/pkg/model"
)

const sampleMetadata = `
maintainer_name: Test Maintainer
maintainer_email: test@example.org
short_description: a fixture package
vers: "1.0"
`

const sampleXML = `<model inter_gene_max_space="2" min_mandatory_genes_required="1" min_genes_required="2" vers="2.0">
  <gene name="geneA" presence="mandatory"/>
  <gene name="geneB" presence="accessory">
    <exchangeables>
      <gene name="geneC"/>
    </exchangeables>
  </gene>
</model>`

func writeFixturePackage(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.yml"), []byte(sampleMetadata), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model_conf.xml"), []byte("<model_config/>"), 0o644))

	defsDir := filepath.Join(dir, "definitions")
	profilesDir := filepath.Join(dir, "profiles")
	require.NoError(t, os.MkdirAll(defsDir, 0o755))
	require.NoError(t, os.MkdirAll(profilesDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(defsDir, "T2SS.xml"), []byte(sampleXML), 0o644))
	for _, gene := range []string{"geneA", "geneB", "geneC"} {
		require.NoError(t, os.WriteFile(filepath.Join(profilesDir, gene+".hmm"), []byte("HMMER3/f"), 0o644))
	}
	return dir
}

func TestLoadBuildsModelFromPackageDirectory(t *testing.T) {
	dir := writeFixturePackage(t)
	family := filepath.Base(dir)

	cat := model.NewCatalog()
	pkg, err := Load(cat, dir)
	require.NoError(t, err)
	require.Len(t, pkg.Models, 1)

	m, err := cat.ModelByFQN(family + "/T2SS")
	require.NoError(t, err)
	assert.Equal(t, 2, m.InterGeneMaxSpace)
	assert.Equal(t, 1, m.MinMandatoryGenesRequired)
	assert.Equal(t, 2, m.MinGenesRequired)

	geneB := m.GeneByName("geneB")
	require.NotNil(t, geneB)
	require.Len(t, geneB.Exchangeables, 1)
	assert.Equal(t, "geneC", geneB.Exchangeables[0].Name())
	assert.True(t, geneB.Exchangeables[0].IsExchangeable())
}

func TestLoadFailsOnMissingProfile(t *testing.T) {
	dir := writeFixturePackage(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "profiles", "geneC.hmm")))

	cat := model.NewCatalog()
	_, err := Load(cat, dir)
	assert.Error(t, err)
}

func TestValidateReportsMissingDefinitions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.yml"), []byte(sampleMetadata), 0o644))

	_, errs := Validate(dir)
	assert.Contains(t, errs, "definitions/ directory is missing")
}

func TestValidateHappyPath(t *testing.T) {
	dir := writeFixturePackage(t)
	warnings, errs := Validate(dir)
	assert.Empty(t, errs)
	assert.Empty(t, warnings)
}

func TestValidateWarnsOnUnusedProfile(t *testing.T) {
	dir := writeFixturePackage(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profiles", "geneZ.hmm"), []byte("HMMER3/f"), 0o644))

	warnings, errs := Validate(dir)
	assert.Empty(t, errs)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "geneZ")
}
