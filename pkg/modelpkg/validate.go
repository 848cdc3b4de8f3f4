package modelpkg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/macsylib/macsylib/internal/util"
)

// Validate inspects a model package directory's shape without loading it
// into a catalog, mirroring the checks original_source's model_package.py
// runs before a package is published: required subdirectories, at least
// one definition, and a profile for every gene referenced by a definition.
// It never returns an error itself; problems are reported as warnings or
// errors in the returned slices so a caller can decide how to surface them.
func Validate(dir string) (warnings, errors []string) {
	if !util.DirExists(dir) {
		return nil, []string{fmt.Sprintf("%s: not a directory", dir)}
	}

	if !util.FileExists(filepath.Join(dir, "metadata.yml")) {
		errors = append(errors, "metadata.yml is missing")
	}

	defsDir := filepath.Join(dir, "definitions")
	profilesDir := filepath.Join(dir, "profiles")

	if !util.DirExists(defsDir) {
		errors = append(errors, "definitions/ directory is missing")
		return warnings, errors
	}
	if !util.DirExists(profilesDir) {
		errors = append(errors, "profiles/ directory is missing")
		return warnings, errors
	}

	if !util.FileExists(filepath.Join(dir, "model_conf.xml")) {
		warnings = append(warnings, "model_conf.xml is absent; package-level defaults will not apply")
	}

	var xmlCount int
	referenced := make(map[string]bool)

	_ = filepath.Walk(defsDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || info.IsDir() || !strings.HasSuffix(path, ".xml") {
			return nil
		}
		xmlCount++
		data, err := os.ReadFile(path)
		if err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", path, err))
			return nil
		}
		xm, err := decodeModelXML(data)
		if err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", path, err))
			return nil
		}
		for _, g := range xm.Genes {
			referenced[g.Name] = true
			if g.Exchangeables != nil {
				for _, ref := range g.Exchangeables.Genes {
					referenced[ref.Name] = true
				}
			}
		}
		return nil
	})

	if xmlCount == 0 {
		errors = append(errors, "definitions/ contains no XML model definitions")
	}

	for name := range referenced {
		profile := filepath.Join(profilesDir, name+".hmm")
		if !util.FileExists(profile) {
			errors = append(errors, fmt.Sprintf("gene %s: missing profile %s", name, profile))
		}
	}

	var unused []string
	entries, err := os.ReadDir(profilesDir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".hmm") {
				continue
			}
			name := strings.TrimSuffix(e.Name(), ".hmm")
			if !referenced[name] {
				unused = append(unused, name)
			}
		}
	}
	if len(unused) > 0 {
		warnings = append(warnings, fmt.Sprintf("unused profiles present: %s", strings.Join(unused, ", ")))
	}

	return warnings, errors
}
