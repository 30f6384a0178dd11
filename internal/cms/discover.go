package cms

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/snf-deals/internal/tabular"
)

// Files groups discovered extracts by kind, each sorted by extract month.
type Files struct {
	MDS    []File
	Claims []File
}

// Discover finds extract CSVs anywhere under dataDir, plus those packed in
// year archives (nursing_homes_*.zip at the top of dataDir) that hold month
// archives. Archive members are unpacked into tempDir. When the same file
// name appears more than once the first one found wins.
func Discover(dataDir, tempDir string) (*Files, error) {
	log := zap.L().With(zap.String("component", "cms.discover"))

	if _, err := os.Stat(dataDir); err != nil {
		return nil, eris.Wrapf(err, "cms: data dir %s", dataDir)
	}

	seen := map[string]bool{}
	out := &Files{}
	add := func(path string) {
		name := filepath.Base(path)
		kind, ok := KindOf(name)
		if !ok || seen[name] {
			return
		}
		id, asOf, err := ParseExtractDate(name)
		if err != nil {
			log.Warn("skipping extract with undated name", zap.String("file", name))
			return
		}
		seen[name] = true
		f := File{Path: path, Name: name, Kind: kind, ExtractID: id, AsOfDate: asOf}
		if kind == KindMDS {
			out.MDS = append(out.MDS, f)
		} else {
			out.Claims = append(out.Claims, f)
		}
	}

	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			add(path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "cms: walk %s", dataDir)
	}

	yearZips, err := filepath.Glob(filepath.Join(dataDir, "nursing_homes_*.zip"))
	if err != nil {
		return nil, eris.Wrap(err, "cms: glob year archives")
	}
	if len(yearZips) > 0 {
		if err := os.MkdirAll(tempDir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "cms: temp dir %s", tempDir)
		}
	}
	sort.Strings(yearZips)
	for _, yz := range yearZips {
		log.Info("unpacking year archive", zap.String("archive", filepath.Base(yz)))
		monthZips, err := tabular.ExtractZIPMatching(yz, tempDir, func(name string) bool {
			return strings.HasSuffix(name, ".zip") && strings.Contains(name, "nursing_homes")
		})
		if err != nil {
			return nil, eris.Wrapf(err, "cms: unpack %s", yz)
		}
		for _, mz := range monthZips {
			csvs, err := tabular.ExtractZIPMatching(mz, tempDir, func(name string) bool {
				_, ok := KindOf(filepath.Base(name))
				return ok
			})
			os.Remove(mz) //nolint:errcheck
			if err != nil {
				return nil, eris.Wrapf(err, "cms: unpack %s", filepath.Base(mz))
			}
			for _, c := range csvs {
				add(c)
			}
		}
	}

	byMonth := func(files []File) {
		sort.SliceStable(files, func(i, j int) bool { return files[i].ExtractID < files[j].ExtractID })
	}
	byMonth(out.MDS)
	byMonth(out.Claims)
	return out, nil
}
