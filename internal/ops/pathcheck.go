package ops

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hpungsan/ale2ccc/internal/cdl"
	"github.com/hpungsan/ale2ccc/internal/errors"
	"github.com/hpungsan/ale2ccc/internal/report"
)

// ValidateInputs checks that every input names an existing file that is not a directory.
// Symlinked inputs are allowed; only the destination is held to the no-symlink rule.
func ValidateInputs(paths []string) error {
	if len(paths) == 0 {
		return errors.NewUsage("at least one input ALE path is required")
	}
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			return errors.NewInvalidRequest("input path must not be empty")
		}
		info, err := os.Stat(p)
		if err != nil {
			return errors.NewInputRead(p, err)
		}
		if info.IsDir() {
			return errors.NewInputRead(p, stderrors.New("is a directory"))
		}
	}
	return nil
}

// ValidateOutput checks the destination before any input is read:
// 1. Its parent directory exists
// 2. It is not a symlink or a directory
// 3. It is not one of the inputs
// 4. An existing non-empty file is only replaced if it is a CCC document, unless force is set
func ValidateOutput(path string, inputs []string, force bool) error {
	if strings.TrimSpace(path) == "" {
		return errors.NewUsage("an output CCC path is required")
	}

	info, err := os.Lstat(path)
	if stderrors.Is(err, os.ErrNotExist) {
		parent := filepath.Dir(path)
		pinfo, perr := os.Stat(parent)
		if perr != nil {
			return errors.NewOutputWrite(path, perr)
		}
		if !pinfo.IsDir() {
			return errors.NewOutputWrite(path, fmt.Errorf("%s is not a directory", parent))
		}
		return nil
	}
	if err != nil {
		return errors.NewOutputWrite(path, err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return errors.NewOutputWrite(path, stderrors.New("destination is a symlink"))
	}
	if info.IsDir() {
		return errors.NewOutputWrite(path, stderrors.New("destination is a directory"))
	}

	for _, in := range inputs {
		if inInfo, err := os.Stat(in); err == nil && os.SameFile(info, inInfo) {
			return errors.NewInvalidRequest(fmt.Sprintf("output %s is also an input", path))
		}
	}

	if !force && info.Size() > 0 && !isCollectionFile(path) {
		return errors.NewInvalidRequest(fmt.Sprintf("%s exists and is not a CCC document (use --force to overwrite)", path))
	}
	return nil
}

// ValidateReport checks a report destination the way ValidateOutput checks
// the CCC destination, plus:
// 1. No ".." components
// 2. A report extension (.md, .markdown, .html, .htm)
// 3. Neither the CCC output nor an input
// 4. An existing non-empty file is only replaced if it is an earlier report, unless force is set
func ValidateReport(path, output string, inputs []string, force bool) error {
	if strings.TrimSpace(path) == "" {
		return errors.NewInvalidRequest("report path must not be empty")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("report path must not contain directory traversal (..)")
	}
	if !slices.Contains(report.Extensions, strings.ToLower(filepath.Ext(path))) {
		return errors.NewInvalidRequest(fmt.Sprintf("report path must end in one of %s", strings.Join(report.Extensions, ", ")))
	}

	parent := filepath.Dir(path)
	pinfo, err := os.Lstat(parent)
	if err != nil {
		return errors.NewOutputWrite(path, err)
	}
	if pinfo.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("report directory must not be a symlink")
	}
	if !pinfo.IsDir() {
		return errors.NewOutputWrite(path, fmt.Errorf("%s is not a directory", parent))
	}

	if filepath.Clean(path) == filepath.Clean(output) {
		return errors.NewInvalidRequest("report path must differ from the output")
	}

	info, err := os.Lstat(path)
	if stderrors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.NewOutputWrite(path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("report path must not be a symlink")
	}
	if info.IsDir() {
		return errors.NewOutputWrite(path, stderrors.New("destination is a directory"))
	}
	for _, other := range append([]string{output}, inputs...) {
		if oinfo, err := os.Stat(other); err == nil && os.SameFile(info, oinfo) {
			return errors.NewInvalidRequest(fmt.Sprintf("report %s is also the output or an input", path))
		}
	}
	if !force && info.Size() > 0 && !isReportFile(path) {
		return errors.NewInvalidRequest(fmt.Sprintf("%s exists and is not a conversion report (use --force to overwrite)", path))
	}
	return nil
}

// containsTraversal reports whether any component of path is "..".
func containsTraversal(path string) bool {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	}) {
		if part == ".." {
			return true
		}
	}
	return false
}

func isReportFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return report.IsReport(f)
}

// isCollectionFile reports whether path holds a ColorCorrectionCollection document.
func isCollectionFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return cdl.IsCollection(f)
}
