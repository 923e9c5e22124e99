package ppeprep

import (
	"bufio"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// filesByExtInDir retuns all regular files with file extension ext found directly in directory
// dirPath, sorted by name. All files are returned if extension is empty.
func filesByExtInDir(dirPath, ext string) ([]string, error) {
	dirInfo, err := os.Stat(dirPath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read directory %q", dirPath)
	}
	if !dirInfo.IsDir() {
		return nil, errors.Errorf("%q is not a directory", dirPath)
	}

	entries, err := ioutil.ReadDir(dirPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to access %q", dirPath)
	}

	files := make([]string, 0, len(entries))
	for _, file := range entries {
		name := file.Name()
		// Must be a regular file or a symlink and have the requested extension/suffix.
		if (!file.Mode().IsRegular() && (file.Mode()&os.ModeSymlink == 0)) ||
				!strings.HasSuffix(strings.ToLower(name), ext) {
			continue
		}
		files = append(files, filepath.Join(dirPath, name))
	}
	sort.Strings(files)

	return files, nil
}

// filesByExtsInDir is like filesByExtInDir, but accepts any of the extensions exts.
func filesByExtsInDir(dirPath string, exts []string) ([]string, error) {
	all, err := filesByExtInDir(dirPath, "")
	if err != nil {
		return nil, err
	}

	files := all[:0]
	for _, path := range all {
		ext := strings.ToLower(filepath.Ext(path))
		for _, e := range exts {
			if ext == e {
				files = append(files, path)
				break
			}
		}
	}

	return files, nil
}

// splitPath splits the given file path into the dir name, the base name without extension and the
// extension (without the dot).
func splitPath(path string) (dir, baseNoExt, ext string, err error) {
	dir, file := filepath.Split(path)
	ext = filepath.Ext(file)
	if ext == "" {
		return "", "", "", errors.Errorf("missing file extension in %q", path)
	}

	dir = strings.TrimSuffix(dir, string(os.PathSeparator))
	baseNoExt = file[0 : len(file)-len(ext)]
	ext = ext[1:]

	return dir, baseNoExt, ext, nil
}

// mapFileNamesToExtensions maps the base names of the given file paths, with the file type
// extensions stripped off, to the file extension (without the dot).
func mapFileNamesToExtensions(filePaths []string) map[string]string {
	mapping := make(map[string]string, len(filePaths))
	for _, path := range filePaths {
		_, baseNoExt, ext, err := splitPath(path)
		if err != nil {
			continue
		}
		mapping[baseNoExt] = ext
	}

	return mapping
}

// readLines returns a slice of lines read from the file at path.
func readLines(path string) (lines []string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read file %q", path)
	}
	defer closeWithErrCheck(file, &err)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %q as lines", path)
	}

	return lines, nil
}

// closeWithErrCheck calls c.Close(). If it returns an error, and (*e == nil), e is set to that
// error.
func closeWithErrCheck(c io.Closer, e *error) {
	err := c.Close()
	if err != nil && *e == nil {
		*e = err
	}
}

// loggerOrNop returns logger, or a no-op logger if it is nil.
func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
