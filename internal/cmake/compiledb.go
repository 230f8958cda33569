package cmake

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/shinji-kodama/caro-build/internal/console"
	"github.com/shinji-kodama/caro-build/internal/model"
)

// CompileCommand is one entry of a compile database. Either Command or
// Arguments is set, depending on the generator.
type CompileCommand struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Command   string   `json:"command,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
	Output    string   `json:"output,omitempty"`
}

// CompileDatabase is the decoded content of compile_commands.json.
type CompileDatabase []CompileCommand

// LoadCompileDatabase reads and validates the compile database at path.
func LoadCompileDatabase(path string) (CompileDatabase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}
	return decodeCompileDatabase(path, data)
}

func decodeCompileDatabase(path string, data []byte) (CompileDatabase, error) {
	var db CompileDatabase
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, eris.Wrapf(err, "failed to decode %s", path)
	}

	for i, entry := range db {
		if entry.File == "" || entry.Directory == "" {
			return nil, eris.Errorf("%s: entry %d lacks file or directory", path, i)
		}
		if entry.Command == "" && len(entry.Arguments) == 0 {
			return nil, eris.Errorf("%s: entry %d (%s) has neither command nor arguments", path, i, entry.File)
		}
	}
	return db, nil
}

// Files returns the set of absolute, cleaned source paths in the database.
func (db CompileDatabase) Files() map[string]bool {
	files := make(map[string]bool, len(db))
	for _, entry := range db {
		file := entry.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(entry.Directory, file)
		}
		files[filepath.Clean(file)] = true
	}
	return files
}

// Missing returns the given files that have no database entry.
func (db CompileDatabase) Missing(files []string) []string {
	known := db.Files()
	var missing []string
	for _, file := range files {
		if !known[filepath.Clean(file)] {
			missing = append(missing, file)
		}
	}
	return missing
}

// CopyCompileDatabase validates <buildDir>/compile_commands.json and
// copies it to <root>/compile_commands.json, where editors and clang
// tools look for it. It returns the path of the copy.
func (b *Builder) CopyCompileDatabase(ctx context.Context, buildDir, root string) (string, error) {
	log := console.Logger(ctx)
	src := filepath.Join(buildDir, model.CompileDatabaseName)
	dst := filepath.Join(root, model.CompileDatabaseName)

	if b.DryRun {
		log.Info().Str(console.FieldPath, dst).Msgf("[dry-run] would copy %s to %s", src, dst)
		return dst, nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "compile database unavailable", err)
	}
	db, err := decodeCompileDatabase(src, data)
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "compile database is invalid", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "failed to write %s", dst)
	}

	log.Info().Str(console.FieldPath, dst).Msgf("Copied compile database (%d entries) to %s", len(db), dst)
	return dst, nil
}
