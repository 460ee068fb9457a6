package orchestrator

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const backupTimeLayout = "20060102_150405"

// writeBackup writes one plaintext file of dialect-native export statements,
// one per selected table, named by the invocation timestamp. The file is
// advisory disaster-recovery material, not part of the transaction.
func writeBackup(fs afero.Fs, dir string, statements []string, at time.Time) (string, error) {
	name := fmt.Sprintf("backup_%s.sql", at.Format(backupTimeLayout))
	path := filepath.Join(dir, name)
	if dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create backup dir: %w", err)
		}
	}
	content := strings.Join(statements, "\n") + "\n"
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write backup file: %w", err)
	}
	return path, nil
}
