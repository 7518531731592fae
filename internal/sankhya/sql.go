package sankhya

import (
	"embed"
	"fmt"
	"os"
	"strings"
)

//go:embed sql/*.sql
var sqlFS embed.FS

// EntitySQL returns the embedded SQL statement for a source entity
// (grupos, locais, produtos, parceiros, estoque).
func EntitySQL(entity string) (string, error) {
	data, err := sqlFS.ReadFile("sql/" + entity + ".sql")
	if err != nil {
		return "", fmt.Errorf("sankhya: no embedded SQL for entity %q", entity)
	}
	return strings.TrimSpace(string(data)), nil
}

// LoadSQL reads a SQL statement from an external file, used when the
// operator overrides the embedded query with --sql.
func LoadSQL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("sankhya: read SQL file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
