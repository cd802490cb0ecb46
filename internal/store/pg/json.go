package pg

import (
	"encoding/json"
	"log/slog"
)

// scanJSON decodes a JSONB column into dst. Malformed bytes leave dst alone
// and are logged with enough context to find the row; they never abort the
// surrounding scan.
func scanJSON(b []byte, dst any, column, id string) {
	if len(b) == 0 {
		return
	}
	if err := json.Unmarshal(b, dst); err != nil {
		slog.Error("malformed json column", "column", column, "id", id, "err", err)
	}
}
