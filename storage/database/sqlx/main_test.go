package sqlxrepos

import (
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "postgres")
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// matchSQL builds a regexp matching any query containing the given
// fragments in order, regardless of whitespace in between.
func matchSQL(fragments ...string) string {
	quoted := make([]string, 0, len(fragments))
	for _, f := range fragments {
		quoted = append(quoted, regexp.QuoteMeta(f))
	}
	return "(?s)" + strings.Join(quoted, ".*")
}
