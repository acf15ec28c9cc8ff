package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MachineDeskLabs/qr_support_svc/internal/model"
)

func TestOpenDatabaseRejectsMissingDriverName(t *testing.T) {
	_, err := OpenDatabase(Config{DataSourceName: "file:test?mode=memory"})
	require.ErrorIs(t, err, ErrMissingDatabaseDriverName)
}

func TestOpenDatabaseRejectsUnsupportedDriver(t *testing.T) {
	_, err := OpenDatabase(Config{DriverName: "oracle", DataSourceName: "dsn"})
	require.ErrorIs(t, err, ErrUnsupportedDatabaseDriver)
}

func TestOpenDatabaseRejectsMissingDataSourceName(t *testing.T) {
	_, err := OpenDatabase(Config{DriverName: DriverNameSQLite, DataSourceName: "   "})
	require.ErrorIs(t, err, ErrMissingDataSourceName)
}

func TestOpenDatabaseAndAutoMigrateSQLite(t *testing.T) {
	database, err := OpenDatabase(Config{
		DriverName:     DriverNameSQLite,
		DataSourceName: fmt.Sprintf("file:%s?mode=memory&cache=shared", NewID()),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(database))

	for _, table := range []any{
		&model.Machine{},
		&model.QRToken{},
		&model.Ticket{},
		&model.EmailLog{},
		&model.AuditEvent{},
	} {
		require.True(t, database.Migrator().HasTable(table))
	}
}

func TestNewIDProducesUniqueValues(t *testing.T) {
	require.NotEqual(t, NewID(), NewID())
}
