package store

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	migrations "github.com/dropDatabas3/learnhabit/migrations/postgres"
)

func TestParseMigrations_Embedded(t *testing.T) {
	migs, err := NewMigrator(migrations.FS, migrations.Dir).ParseMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	assert.Equal(t, 1, migs[0].Version)
	assert.Equal(t, "email_verification_pin", migs[0].Name)
	assert.Contains(t, migs[0].Up, "email_verification_pin")
	assert.NotEmpty(t, migs[0].Down)
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"m/0001_first_up.sql":    {Data: []byte("CREATE TABLE a (x int)")},
		"m/0001_first_down.sql":  {Data: []byte("DROP TABLE a")},
		"m/0002_second_up.sql":   {Data: []byte("CREATE TABLE b (x int)")},
		"m/0002_second_down.sql": {Data: []byte("DROP TABLE b")},
		"m/README.md":            {Data: []byte("ignored")},
	}
}

func TestMigratorUp_SkipsApplied(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS _migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT version FROM _migrations").WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectExec("CREATE TABLE b").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO _migrations").WithArgs(2, "second").WillReturnResult(pgxmock.NewResult("INSERT", 1))

	res, err := NewMigrator(testFS(), "m").Up(context.Background(), mock, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res.Applied)
	assert.Equal(t, []int{1}, res.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigratorDown_OneStep(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS _migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT version FROM _migrations").WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(1).AddRow(2))
	mock.ExpectExec("DROP TABLE b").WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec("DELETE FROM _migrations").WithArgs(2).WillReturnResult(pgxmock.NewResult("DELETE", 1))

	res, err := NewMigrator(testFS(), "m").Down(context.Background(), mock, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res.Applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
