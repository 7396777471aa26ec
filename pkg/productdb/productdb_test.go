package productdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "productid.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAddAndFindRepos(t *testing.T) {
	db := openTestDB(t)

	assert.NoError(t, db.Add("479", "baseos"))
	assert.NoError(t, db.Add("479", "appstream"))

	repos, err := db.FindRepos("479")
	assert.NoError(t, err)
	assert.Equal(t, []string{"baseos", "appstream"}, repos)
}

func TestAddDuplicateIsNoop(t *testing.T) {
	db := openTestDB(t)

	assert.NoError(t, db.Add("479", "baseos"))
	assert.NoError(t, db.Add("479", "baseos"))

	repos, err := db.FindRepos("479")
	assert.NoError(t, err)
	assert.Equal(t, []string{"baseos"}, repos)
}

func TestFindUnknownProduct(t *testing.T) {
	db := openTestDB(t)

	repos, err := db.FindRepos("999")
	assert.NoError(t, err)
	assert.Nil(t, repos)
}

func TestRemoveRepoKeepsOthers(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.Add("479", "baseos"))
	assert.NoError(t, db.Add("479", "appstream"))

	last, err := db.RemoveRepo("479", "baseos")
	assert.NoError(t, err)
	assert.False(t, last)

	repos, err := db.FindRepos("479")
	assert.NoError(t, err)
	assert.Equal(t, []string{"appstream"}, repos)
}

func TestRemoveLastRepoDeletesProduct(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.Add("479", "baseos"))

	last, err := db.RemoveRepo("479", "baseos")
	assert.NoError(t, err)
	assert.True(t, last)

	repos, err := db.FindRepos("479")
	assert.NoError(t, err)
	assert.Nil(t, repos)
}

func TestRemoveRepoUnknownProduct(t *testing.T) {
	db := openTestDB(t)

	last, err := db.RemoveRepo("999", "baseos")
	assert.NoError(t, err)
	assert.False(t, last)
}

func TestDeleteAndAll(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.Add("479", "baseos"))
	assert.NoError(t, db.Add("271", "appstream"))

	assert.NoError(t, db.Delete("479"))

	all, err := db.All()
	assert.NoError(t, err)
	assert.Equal(t, map[string][]string{"271": {"appstream"}}, all)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "productid.db")

	db, err := Open(path)
	assert.NoError(t, err)
	assert.NoError(t, db.Add("479", "baseos"))
	assert.NoError(t, db.Close())

	db, err = Open(path)
	assert.NoError(t, err)
	defer db.Close()

	repos, err := db.FindRepos("479")
	assert.NoError(t, err)
	assert.Equal(t, []string{"baseos"}, repos)
}
