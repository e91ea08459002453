package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreDatedLayout(t *testing.T) {
	root := t.TempDir()
	s := NewLocalStore(root)
	s.now = func() time.Time { return time.Date(2024, 2, 9, 10, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	p, err := s.Put(ctx, "docket.html", []byte("<html></html>"), "text/html")
	require.NoError(t, err)
	assert.Equal(t, "recap_data/2024/02/09/docket.html", p)

	data, err := s.Get(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))

	require.NoError(t, s.Delete(ctx, p))
	_, err = os.Stat(filepath.Join(root, p))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, s.Delete(ctx, p), "deleting twice is fine")
}

func TestArchiverSave(t *testing.T) {
	db, err := database.Initialize("sqlite:///"+filepath.Join(t.TempDir(), "archive.db"), false)
	require.NoError(t, err)

	store := NewLocalStore(t.TempDir())
	a := NewArchiver(db, store, logger.NewNop())
	ctx := context.Background()

	rec, err := a.Save(ctx, ObjectDocket, 7, database.UploadDocket, "docket.html", []byte("<p>x</p>"))
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	assert.True(t, strings.HasSuffix(rec.Filepath, "-docket.html"))

	rec2, err := a.Save(ctx, ObjectDocket, 7, database.UploadDocket, "docket.html", []byte("<p>y</p>"))
	require.NoError(t, err)
	assert.NotEqual(t, rec.Filepath, rec2.Filepath)

	files, err := a.Files(ctx, ObjectDocket, 7)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, rec.ID, files[0].ID)

	data, err := store.Get(ctx, rec2.Filepath)
	require.NoError(t, err)
	assert.Equal(t, "<p>y</p>", string(data))

	_, err = a.Save(ctx, ObjectDocket, 7, database.UploadDocket, "docket.html", nil)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("docket.json"))
	assert.Equal(t, "text/html; charset=utf-8", contentType("case_report.html"))
	assert.Equal(t, "application/octet-stream", contentType("blob"))
}

func TestNewGCSStoreValidation(t *testing.T) {
	_, err := NewGCSStore(context.Background(), "", "")
	assert.Error(t, err)

	_, err = NewGCSStore(context.Background(), "bucket", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "service account key not found")
}
