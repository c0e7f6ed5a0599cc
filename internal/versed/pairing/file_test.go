package pairing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile(t *testing.T) {
	t.Run("load before save returns nothing", func(t *testing.T) {
		f := NewFile(t.TempDir())

		p, err := f.Load()
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("save then load round trips", func(t *testing.T) {
		f := NewFile(t.TempDir())

		require.NoError(t, f.Save(&Pairing{
			DisplayID: "display-42",
			TenantID:  "church-1",
			Name:      "Main Hall",
		}))

		p, err := f.Load()
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "display-42", p.DisplayID)
		assert.Equal(t, "church-1", p.TenantID)
		assert.Equal(t, "Main Hall", p.Name)
	})

	t.Run("save creates the data directory", func(t *testing.T) {
		dataDir := filepath.Join(t.TempDir(), "nested", "versed")
		f := NewFile(dataDir)

		require.NoError(t, f.Save(&Pairing{DisplayID: "display-42"}))

		info, err := os.Stat(filepath.Join(dataDir, pairingFileName))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("clear removes the pairing", func(t *testing.T) {
		f := NewFile(t.TempDir())

		require.NoError(t, f.Save(&Pairing{DisplayID: "display-42"}))
		require.NoError(t, f.Clear())

		p, err := f.Load()
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("clear without a pairing is fine", func(t *testing.T) {
		f := NewFile(t.TempDir())
		assert.NoError(t, f.Clear())
	})

	t.Run("file without an identity counts as unpaired", func(t *testing.T) {
		dataDir := t.TempDir()
		f := NewFile(dataDir)

		require.NoError(t, os.WriteFile(filepath.Join(dataDir, pairingFileName), []byte("name: orphan\n"), 0o600))

		p, err := f.Load()
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}
