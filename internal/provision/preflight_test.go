package provision

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

func TestCheckPlatform(t *testing.T) {
	assert.NoError(t, CheckPlatform("linux"))
	assert.NoError(t, CheckPlatform("darwin"))

	err := CheckPlatform("windows")
	assert.True(t, errors.Is(err, ErrPreflight))
	assert.Contains(t, err.Error(), "windows")
}

func TestCheckEngine(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	assert.NoError(t, CheckEngine(context.Background(), ok))

	down := pingerFunc(func(context.Context) error {
		return errors.New("Cannot connect to the Docker daemon at unix:///var/run/docker.sock")
	})
	err := CheckEngine(context.Background(), down)
	assert.True(t, errors.Is(err, ErrPreflight))
	assert.Contains(t, err.Error(), "Cannot connect to the Docker daemon")
}

func TestValidateDump(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "backup.sql")
	require.NoError(t, os.WriteFile(dump, []byte("SELECT 1;"), 0o600))

	assert.NoError(t, ValidateDump(dump))

	for _, path := range []string{"", dir, filepath.Join(dir, "absent.sql")} {
		err := ValidateDump(path)
		assert.True(t, errors.Is(err, ErrValidation), path)
	}
}

func TestParsePluginList(t *testing.T) {
	tests := []struct {
		raw      string
		expected []string
	}{
		{raw: "", expected: []string{}},
		{raw: "a,b", expected: []string{"a", "b"}},
		{raw: "akismet/akismet.php,,hello.php,", expected: []string{"akismet/akismet.php", "hello.php"}},
		{raw: " akismet/akismet.php ,hello.php", expected: []string{" akismet/akismet.php ", "hello.php"}},
		{raw: "plügin/ß.php", expected: []string{"plügin/ß.php"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParsePluginList(tt.raw), tt.raw)
	}
}
