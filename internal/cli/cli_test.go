package cli

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacogips/modelres/internal/build"
	"github.com/tacogips/modelres/internal/config"
)

const testOBJ = `v 0 0 0
v 3 0 0
v 3 1 0
v 0 1 2
f 1 2 3
f 1 3 4
`

// executeCommand runs the root command with args and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "config.json")
	cfgJSON := `{"resolver": {"cache": false}, "output": {"color": false}}`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgJSON), 0644))

	var stdout, stderr bytes.Buffer
	out, errOut = &stdout, &stderr
	globalConfig, globalNoColor, globalQuiet, globalDebug = "", false, false, false
	resolveOutput, resolveForce, resolveName, resolveMaxEntries, resolveVerbose = "", false, "", 0, false
	inspectVerify, versionShort, versionJSON = false, false, false
	activeConfig = config.DefaultConfig()
	t.Cleanup(func() {
		out, errOut = os.Stdout, os.Stderr
		resolveCmd.Flags().Lookup(FlagMaxEntries).Changed = false
	})

	rootCmd.SetArgs(append(args, "--config", cfgPath))
	err := rootCmd.Execute()
	return stdout.String(), err
}

func writeTestZip(t *testing.T, path string, files map[string]string, order ...string) {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range order {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		require.NoError(t, err)
		_, err = fw.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func stubNonInteractive(t *testing.T) {
	t.Helper()
	saved := isInteractive
	isInteractive = func() bool { return false }
	t.Cleanup(func() { isInteractive = saved })
}

func TestValidateReference(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		{name: "relative path", ref: "chair.obj"},
		{name: "absolute path", ref: "/models/chair.zip"},
		{name: "https URL", ref: "https://example.com/chair.zip"},
		{name: "file URL", ref: "file:///models/chair.obj"},
		{name: "nested entry", ref: "bundle.zip!/chairs/office.obj"},
		{name: "nested remote entry", ref: "https://example.com/b.zip!/a.obj"},
		{name: "empty", ref: "", wantErr: true},
		{name: "whitespace", ref: "   ", wantErr: true},
		{name: "unsupported scheme", ref: "ftp://example.com/chair.obj", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReference(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOutputPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "file name", path: "chair.zip"},
		{name: "parent directory", path: "../out/chair.zip"},
		{name: "empty", path: "", wantErr: true},
		{name: "directory", path: "out/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, "Office Chair.zip", defaultOutputPath("Office Chair"))
	assert.Equal(t, "model.zip", defaultOutputPath("stühl"))
	assert.Equal(t, "model.zip", defaultOutputPath(".hidden"))
}

func TestResolveCommand(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "office_chair.obj")
	require.NoError(t, os.WriteFile(model, []byte(testOBJ), 0644))

	t.Run("prints result", func(t *testing.T) {
		stdout, err := executeCommand(t, "resolve", model)
		require.NoError(t, err)
		for _, want := range []string{"Resolved Office chair", "3 x 1 x 2", "office_chair.obj"} {
			assert.Contains(t, stdout, want)
		}
	})

	t.Run("writes into output directory", func(t *testing.T) {
		outDir := t.TempDir()
		stdout, err := executeCommand(t, "resolve", model, "-o", outDir, "--name", "Chair")
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(outDir, "Chair.zip"))
		assert.Contains(t, stdout, "Wrote:")
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		existing := filepath.Join(t.TempDir(), "chair.zip")
		require.NoError(t, os.WriteFile(existing, []byte("old"), 0644))
		stubNonInteractive(t)

		_, err := executeCommand(t, "resolve", model, "-o", existing)
		require.Error(t, err)

		_, err = executeCommand(t, "resolve", model, "-o", existing, "--force")
		require.NoError(t, err)
		data, err := os.ReadFile(existing)
		require.NoError(t, err)
		assert.NotEqual(t, "old", string(data), "output was not overwritten")
	})

	t.Run("not a model", func(t *testing.T) {
		notes := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(notes, []byte("hello"), 0644))

		stdout, err := executeCommand(t, "resolve", notes)
		require.Error(t, err)
		assert.Contains(t, stdout, "neither a model nor an archive")
	})

	t.Run("negative max entries", func(t *testing.T) {
		_, err := executeCommand(t, "resolve", model, "--max-entries", "-1")
		assert.Error(t, err)
	})

	t.Run("missing reference without terminal", func(t *testing.T) {
		stubNonInteractive(t)
		_, err := executeCommand(t, "resolve")
		assert.Error(t, err)
	})
}

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "bundle.zip")
	writeTestZip(t, archivePath, map[string]string{
		"models/":        "",
		"models/a.obj":   testOBJ,
		"models/.hidden": "x",
	}, "models/", "models/a.obj", "models/.hidden")

	stdout, err := executeCommand(t, "inspect", archivePath, "--verify")
	require.NoError(t, err)
	for _, want := range []string{"[dir]", "[skip]", "models/a.obj", "3 entries, 1 candidates", "All entries readable"} {
		assert.Contains(t, stdout, want)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Run("normal output", func(t *testing.T) {
		stdout, err := executeCommand(t, "version")
		require.NoError(t, err)
		assert.Contains(t, stdout, "modelres version "+build.Version())
	})

	t.Run("short output", func(t *testing.T) {
		stdout, err := executeCommand(t, "version", "--short")
		require.NoError(t, err)
		assert.Equal(t, build.Version(), strings.TrimSpace(stdout))
	})

	t.Run("JSON output", func(t *testing.T) {
		stdout, err := executeCommand(t, "version", "--json")
		require.NoError(t, err)
		var info VersionInfo
		require.NoError(t, json.Unmarshal([]byte(stdout), &info))
		assert.Equal(t, build.Version(), info.Version)
		assert.NotEmpty(t, info.GoVersion)
	})
}

func TestConfigFlag(t *testing.T) {
	_, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.False(t, activeConfig.Resolver.Cache, "config from --config was not applied")
	assert.True(t, globalNoColor, "output.color=false should disable color")

	rootCmd.SetArgs([]string{"version", "--config", filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, rootCmd.Execute(), "missing explicit config")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{name: "bytes", bytes: 512, want: "512 B"},
		{name: "kilobytes", bytes: 1536, want: "1.5 KB"},
		{name: "megabytes", bytes: 1048576, want: "1.0 MB"},
		{name: "gigabytes", bytes: 1073741824, want: "1.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatBytes(tt.bytes))
		})
	}
}
