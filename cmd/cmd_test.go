package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/respogen/respogen/internal/config"
	"github.com/respogen/respogen/internal/errors"
	"github.com/respogen/respogen/internal/normalize"
	"github.com/respogen/respogen/internal/scaffolding"
	"github.com/respogen/respogen/internal/services"
)

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{
		MaxUploadBytes:       1 << 20,
		MaxArchiveTotalBytes: 1 << 20,
		MaxEntryBytes:        1 << 20,
		MaxEntries:           100,
		MaxPathLength:        4096,
	}
}

func TestSplitFileSpec(t *testing.T) {
	tests := []struct {
		spec, local, name string
	}{
		{"main.go", "main.go", "main.go"},
		{"src/app.js", "src/app.js", "src/app.js"},
		{"./src/../lib/a.js", "./src/../lib/a.js", "lib/a.js"},
		{"/tmp/x/notes.md", "/tmp/x/notes.md", "notes.md"},
		{"../outside.txt", "../outside.txt", "outside.txt"},
		{"build/out.txt=docs/out.txt", "build/out.txt", "docs/out.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			local, name := splitFileSpec(tt.spec)
			assert.Equal(t, tt.local, local)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestBuildGenerateRequest(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.py")
	require.NoError(t, os.WriteFile(file, []byte("print(1)"), 0o600))
	snippets := filepath.Join(dir, "snippets.json")
	require.NoError(t, os.WriteFile(snippets, []byte(`[{"filename":"a.txt","content":"a"}]`), 0o600))

	generateOpts.name = "demo"
	generateOpts.template = "python"
	generateOpts.files = []string{file + "=app/main.py"}
	generateOpts.snippets = snippets
	generateOpts.zip = ""
	defer func() { generateOpts.files, generateOpts.snippets = nil, "" }()

	req, err := buildGenerateRequest(testLimits())
	require.NoError(t, err)

	assert.Equal(t, "demo", req.Name)
	assert.Equal(t, "python", req.TemplateID)
	require.Len(t, req.Uploads, 1)
	assert.Equal(t, "app/main.py", req.Uploads[0].Name)
	assert.Equal(t, "print(1)", string(req.Uploads[0].Content))
	require.Len(t, req.Snippets, 1)
	assert.Nil(t, req.Archive)
}

func TestReadLimited(t *testing.T) {
	file := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(file, make([]byte, 2048), 0o600))

	_, err := readLimited(file, 1024)
	assert.True(t, errors.IsPayloadTooLarge(err))

	b, err := readLimited(file, 0)
	require.NoError(t, err)
	assert.Len(t, b, 2048)
}

func TestGenerateToFile(t *testing.T) {
	registry, err := scaffolding.LoadBuiltin()
	require.NoError(t, err)
	svc := services.NewGenerateService(testLimits(), scaffolding.NewStore(registry), nil)

	output := filepath.Join(t.TempDir(), "out.zip")
	var stdout bytes.Buffer

	err = generateToFile(context.Background(), &stdout, svc, services.GenerateRequest{
		Name:    "cli-demo",
		Uploads: []normalize.Upload{{Name: "main.go", Content: []byte("package main")}},
	}, output)
	require.NoError(t, err)

	zr, err := zip.OpenReader(output)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{".gitignore", "LICENSE", "README.md", "main.go"}, names)
	assert.Contains(t, stdout.String(), "out.zip")
}

func TestGenerateToFileLeavesNothingOnFailure(t *testing.T) {
	registry, err := scaffolding.LoadBuiltin()
	require.NoError(t, err)
	svc := services.NewGenerateService(testLimits(), scaffolding.NewStore(registry), nil)

	dir := t.TempDir()
	output := filepath.Join(dir, "out.zip")

	err = generateToFile(context.Background(), &bytes.Buffer{}, svc, services.GenerateRequest{Name: "empty"}, output)
	assert.ErrorIs(t, err, errors.ErrEmptyProject)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "generate", "templates", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestBindFlags(t *testing.T) {
	v := viper.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("port", 3000, "")

	bindFlags(v, fs, map[string]string{"port": "server.port"})
	assert.Equal(t, 3000, v.GetInt("server.port"))

	require.NoError(t, fs.Parse([]string{"--port", "8080"}))
	assert.Equal(t, 8080, v.GetInt("server.port"))

	assert.Panics(t, func() {
		bindFlags(v, fs, map[string]string{"missing": "server.host"})
	})
}
