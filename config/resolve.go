package config

import (
	"os"
	"path"
	"strings"

	"github.com/joho/godotenv"
)

// FileSystem abstracts the file lookups the loader performs.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// OSFileSystem reads the real file system.
type OSFileSystem struct{}

func (OSFileSystem) Exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// LoadEnv loads a .env file without overriding variables already set.
func (OSFileSystem) LoadEnv(p string) error {
	return godotenv.Load(p)
}

// Resolver finds the config.yml and .env files for a service.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles holds the files the loader will read. Empty means none.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// searchDepths lets binaries run from the module root, a package directory
// (go test) or a nested cmd directory find the same files.
var searchDepths = []string{".", "..", "../.."}

// ResolveFiles returns the explicit paths from opts when given, otherwise the
// first match in the search locations.
func (r *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	files := ResolvedFiles{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile}
	if files.ConfigFile == "" {
		files.ConfigFile = r.first(configCandidates(serviceName))
	}
	if files.EnvFile == "" {
		files.EnvFile = r.first(envCandidates(serviceName))
	}
	return files
}

func (r *Resolver) first(candidates []string) string {
	for _, c := range candidates {
		if r.FileSystem.Exists(c) {
			return c
		}
	}
	return ""
}

// configCandidates: cmd/<service>/config.yml, cmd/<short>/config.yml, then
// config/config.yml and config.yml.
func configCandidates(serviceName string) []string {
	var out []string
	for _, dir := range serviceDirs(serviceName) {
		out = append(out, atDepths(dir, "config.yml")...)
	}
	out = append(out, atDepths("config", "config.yml")...)
	return append(out, "./config.yml")
}

// envCandidates: .env.<service> before .env, service directories before the
// module root.
func envCandidates(serviceName string) []string {
	dirs := append(serviceDirs(serviceName), "config", "")
	var out []string
	for _, name := range []string{".env." + serviceName, ".env"} {
		for _, dir := range dirs {
			out = append(out, atDepths(dir, name)...)
		}
	}
	return out
}

// serviceDirs returns cmd/<service> and, for dashed names, cmd/<last part>.
func serviceDirs(serviceName string) []string {
	dirs := []string{path.Join("cmd", serviceName)}
	if i := strings.LastIndex(serviceName, "-"); i != -1 {
		dirs = append(dirs, path.Join("cmd", serviceName[i+1:]))
	}
	return dirs
}

func atDepths(dir, name string) []string {
	out := make([]string, 0, len(searchDepths))
	for _, depth := range searchDepths {
		p := path.Join(depth, dir, name)
		if depth == "." {
			p = "./" + p
		}
		out = append(out, p)
	}
	return out
}
