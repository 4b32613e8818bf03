// Package env reads cache settings from dotenv files, the process
// environment and command line flags.
package env

import (
	"os"
	"strings"

	"github.com/agentuity/go-cache/logger"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// Var is one KEY=value assignment.
type Var struct {
	Key string `json:"key"`
	Val string `json:"val"`
}

// ParseFile parses a dotenv file. A missing file yields no variables.
func ParseFile(filename string) ([]Var, error) {
	buf, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Var{}, nil
		}
		return nil, errors.Wrapf(err, "read %s", filename)
	}
	return Parse(buf), nil
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// Parse parses dotenv content. Blank lines and lines starting with # are
// skipped. Values may reference earlier or later variables as ${NAME},
// ${NAME:-default} or the process environment as ${env:NAME}.
func Parse(buf []byte) []Var {
	vars := []Var{}
	known := make(map[string]string)
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, _ := strings.Cut(line, "=")
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		if key == "" {
			continue
		}
		val = expand(unquote(strings.TrimSpace(val)), known)
		known[key] = val
		vars = append(vars, Var{Key: key, Val: val})
	}
	// forward references resolve once every variable is known
	for i := range vars {
		vars[i].Val = expand(vars[i].Val, known)
	}
	return vars
}

// expand replaces ${...} references. Unresolvable references without a
// default are kept verbatim.
func expand(s string, known map[string]string) string {
	var sb strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		end += start
		sb.WriteString(s[:start])
		ref := s[start : end+1]
		name, def, _ := strings.Cut(s[start+2:end], ":-")

		var val string
		if osName, ok := strings.CutPrefix(name, "env:"); ok {
			val = os.Getenv(osName)
		} else {
			val = known[name]
		}
		switch {
		case name == "":
			sb.WriteString(ref)
		case val != "":
			sb.WriteString(val)
		case def != "":
			sb.WriteString(def)
		default:
			sb.WriteString(ref)
		}
		s = s[end+1:]
	}
}

// Source resolves variables from the process environment first and a set
// of dotenv variables second.
type Source struct {
	vars map[string]string
}

// NewSource returns a Source backed by vars.
func NewSource(vars []Var) Source {
	m := make(map[string]string, len(vars))
	for _, v := range vars {
		m[v.Key] = v.Val
	}
	return Source{vars: m}
}

// Lookup returns the value of key and whether it is set.
func (s Source) Lookup(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	val, ok := s.vars[key]
	return val, ok
}

// FlagOrEnv will try and get a flag from the cobra.Command and if not found, look it up in the environment
// and fallback to defaultValue if non found
func FlagOrEnv(cmd *cobra.Command, flagName string, envName string, defaultValue string) string {
	flagValue, _ := cmd.Flags().GetString(flagName)
	if flagValue != "" {
		return flagValue
	}
	if val, ok := os.LookupEnv(envName); ok {
		return val
	}
	return defaultValue
}

// LogLevel returns the level from the log-level flag, falling back to
// CACHE_LOG_LEVEL and then info.
func LogLevel(cmd *cobra.Command) logger.LogLevel {
	return logger.ParseLevel(FlagOrEnv(cmd, "log-level", logger.LevelEnv, "info"))
}

// NewLogger returns a console logger, or a JSON logger when the log-format
// flag is "json".
func NewLogger(cmd *cobra.Command) logger.Logger {
	level := LogLevel(cmd)
	if format, _ := cmd.Flags().GetString("log-format"); format == "json" {
		return logger.NewJSONLogger(level)
	}
	return logger.NewConsoleLogger(level)
}
