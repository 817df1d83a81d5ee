package launch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// JavaInfo describes the JVM found by ProbeJava.
type JavaInfo struct {
	Path    string
	Version string // e.g. "17.0.9" or "1.8.0_392"
	Major   int    // 8, 11, 17, ...
}

// versionRe matches the quoted version in `java -version` output, e.g.
// `openjdk version "17.0.9" 2023-10-17`.
var (
	versionRe = regexp.MustCompile(`version "([^"]+)"`)
	majorRe   = regexp.MustCompile(`^(\d+)(?:\.(\d+))?`)
)

// ProbeJava runs `java -version` and parses the reported version.
// The JVM prints the banner on stderr.
func ProbeJava(ctx context.Context, javaPath string) (*JavaInfo, error) {
	path, err := exec.LookPath(javaPath)
	if err != nil {
		return nil, fmt.Errorf("java not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, "-version")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("java -version failed: %w", err)
	}

	version, major, err := parseJavaVersion(out.String())
	if err != nil {
		return nil, err
	}
	return &JavaInfo{Path: path, Version: version, Major: major}, nil
}

// parseJavaVersion extracts the version string and major number. Legacy
// versions report "1.<major>".
func parseJavaVersion(output string) (string, int, error) {
	m := versionRe.FindStringSubmatch(output)
	if m == nil {
		return "", 0, fmt.Errorf("unrecognized java -version output: %q", firstLine(output))
	}
	version := m[1]

	digits := majorRe.FindStringSubmatch(version)
	if digits == nil {
		return version, 0, fmt.Errorf("unrecognized java version %q", version)
	}
	major, _ := strconv.Atoi(digits[1])
	if major == 1 && digits[2] != "" {
		major, _ = strconv.Atoi(digits[2])
	}
	return version, major, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
