package bpf

import (
	"bufio"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The C source shares this directory with Go files; the go tool must skip it.
func TestProbeSourceIsIgnoredByGoBuild(t *testing.T) {
	f, err := os.Open("exec_probe.bpf.c")
	require.NoError(t, err)
	defer f.Close()

	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan())
	assert.Equal(t, "//go:build ignore", sc.Text())
	require.True(t, sc.Scan())
	assert.Empty(t, sc.Text(), "constraint must be followed by a blank line")
}

func TestObjectFileMatchesGenerateIdent(t *testing.T) {
	src, err := os.ReadFile("bpf.go")
	require.NoError(t, err)

	var ident string
	for _, line := range strings.Split(string(src), "\n") {
		if !strings.HasPrefix(line, "//go:generate ") {
			continue
		}
		fields := strings.Fields(line)
		for i, f := range fields {
			if f == "./exec_probe.bpf.c" && i > 0 {
				ident = fields[i-1]
			}
		}
	}
	require.NotEmpty(t, ident, "no bpf2go directive found")

	// bpf2go names its output after the lowercased identifier
	assert.Equal(t, strings.ToLower(ident)+"_bpfel.o", ObjectFile)
}
