// Package platform maps an (os, arch) pair to the release target triple used
// in pomowise asset names.
//
// The table is fixed. Pairs that are not in the table are rejected with an
// UnsupportedPlatformError that lists every supported combination; there is
// no fallback target.
//
// Both darwin/arm64 and darwin/amd64 resolve to aarch64-apple-darwin. Intel
// Macs run the ARM build under Rosetta 2, so only one macOS asset is published.
package platform

import (
	"fmt"
	"sort"
	"strings"
)

const (
	WINDOWS_OS = "windows"

	ArchiveTarGz = "tar.gz"
	ArchiveZip   = "zip"
)

// Target is the resolved release target for one run.
type Target struct {
	OS         string
	Arch       string
	Triple     string
	Windows    bool
	ArchiveExt string
	ExeSuffix  string
}

// BinaryName returns name with the platform executable suffix appended.
func (t Target) BinaryName(name string) string {
	return name + t.ExeSuffix
}

// UnsupportedPlatformError is returned for any os/arch pair outside the table.
type UnsupportedPlatformError struct {
	OS        string
	Arch      string
	Supported []string
}

// Error implements the error interface for UnsupportedPlatformError.
func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %s/%s; supported platforms: %s",
		e.OS, e.Arch, strings.Join(e.Supported, ", "))
}

type key struct {
	os   string
	arch string
}

var triples = map[key]string{
	{"linux", "amd64"}:   "x86_64-unknown-linux-gnu",
	{"linux", "arm64"}:   "aarch64-unknown-linux-gnu",
	{"darwin", "arm64"}:  "aarch64-apple-darwin",
	{"darwin", "amd64"}:  "aarch64-apple-darwin",
	{"windows", "amd64"}: "x86_64-pc-windows-msvc",
}

var osAliases = map[string]string{
	"win32": WINDOWS_OS,
	"macos": "darwin",
}

var archAliases = map[string]string{
	"x64":     "amd64",
	"x86_64":  "amd64",
	"aarch64": "arm64",
}

// Resolve maps a raw OS name and CPU architecture to a Target.
// Go names (runtime.GOOS/GOARCH) and the common Node/uname aliases are accepted.
func Resolve(osName, arch string) (Target, error) {
	o := normalize(osName, osAliases)
	a := normalize(arch, archAliases)

	triple, ok := triples[key{o, a}]
	if !ok {
		return Target{}, &UnsupportedPlatformError{
			OS:        osName,
			Arch:      arch,
			Supported: Supported(),
		}
	}

	t := Target{
		OS:         o,
		Arch:       a,
		Triple:     triple,
		Windows:    o == WINDOWS_OS,
		ArchiveExt: ArchiveTarGz,
	}
	if t.Windows {
		t.ArchiveExt = ArchiveZip
		t.ExeSuffix = ".exe"
	}
	return t, nil
}

// Supported returns the supported "os/arch" pairs in a stable order.
func Supported() []string {
	out := make([]string, 0, len(triples))
	for k := range triples {
		out = append(out, k.os+"/"+k.arch)
	}
	sort.Strings(out)
	return out
}

func normalize(v string, aliases map[string]string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if alias, ok := aliases[v]; ok {
		return alias
	}
	return v
}
