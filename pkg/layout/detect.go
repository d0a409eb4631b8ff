package layout

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// vmlinuxBTF is where kernels expose their own type descriptors.
const vmlinuxBTF = "/sys/kernel/btf/vmlinux"

// relocationGate is the first kernel generation whose type descriptors the
// relocating strategy trusts. Older kernels fall back to fixed offsets.
var relocationGate = KernelVersion{5, 5, 0}

// Capabilities describes what the running platform supports.
type Capabilities struct {
	Kernel          KernelVersion
	TypeDescriptors bool
}

// KernelVersion is an ordered kernel release number.
type KernelVersion struct {
	Major, Minor, Patch int
}

// String formats the version as major.minor.patch.
func (v KernelVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast reports whether v is the same release as other or newer.
func (v KernelVersion) AtLeast(other KernelVersion) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor > other.Minor
	}
	return v.Patch >= other.Patch
}

// ParseKernelVersion parses a release string such as "5.15.0-91-generic".
// The patch level may be omitted; anything after the first non-numeric
// separator is ignored.
func ParseKernelVersion(release string) (KernelVersion, error) {
	release = strings.TrimSpace(release)
	if i := strings.IndexAny(release, "-+ "); i >= 0 {
		release = release[:i]
	}
	parts := strings.SplitN(release, ".", 3)
	if len(parts) < 2 {
		return KernelVersion{}, fmt.Errorf("layout: malformed kernel release %q", release)
	}
	var v KernelVersion
	for i, dst := range []*int{&v.Major, &v.Minor, &v.Patch} {
		if i >= len(parts) {
			break
		}
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return KernelVersion{}, fmt.Errorf("layout: malformed kernel release %q: %w", release, err)
		}
		*dst = n
	}
	return v, nil
}

// Function seams for Detect, overridden in tests.
var (
	unameRelease = func() (string, error) {
		var uts unix.Utsname
		if err := unix.Uname(&uts); err != nil {
			return "", err
		}
		return unix.ByteSliceToString(uts.Release[:]), nil
	}
	statPath = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}
)

// Detect probes the running platform once, at startup. The relocating
// strategy is only offered when the kernel is new enough and actually
// exposes its type descriptors; either check failing degrades to the fixed
// table rather than erroring.
func Detect(log *zap.Logger) Capabilities {
	if log == nil {
		log = zap.NewNop()
	}
	var caps Capabilities

	release, err := unameRelease()
	if err != nil {
		log.Warn("kernel release unavailable, assuming fixed layout", zap.Error(err))
		return caps
	}
	v, err := ParseKernelVersion(release)
	if err != nil {
		log.Warn("unparseable kernel release, assuming fixed layout",
			zap.String("release", release), zap.Error(err))
		return caps
	}
	caps.Kernel = v
	caps.TypeDescriptors = v.AtLeast(relocationGate) && statPath(vmlinuxBTF)

	log.Info("platform capabilities detected",
		zap.String("kernel", v.String()),
		zap.Bool("type_descriptors", caps.TypeDescriptors))
	return caps
}
