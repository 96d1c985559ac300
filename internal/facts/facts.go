package facts

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"

	"codeberg.org/kaibil/xark/internal/logger"
)

const (
	bytesPerMB = 1024 * 1024
	procMounts = "/proc/self/mounts"
	procCPU    = "/proc/cpuinfo"
)

// Datastore bookkeeping files that are not journal items.
var skipDatastore = map[string]bool{
	"index":         true,
	"checksums":     true,
	"index_updated": true,
	"version":       true,
	"ds_clean":      true,
}

var journalMetaFiles = []string{
	"activity", "activity_id", "checksum", "creation_time", "filesize",
	"icon-color", "keep", "launch-times", "mime_type", "mountpoint",
	"mtime", "share-scope", "spent-times", "timestamp", "title",
	"title_set_by_user", "uid",
}

type linuxProvider struct {
	workingDir string
	journalDir string
	iface      string
}

// NewProvider returns a Provider backed by the local platform. Facts that
// cannot be obtained degrade to the Empty sentinel.
func NewProvider(workingDir, journalDir, iface string) Provider {
	return &linuxProvider{
		workingDir: workingDir,
		journalDir: journalDir,
		iface:      iface,
	}
}

func (p *linuxProvider) Snapshot(_ context.Context) *DeviceData {
	return &DeviceData{
		ActivityHistory: p.activityHistory(),
		RAM:             ramUsage(),
		ROM:             romUsage(procMounts),
		Kernel:          kernelVersion(),
		Architecture:    cpuArchitecture(procCPU),
		MAC:             p.macAddress(),
	}
}

func (p *linuxProvider) Journal(ctx context.Context) []JournalEntry {
	prefixes, err := os.ReadDir(p.journalDir)
	if err != nil {
		logger.Debug().Err(err).Str("dir", p.journalDir).Msg("Journal datastore unreadable")
		return nil
	}

	var entries []JournalEntry
	for _, prefix := range prefixes {
		if ctx.Err() != nil {
			return entries
		}
		if skipDatastore[prefix.Name()] || !prefix.IsDir() {
			continue
		}

		prefixDir := filepath.Join(p.journalDir, prefix.Name())
		items, err := os.ReadDir(prefixDir)
		if err != nil {
			logger.Debug().Err(err).Str("dir", prefixDir).Msg("Skipping unreadable datastore prefix")
			continue
		}
		for _, item := range items {
			if !item.IsDir() {
				continue
			}
			entries = append(entries, readJournalEntry(filepath.Join(prefixDir, item.Name())))
		}
	}

	return entries
}

// readJournalEntry reads the 17 metadata files of one journal item.
func readJournalEntry(dir string) JournalEntry {
	meta := make(map[string]string, len(journalMetaFiles))
	for _, name := range journalMetaFiles {
		meta[name] = readMetaFile(dir, name)
	}

	return JournalEntry{
		Activity:       meta["activity"],
		ActivityID:     meta["activity_id"],
		Checksum:       meta["checksum"],
		CreationTime:   meta["creation_time"],
		FileSize:       meta["filesize"],
		IconColor:      meta["icon-color"],
		Keep:           meta["keep"],
		LaunchTimes:    meta["launch-times"],
		MimeType:       meta["mime_type"],
		Mountpoint:     meta["mountpoint"],
		Mtime:          meta["mtime"],
		ShareScope:     meta["share-scope"],
		SpentTimes:     meta["spent-times"],
		Timestamp:      meta["timestamp"],
		Title:          meta["title"],
		TitleSetByUser: meta["title_set_by_user"],
		UID:            meta["uid"],
	}
}

func readMetaFile(dir, name string) string {
	b, err := os.ReadFile(filepath.Join(dir, "metadata", name))
	if err != nil {
		return Empty
	}
	content := strings.TrimSpace(string(b))
	if content == "" {
		return Empty
	}

	return content
}

func (p *linuxProvider) activityHistory() string {
	activities, err := os.ReadDir(filepath.Join(p.workingDir, "Activities"))
	if err != nil {
		logger.Debug().Err(err).Msg("Activities directory unreadable")
		return Empty
	}

	names := make([]string, 0, len(activities))
	for _, activity := range activities {
		names = append(names, activity.Name())
	}
	if len(names) == 0 {
		return Empty
	}

	return strings.Join(names, ",")
}

// ramUsage reports memory and swap as "total,used,free|total,used,free"
// in megabytes.
func ramUsage() string {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		logger.Debug().Err(err).Msg("sysinfo failed")
		return Empty
	}

	unit := uint64(info.Unit)
	toMB := func(v uint64) uint64 { return v * unit / bytesPerMB }

	memTotal := toMB(uint64(info.Totalram))
	memFree := toMB(uint64(info.Freeram))
	swapTotal := toMB(uint64(info.Totalswap))
	swapFree := toMB(uint64(info.Freeswap))

	return fmt.Sprintf("%d,%d,%d|%d,%d,%d",
		memTotal, memTotal-memFree, memFree,
		swapTotal, swapTotal-swapFree, swapFree)
}

// romUsage reports "size,used,avail,target" per /dev/-backed mount,
// groups joined with "|".
func romUsage(mountsPath string) string {
	raw, err := os.ReadFile(mountsPath)
	if err != nil {
		logger.Debug().Err(err).Msg("Mount table unreadable")
		return Empty
	}

	var groups []string
	for _, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}

		target := fields[1]
		var st unix.Statfs_t
		if err := unix.Statfs(target, &st); err != nil {
			logger.Debug().Err(err).Str("target", target).Msg("statfs failed")
			continue
		}

		bsize := uint64(st.Bsize)
		size := st.Blocks * bsize
		avail := st.Bavail * bsize
		used := (st.Blocks - st.Bfree) * bsize
		groups = append(groups, fmt.Sprintf("%s,%s,%s,%s",
			humanSize(size), humanSize(used), humanSize(avail), target))
	}
	if len(groups) == 0 {
		return Empty
	}

	return strings.Join(groups, "|")
}

// kernelVersion is the "uname -a" prefix: sysname, nodename and release.
func kernelVersion() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		logger.Debug().Err(err).Msg("uname failed")
		return Empty
	}

	return fmt.Sprintf("%s %s %s",
		unix.ByteSliceToString(uts.Sysname[:]),
		unix.ByteSliceToString(uts.Nodename[:]),
		unix.ByteSliceToString(uts.Release[:]))
}

// cpuArchitecture reports "machine|cpu count|model name".
func cpuArchitecture(cpuinfoPath string) string {
	var uts unix.Utsname
	machine := Empty
	if err := unix.Uname(&uts); err == nil {
		machine = unix.ByteSliceToString(uts.Machine[:])
	}

	model := Empty
	if raw, err := os.ReadFile(cpuinfoPath); err == nil {
		for _, line := range strings.Split(string(raw), "\n") {
			if strings.HasPrefix(line, "model name") {
				if _, value, found := strings.Cut(line, ":"); found {
					model = strings.TrimSpace(value)
				}
				break
			}
		}
	}

	return fmt.Sprintf("%s|%d|%s", machine, runtime.NumCPU(), model)
}

func (p *linuxProvider) macAddress() string {
	iface, err := net.InterfaceByName(p.iface)
	if err != nil {
		logger.Debug().Err(err).Str("interface", p.iface).Msg("Network interface lookup failed")
		return Empty
	}
	if len(iface.HardwareAddr) == 0 {
		return Empty
	}

	return iface.HardwareAddr.String()
}

// humanSize renders a byte count the way df -H does (powers of 1000).
func humanSize(v uint64) string {
	const unit = 1000
	if v < unit {
		return fmt.Sprintf("%d", v)
	}
	div, exp := uint64(unit), 0
	for n := v / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f%c", float64(v)/float64(div), "KMGTPE"[exp])
}
