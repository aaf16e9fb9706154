// Package procmeta attributes events to the process that produced
// them, using /proc. Collection is best effort: the process may exit
// between sending an event and the collector reading it, in which case
// whatever fields could not be read stay empty.
package procmeta

import (
	"bytes"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"
	"sync"
)

// Info is what the collector records about an event's origin process.
type Info struct {
	PID      uint32
	Comm     string
	ExePath  string
	CmdLine  string
	Username string
}

// Simple cache for username lookups
var (
	usernameCacheMutex sync.RWMutex
	usernameCache      = make(map[uint32]string)
)

// UsernameFromUID resolves a uid to a username, caching the answer.
func UsernameFromUID(uid uint32) string {
	usernameCacheMutex.RLock()
	if username, ok := usernameCache[uid]; ok {
		usernameCacheMutex.RUnlock()
		return username
	}
	usernameCacheMutex.RUnlock()

	if u, err := user.LookupId(fmt.Sprintf("%d", uid)); err == nil {
		usernameCacheMutex.Lock()
		usernameCache[uid] = u.Username
		usernameCacheMutex.Unlock()
		return u.Username
	}
	return ""
}

// Collect gathers process information from /proc. Returns false if the
// process is already gone.
func Collect(pid uint32) (*Info, bool) {
	procDir := fmt.Sprintf("/proc/%d", pid)
	if _, err := os.Stat(procDir); os.IsNotExist(err) {
		return nil, false
	}

	info := &Info{PID: pid}

	if comm, err := os.ReadFile(fmt.Sprintf("%s/comm", procDir)); err == nil {
		info.Comm = string(bytes.TrimSpace(comm))
	}

	if exePath, err := os.Readlink(fmt.Sprintf("%s/exe", procDir)); err == nil {
		info.ExePath = exePath
	}

	// Command line arguments are null-byte separated
	if cmdlineBytes, err := os.ReadFile(fmt.Sprintf("%s/cmdline", procDir)); err == nil && len(cmdlineBytes) > 0 {
		args := bytes.Split(cmdlineBytes, []byte{0})
		var cmdArgs []string
		for _, arg := range args {
			if len(arg) > 0 {
				cmdArgs = append(cmdArgs, string(arg))
			}
		}
		if len(cmdArgs) > 0 {
			info.CmdLine = strings.Join(cmdArgs, " ")
		}
	}

	if uid, ok := ownerUID(procDir); ok {
		info.Username = UsernameFromUID(uid)
	}

	return info, true
}

// ownerUID reads the real uid from /proc/[pid]/status.
func ownerUID(procDir string) (uint32, bool) {
	data, err := os.ReadFile(procDir + "/status")
	if err != nil {
		return 0, false
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "Uid:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				uid, err := strconv.ParseUint(fields[1], 10, 32)
				if err == nil {
					return uint32(uid), true
				}
			}
			return 0, false
		}
	}
	return 0, false
}
