package hypervisor

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/vmdash/vmdash/internal/domain"
)

// parseDomstats parses the block-structured output of the hypervisor's
// statistics subcommand (§6) into one DomainData per domain. sampledAtMS is
// the "milliseconds since epoch" timestamp captured by the caller at
// invocation time, per §4.1.
func parseDomstats(output string, sampledAtMS int64) (map[string]*domain.DomainData, error) {
	result := make(map[string]*domain.DomainData)

	var name string
	var fields map[string]string

	flush := func() error {
		if name == "" {
			return nil
		}
		dd, err := buildDomainData(name, fields, sampledAtMS)
		if err != nil {
			return err
		}
		result[name] = dd
		name = ""
		fields = nil
		return nil
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}

		if strings.HasPrefix(trimmed, "Domain:") {
			if err := flush(); err != nil {
				return nil, err
			}
			name = strings.TrimSpace(strings.TrimPrefix(trimmed, "Domain:"))
			name = strings.Trim(name, "\"")
			fields = make(map[string]string)
			continue
		}

		if fields == nil {
			// Unparseable content before any "Domain:" header is ignored,
			// per §6: "any unparseable key/value pair is ignored."
			continue
		}

		eq := strings.Index(trimmed, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(trimmed[:eq])
		value := strings.TrimSpace(trimmed[eq+1:])
		if key == "" {
			continue
		}
		fields[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, &domain.InputFormatError{Source: "domstats", Reason: err.Error()}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return result, nil
}

func parseUintField(fields map[string]string, key string) (uint64, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseIntField(fields map[string]string, key string) (int64, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// buildDomainData turns the raw key/value fields of one "Domain:" block into
// a typed DomainData, enforcing §4.1's required-field rules.
func buildDomainData(name string, fields map[string]string, sampledAtMS int64) (*domain.DomainData, error) {
	dd := &domain.DomainData{
		Info:        domain.DomainInfo{Name: name},
		SampledAtMS: sampledAtMS,
	}

	stateNum, ok := parseIntField(fields, "state.state")
	if !ok {
		return nil, &domain.InputFormatError{Source: "domstats", Reason: fmt.Sprintf("domain %q: missing or invalid state.state", name)}
	}
	dd.State = stateFromLibvirt(int(stateNum))

	if v, ok := parseIntField(fields, "vcpu.maximum"); ok {
		dd.Info.CPUs = int(v)
	}

	// balloon.maximum reports the VM's max memory in KiB; convert to bytes
	// per §4.1's unit-conversion boundary.
	if v, ok := parseUintField(fields, "balloon.maximum"); ok {
		dd.Info.MaxMemory = v * 1024
	}

	if dd.Running() {
		cpuTimeNS, ok := parseUintField(fields, "cpu.time")
		if !ok {
			return nil, &domain.InputFormatError{Source: "domstats", Reason: fmt.Sprintf("domain %q: missing or invalid cpu.time for running VM", name)}
		}
		dd.CPUTimeMS = int64(cpuTimeNS / 1_000_000)

		actualKiB, hasActual := parseUintField(fields, "balloon.current")
		if !hasActual {
			return nil, &domain.InputFormatError{Source: "domstats", Reason: fmt.Sprintf("domain %q: missing or invalid balloon.current for running VM", name)}
		}

		mem := domain.MemStat{Actual: actualKiB * 1024}

		rssKiB, hasRSS := parseUintField(fields, "balloon.rss")
		lastUpdate, hasLastUpdate := parseIntField(fields, "balloon.last-update")
		if hasRSS && hasLastUpdate {
			mem.HasGuestData = true
			mem.RSS = rssKiB * 1024
			mem.LastUpdatedSec = lastUpdate

			unused, uOK := parseUintField(fields, "balloon.unused")
			available, aOK := parseUintField(fields, "balloon.available")
			usable, sOK := parseUintField(fields, "balloon.usable")
			diskCaches, dOK := parseUintField(fields, "balloon.disk_caches")
			if uOK && aOK && sOK && dOK {
				mem.GuestMem = domain.GuestMemStat{
					Unused:     unused * 1024,
					Available:  available * 1024,
					Usable:     usable * 1024,
					DiskCaches: diskCaches * 1024,
				}
			}
		}

		dd.HasMemStat = true
		dd.MemStat = mem
	}

	disks, err := buildDisks(name, fields)
	if err != nil {
		return nil, err
	}
	dd.Disks = disks

	return dd, nil
}

func stateFromLibvirt(n int) domain.DomainState {
	switch n {
	case 1:
		return domain.StateRunning
	case 3:
		return domain.StatePaused
	case 5:
		return domain.StateShutOff
	default:
		return domain.StateOther
	}
}

// buildDisks accumulates block.<i>.* entries for i in 0..block.count-1,
// per §4.1: "only included if allocation, capacity, physical and name are
// all present."
func buildDisks(vmName string, fields map[string]string) ([]domain.DiskStat, error) {
	count, ok := parseIntField(fields, "block.count")
	if !ok || count < 0 {
		return nil, nil
	}

	disks := make([]domain.DiskStat, 0, count)
	for i := int64(0); i < count; i++ {
		prefix := fmt.Sprintf("block.%d.", i)
		nameVal, hasName := fields[prefix+"name"]
		allocation, hasAlloc := parseUintField(fields, prefix+"allocation")
		capacity, hasCap := parseUintField(fields, prefix+"capacity")
		physical, hasPhys := parseUintField(fields, prefix+"physical")

		if !hasName || !hasAlloc || !hasCap || !hasPhys {
			continue
		}

		d := domain.DiskStat{
			Name:       nameVal,
			Allocation: allocation,
			Capacity:   capacity,
			Physical:   physical,
		}
		if p, ok := fields[prefix+"path"]; ok {
			d.Path = p
			d.HasPath = true
		}
		disks = append(disks, d)
	}
	_ = vmName
	return disks, nil
}

// parseNodeInfo parses the hypervisor's node-info output into a
// HostCPUInfo, per §4.1.
func parseNodeInfo(output string) (domain.HostCPUInfo, error) {
	info := domain.HostCPUInfo{}
	haveSockets, haveCores, haveThreads := false, false, false

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		colon := strings.Index(line, ":")
		if colon < 0 {
			continue
		}
		key := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])

		switch key {
		case "CPU model":
			info.Model = value
		case "CPU socket(s)":
			if n, err := strconv.Atoi(value); err == nil {
				info.Sockets = n
				haveSockets = true
			}
		case "Core(s) per socket":
			if n, err := strconv.Atoi(value); err == nil {
				info.CoresPerSocket = n
				haveCores = true
			}
		case "Thread(s) per core":
			if n, err := strconv.Atoi(value); err == nil {
				info.ThreadsPerCore = n
				haveThreads = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.HostCPUInfo{}, &domain.InputFormatError{Source: "nodeinfo", Reason: err.Error()}
	}
	if !haveSockets || !haveCores || !haveThreads {
		return domain.HostCPUInfo{}, &domain.InputFormatError{Source: "nodeinfo", Reason: "missing CPU topology fields"}
	}
	return info, nil
}
