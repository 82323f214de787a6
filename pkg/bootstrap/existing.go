package bootstrap

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ExistingConfig is the identity of a deployment read back from a
// previously generated configuration file.
type ExistingConfig struct {
	RouterID    int64
	Name        string
	ClusterName string
	Username    string
}

// ReadExistingConfig parses the configuration left by an earlier
// bootstrap run. A missing file yields nil; an empty file yields a
// zero-valued identity so the run is treated as fresh.
func ReadExistingConfig(path string) (*ExistingConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("Error reading existing configuration %s: %w", path, err)
	}
	defer file.Close()

	existing := &ExistingConfig{}
	section := ""
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = line[1 : len(line)-1]
			if cluster, ok := strings.CutPrefix(section, "metadata_cache:"); ok {
				existing.ClusterName = cluster
			}
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch {
		case section == "DEFAULT" && key == "name":
			existing.Name = value
		case strings.HasPrefix(section, "metadata_cache:") && key == "router_id":
			id, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("Invalid router_id '%s' in existing configuration %s", value, path)
			}
			existing.RouterID = id
		case strings.HasPrefix(section, "metadata_cache:") && key == "user":
			existing.Username = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("Error reading existing configuration %s: %w", path, err)
	}
	return existing, nil
}
