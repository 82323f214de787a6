package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteStartScript writes start.sh into the deployment directory. When
// a system user is set the script re-executes itself under sudo so the
// router can drop to that user.
func WriteStartScript(directory, routerBinary, systemUser string) error {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "basedir=%s\n", directory)
	runLine := fmt.Sprintf("ROUTER_PID=$basedir/mysqlrouter.pid %s -c $basedir/mysqlrouter.conf", routerBinary)
	if systemUser != "" {
		fmt.Fprintf(&b, "if [ `whoami` == '%s' ]; then\n", systemUser)
		fmt.Fprintf(&b, "  %s &\n", runLine)
		b.WriteString("else\n")
		fmt.Fprintf(&b, "  sudo %s --user=%s &\n", runLine, systemUser)
		b.WriteString("fi\n")
	} else {
		fmt.Fprintf(&b, "%s &\n", runLine)
	}
	b.WriteString("disown %-\n")

	path := filepath.Join(directory, "start.sh")
	if err := os.WriteFile(path, []byte(b.String()), 0700); err != nil {
		return fmt.Errorf("Could not create %s: %w", path, err)
	}
	return nil
}

// WriteStopScript writes stop.sh, which terminates the router recorded
// in the pid file.
func WriteStopScript(directory string) error {
	pidFile := filepath.Join(directory, "mysqlrouter.pid")
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "if [ -f %s ]; then\n", pidFile)
	fmt.Fprintf(&b, "  kill -TERM `cat %s` && rm -f %s\n", pidFile, pidFile)
	b.WriteString("fi\n")

	path := filepath.Join(directory, "stop.sh")
	if err := os.WriteFile(path, []byte(b.String()), 0700); err != nil {
		return fmt.Errorf("Could not create %s: %w", path, err)
	}
	return nil
}
