package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

func installDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install triquery serve as a user service (launchd/systemd)",
		Long:  "Generates and installs a service file that runs 'triquery serve' in the background on login.",
		RunE: func(cmd *cobra.Command, args []string) error {
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			path, content, err := serviceFile(runtime.GOOS, home, execPath, resolveConfigPath())
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service installed: %s\n", path)
			for _, hint := range serviceHints(runtime.GOOS, path) {
				fmt.Fprintln(cmd.OutOrStdout(), hint)
			}
			return nil
		},
	}
}

func uninstallDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the triquery user service",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			path, _, err := serviceFile(runtime.GOOS, home, "", "")
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("remove service file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service uninstalled: %s\n", path)
			return nil
		},
	}
}

const launchdLabel = "com.triquery.serve"

// serviceFile returns where the service definition lives for goos and its
// rendered content.
func serviceFile(goos, home, execPath, cfgPath string) (string, string, error) {
	switch goos {
	case "darwin":
		logDir := filepath.Join(home, ".triquery", "logs")
		r := strings.NewReplacer(
			"{{EXEC}}", execPath,
			"{{CONFIG}}", cfgPath,
			"{{LABEL}}", launchdLabel,
			"{{LOG}}", filepath.Join(logDir, "triquery.log"),
			"{{ERR_LOG}}", filepath.Join(logDir, "triquery-error.log"),
		)
		path := filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist")
		return path, r.Replace(launchdTemplate), nil
	case "linux":
		r := strings.NewReplacer("{{EXEC}}", execPath, "{{CONFIG}}", cfgPath)
		path := filepath.Join(home, ".config", "systemd", "user", "triquery.service")
		return path, r.Replace(systemdTemplate), nil
	default:
		return "", "", fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", goos)
	}
}

func serviceHints(goos, path string) []string {
	if goos == "darwin" {
		return []string{
			"To start: launchctl load " + path,
			"To stop:  launchctl unload " + path,
		}
	}
	return []string{
		"To start:  systemctl --user start triquery",
		"To enable: systemctl --user enable triquery",
		"To stop:   systemctl --user stop triquery",
	}
}

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{LABEL}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{EXEC}}</string>
        <string>serve</string>
        <string>--config</string>
        <string>{{CONFIG}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{LOG}}</string>
    <key>StandardErrorPath</key>
    <string>{{ERR_LOG}}</string>
</dict>
</plist>`

const systemdTemplate = `[Unit]
Description=triquery multi-model query server
After=network-online.target

[Service]
Type=simple
ExecStart={{EXEC}} serve --config {{CONFIG}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target`
