package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"triquery/internal/config"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your triquery setup",
		Long: `Verifies the configuration file, provider API keys, notification
backend, listen port and log file. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.OutOrStdout(), resolveConfigPath())
		},
	}
}

// doctorReport counts check results and prints one line per check.
type doctorReport struct {
	w                      io.Writer
	passed, warned, failed int
}

func (r *doctorReport) pass(check, detail string) {
	r.passed++
	fmt.Fprintf(r.w, "  [PASS] %-20s %s\n", check, detail)
}

func (r *doctorReport) warn(check, detail string) {
	r.warned++
	fmt.Fprintf(r.w, "  [WARN] %-20s %s\n", check, detail)
}

func (r *doctorReport) fail(check, detail string) {
	r.failed++
	fmt.Fprintf(r.w, "  [FAIL] %-20s %s\n", check, detail)
}

func runDoctor(w io.Writer, cfgPath string) error {
	r := &doctorReport{w: w}
	fmt.Fprintf(w, "triquery doctor v%s\n", version)
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	// 1. Config file loads (a missing file falls back to defaults + env)
	cfg, found, err := config.LoadOrDefaults(cfgPath)
	switch {
	case err != nil:
		r.fail("Config", err.Error())
		fmt.Fprintf(w, "\n%d passed, %d failed\n", r.passed, r.failed)
		return fmt.Errorf("config invalid")
	case !found:
		r.warn("Config", fmt.Sprintf("no file at %s, using defaults and environment", cfgPath))
	default:
		r.pass("Config", cfgPath)
	}

	// 2. Provider keys
	missing := map[string]bool{}
	for _, env := range cfg.MissingProviderKeys() {
		missing[env] = true
	}
	for _, p := range []struct{ name, env string }{
		{"gemini", "GEMINI_API_KEY"},
		{"cohere", "COHERE_API_KEY"},
		{"mistral", "MISTRAL_API_KEY"},
	} {
		if missing[p.env] {
			r.fail("Provider: "+p.name, "no API key (set "+p.env+")")
		} else {
			r.pass("Provider: "+p.name, "key configured")
		}
	}

	// 3. Notification backend is optional
	if cfg.NotifyConfigured() {
		r.pass("Notify", cfg.Notify.Backend+" -> "+cfg.Notify.ChannelID)
	} else {
		r.warn("Notify", cfg.Notify.Backend+" not configured (notifications disabled)")
	}

	// 4. Listen port
	if err := checkPort(cfg.Server.Host, cfg.Server.Port); err != nil {
		r.warn("Port", fmt.Sprintf("port %d may be in use: %v", cfg.Server.Port, err))
	} else {
		r.pass("Port", fmt.Sprintf(":%d available", cfg.Server.Port))
	}

	// 5. Static dir override
	if cfg.Server.StaticDir != "" {
		if _, err := os.Stat(filepath.Join(cfg.Server.StaticDir, "index.html")); err != nil {
			r.fail("Static dir", fmt.Sprintf("index.html not found in %s", cfg.Server.StaticDir))
		} else {
			r.pass("Static dir", cfg.Server.StaticDir)
		}
	}

	// 6. Log file writable
	if cfg.General.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
			r.warn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
		} else {
			r.pass("Log file", cfg.General.LogFile)
		}
	}

	fmt.Fprintf(w, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		fmt.Fprintf(w, "\nPlease fix the failed checks before running triquery.\n")
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	if r.warned > 0 {
		fmt.Fprintf(w, "\ntriquery should work but consider fixing the warnings.\n")
	} else {
		fmt.Fprintf(w, "\nAll checks passed! triquery is ready to run.\n")
	}
	return nil
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}
