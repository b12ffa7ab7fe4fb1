package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"triquery/internal/config"

	"github.com/spf13/cobra"
)

// backendMeta describes a notification backend option for the wizard.
type backendMeta struct {
	Name       string
	TokenLabel string
	ChannelTip string
}

var knownBackends = []backendMeta{
	{Name: "discord", TokenLabel: "Discord bot token", ChannelTip: "numeric channel id"},
	{Name: "telegram", TokenLabel: "Telegram bot token (from @BotFather)", ChannelTip: "chat id or @channel"},
	{Name: "slack", TokenLabel: "Slack bot token (xoxb-...)", ChannelTip: "channel id, e.g. C0123456"},
}

func wizardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Interactive setup: provider keys → notifications → save config",
		Long:  "Asks for the three provider API keys and an optional notification backend, then writes the config to the path used by --config or the default.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWizard(cmd.InOrStdin(), cmd.OutOrStdout(), resolveConfigPath())
		},
	}
}

func runWizard(in io.Reader, out io.Writer, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Defaults()
	}

	reader := bufio.NewReader(in)
	prompt := func(def string) (string, error) {
		if def != "" {
			fmt.Fprintf(out, " [%s]: ", def)
		} else {
			fmt.Fprint(out, ": ")
		}
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		s := strings.TrimSpace(line)
		if s == "" {
			return def, nil
		}
		return s, nil
	}

	// Step 1: Provider keys
	fmt.Fprintln(out, "\n--- Step 1: Provider API keys ---")
	keys := []struct {
		label string
		env   string
		field *string
	}{
		{"Gemini", "GEMINI_API_KEY", &cfg.Providers.Gemini.APIKey},
		{"Cohere", "COHERE_API_KEY", &cfg.Providers.Cohere.APIKey},
		{"Mistral", "MISTRAL_API_KEY", &cfg.Providers.Mistral.APIKey},
	}
	for _, k := range keys {
		fmt.Fprintf(out, "%s API key: paste key or env var", k.label)
		def := *k.field
		if def == "" {
			def = "${" + k.env + ":-}"
		}
		v, err := prompt(def)
		if err != nil {
			return err
		}
		*k.field = v
	}

	// Step 2: Notification backend
	fmt.Fprintln(out, "\n--- Step 2: Notifications (optional) ---")
	fmt.Fprintln(out, "  0) none")
	for i, b := range knownBackends {
		fmt.Fprintf(out, "  %d) %s\n", i+1, b.Name)
	}
	fmt.Fprint(out, "Choose backend (0–"+fmt.Sprint(len(knownBackends))+")")
	choice, err := prompt("0")
	if err != nil {
		return err
	}
	var idx int
	if n, _ := fmt.Sscanf(choice, "%d", &idx); n != 1 || idx < 0 || idx > len(knownBackends) {
		idx = 0
	}
	if idx > 0 {
		b := knownBackends[idx-1]
		cfg.Notify.Backend = b.Name
		fmt.Fprint(out, b.TokenLabel)
		tok, err := prompt("")
		if err != nil {
			return err
		}
		switch b.Name {
		case "discord":
			cfg.Notify.Discord.Token = tok
		case "telegram":
			cfg.Notify.Telegram.Token = tok
		case "slack":
			cfg.Notify.Slack.BotToken = tok
		}
		fmt.Fprintf(out, "Target channel (%s)", b.ChannelTip)
		ch, err := prompt(cfg.Notify.ChannelID)
		if err != nil {
			return err
		}
		cfg.Notify.ChannelID = ch
		fmt.Fprintf(out, "  Using backend: %s\n", b.Name)
	} else {
		cfg.Notify.ChannelID = ""
		fmt.Fprintln(out, "  Notifications disabled")
	}

	// Save
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nConfig saved to %s\n", cfgPath)
	fmt.Fprintln(out, "Next: run 'triquery serve' and open the web UI, or 'triquery ask \"...\"'.")
	return nil
}
