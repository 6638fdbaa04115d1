package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qchateau/bless/internal/broker"
	"github.com/qchateau/bless/internal/config"
	"github.com/qchateau/bless/internal/fileview"
	"github.com/qchateau/bless/internal/tui"
)

var Version = "dev"

var (
	followFlag    bool
	wrapFlag      int
	tabsFlag      int
	configDirFlag string
	verboseFlag   bool
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vista <file>",
		Short:         "An interactive pager for large, compressed, growing files",
		Long:          "vista — pages through files too large to load in full, including bzip2-compressed and concurrently-growing ones, with byte/line/regex navigation.",
		Version:       fmt.Sprintf("vista v%s", Version),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verboseFlag {
				log.SetLevel(log.DebugLevel)
			}
			config.SetConfigDir(configDirFlag)
			return nil
		},
		RunE: runPager,
	}

	rootCmd.SetVersionTemplate("{{.Version}}\n")

	pflags := rootCmd.PersistentFlags()
	pflags.BoolVar(&followFlag, "follow", false, "Follow the file as it grows (default: from config)")
	pflags.IntVar(&wrapFlag, "wrap", 0, "Wrap width in columns, 0 disables wrapping (default: from config)")
	pflags.IntVar(&tabsFlag, "tabs", 0, "Tab width in columns (default: from config)")
	pflags.StringVar(&configDirFlag, "config-dir", "", "Override config directory (default: ~/.vista)")
	pflags.BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging to stderr")

	if v := os.Getenv("VISTA_HOME"); v != "" && configDirFlag == "" {
		configDirFlag = v
	}

	return rootCmd
}

func runPager(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	follow := cfg.Follow
	if cmd.Flags().Changed("follow") {
		follow = followFlag
	}
	tabWidth := cfg.TabWidth
	if cmd.Flags().Changed("tabs") {
		tabWidth = tabsFlag
	}
	wrapWidth := cfg.WrapWidth
	if cmd.Flags().Changed("wrap") {
		wrapWidth = wrapFlag
	}

	var viewOpts []fileview.Option
	if cfg.ShrinkThreshold > 0 {
		viewOpts = append(viewOpts, fileview.WithShrinkThreshold(cfg.ShrinkThreshold))
	}

	view, err := fileview.New(args[0], viewOpts...)
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}

	commands := make(chan broker.Command)
	cancelCh := make(chan struct{})
	b := broker.New(view, commands, cancelCh, tabWidth)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	brokerErrCh := make(chan error, 1)
	go func() { brokerErrCh <- b.Run(ctx) }()

	if follow {
		go func() { commands <- broker.Follow(true) }()
	}

	model := tui.New(args[0], commands, cancelCh, b.State(), wrapWidth)
	program := tea.NewProgram(model, tea.WithAltScreen())

	defer restoreTerminalOnPanic(program)

	_, err = program.Run()
	stop()
	if err != nil {
		return err
	}
	return <-brokerErrCh
}

// restoreTerminalOnPanic guarantees the terminal is left in its original
// state (cooked mode, main screen buffer) even if rendering panics, since a
// raw-mode terminal left behind by a crashed pager is unusable until the
// user blind-types `reset`.
func restoreTerminalOnPanic(p *tea.Program) {
	if r := recover(); r != nil {
		p.ReleaseTerminal()
		panic(r)
	}
}

func Execute() error {
	cmd := NewRootCmd()
	return cmd.Execute()
}
