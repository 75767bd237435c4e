package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/natvis-engine/internal/config"
	"github.com/standardbeagle/natvis-engine/internal/dispatch"
	"github.com/standardbeagle/natvis-engine/internal/formatter"
	"github.com/standardbeagle/natvis-engine/internal/itemexpr"
	"github.com/standardbeagle/natvis-engine/internal/mcpserver"
	"github.com/standardbeagle/natvis-engine/internal/model"
	"github.com/standardbeagle/natvis-engine/internal/version"
)

// Version is set from internal/version for a single source of truth,
// matching the teacher's cmd/lci/main.go pattern.
var Version = version.Version

// state bundles the process-wide formatter manager and loaded config
// every command (including serve) shares.
type state struct {
	mgr *formatter.Manager
	cfg *config.Config
}

// globalState is lazily built from the first command's --root flag and
// its .natvis.kdl layering, then reused for the lifetime of the process.
var globalState *state

func ensureState(c *cli.Context) (*state, error) {
	if globalState != nil {
		return globalState, nil
	}

	root := c.String("root")
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determining project root: %w", err)
		}
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", root, err)
	}

	mgr := formatter.New(noopSource{}, nil, log.Default())
	for _, pattern := range cfg.NatvisSearchPaths {
		if err := mgr.AddGlob(pattern); err != nil {
			return nil, fmt.Errorf("loading configured search path %q: %w", pattern, err)
		}
	}

	globalState = &state{mgr: mgr, cfg: cfg}
	return globalState, nil
}

// noopSource is the CLI's placeholder VisualiserSource: the real XML
// parser is an external collaborator (non-goal) the host process wires
// in; this CLI entry point only exercises the formatter manager's file
// tracking and Storage rebuild plumbing.
type noopSource struct{}

func (noopSource) Parse(path string, contents []byte) ([]*model.TypeViz, error) { return nil, nil }

func main() {
	app := &cli.App{
		Name:    "natvis",
		Usage:   "Natvis-style declarative type-visualiser engine",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (defaults to the working directory)",
			},
		},
		Commands: []*cli.Command{
			loadCommand,
			removeCommand,
			reloadCommand,
			listAllCommand,
			reloadAllCommand,
			removeAllCommand,
			overrideCharsetCommand,
			setMarkupCommand,
			setGlobalHexCommand,
			serveCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var loadCommand = &cli.Command{
	Name:      "load",
	Usage:     "Load a .natvis file or glob pattern",
	ArgsUsage: "<path>",
	Action: func(c *cli.Context) error {
		st, err := ensureState(c)
		if err != nil {
			return err
		}
		path := c.Args().First()
		if path == "" {
			return fmt.Errorf("load requires a path argument")
		}
		if err := st.mgr.Add(path); err != nil {
			return err
		}
		fmt.Printf("loaded %s\n", path)
		return nil
	},
}

var removeCommand = &cli.Command{
	Name:      "remove",
	Usage:     "Stop tracking a .natvis file",
	ArgsUsage: "<path>",
	Action: func(c *cli.Context) error {
		st, err := ensureState(c)
		if err != nil {
			return err
		}
		path := c.Args().First()
		if path == "" {
			return fmt.Errorf("remove requires a path argument")
		}
		if err := st.mgr.Remove(path); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", path)
		return nil
	},
}

var reloadCommand = &cli.Command{
	Name:      "reload",
	Usage:     "Re-parse a tracked .natvis file",
	ArgsUsage: "<path>",
	Action: func(c *cli.Context) error {
		st, err := ensureState(c)
		if err != nil {
			return err
		}
		path := c.Args().First()
		if path == "" {
			return fmt.Errorf("reload requires a path argument")
		}
		if err := st.mgr.Reload(path); err != nil {
			return err
		}
		fmt.Printf("reloaded %s\n", path)
		return nil
	},
}

var listAllCommand = &cli.Command{
	Name:  "list_all",
	Usage: "List every tracked .natvis file",
	Action: func(c *cli.Context) error {
		st, err := ensureState(c)
		if err != nil {
			return err
		}
		for _, path := range st.mgr.ListAll() {
			fmt.Println(path)
		}
		return nil
	},
}

var reloadAllCommand = &cli.Command{
	Name:  "reload_all",
	Usage: "Re-parse every tracked .natvis file",
	Action: func(c *cli.Context) error {
		st, err := ensureState(c)
		if err != nil {
			return err
		}
		if err := st.mgr.ReloadAll(); err != nil {
			return err
		}
		fmt.Println("reloaded all tracked files")
		return nil
	},
}

var removeAllCommand = &cli.Command{
	Name:  "remove_all",
	Usage: "Stop tracking every .natvis file",
	Action: func(c *cli.Context) error {
		st, err := ensureState(c)
		if err != nil {
			return err
		}
		if err := st.mgr.RemoveAll(); err != nil {
			return err
		}
		fmt.Println("removed all tracked files")
		return nil
	},
}

var overrideCharsetCommand = &cli.Command{
	Name:      "override_charset",
	Usage:     "Force raw char/wchar_t arrays to render as the named charset",
	ArgsUsage: "<utf8|utf16|utf32>",
	Action: func(c *cli.Context) error {
		st, err := ensureState(c)
		if err != nil {
			return err
		}
		charset := c.Args().First()
		if charset == "" {
			return fmt.Errorf("override_charset requires a charset argument")
		}
		st.cfg.CharsetOverride = charset
		fmt.Printf("charset override set to %s\n", charset)
		return nil
	},
}

var setMarkupCommand = &cli.Command{
	Name:      "set_markup",
	Usage:     "Enable or disable rich-text markup in summaries",
	ArgsUsage: "<true|false>",
	Action: func(c *cli.Context) error {
		st, err := ensureState(c)
		if err != nil {
			return err
		}
		enabled, perr := strconv.ParseBool(c.Args().First())
		if perr != nil {
			return fmt.Errorf("set_markup requires a true/false argument: %w", perr)
		}
		st.cfg.MarkupEnabled = enabled
		fmt.Printf("markup set to %v\n", enabled)
		return nil
	},
}

var setGlobalHexCommand = &cli.Command{
	Name:      "set_global_hex",
	Usage:     "Force all unformatted integers through hex presentation",
	ArgsUsage: "<true|false>",
	Action: func(c *cli.Context) error {
		st, err := ensureState(c)
		if err != nil {
			return err
		}
		enabled, perr := strconv.ParseBool(c.Args().First())
		if perr != nil {
			return fmt.Errorf("set_global_hex requires a true/false argument: %w", perr)
		}
		st.cfg.GlobalHexOverride = enabled
		fmt.Printf("global hex set to %v\n", enabled)
		return nil
	},
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Start the MCP server over stdio",
	Action: func(c *cli.Context) error {
		st, err := ensureState(c)
		if err != nil {
			return err
		}

		engine := &dispatch.Engine{
			Storage:           st.mgr.Storage(),
			Tracker:           itemexpr.New(),
			RecursionCap:      st.cfg.RecursionCap,
			MaxChildren:       st.cfg.MaxChildren,
			MarkupEnabled:     st.cfg.MarkupEnabled,
			GlobalHexOverride: st.cfg.GlobalHexOverride,
			CharsetOverride:   st.cfg.CharsetOverride,
		}

		srv := mcpserver.New(st.mgr, engine, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		return srv.Run(ctx)
	},
}
