// rove - script runner and REPL for the Rove engine
//
// Usage:
//   rove script.rove          # run a file
//   rove -e 'expr'            # evaluate a snippet and exit
//   rove                      # interactive REPL
//
// Engine limits and language settings load from rove.toml in the
// current directory when present.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/tliron/commonlog"

	"github.com/rove-lang/rove/config"
	"github.com/rove-lang/rove/store"
	"github.com/rove-lang/rove/vm"

	_ "github.com/tliron/commonlog/simple"
)

const (
	appName     = "rove"
	historyFile = ".rove_history"
	promptMain  = "rove> "
	banner      = "Rove REPL — Ctrl+D to exit. Type :help for commands."
	helpText    = `
REPL commands:
  :help            Show this help
  :quit / :exit    Exit the REPL
  :load <file>     Run a file in the current session
  :reset           Reset the session (fresh scope)
  :save <name>     Persist variable <name> to the store
  :get <name>      Load a persisted value into the session as <name>
  :keep <name> <file>   Persist a script file under <name>
  :run <name>      Run a persisted script in the current session
  :store           List persisted scripts and values
  :rm <name>       Delete <name> from the store (values, then scripts)
`
)

func main() {
	var evalStr string
	var verbose int
	flag.StringVar(&evalStr, "e", "", "Evaluate the given snippet and exit")
	flag.IntVar(&verbose, "v", 0, "Log verbosity")
	flag.Parse()

	commonlog.Configure(verbose, nil)

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}

	engine := vm.NewEngine(cfg)
	engine.Print = func(s string) { fmt.Println(s) }
	engine.Debug = func(s string) { fmt.Fprintln(os.Stderr, s) }

	args := flag.Args()
	switch {
	case evalStr != "":
		os.Exit(runSource(engine, evalStr))
	case len(args) > 0:
		os.Exit(runFile(engine, args[0]))
	default:
		os.Exit(runREPL(engine))
	}
}

func runFile(engine *vm.Engine, path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, path, err)
		return 1
	}
	return runSource(engine, string(src))
}

func runSource(engine *vm.Engine, src string) int {
	v, err := engine.Eval(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	if !v.IsUnit() {
		fmt.Println(v.String())
	}
	return 0
}

func runREPL(engine *vm.Engine) int {
	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	// One scope for the whole session, so bindings persist across
	// lines.
	scope := vm.NewScope()

	for {
		line, err := ln.Prompt(promptMain)
		if err != nil {
			fmt.Println()
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			var done bool
			scope, done = handleReplCommand(engine, scope, trimmed)
			if done {
				break
			}
			ln.AppendHistory(line)
			continue
		}

		v, err := engine.EvalWithScope(line, scope)
		if err != nil {
			fmt.Println(err)
		} else if !v.IsUnit() {
			fmt.Println(v.String())
		}
		ln.AppendHistory(line)
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	if sessionStore != nil {
		_ = sessionStore.Close()
	}
	return 0
}

func handleReplCommand(engine *vm.Engine, scope *vm.Scope, line string) (*vm.Scope, bool) {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case ":help":
		fmt.Print(helpText)
	case ":quit", ":exit":
		return scope, true
	case ":reset":
		fmt.Println("session reset.")
		return vm.NewScope(), false
	case ":load":
		if len(fields) < 2 {
			fmt.Println("usage: :load <file>")
			return scope, false
		}
		src, err := os.ReadFile(fields[1])
		if err != nil {
			fmt.Printf("cannot read %s: %v\n", fields[1], err)
			return scope, false
		}
		if v, err := engine.EvalWithScope(string(src), scope); err != nil {
			fmt.Println(err)
		} else if !v.IsUnit() {
			fmt.Println(v.String())
		}
	case ":save", ":get", ":keep", ":run", ":store", ":rm":
		handleStoreCommand(engine, scope, fields)
	default:
		fmt.Printf("unknown command %s\n", fields[0])
	}
	return scope, false
}

// sessionStore opens on first use and stays open for the session.
var sessionStore *store.Store

func openStore() *store.Store {
	if sessionStore != nil {
		return sessionStore
	}
	path, err := store.DefaultPath()
	if err != nil {
		fmt.Println(err)
		return nil
	}
	s, err := store.Open(path)
	if err != nil {
		fmt.Println(err)
		return nil
	}
	sessionStore = s
	return s
}

func handleStoreCommand(engine *vm.Engine, scope *vm.Scope, fields []string) {
	s := openStore()
	if s == nil {
		return
	}
	cmd := strings.ToLower(fields[0])
	if cmd != ":store" && len(fields) < 2 {
		fmt.Printf("usage: %s <name>\n", cmd)
		return
	}

	switch cmd {
	case ":save":
		v, ok := scope.Get(fields[1])
		if !ok {
			fmt.Printf("no variable %s in this session\n", fields[1])
			return
		}
		err := s.SaveValue(fields[1], v)
		v.Release()
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Printf("saved %s\n", fields[1])
	case ":get":
		v, err := s.LoadValue(fields[1])
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println(v.String())
		if scope.Contains(fields[1]) {
			if serr := scope.Set(fields[1], v); serr != nil {
				fmt.Println(serr)
				v.Release()
			}
			return
		}
		scope.Push(fields[1], v, false)
	case ":keep":
		if len(fields) < 3 {
			fmt.Println("usage: :keep <name> <file>")
			return
		}
		src, err := os.ReadFile(fields[2])
		if err != nil {
			fmt.Printf("cannot read %s: %v\n", fields[2], err)
			return
		}
		if err := s.SaveScript(fields[1], string(src)); err != nil {
			fmt.Println(err)
			return
		}
		fmt.Printf("kept %s\n", fields[1])
	case ":run":
		src, err := s.LoadScript(fields[1])
		if err != nil {
			fmt.Println(err)
			return
		}
		if v, err := engine.EvalWithScope(src, scope); err != nil {
			fmt.Println(err)
		} else if !v.IsUnit() {
			fmt.Println(v.String())
		}
	case ":store":
		listStore(s)
	case ":rm":
		if err := s.DeleteValue(fields[1]); err == nil {
			fmt.Printf("deleted value %s\n", fields[1])
			return
		}
		if err := s.DeleteScript(fields[1]); err != nil {
			fmt.Println(err)
			return
		}
		fmt.Printf("deleted script %s\n", fields[1])
	}
}

func listStore(s *store.Store) {
	scripts, err := s.ListScripts()
	if err != nil {
		fmt.Println(err)
		return
	}
	values, err := s.ListValues()
	if err != nil {
		fmt.Println(err)
		return
	}
	if len(scripts) == 0 && len(values) == 0 {
		fmt.Println("store is empty.")
		return
	}
	for _, e := range scripts {
		fmt.Printf("script  %-20s %s\n", e.Name, e.SavedAt.Format("2006-01-02 15:04"))
	}
	for _, e := range values {
		fmt.Printf("value   %-20s %s\n", e.Name, e.SavedAt.Format("2006-01-02 15:04"))
	}
}
