package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/llxisdsh/stripedmap"
)

const replHelp = `commands:
  SET <key> <value>   store value under key
  GET <key>           print the value of key
  DEL <key>           delete key
  HAS <key>           print whether key is present
  LEN                 print the number of entries
  KEYS                print all keys, sorted
  POPITEM             remove and print some entry
  CLEAR               remove every entry
  STATS               print table statistics
  EXIT                leave`

func replCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive shell over a string table",
		Long:  "Read commands from stdin and apply them to a Table[string, string].\n\n" + replHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(global.logLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg, err := loadConfig(global.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			tbl, err := stripedmap.NewFromConfig[string, string](cfg, stripedmap.WithLogger(logger))
			if err != nil {
				return err
			}
			defer func() { _ = tbl.Close() }()
			return runREPL(tbl, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	addTableFlags(cmd.Flags())
	return cmd
}

func runREPL(tbl *stripedmap.Table[string, string], in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 {
			if strings.EqualFold(fields[0], "exit") {
				return nil
			}
			if err := execute(tbl, fields, out); err != nil {
				if !isUserError(err) {
					return err
				}
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

var errUsage = errors.New("usage")

// isUserError reports whether err should be printed and the session
// continued.
func isUserError(err error) bool {
	return errors.Is(err, errUsage) ||
		errors.Is(err, stripedmap.ErrNotFound) ||
		errors.Is(err, stripedmap.ErrEmpty) ||
		errors.Is(err, stripedmap.ErrLockTimeout)
}

func execute(tbl *stripedmap.Table[string, string], fields []string, out io.Writer) error {
	args := fields[1:]
	want := func(n int, usage string) error {
		if len(args) != n {
			return errors.Wrapf(errUsage, "%s", usage)
		}
		return nil
	}

	switch strings.ToUpper(fields[0]) {
	case "SET":
		if len(args) < 2 {
			return errors.Wrapf(errUsage, "SET <key> <value>")
		}
		if err := tbl.Set(args[0], strings.Join(args[1:], " ")); err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")
	case "GET":
		if err := want(1, "GET <key>"); err != nil {
			return err
		}
		v, err := tbl.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, v)
	case "DEL":
		if err := want(1, "DEL <key>"); err != nil {
			return err
		}
		if err := tbl.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")
	case "HAS":
		if err := want(1, "HAS <key>"); err != nil {
			return err
		}
		ok, err := tbl.Contains(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ok)
	case "LEN":
		fmt.Fprintln(out, tbl.Len())
	case "KEYS":
		keys, err := tbl.Keys()
		if err != nil {
			return err
		}
		sort.Strings(keys)
		fmt.Fprintln(out, strings.Join(keys, " "))
	case "POPITEM":
		k, v, err := tbl.PopItem()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", k, v)
	case "CLEAR":
		if err := tbl.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")
	case "STATS":
		stats, err := tbl.Stats()
		if err != nil {
			return err
		}
		fmt.Fprint(out, stats.ToString())
	case "HELP":
		fmt.Fprintln(out, replHelp)
	default:
		return errors.Wrapf(errUsage, "unknown command %q, try HELP", fields[0])
	}
	return nil
}
