package session

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/labkeeper/internal/registry"
	"github.com/Iron-Ham/labkeeper/internal/session"
	"github.com/Iron-Ham/labkeeper/internal/tui/styles"
	"github.com/Iron-Ham/labkeeper/internal/util"
)

// maxDirWidth bounds each directory column entry in table output.
const maxDirWidth = 40

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List running sessions",
	Long: `List the persisted sessions whose servers are still running. Entries whose
process has exited are skipped; the store itself is never pruned.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var (
	listOutput     string
	listShowTokens bool
)

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format: table, json or yaml")
	listCmd.Flags().BoolVar(&listShowTokens, "show-tokens", false, "Include server tokens in the output")
}

// RegisterListCmd registers the list command with the given parent command.
func RegisterListCmd(parent *cobra.Command) {
	parent.AddCommand(listCmd)
}

// sessionEntry is one row of list output.
type sessionEntry struct {
	SessionID       string    `json:"sessionId" yaml:"sessionId"`
	Kind            string    `json:"kind,omitempty" yaml:"kind,omitempty"`
	BaseURL         string    `json:"baseUrl" yaml:"baseUrl"`
	Token           string    `json:"token,omitempty" yaml:"token,omitempty"`
	Directory       string    `json:"directory,omitempty" yaml:"directory,omitempty"`
	MappedDirectory string    `json:"mappedDirectory,omitempty" yaml:"mappedDirectory,omitempty"`
	LaunchedAt      time.Time `json:"launchedAt,omitzero" yaml:"launchedAt,omitempty"`
}

func newSessionEntry(rec session.Record, showToken bool) sessionEntry {
	e := sessionEntry{
		SessionID:       rec.SessionID,
		Kind:            rec.Kind,
		BaseURL:         rec.BaseURL,
		Directory:       rec.Directory,
		MappedDirectory: rec.MappedDirectory,
		LaunchedAt:      rec.LaunchedAt,
	}
	if showToken {
		e.Token = rec.Token
	}
	return e
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	return writeSessions(cmd.OutOrStdout(), a.Registry, listOutput, listShowTokens)
}

func writeSessions(w io.Writer, reg *registry.Registry, format string, showTokens bool) error {
	records := reg.List()
	entries := make([]sessionEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, newSessionEntry(rec, showTokens))
	}

	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		writeTable(w, entries)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (use table, json or yaml)", format)
	}
}

func writeTable(w io.Writer, entries []sessionEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No running sessions.")
		fmt.Fprintln(w, styles.Hint.Render("Run 'labkeeper launch' to start one."))
		return
	}

	fmt.Fprintln(w, styles.TableHeader.Render(fmt.Sprintf("%-10s %-8s %-28s %s", "SESSION", "KIND", "URL", "DIRECTORY")))
	for _, e := range entries {
		dir := util.TruncatePath(util.ShortenHome(e.Directory), maxDirWidth)
		if e.MappedDirectory != "" {
			dir += " -> " + util.TruncatePath(util.ShortenHome(e.MappedDirectory), maxDirWidth)
		}
		fmt.Fprintf(w, "%-10s %-8s %-28s %s\n", e.SessionID, e.Kind, util.TruncateANSI(e.BaseURL, 28), dir)
	}
	fmt.Fprintf(w, "\n%d session(s)\n", len(entries))
}
