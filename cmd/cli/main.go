package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nickyhof/DuckDesk"
	"github.com/nickyhof/DuckDesk/config"
	"github.com/nickyhof/DuckDesk/db"
	"github.com/nickyhof/DuckDesk/logger"
	"github.com/nickyhof/DuckDesk/op"
)

const (
	PromptColor  = "\033[36m" // Cyan
	ErrorColor   = "\033[31m" // Red
	SuccessColor = "\033[32m" // Green
	ResetColor   = "\033[0m"
	BoldColor    = "\033[1m"
)

// Version is set at build time via -ldflags
var Version = "dev"

const maxHistory = 1000

// CLI holds the REPL state
type CLI struct {
	instance    *DuckDesk.Instance
	out         io.Writer
	history     []string
	historyFile string
	database    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%sError: %v%s\n", ErrorColor, err, ResetColor)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		storageDir string
		database   string
		sqlFile    string
	)

	root := &cobra.Command{
		Use:           "duckdesk",
		Short:         "Interactive SQL shell over a directory of DuckDB databases",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("storage-dir") {
				cfg.StorageDir = storageDir
			}
			cfg.Log.Level = "warn"

			instance, err := DuckDesk.Open(DuckDesk.Options{
				StorageDir:        cfg.StorageDir,
				UploadDir:         cfg.UploadDir,
				DefaultDatabase:   cfg.DefaultDatabase,
				RowCountWorkers:   cfg.RowCountWorkers,
				AllowLocalImports: true,
				ImportHosts:       []string{"*"},
				S3: op.S3Config{
					AccessKey: cfg.S3.AccessKey,
					SecretKey: cfg.S3.SecretKey,
					Region:    cfg.S3.Region,
					Endpoint:  cfg.S3.Endpoint,
				},
				Logger: logger.New(cfg.Log, cmd.ErrOrStderr()),
			})
			if err != nil {
				return err
			}
			defer instance.Close()

			cli := NewCLI(instance, cmd.OutOrStdout(), getHistoryPath())
			if database != "" {
				cli.database = database
			}

			if sqlFile != "" {
				return cli.readFile(cmd.Context(), sqlFile)
			}

			cli.printBanner()
			cli.loadHistory()
			defer cli.saveHistory()
			cli.Run(cmd.Context(), cmd.InOrStdin())
			return nil
		},
	}

	flags := root.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&storageDir, "storage-dir", "", "Directory holding <name>.db files")
	flags.StringVarP(&database, "database", "d", "", "Database to start in")
	flags.StringVarP(&sqlFile, "file", "f", "", "SQL file to execute (non-interactive)")

	return root
}

func NewCLI(instance *DuckDesk.Instance, out io.Writer, historyFile string) *CLI {
	return &CLI{
		instance:    instance,
		out:         out,
		history:     make([]string, 0),
		historyFile: historyFile,
		database:    instance.Storage.DefaultName(),
	}
}

func (cli *CLI) printf(format string, args ...any) {
	fmt.Fprintf(cli.out, format, args...)
}

func (cli *CLI) errorf(format string, args ...any) {
	cli.printf("%s✗ "+format+"%s\n", append(append([]any{ErrorColor}, args...), ResetColor)...)
}

func (cli *CLI) successf(format string, args ...any) {
	cli.printf("%s✓ "+format+"%s\n", append(append([]any{SuccessColor}, args...), ResetColor)...)
}

func (cli *CLI) printBanner() {
	versionLine := fmt.Sprintf("DuckDesk v%s", Version)
	cli.printf("\n%s%s%s%s\n", BoldColor, PromptColor, versionLine, ResetColor)
	cli.printf("Storage: %s\n", cli.instance.Storage.Root())
	cli.printf("Type .help for commands, .quit to exit\n\n")
}

// Run reads statements from in until EOF or .quit. Statements may span
// several lines and end with a semicolon.
func (cli *CLI) Run(ctx context.Context, in io.Reader) {
	reader := bufio.NewReader(in)
	var buffer strings.Builder

	for {
		cli.printf("%s", cli.prompt(buffer.Len() > 0))

		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			cli.printf("\n%sGoodbye!%s\n", SuccessColor, ResetColor)
			return
		}
		input = strings.TrimRight(input, "\r\n")

		if strings.TrimSpace(input) == "" {
			continue
		}

		if buffer.Len() == 0 && strings.HasPrefix(strings.TrimSpace(input), ".") {
			if quit := cli.handleCommand(ctx, strings.TrimSpace(input)); quit {
				cli.printf("%sGoodbye!%s\n", SuccessColor, ResetColor)
				return
			}
			continue
		}

		buffer.WriteString(input)
		trimmed := strings.TrimSpace(buffer.String())
		if !strings.HasSuffix(trimmed, ";") {
			buffer.WriteString("\n")
			continue
		}
		buffer.Reset()

		query := strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
		if query == "" {
			continue
		}
		cli.addToHistory(query + ";")
		cli.execute(ctx, query)
	}
}

func (cli *CLI) prompt(continuation bool) string {
	if continuation {
		return fmt.Sprintf("%s   ...>%s ", PromptColor, ResetColor)
	}
	return fmt.Sprintf("%sduckdesk (%s)>%s ", PromptColor, cli.database, ResetColor)
}

func (cli *CLI) execute(ctx context.Context, query string) {
	outcome, err := cli.instance.Query(ctx, cli.database, query)
	if err != nil {
		cli.errorf("Error: %v", err)
		return
	}
	outcome.Display(cli.out)
}

// handleCommand runs a dot command and reports whether the shell should exit.
func (cli *CLI) handleCommand(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case ".quit", ".exit", ".q":
		return true

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".databases", ".dbs":
		cli.showDatabases()

	case ".use":
		if len(args) != 1 {
			cli.errorf("Usage: .use <database>")
			break
		}
		if _, err := cli.instance.Registry.Resolve(ctx, args[0]); err != nil {
			cli.errorf("Error: %v", err)
			break
		}
		cli.database = strings.ToLower(args[0])
		cli.successf("Using database: %s", cli.database)

	case ".schema", ".tables":
		cli.showSchema(ctx)

	case ".attached":
		names := cli.instance.Attachments(cli.database)
		if len(names) == 0 {
			cli.printf("No attached databases\n")
			break
		}
		for _, name := range names {
			cli.printf("  %s\n", name)
		}

	case ".import":
		if len(args) < 1 || len(args) > 2 {
			cli.errorf("Usage: .import <file.csv|url> [schema.]table")
			break
		}
		cli.importCSV(ctx, args)

	case ".read":
		if len(args) != 1 {
			cli.errorf("Usage: .read <file.sql>")
			break
		}
		if err := cli.readFile(ctx, args[0]); err != nil {
			cli.errorf("Error: %v", err)
		}

	case ".close":
		name := cli.database
		if len(args) == 1 {
			name = args[0]
		}
		if err := cli.instance.Registry.Evict(name); err != nil {
			cli.errorf("Error: %v", err)
			break
		}
		cli.successf("Closed database: %s", strings.ToLower(name))

	case ".clear", ".cls":
		cli.printf("\033[H\033[2J")

	case ".history":
		cli.printHistory()

	case ".version":
		cli.printf("DuckDesk version %s\n", Version)

	default:
		cli.errorf("Unknown command: %s (type .help for commands)", command)
	}

	return false
}

func (cli *CLI) printHelp() {
	cli.printf("\n%s%sCommands:%s\n", BoldColor, PromptColor, ResetColor)
	cli.printf("  .help, .h                 Show this help message\n")
	cli.printf("  .quit, .exit              Exit the shell\n")
	cli.printf("  .databases                List databases in the storage directory\n")
	cli.printf("  .use <db>                 Switch to a database (created on first use)\n")
	cli.printf("  .schema                   Describe schemas, tables and columns\n")
	cli.printf("  .attached                 List databases attached to the current one\n")
	cli.printf("  .import <src> [s.]table   Import a CSV file or URL into a table\n")
	cli.printf("  .read <file.sql>          Execute SQL statements from a file\n")
	cli.printf("  .close [db]               Close a database handle\n")
	cli.printf("  .history                  Show command history\n")
	cli.printf("  .clear                    Clear the screen\n")
	cli.printf("  .version                  Show version info\n")
	cli.printf("\nStatements end with ';'. Sibling databases are attached by name,\n")
	cli.printf("e.g. SELECT * FROM hr.main.staff;\n\n")
}

func (cli *CLI) showDatabases() {
	table := db.NewTable(cli.out)
	table.Header([]string{"name", "size", "active"})
	for _, info := range cli.instance.Databases() {
		active := ""
		if info.Active {
			active = "yes"
		}
		if info.Name == cli.database {
			active += " *"
		}
		table.Row([]string{info.Name, formatSize(info.Size), strings.TrimSpace(active)})
	}
	table.Render()
}

func (cli *CLI) showSchema(ctx context.Context) {
	description, err := cli.instance.Schema(ctx, cli.database)
	if err != nil {
		cli.errorf("Error: %v", err)
		return
	}

	table := db.NewTable(cli.out)
	table.Header([]string{"schema", "table", "column", "type", "nullable", "rows"})
	for _, schemaName := range description.SchemaNames() {
		schema := description.Schemas[schemaName]
		for _, tableName := range schema.TableNames() {
			t := schema.Tables[tableName]
			for i, column := range t.Columns {
				rows := ""
				if i == 0 {
					rows = fmt.Sprint(t.RowCount)
				}
				nullable := "NO"
				if column.Nullable {
					nullable = "YES"
				}
				table.Row([]string{schemaName, tableName, column.Name, column.Type, nullable, rows})
			}
		}
	}
	table.Render()
}

func (cli *CLI) importCSV(ctx context.Context, args []string) {
	source := args[0]
	var schema, table string
	if len(args) == 2 {
		schema, table, _ = strings.Cut(args[1], ".")
		if table == "" {
			schema, table = "", schema
		}
	}

	result, err := cli.instance.ImportURL(ctx, cli.database, schema, table, source)
	if err != nil {
		cli.errorf("Error: %v", err)
		return
	}
	cli.successf("%s (%d rows)", result.Message, result.Rows)
}

// readFile executes the statements of a SQL file in order and reports each.
func (cli *CLI) readFile(ctx context.Context, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	succeeded, failed := 0, 0
	for i, statement := range splitStatements(string(data)) {
		outcome, err := cli.instance.Query(ctx, cli.database, statement)
		if err != nil {
			cli.printf("%s[%d] ✗ %s%s\n", ErrorColor, i+1, truncate(statement, 50), ResetColor)
			cli.printf("      Error: %v\n", err)
			failed++
			continue
		}
		succeeded++
		cli.printf("%s[%d] ✓ %s (%d rows)%s\n", SuccessColor, i+1, truncate(statement, 50), len(outcome.Rows), ResetColor)
	}

	cli.printf("\n%s✓ Read complete: %d succeeded, %d failed%s\n", SuccessColor, succeeded, failed, ResetColor)
	return nil
}

func (cli *CLI) addToHistory(entry string) {
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == entry {
		return
	}
	cli.history = append(cli.history, entry)
	if len(cli.history) > maxHistory {
		cli.history = cli.history[len(cli.history)-maxHistory:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		cli.printf("No command history\n")
		return
	}
	start := max(len(cli.history)-20, 0)
	for i := start; i < len(cli.history); i++ {
		cli.printf("  %3d  %s\n", i+1, cli.history[i])
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".duckdesk_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}
	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.addToHistory(scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}
	file, err := os.Create(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	for _, entry := range cli.history {
		_, _ = file.WriteString(strings.ReplaceAll(entry, "\n", " ") + "\n")
	}
}

// splitStatements splits SQL text on semicolons outside of quotes and
// drops -- comments.
func splitStatements(content string) []string {
	var statements []string
	var current strings.Builder
	var quote byte

	for i := 0; i < len(content); i++ {
		ch := content[i]

		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '-' && i+1 < len(content) && content[i+1] == '-':
			for i < len(content) && content[i] != '\n' {
				i++
			}
			current.WriteByte('\n')
			continue
		case ch == ';':
			if statement := strings.TrimSpace(current.String()); statement != "" {
				statements = append(statements, statement)
			}
			current.Reset()
			continue
		}

		current.WriteByte(ch)
	}

	if statement := strings.TrimSpace(current.String()); statement != "" {
		statements = append(statements, statement)
	}
	return statements
}

// truncate shortens s to n runes with an ellipsis
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
