package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seedspec/seedspec"
	"github.com/seedspec/seedspec/internal/db"
	"github.com/seedspec/seedspec/internal/formatter"
	"github.com/seedspec/seedspec/internal/schema"
)

var (
	specPath        string
	scenarioPattern string
	casePattern     string
	dbURL           string
	schemaName      string
	schemaFile      string
	actualsFile     string
	tables          string
	outputFile      string
	outputDir       string
)

var rootCmd = &cobra.Command{
	Use:   "seedspec",
	Short: "Generate test fixture data and verify transformation outputs",
	Long: `Seedspec compiles a declaration of sources, targets, and test cases into
generated source datasets, loads them into a test database, and verifies the
transformed outputs against the declared expectations.`,
	SilenceUsage: true,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate source datasets from a declaration",
	RunE:  runGenerate,
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Generate source datasets and load them into a database",
	RunE:  runLoad,
}

var fetchActualsCmd = &cobra.Command{
	Use:   "fetch-actuals",
	Short: "Fetch target tables from a database into an actuals file",
	RunE:  runFetchActuals,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify actual target data against the declared expectations",
	RunE:  runVerify,
}

var fetchSchemaCmd = &cobra.Command{
	Use:   "fetch-schema",
	Short: "Reflect table definitions from a database into a snapshot file",
	RunE:  runFetchSchema,
}

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Rebuild tables in a test database from a schema snapshot",
	RunE:  runInitDB,
}

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Render a declaration as markdown documentation",
	RunE:  runDoc,
}

func init() {
	for _, cmd := range []*cobra.Command{generateCmd, loadCmd, fetchActualsCmd, verifyCmd, docCmd} {
		cmd.Flags().StringVarP(&specPath, "spec", "s", "", "Declaration file or directory (required)")
		_ = cmd.MarkFlagRequired("spec")
	}
	for _, cmd := range []*cobra.Command{generateCmd, loadCmd, verifyCmd} {
		cmd.Flags().StringVar(&scenarioPattern, "scenario", "", "Only run scenarios matching this regex")
		cmd.Flags().StringVar(&casePattern, "case", "", "Only run cases matching this regex")
	}
	for _, cmd := range []*cobra.Command{loadCmd, fetchActualsCmd, fetchSchemaCmd, initDBCmd} {
		cmd.Flags().StringVar(&dbURL, "db", "", "Database URL: postgres://, mysql://, or sqlite:// (required)")
		_ = cmd.MarkFlagRequired("db")
	}

	generateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write all datasets to one JSON file (default: stdout)")
	generateCmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Write one JSON file per source into this directory")

	fetchActualsCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Actuals JSON file (default: stdout)")

	verifyCmd.Flags().StringVar(&dbURL, "db", "", "Fetch actuals from this database URL")
	verifyCmd.Flags().StringVar(&actualsFile, "actuals", "", "Actuals JSON file written by fetch-actuals")

	fetchSchemaCmd.Flags().StringVarP(&outputFile, "output", "o", "schema.yml", "Snapshot file to write")
	fetchSchemaCmd.Flags().StringVar(&schemaName, "schema-name", "", "Database schema to reflect (postgres/mysql)")
	fetchSchemaCmd.Flags().StringVarP(&tables, "tables", "t", "", "Specific tables (comma-separated, optional)")

	initDBCmd.Flags().StringVar(&schemaFile, "schema-file", "schema.yml", "Snapshot file written by fetch-schema")

	docCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	rootCmd.AddCommand(generateCmd, loadCmd, fetchActualsCmd, verifyCmd, fetchSchemaCmd, initDBCmd, docCmd)
}

// loadSuite compiles the declaration and applies scenario and case filters.
func loadSuite() (*seedspec.Suite, error) {
	suite, err := seedspec.Load(specPath)
	if err != nil {
		return nil, err
	}
	if err := suite.Filter(scenarioPattern, casePattern); err != nil {
		return nil, err
	}
	return suite, nil
}

// outputWriter opens the --output file, or stdout when unset.
func outputWriter() (*os.File, func(), error) {
	if outputFile == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func parseTableList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func runGenerate(cmd *cobra.Command, args []string) error {
	suite, err := loadSuite()
	if err != nil {
		return err
	}
	sources, err := suite.SourceData()
	if err != nil {
		return err
	}

	if outputDir != "" {
		return formatter.NewMultiFileFormatter(outputDir).Format(sources)
	}

	w, done, err := outputWriter()
	if err != nil {
		return err
	}
	defer done()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sources)
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	suite, err := loadSuite()
	if err != nil {
		return err
	}
	sources, err := suite.SourceData()
	if err != nil {
		return err
	}

	conn, err := db.Open(ctx, dbURL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(ctx) }()

	if err := db.LoadSources(ctx, conn, sources); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "loaded %d sources\n", len(sources))
	return nil
}

func runFetchActuals(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	suite, err := seedspec.Load(specPath)
	if err != nil {
		return err
	}

	conn, err := db.Open(ctx, dbURL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(ctx) }()

	actuals, err := db.FetchActuals(ctx, conn, suite.TargetNames())
	if err != nil {
		return err
	}

	w, done, err := outputWriter()
	if err != nil {
		return err
	}
	defer done()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(actuals)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	suite, err := loadSuite()
	if err != nil {
		return err
	}

	var actuals map[string]seedspec.Dataset
	switch {
	case actualsFile != "":
		raw, err := os.ReadFile(actualsFile)
		if err != nil {
			return fmt.Errorf("failed to read actuals file: %w", err)
		}
		if err := json.Unmarshal(raw, &actuals); err != nil {
			return fmt.Errorf("failed to parse actuals file: %w", err)
		}
	case dbURL != "":
		conn, err := db.Open(ctx, dbURL)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close(ctx) }()

		actuals, err = db.FetchActuals(ctx, conn, suite.TargetNames())
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("one of --actuals or --db must be specified")
	}

	report, err := suite.VerifyExpectations(actuals)
	if err != nil {
		return err
	}
	if err := formatter.NewReportFormatter(os.Stdout).Format(report); err != nil {
		return err
	}
	if !report.Passed() {
		return fmt.Errorf("%d case(s) failed", len(report.Failed()))
	}
	return nil
}

func runFetchSchema(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	conn, err := db.Open(ctx, dbURL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(ctx) }()

	snap, err := db.NewReflector(conn, schemaName).Reflect(ctx, parseTableList(tables))
	if err != nil {
		return err
	}
	if err := snap.WriteFile(outputFile); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %d tables to %s\n", len(snap.Tables), outputFile)
	return nil
}

func runInitDB(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	snap, err := schema.ReadFile(schemaFile)
	if err != nil {
		return err
	}

	conn, err := db.Open(ctx, dbURL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(ctx) }()

	if err := db.InitTestDB(ctx, conn, snap); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "created %d tables\n", len(snap.Tables))
	return nil
}

func runDoc(cmd *cobra.Command, args []string) error {
	suite, err := seedspec.Load(specPath)
	if err != nil {
		return err
	}

	w, done, err := outputWriter()
	if err != nil {
		return err
	}
	defer done()

	return formatter.NewMarkdownFormatter(w).Format(suite.Document())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
