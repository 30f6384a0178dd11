package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/snf-deals/internal/taxonomy"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Contract taxonomy reference data",
}

var taxonomyFlags struct {
	dbPath       string
	taxonomyFile string
	namingFile   string
}

var taxonomyImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the taxonomy and naming workbooks into SQLite",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if taxonomyFlags.dbPath != "" {
			cfg.Taxonomy.SQLitePath = taxonomyFlags.dbPath
		}
		if taxonomyFlags.taxonomyFile != "" {
			cfg.Taxonomy.TaxonomyFile = taxonomyFlags.taxonomyFile
		}
		if taxonomyFlags.namingFile != "" {
			cfg.Taxonomy.NamingFile = taxonomyFlags.namingFile
		}
		if err := cfg.Validate("taxonomy"); err != nil {
			return err
		}

		sqlDB, err := taxonomy.OpenSQLite(cfg.Taxonomy.SQLitePath)
		if err != nil {
			return err
		}
		defer sqlDB.Close() //nolint:errcheck

		sum, err := taxonomy.NewImporter(sqlDB, nil).Import(ctx, cfg.Taxonomy.TaxonomyFile, cfg.Taxonomy.NamingFile)
		if err != nil {
			return err
		}
		zap.L().Info("taxonomy import complete",
			zap.String("db", cfg.Taxonomy.SQLitePath),
			zap.Any("counts", sum.Counts),
			zap.Int("skipped_rows", sum.SkippedRows),
		)
		return printJSON(cmd, sum)
	},
}

func init() {
	f := taxonomyImportCmd.Flags()
	f.StringVar(&taxonomyFlags.dbPath, "db", "", "SQLite database path (default from config)")
	f.StringVar(&taxonomyFlags.taxonomyFile, "taxonomy", "", "contract taxonomy workbook (default from config)")
	f.StringVar(&taxonomyFlags.namingFile, "naming", "", "naming convention workbook (default from config)")
	taxonomyCmd.AddCommand(taxonomyImportCmd)
	rootCmd.AddCommand(taxonomyCmd)
}
