package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/partselect/backend/config"
	"github.com/partselect/backend/internal/bootstrap"
	httpDelivery "github.com/partselect/backend/internal/delivery/http"
	"github.com/partselect/backend/internal/domain"
	"github.com/partselect/backend/internal/infrastructure/knowledge"
	"github.com/partselect/backend/internal/usecase"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type rootOptions struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "partselect",
		Short: "Electronic component selection and price comparison",
		Long: `partselect turns a free-text requirement such as "3.3V LDO SOT-223" into
ranked component recommendations with compatibility scores, vendor price
comparison, alternatives and a procurement list.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline activity to stderr")

	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(selectCmd(opts))
	rootCmd.AddCommand(searchCmd(opts))
	rootCmd.AddCommand(pricesCmd(opts))
	rootCmd.AddCommand(bomCmd(opts))
	rootCmd.AddCommand(knowledgeCmd(opts))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// loadApp builds the application. CLI runs log warnings only unless --verbose.
func (o *rootOptions) loadApp(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg, err := config.LoadFile(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !o.verbose && cmd.Name() != "serve" {
		cfg.Log.Level = "warn"
	}
	logger := bootstrap.NewLogger(cfg.Log, cmd.ErrOrStderr())
	return bootstrap.New(cfg, logger)
}

func serveCmd(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if port != "" {
				app.Config.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			app.Start(ctx)

			handler := httpDelivery.NewHandler(app.Service, app.Logger)
			router := httpDelivery.SetupRouter(app.Config, handler, app.Metrics.Handler(), app.Logger)
			return httpDelivery.Serve(ctx, ":"+app.Config.Server.Port, router, app.Logger)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides server.port)")
	return cmd
}

type selectOptions struct {
	topK        int
	constraints []string
	sources     []string
	quantities  []string
	references  []string
}

func (o *selectOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&o.topK, "top-k", "k", 0, "number of recommendations (1-20, default from config)")
	cmd.Flags().StringArrayVarP(&o.constraints, "constraint", "c", nil, "explicit constraint key=value (voltage, current, package, category)")
	cmd.Flags().StringSliceVar(&o.sources, "source", nil, "sources to query in priority order")
}

func (o *selectOptions) request(args []string) (domain.SelectRequest, error) {
	constraints, err := parseKeyValues(o.constraints)
	if err != nil {
		return domain.SelectRequest{}, fmt.Errorf("--constraint: %w", err)
	}
	references, err := parseKeyValues(o.references)
	if err != nil {
		return domain.SelectRequest{}, fmt.Errorf("--ref: %w", err)
	}
	quantities, err := parseQuantities(o.quantities)
	if err != nil {
		return domain.SelectRequest{}, fmt.Errorf("--qty: %w", err)
	}
	if o.topK < 0 || o.topK > 20 {
		return domain.SelectRequest{}, fmt.Errorf("--top-k must be between 1 and 20")
	}

	return domain.SelectRequest{
		Query:       strings.Join(args, " "),
		Constraints: constraints,
		TopK:        o.topK,
		Sources:     o.sources,
		Quantities:  quantities,
		References:  references,
	}, nil
}

func selectCmd(opts *rootOptions) *cobra.Command {
	sel := &selectOptions{}
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "select [query...]",
		Short: "Recommend components for a requirement",
		Example: `  partselect select 3.3V LDO SOT-223
  partselect select "dual op-amp" --constraint package=SOP-8 --top-k 3 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := sel.request(args)
			if err != nil {
				return err
			}
			app, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			result := app.Service.Select(cmd.Context(), req)
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, result)
			}

			fmt.Fprintln(out, result.AnalysisReport)
			if len(result.CompatibilityWarnings) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Warnings:")
				for _, w := range result.CompatibilityWarnings {
					fmt.Fprintf(out, "  - %s\n", w)
				}
			}
			return nil
		},
	}

	sel.addFlags(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func searchCmd(opts *rootOptions) *cobra.Command {
	var (
		limit    int
		category string
		sources  []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "search [keyword...]",
		Short: "List catalog matches without scoring",
		Example: `  partselect search LDO --limit 5
  partselect search --category analog --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && strings.TrimSpace(category) == "" {
				return fmt.Errorf("a keyword or --category is required")
			}
			if limit < 0 || limit > 50 {
				return fmt.Errorf("--limit must be between 1 and 50")
			}
			app, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Service.Search(cmd.Context(), domain.SearchQuery{
				Term:     strings.Join(args, " "),
				Category: category,
				Limit:    limit,
				Sources:  sources,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, result)
			}
			return writeSearchTable(out, result)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "maximum number of results (1-50, default 10)")
	cmd.Flags().StringVar(&category, "category", "", "only list parts in this category")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "sources to query in priority order")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func pricesCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "prices [part-number]",
		Short: "Compare vendor prices and stock for one part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			summary, err := app.Service.ComparePrices(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, summary)
			}
			return writePriceTable(out, summary)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func bomCmd(opts *rootOptions) *cobra.Command {
	sel := &selectOptions{}
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "bom [query...]",
		Short: "Build a procurement list from the recommendations",
		Example: `  partselect bom 3.3V LDO --top-k 2 --qty LD1117V33=10 --ref LD1117V33=U3 --csv > bom.csv`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := sel.request(args)
			if err != nil {
				return err
			}
			app, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			result := app.Service.Select(cmd.Context(), req)
			out := cmd.OutOrStdout()
			if asCSV {
				return usecase.WriteProcurementCSV(out, result.ProcurementItems)
			}
			return writeBOMTable(out, result)
		},
	}

	sel.addFlags(cmd)
	cmd.Flags().StringArrayVar(&sel.quantities, "qty", nil, "quantity per part, PART=N")
	cmd.Flags().StringArrayVar(&sel.references, "ref", nil, "designator per part, PART=REF")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "write the list as CSV")
	return cmd
}

// openKnowledge returns the configured knowledge store
func (o *rootOptions) openKnowledge(cmd *cobra.Command) (*bootstrap.App, *knowledge.Store, error) {
	app, err := o.loadApp(cmd)
	if err != nil {
		return nil, nil, err
	}
	if app.Knowledge == nil {
		app.Close()
		return nil, nil, fmt.Errorf("knowledge.path not configured")
	}
	return app, app.Knowledge, nil
}

func knowledgeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "knowledge",
		Aliases: []string{"kb"},
		Short:   "Manage the datasheet knowledge index",
	}

	cmd.AddCommand(knowledgeAddCmd(opts))
	cmd.AddCommand(knowledgeImportCmd(opts))
	cmd.AddCommand(knowledgeRemoveCmd(opts))
	cmd.AddCommand(knowledgeListCmd(opts))
	return cmd
}

func knowledgeAddCmd(opts *rootOptions) *cobra.Command {
	var (
		data  knowledge.Datasheet
		price float64
		stock int
	)

	cmd := &cobra.Command{
		Use:     "add [part-number]",
		Short:   "Index one part, replacing any existing entry",
		Example: `  partselect knowledge add XC6206P332MR --category power --voltage 3.3V --package SOT-23 --alt AP2112K-3.3`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("price") {
				if price < 0 {
					return fmt.Errorf("--price must not be negative")
				}
				data.Price = &price
			}
			if cmd.Flags().Changed("stock") {
				if stock < 0 {
					return fmt.Errorf("--stock must not be negative")
				}
				data.Stock = &stock
			}

			app, store, err := opts.openKnowledge(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := store.Put(args[0], data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%d parts indexed)\n", domain.CanonicalID(args[0]), store.Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&data.Description, "description", "", "part description")
	cmd.Flags().StringVar(&data.Manufacturer, "manufacturer", "", "manufacturer name")
	cmd.Flags().StringVar(&data.Category, "category", "", "part category")
	cmd.Flags().StringVar(&data.Voltage, "voltage", "", "voltage rating, e.g. 3.3V")
	cmd.Flags().StringVar(&data.Current, "current", "", "current rating, e.g. 500mA")
	cmd.Flags().StringVar(&data.Package, "package", "", "package, e.g. SOT-223")
	cmd.Flags().StringVar(&data.DatasheetURL, "datasheet-url", "", "datasheet link")
	cmd.Flags().Float64Var(&price, "price", 0, "headline unit price")
	cmd.Flags().IntVar(&stock, "stock", 0, "headline stock")
	cmd.Flags().StringSliceVar(&data.Alternatives, "alt", nil, "alternative part numbers")
	return cmd
}

func knowledgeImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Index every part in a YAML or JSON file keyed by part number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read import file: %w", err)
			}
			var parts map[string]knowledge.Datasheet
			if err := yaml.Unmarshal(raw, &parts); err != nil {
				return fmt.Errorf("failed to parse import file: %w", err)
			}

			app, store, err := opts.openKnowledge(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			count, err := store.Import(parts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d parts (%d indexed)\n", count, store.Len())
			return nil
		},
	}
}

func knowledgeRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm [part-number]",
		Aliases: []string{"remove"},
		Short:   "Remove a part from the index",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, store, err := opts.openKnowledge(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			id := domain.CanonicalID(args[0])
			existed, err := store.Delete(id)
			if err != nil {
				return err
			}
			if !existed {
				return fmt.Errorf("%s is not indexed", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
			return nil
		},
	}
}

func knowledgeListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List indexed parts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, store, err := opts.openKnowledge(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PART\tCATEGORY\tMANUFACTURER\tADDED")
			for _, pn := range store.PartNumbers() {
				e, _ := store.Get(pn)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.PartNumber, e.Data.Category, e.Data.Manufacturer, e.AddedAt)
			}
			return tw.Flush()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "partselect %s\n", httpDelivery.Version)
		},
	}
}

// parseKeyValues turns ["k=v", ...] into a map; keys are lower-cased
func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		out[strings.ToLower(key)] = strings.TrimSpace(value)
	}
	return out, nil
}

func parseQuantities(pairs []string) (map[string]int, error) {
	values, err := parseKeyValues(pairs)
	if err != nil || values == nil {
		return nil, err
	}
	out := make(map[string]int, len(values))
	for part, raw := range values {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("quantity for %s must be a positive integer, got %q", part, raw)
		}
		out[part] = n
	}
	return out, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("$%.4f", *p)
}

func formatStock(s *int) string {
	if s == nil {
		return "-"
	}
	return strconv.Itoa(*s)
}

func writePriceTable(w io.Writer, summary *domain.PriceSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VENDOR\tPRICE\tSTOCK\tSOURCE")
	for _, q := range summary.Quotes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", q.Vendor, formatPrice(q.Price), formatStock(q.Stock), q.Source)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(summary.Quotes) == 0 {
		fmt.Fprintf(w, "\nNo offers found for %s\n", summary.PartNumber)
	} else if summary.BestPrice != nil {
		fmt.Fprintf(w, "\nBest: %s at %s, total stock %d\n", summary.BestVendor, formatPrice(summary.BestPrice), summary.TotalStock)
	}
	if len(summary.Failures) > 0 {
		fmt.Fprintf(w, "Unavailable sources: %s\n", strings.Join(summary.Failures, ", "))
	}
	return nil
}

func writeSearchTable(w io.Writer, result *domain.SearchResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PART\tMANUFACTURER\tCATEGORY\tDESCRIPTION\tSOURCES")
	for _, c := range result.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			c.PartNumber, c.Manufacturer, c.Category, c.Description, strings.Join(c.Sources, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(result.Results) == 0 {
		fmt.Fprintln(w, "\nNo matching parts")
	}
	if len(result.FailedSources) > 0 {
		fmt.Fprintf(w, "Unavailable sources: %s\n", strings.Join(result.FailedSources, ", "))
	}
	return nil
}

func writeBOMTable(w io.Writer, result *domain.SelectionResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REF\tPART\tQTY\tUNIT\tTOTAL\tMANUFACTURER")
	for _, item := range result.ProcurementItems {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			item.Reference, item.PartNumber, item.Quantity,
			formatPrice(item.UnitPrice), formatPrice(item.TotalPrice), item.Manufacturer)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nEstimated total: $%.2f\n", result.TotalEstimatedCost)
	return nil
}
