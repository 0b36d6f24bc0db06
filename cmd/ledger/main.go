package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"github.com/straye-as/sheet-ledger/internal/config"
	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/importer"
	"github.com/straye-as/sheet-ledger/internal/logger"
	"github.com/straye-as/sheet-ledger/internal/matching"
	"github.com/straye-as/sheet-ledger/internal/repository"
	"github.com/straye-as/sheet-ledger/internal/service"
	"github.com/straye-as/sheet-ledger/internal/storage"
	"github.com/straye-as/sheet-ledger/internal/tablestore"
	"go.uber.org/zap"
)

const usage = `usage: ledger <command> [flags]

commands:
  show                          print the stock balance and event summary (default)
  import-materials <file>       add stock from an xlsx or csv file
  import-orders <file>          add orders and parts from an xlsx file
  import-events <file>          merge a laser cutting log into the event table
  reconcile                     write off material for pending events
  edit-event --row <n>          change the order, material or part of an event row
  delete-events --rows <n,...>  remove event rows
  clear-events                  empty the event table
  export-events                 store the event log with its statuses
  export-balance                store the balance workbook
  export-laser-task             store the laser task workbook
  template <materials|orders>   store an empty import workbook
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg       *config.Config
	stock     *service.StockService
	orders    *service.OrderService
	reconcile *service.ReconciliationService
	imports   *service.ImportService
	exports   *service.ExportService
}

func run(args []string) error {
	ctx := context.Background()

	command := "show"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	if command == "help" || command == "-h" || command == "--help" {
		fmt.Print(usage)
		return nil
	}

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	baseLog, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = baseLog.Sync() }()

	// In development secrets come from the environment, otherwise from Key Vault
	cfg, err := config.LoadWithSecrets(ctx, baseLog)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	log := logger.WithCommand(baseLog, command, cfg.Store.Driver)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	switch command {
	case "show":
		return a.show(ctx)
	case "import-materials":
		return a.importMaterials(ctx, args)
	case "import-orders":
		return a.importOrders(ctx, args)
	case "import-events":
		return a.importEvents(ctx, args)
	case "reconcile":
		return a.reconcileEvents(ctx, args)
	case "edit-event":
		return a.editEvent(ctx, args)
	case "delete-events":
		return a.deleteEvents(ctx, args)
	case "clear-events":
		return a.clearEvents(ctx)
	case "export-events":
		return a.exportEvents(ctx)
	case "export-balance":
		return a.exportBalance(ctx, args)
	case "export-laser-task":
		return a.exportLaserTask(ctx, args)
	case "template":
		return a.template(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	store, err := tablestore.NewStore(ctx, &cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open table store: %w", err)
	}
	log.Info("Table store opened", zap.String("driver", cfg.Store.Driver), zap.String("path", cfg.Store.Path))

	artifacts, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	matcher, err := matching.NewHeuristic(cfg.Reconciliation.OrderTokenPattern, cfg.Reconciliation.DimensionTolerance)
	if err != nil {
		return nil, fmt.Errorf("failed to build event matcher: %w", err)
	}

	repo := repository.New(store, log)
	stock := service.NewStockService(repo, log)
	writeOffs := service.NewWriteOffService(repo, log)
	reconcile := service.NewReconciliationService(repo, matcher, writeOffs, log)

	return &app{
		cfg:       cfg,
		stock:     stock,
		orders:    service.NewOrderService(repo, log),
		reconcile: reconcile,
		imports:   service.NewImportService(repo, reconcile, cfg.Reconciliation.Separator(), log),
		exports:   service.NewExportService(repo, stock, artifacts, log),
	}, nil
}

func (a *app) show(ctx context.Context) error {
	rows, err := a.stock.Balance(ctx, a.cfg.Preferences)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMATERIAL\tON HAND\tRESERVED\tWRITTEN OFF\tAVAILABLE\tAREA")
	for _, r := range rows {
		mark := ""
		if r.Overdrawn {
			mark = " !"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d%s\t%.2f\n",
			r.StockID, r.Material, r.OnHand, r.Reserved, r.WrittenOff, r.Available, mark, r.Area)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	orders, err := a.orders.List(ctx, a.cfg.Preferences)
	if err != nil {
		return err
	}
	summary, err := a.reconcile.Summary(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n%d orders, laser events: %d written off, %d manual, %d pending\n",
		len(orders), summary.WrittenOff, summary.Manual, summary.Pending)
	return nil
}

func (a *app) importMaterials(ctx context.Context, args []string) error {
	path, err := fileArg("import-materials", args)
	if err != nil {
		return err
	}
	result, err := a.imports.ImportMaterials(ctx, path)
	if err != nil {
		return err
	}
	fmt.Printf("Created %d, merged %d\n", result.Created, result.Merged)
	printIssues("error", result.Errors)
	return nil
}

func (a *app) importOrders(ctx context.Context, args []string) error {
	path, err := fileArg("import-orders", args)
	if err != nil {
		return err
	}
	result, err := a.imports.ImportOrders(ctx, path)
	if err != nil {
		return err
	}
	fmt.Printf("Created %d orders with %d parts\n", result.Created, result.Parts)
	printIssues("warning", result.Warnings)
	printIssues("error", result.Errors)
	return nil
}

func (a *app) importEvents(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("import-events", pflag.ContinueOnError)
	process := fs.Bool("reconcile", false, "reconcile pending rows after the import")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := fileArg("import-events", fs.Args())
	if err != nil {
		return err
	}

	stats, err := a.imports.ImportEvents(ctx, path)
	if err != nil {
		return err
	}
	fmt.Printf("%d rows: %d new, %d kept, %d dropped\n", stats.Total, stats.New, stats.Kept, stats.Dropped)
	if !*process {
		return nil
	}
	report, err := a.reconcile.ProcessPending(ctx)
	printReport(report)
	return err
}

func (a *app) reconcileEvents(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("reconcile", pflag.ContinueOnError)
	rows := fs.IntSlice("rows", nil, "event rows to process (default: every pending row)")
	manual := fs.IntSlice("mark-manual", nil, "mark rows as handled by hand")
	unmark := fs.IntSlice("unmark-manual", nil, "return manual rows to pending")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case len(*manual) > 0:
		n, err := a.reconcile.MarkManual(ctx, *manual)
		if err != nil {
			return err
		}
		fmt.Printf("Marked %d rows manual\n", n)
		return nil
	case len(*unmark) > 0:
		n, err := a.reconcile.UnmarkManual(ctx, *unmark)
		if err != nil {
			return err
		}
		fmt.Printf("Returned %d rows to pending\n", n)
		return nil
	}

	var (
		report *domain.ReconcileReport
		err    error
	)
	if len(*rows) > 0 {
		report, err = a.reconcile.ProcessRows(ctx, *rows)
	} else {
		report, err = a.reconcile.ProcessPending(ctx)
	}
	printReport(report)
	return err
}

func (a *app) editEvent(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("edit-event", pflag.ContinueOnError)
	row := fs.Int("row", -1, "event row to edit")
	order := fs.String("order", "", "order field")
	material := fs.String("material", "", "material field")
	materialQty := fs.String("material-qty", "", "material quantity")
	part := fs.String("part", "", "part name")
	partQty := fs.String("part-qty", "", "part quantity")
	if err := fs.Parse(args); err != nil {
		return err
	}

	events, err := a.reconcile.Events(ctx)
	if err != nil {
		return err
	}
	if *row < 0 || *row >= len(events) {
		return fmt.Errorf("edit-event: row %d out of range (%d rows)", *row, len(events))
	}
	// flags left unset keep the current value
	e := events[*row]
	req := domain.UpdateEventRequest{
		Order:            e.Order,
		Material:         e.Material,
		MaterialQuantity: e.MaterialQuantity,
		Part:             e.Part,
		PartQuantity:     e.PartQuantity,
	}
	if fs.Changed("order") {
		req.Order = *order
	}
	if fs.Changed("material") {
		req.Material = *material
	}
	if fs.Changed("material-qty") {
		req.MaterialQuantity = *materialQty
	}
	if fs.Changed("part") {
		req.Part = *part
	}
	if fs.Changed("part-qty") {
		req.PartQuantity = *partQty
	}

	if _, err := a.reconcile.EditEvent(ctx, *row, req); err != nil {
		return err
	}
	fmt.Printf("Row %d updated\n", *row)
	return nil
}

func (a *app) deleteEvents(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("delete-events", pflag.ContinueOnError)
	rows := fs.IntSlice("rows", nil, "event rows to delete")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(*rows) == 0 {
		return fmt.Errorf("delete-events requires --rows")
	}
	n, err := a.reconcile.DeleteEvents(ctx, *rows)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d rows\n", n)
	return nil
}

func (a *app) clearEvents(ctx context.Context) error {
	n, err := a.reconcile.ClearEvents(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Cleared %d rows\n", n)
	return nil
}

func (a *app) exportEvents(ctx context.Context) error {
	artifact, err := a.exports.ExportEvents(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Laser log saved to %s\n", artifact.Location)
	return nil
}

func (a *app) exportBalance(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("export-balance", pflag.ContinueOnError)
	hideZero := fs.Bool("hide-zero", a.cfg.Preferences.HideZeroBalance, "leave out items with nothing on hand or reserved")
	if err := fs.Parse(args); err != nil {
		return err
	}
	prefs := a.cfg.Preferences
	prefs.HideZeroBalance = *hideZero

	artifact, err := a.exports.ExportBalance(ctx, prefs)
	if err != nil {
		return err
	}
	fmt.Printf("Balance saved to %s\n", artifact.Location)
	return nil
}

func (a *app) exportLaserTask(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("export-laser-task", pflag.ContinueOnError)
	orders := fs.IntSlice("orders", nil, "order ids (default: every order in progress)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	artifact, warnings, err := a.exports.ExportLaserTask(ctx, *orders)
	for _, w := range warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Laser task saved to %s\n", artifact.Location)
	return nil
}

func (a *app) template(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("template requires a kind: %s or %s", importer.TemplateMaterials, importer.TemplateOrders)
	}
	artifact, err := a.exports.ExportTemplate(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Template saved to %s\n", artifact.Location)
	return nil
}

func fileArg(command string, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s requires exactly one file", command)
	}
	return args[0], nil
}

func printIssues(kind string, issues []domain.RowIssue) {
	for _, is := range issues {
		fmt.Printf("%s: row %d: %s\n", kind, is.Row, is.Message)
	}
}

func printReport(r *domain.ReconcileReport) {
	if r == nil {
		return
	}
	fmt.Printf("Run %s: %d written off, %d failed\n", r.RunID, r.Processed, r.Failed)
	for _, o := range r.Outcomes {
		switch {
		case o.Err != nil:
			fmt.Printf("  row %d: %v\n", o.Row, o.Err)
		case o.Message != "":
			fmt.Printf("  row %d: %s\n", o.Row, o.Message)
		}
	}
}
