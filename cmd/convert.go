package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/order-convert/internal/company"
	"github.com/sells-group/order-convert/internal/export"
	"github.com/sells-group/order-convert/internal/lookup"
	"github.com/sells-group/order-convert/internal/model"
	"github.com/sells-group/order-convert/internal/normalize"
	"github.com/sells-group/order-convert/internal/pipeline"
	"github.com/sells-group/order-convert/internal/resolution"
	"github.com/sells-group/order-convert/internal/source"
	"github.com/sells-group/order-convert/internal/validate"
	"github.com/sells-group/order-convert/pkg/cuit"
)

// PhaseParse names the file reading phase in progress events.
const PhaseParse = "parse"

// maxParallelInputs bounds how many input files are read at once.
const maxParallelInputs = 4

var (
	convertInputs     []string
	convertFrequency  string
	convertReferrer   string
	convertOutput     string
	convertOnConflict string
	convertRegister   bool
	convertForce      bool
	convertLookup     bool
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert order files to the intake workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		freq := model.ParseFrequency(convertFrequency)
		if !freq.Known() {
			return eris.Errorf("frequency must be A, S or R, got %q", convertFrequency)
		}
		prompter, err := conflictPrompter(cmd, convertOnConflict)
		if err != nil {
			return err
		}

		rows, err := runPhase(ctx, PhaseParse, func(opts pipeline.Options) ([]model.OrderRow, error) {
			return parseInputs(ctx, source.NewReader(cfg.Source), convertInputs, freq, convertReferrer, opts.Progress)
		})
		if err != nil {
			return err
		}

		reg, err := openRegistry()
		if err != nil {
			return err
		}

		if convertLookup {
			client, err := lookup.NewHTTPClient(cfg.Lookup)
			if err != nil {
				return eris.Wrap(err, "lookup client")
			}
			filled := fillFromLookup(ctx, client, rows)
			zap.L().Info("cuit lookup finished", zap.Int("rows_filled", filled))
		}

		resolved, err := runPhase(ctx, pipeline.PhaseResolve, func(opts pipeline.Options) (pipeline.ResolveSummary, error) {
			return pipeline.AutoResolve(rows, reg, opts), nil
		})
		if err != nil {
			return err
		}
		zap.L().Info("registry matching finished",
			zap.Int("by_cuit", resolved.ByCUIT),
			zap.Int("by_name", resolved.ByName),
			zap.Int("unresolved", resolved.Unresolved),
		)

		norm := normalize.New(loadDictionary(ctx))
		val := validate.New()
		review, err := runPhase(ctx, pipeline.PhaseReview, func(opts pipeline.Options) (pipeline.ReviewSummary, error) {
			return pipeline.NormalizeAndValidate(rows, norm, val, opts), nil
		})
		if err != nil {
			return err
		}
		logReview(review)

		if convertRegister {
			svc, store, err := newResolutionService(ctx, reg, prompter)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			sum, err := registerEmployers(ctx, svc, reg, rows)
			if err != nil {
				return err
			}
			zap.L().Info("employers registered",
				zap.Int("saved", sum.Saved),
				zap.Int("skipped", sum.Skipped),
				zap.Int("unchanged", sum.Unchanged),
				zap.Int("pending", sum.Pending),
			)
		}

		if blocked := pipeline.Blocked(rows); len(blocked) > 0 && !convertForce {
			return eris.Errorf("%d of %d rows have validation errors; fix the input or use --force", len(blocked), len(rows))
		}

		out := convertOutput
		if out == "" {
			out = defaultOutputPath(convertInputs[0])
		}
		return export.NewXLSXExporter().Export(rows, out)
	},
}

func init() {
	convertCmd.Flags().StringSliceVarP(&convertInputs, "input", "i", nil, "order file to read (repeatable)")
	convertCmd.Flags().StringVarP(&convertFrequency, "frequency", "f", "", "exam frequency: A, S or R")
	convertCmd.Flags().StringVar(&convertReferrer, "referrer", "", "referrer written to every row")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "output workbook (default: next to the first input)")
	convertCmd.Flags().StringVar(&convertOnConflict, "on-conflict", "ask", "registry conflicts: ask, keep or ignore")
	convertCmd.Flags().BoolVar(&convertRegister, "register", false, "save employers to the registry")
	convertCmd.Flags().BoolVar(&convertForce, "force", false, "export even when rows have validation errors")
	convertCmd.Flags().BoolVar(&convertLookup, "lookup", false, "look up missing employer CUITs by contract")
	_ = convertCmd.MarkFlagRequired("input")
	_ = convertCmd.MarkFlagRequired("frequency")
	rootCmd.AddCommand(convertCmd)
}

// conflictPrompter maps the --on-conflict flag to a prompter.
func conflictPrompter(cmd *cobra.Command, mode string) (resolution.Prompter, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "ask":
		return newTerminalPrompter(cmd.InOrStdin(), cmd.OutOrStdout()), nil
	case "keep":
		return resolution.FixedPrompter{Kind: resolution.KindKeep}, nil
	case "ignore":
		return resolution.FixedPrompter{Kind: resolution.KindIgnore}, nil
	}
	return nil, eris.Errorf("--on-conflict must be ask, keep or ignore, got %q", mode)
}

// parseInputs reads every input concurrently and concatenates the rows in
// input order. An unreadable file is logged and skipped; the call fails only
// when nothing could be read.
func parseInputs(ctx context.Context, r *source.Reader, paths []string, freq model.Frequency, referrer string, progress pipeline.ProgressFunc) ([]model.OrderRow, error) {
	results := make([]*model.ImportResult, len(paths))

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelInputs)
	for i, path := range paths {
		g.Go(func() error {
			results[i] = r.Parse(gctx, path, freq, referrer)
			if progress != nil {
				mu.Lock()
				done++
				progress(pipeline.Progress{Phase: PhaseParse, Done: done, Total: len(paths)})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	var rows []model.OrderRow
	readable := 0
	for _, res := range results {
		log := zap.L().With(zap.String("import_id", res.ID), zap.String("source", res.Source))
		for _, e := range res.Errors {
			log.Error("source unreadable", zap.String("error", e))
		}
		for _, w := range res.Warnings {
			log.Warn("source warning", zap.String("warning", w))
		}
		if res.HasErrors() {
			continue
		}
		readable++
		log.Info("source parsed",
			zap.Int("rows", res.TotalRows()),
			zap.Int("companies", res.UniqueCompanies()),
			zap.Int("workers", res.UniqueWorkers()),
		)
		rows = append(rows, res.Rows...)
	}

	if readable == 0 {
		return nil, eris.New("no input file could be read")
	}
	return rows, nil
}

// fillFromLookup asks the lookup service for the CUIT of every row that has
// a contract but no employer CUIT. Each contract is asked once; a hit is
// applied like a manual entry. It returns how many rows were filled.
func fillFromLookup(ctx context.Context, client lookup.Client, rows []model.OrderRow) int {
	asked := make(map[string]string)
	filled := 0
	for i := range rows {
		contract := strings.TrimSpace(rows[i].Contract)
		if cuit.Digits(rows[i].EmployerCUIT) != "" || contract == "" {
			continue
		}

		found, ok := asked[contract]
		if !ok {
			var err error
			found, err = client.LookupCUIT(ctx, contract)
			if err != nil {
				zap.L().Warn("cuit lookup failed", zap.String("contract", contract), zap.Error(err))
			}
			asked[contract] = found
		}
		if found == "" {
			continue
		}
		filled += 1 + pipeline.ApplyLookupResult(rows, i, found)
	}
	return filled
}

type registerSummary struct {
	Saved     int
	Skipped   int
	Unchanged int
	Pending   int
}

// registerEmployers saves the employer of every valid row through the
// reconciliation service, once per (CUIT, site). Rows whose employer is
// already stored as-is are not saved again. Registry failures abort.
func registerEmployers(ctx context.Context, svc *resolution.Service, reg *company.Registry, rows []model.OrderRow) (registerSummary, error) {
	var sum registerSummary
	seen := make(map[resolution.Key]bool)
	for _, row := range rows {
		if row.ErrorDescription != "" {
			continue
		}
		rec := pipeline.CompanyFromRow(row)
		if rec.Digits() == "" {
			continue
		}
		key := resolution.KeyFor(rec)
		if seen[key] {
			continue
		}
		seen[key] = true

		if stored(reg, rec) {
			sum.Unchanged++
			continue
		}

		res, err := svc.Save(ctx, rec)
		if errors.Is(err, resolution.ErrDecisionRequired) {
			sum.Pending++
			zap.L().Warn("employer not registered, decision required", zap.String("cuit", rec.CUIT))
			continue
		}
		if err != nil {
			return sum, eris.Wrapf(err, "register employer %s", rec.CUIT)
		}
		if res.Outcome == resolution.OutcomeSaved {
			sum.Saved++
		} else {
			sum.Skipped++
		}
	}
	return sum, nil
}

// stored reports whether the registry holds a record identical to rec at the
// same site.
func stored(reg *company.Registry, rec company.Record) bool {
	site := rec.Site()
	for _, e := range reg.SearchByCUIT(rec.CUIT) {
		if e.Site() != site {
			continue
		}
		if sameRecord(e, rec) {
			return true
		}
	}
	return false
}

func sameRecord(a, b company.Record) bool {
	eq := func(x, y string) bool { return strings.TrimSpace(x) == strings.TrimSpace(y) }
	return a.Digits() == b.Digits() &&
		eq(a.CIIU, b.CIIU) && eq(a.Name, b.Name) && eq(a.PostalCode, b.PostalCode) &&
		eq(a.Phone, b.Phone) && eq(a.Fax, b.Fax) && eq(a.Email, b.Email)
}

func logReview(sum pipeline.ReviewSummary) {
	for _, w := range sum.Warnings {
		zap.L().Debug("normalization", zap.String("warning", w))
	}
	for _, e := range sum.Errors {
		zap.L().Warn("validation", zap.String("error", e))
	}
	zap.L().Info("review finished",
		zap.Int("warnings", len(sum.Warnings)),
		zap.Int("errors", len(sum.Errors)),
		zap.Int("invalid_rows", sum.Invalid),
	)
}

// defaultOutputPath places the output next to input as NAME_convertido.xlsx.
func defaultOutputPath(input string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), base+"_convertido.xlsx")
}
