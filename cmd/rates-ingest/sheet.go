package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/laundry-billing/internal/domain/tariff"
)

// row is one parsed line of a rate sheet.
type row struct {
	branch string
	rate   tariff.SpecialRate
}

type rateKey struct {
	branch  string
	item    string
	service tariff.RateLabel
}

// readSheets parses every file concurrently. The result keeps file order so
// later sheets can override earlier ones.
func readSheets(ctx context.Context, files []string) ([][]row, error) {
	sheets := make([][]row, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			rows, err := readSheet(ctx, path)
			if err != nil {
				return errors.Wrapf(err, "sheet %s", path)
			}
			slog.Info("sheet parsed", slog.String("file", path), slog.Int("rows", len(rows)))
			sheets[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sheets, nil
}

func readSheet(ctx context.Context, path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	return parseSheet(ctx, gz)
}

// parseSheet reads "branch_id,item_id,service,rate" records. A header row
// is skipped; blank lines and lines starting with # are ignored.
func parseSheet(ctx context.Context, r io.Reader) ([]row, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	var rows []row
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "read csv")
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "branch_id") {
			continue
		}

		parsed, err := parseRow(rec)
		if err != nil {
			ln, _ := cr.FieldPos(0)
			return nil, errors.Wrapf(err, "line %d", ln)
		}
		rows = append(rows, parsed)
	}
}

func parseRow(rec []string) (row, error) {
	branch := strings.TrimSpace(rec[0])
	item := strings.TrimSpace(rec[1])
	if branch == "" || item == "" {
		return row{}, errors.New("branch_id and item_id are required")
	}
	label, err := tariff.ParseRateLabel(strings.TrimSpace(rec[2]))
	if err != nil {
		return row{}, err
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(rec[3]))
	if err != nil {
		return row{}, errors.Wrapf(err, "rate %q", rec[3])
	}
	if !tariff.Bounded(rate, tariff.MaxRate, tariff.MoneyPlaces) {
		return row{}, errors.Errorf("rate %s out of range", rec[3])
	}
	return row{
		branch: branch,
		rate:   tariff.SpecialRate{ItemID: item, Service: label, Rate: rate},
	}, nil
}

// merge groups rows by branch. For a repeated (branch, item, service) the
// last occurrence wins, across sheets in argument order.
func merge(sheets [][]row) map[string][]tariff.SpecialRate {
	latest := make(map[rateKey]decimal.Decimal)
	for _, rows := range sheets {
		for _, r := range rows {
			latest[rateKey{branch: r.branch, item: r.rate.ItemID, service: r.rate.Service}] = r.rate.Rate
		}
	}

	out := make(map[string][]tariff.SpecialRate)
	for k, v := range latest {
		out[k.branch] = append(out[k.branch], tariff.SpecialRate{ItemID: k.item, Service: k.service, Rate: v})
	}
	for _, rates := range out {
		sort.Slice(rates, func(i, j int) bool {
			if rates[i].ItemID != rates[j].ItemID {
				return rates[i].ItemID < rates[j].ItemID
			}
			return rates[i].Service < rates[j].Service
		})
	}
	return out
}
