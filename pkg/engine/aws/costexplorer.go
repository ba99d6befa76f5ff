package aws

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"github.com/DrSkyle/spendscope/pkg/engine"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
)

// costMetric is the Cost Explorer metric every query reads.
const costMetric = "UnblendedCost"

const (
	dateLayout = "2006-01-02"
	hourLayout = "2006-01-02T15:04:05Z"
)

// CostExplorerAPI is the read-only Cost Explorer surface.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// CostExplorerSource implements engine.CostSource.
type CostExplorerSource struct {
	Client CostExplorerAPI
	Logger *slog.Logger
}

func NewCostExplorerSource(cfg aws.Config, logger *slog.Logger) *CostExplorerSource {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CostExplorerSource{
		Client: costexplorer.NewFromConfig(cfg),
		Logger: logger,
	}
}

// FetchCostRecords pages through GetCostAndUsage for the window. A window that
// is empty once formatted returns no records without calling the API.
func (s *CostExplorerSource) FetchCostRecords(ctx context.Context, w engine.Window, g analytics.Granularity, gb *engine.GroupBy) ([]analytics.CostRecord, error) {
	start, end := formatPeriod(w, g)
	if start >= end {
		return nil, nil
	}

	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod:  &types.DateInterval{Start: aws.String(start), End: aws.String(end)},
		Granularity: types.Granularity(g),
		Metrics:     []string{costMetric},
	}
	if gb != nil {
		input.GroupBy = []types.GroupDefinition{{
			Type: types.GroupDefinitionType(gb.Type),
			Key:  aws.String(gb.Key),
		}}
	}

	var records []analytics.CostRecord
	for {
		out, err := s.Client.GetCostAndUsage(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to get cost and usage: %w", err)
		}
		for _, r := range out.ResultsByTime {
			records = append(records, toCostRecord(r, gb))
		}
		if aws.ToString(out.NextPageToken) == "" {
			break
		}
		input.NextPageToken = out.NextPageToken
	}

	s.Logger.Debug("Cost records fetched", "start", start, "end", end, "granularity", g, "records", len(records))
	return records, nil
}

// formatPeriod renders the window the way Cost Explorer expects for g.
func formatPeriod(w engine.Window, g analytics.Granularity) (string, string) {
	start, end := w.Start.UTC(), w.End.UTC()
	if g == analytics.GranularityHourly {
		return start.Truncate(time.Hour).Format(hourLayout), end.Truncate(time.Hour).Format(hourLayout)
	}
	return start.Format(dateLayout), end.Format(dateLayout)
}

func toCostRecord(r types.ResultByTime, gb *engine.GroupBy) analytics.CostRecord {
	rec := analytics.CostRecord{}
	if r.TimePeriod != nil {
		rec.Period = analytics.Period{
			Start: aws.ToString(r.TimePeriod.Start),
			End:   aws.ToString(r.TimePeriod.End),
		}
	}
	if m, ok := r.Total[costMetric]; ok {
		rec.Total = m.Amount
	}
	for _, grp := range r.Groups {
		amount := grp.Metrics[costMetric].Amount
		rec.Groups = append(rec.Groups, analytics.GroupAmount{
			Keys:   groupKeys(grp.Keys, gb),
			Amount: amount,
		})
	}
	return rec
}

// groupKeys strips the "key$" prefix Cost Explorer puts on tag values.
// An untagged line comes back as "key$" and becomes an empty key.
func groupKeys(keys []string, gb *engine.GroupBy) []string {
	if gb == nil || gb.Type != engine.GroupTag {
		return keys
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = strings.TrimPrefix(k, gb.Key+"$")
	}
	return out
}
