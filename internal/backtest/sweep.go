package backtest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/costs"
)

// Variant is one configuration in a parameter sweep
type Variant struct {
	Name   string
	Config Config
	Stages Stages
}

// SweepResult pairs a variant with its run
type SweepResult struct {
	Variant Variant
	Result  *Result
}

// Sweep runs independent variants over the same inputs concurrently
// ⭐ SSOT: 파라미터 스윕 병렬 실행
//
// Inputs are only read, so variants share them. Results come back in the
// order of variants. The first failing variant cancels the rest.
func (e *Engine) Sweep(ctx context.Context, in Inputs, variants []Variant, parallelism int) ([]SweepResult, error) {
	if parallelism < 1 {
		parallelism = 1
	}

	results := make([]SweepResult, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, v := range variants {
		g.Go(func() error {
			res, err := e.Run(gctx, v.Config, in, v.Stages)
			if err != nil {
				return fmt.Errorf("variant %s: %w", v.Name, err)
			}
			results[i] = SweepResult{Variant: v, Result: res}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// CostVariants copies a base configuration once per cost rate
func CostVariants(cfg Config, st Stages, bpsGrid []float64) ([]Variant, error) {
	variants := make([]Variant, 0, len(bpsGrid))
	for _, bps := range bpsGrid {
		model, err := costs.NewLinearTurnover(bps)
		if err != nil {
			return nil, err
		}
		vst := st
		vst.Cost = model
		variants = append(variants, Variant{
			Name:   fmt.Sprintf("cost_%gbps", bps),
			Config: cfg,
			Stages: vst,
		})
	}
	return variants, nil
}
