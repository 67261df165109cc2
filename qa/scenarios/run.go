package scenarios

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/WubeDegife/Microgrid-Optimization/core/dispatch"
	"github.com/WubeDegife/Microgrid-Optimization/core/meritorder"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"github.com/WubeDegife/Microgrid-Optimization/infra/logger"
)

// Check runs sc and returns every mismatch with its expectations.
func Check(ctx context.Context, sc *Scenario) ([]string, error) {
	var problems []string
	fail := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }
	assets := sc.Assets.ToModel()
	tol := sc.tol()

	if sc.Dispatch != nil {
		cfg := dispatch.DefaultConfig()
		if sc.Dispatch.Boundary != "" {
			cfg.Boundary = sc.Dispatch.Boundary
		}
		opt, err := dispatch.NewOptimizer(cfg, logger.NopLogger{})
		if err != nil {
			return nil, err
		}
		sol, err := opt.Optimize(ctx, sc.Dispatch.Input(assets))
		checkError(sc, err, fail)
		if err == nil {
			if sc.Expected.Objective != nil && !near(sol.Objective, *sc.Expected.Objective, tol) {
				fail("objective %.6f, want %.6f", sol.Objective, *sc.Expected.Objective)
			}
			for name, want := range sc.Expected.Series {
				got := sol.Series(model.Asset(name))
				if got == nil {
					fail("unknown series %q", name)
					continue
				}
				if len(got) != len(want) {
					fail("%s has %d steps, want %d", name, len(got), len(want))
					continue
				}
				for t := range want {
					if !near(got[t], want[t], tol) {
						fail("%s[%d] = %.6f, want %.6f", name, t, got[t], want[t])
					}
				}
			}
		}
	}

	if sc.Merit != nil {
		alloc, err := meritorder.NewEstimator(logger.NopLogger{}).Allocate(sc.Merit.DemandKWh, sc.Merit.ToSources())
		checkError(sc, err, fail)
		if err == nil {
			for a, want := range sc.Expected.Energy {
				e, ok := alloc.Entry(a)
				if !ok || !near(e.EnergyKWh, want, tol) {
					fail("%s energy %.6f, want %.6f", a, e.EnergyKWh, want)
				}
			}
			if sc.Expected.TotalCost != nil && !near(alloc.TotalCost.InexactFloat64(), *sc.Expected.TotalCost, tol) {
				fail("total cost %s, want %.6f", alloc.TotalCost, *sc.Expected.TotalCost)
			}
			if sc.Expected.UnmetKWh != nil && !near(alloc.UnmetKWh, *sc.Expected.UnmetKWh, tol) {
				fail("unmet %.6f, want %.6f", alloc.UnmetKWh, *sc.Expected.UnmetKWh)
			}
		}
	}
	return problems, nil
}

func checkError(sc *Scenario, err error, fail func(string, ...any)) {
	want := sc.Expected.Error
	got := dispatch.Outcome(err)
	switch {
	case want == "" && err != nil:
		fail("unexpected error: %v", err)
		return
	case want == "":
		return
	case err == nil:
		fail("expected %s error, got none", want)
		return
	case got != want && got != "solver_"+want:
		fail("error %v is %s, want %s", err, got, want)
		return
	}
	var ie *model.InfeasibleError
	if sc.Expected.Hour != nil && errors.As(err, &ie) && ie.Hour != *sc.Expected.Hour {
		fail("infeasible at hour %d, want %d", ie.Hour, *sc.Expected.Hour)
	}
}

// RunScenario reports every mismatch of sc on t.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	problems, err := Check(context.Background(), sc)
	if err != nil {
		t.Fatalf("scenario %s: %v", sc.Name, err)
	}
	for _, p := range problems {
		t.Errorf("scenario %s: %s", sc.Name, p)
	}
}
