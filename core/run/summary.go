package run

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

var printer = message.NewPrinter(language.English)

// Summary renders the mix sentence of an allocation, e.g.
//
//	For Jul Summer, dispatch = Solar 30 kWh + Wind 20 kWh to meet 50 kWh demand.
//
// Only assets with a non-zero share are listed. Energies are truncated to
// whole kWh; the demand is rounded and grouped by thousands.
// An allocation with no used asset reads "dispatch = nothing".
func Summary(s model.Season, m time.Month, alloc *model.MeritOrderAllocation) string {
	parts := make([]string, 0, len(alloc.Entries))
	for _, e := range alloc.Entries {
		if e.EnergyKWh <= 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %d kWh", e.Asset, int64(math.Trunc(e.EnergyKWh))))
	}
	mix := strings.Join(parts, " + ")
	if mix == "" {
		mix = "nothing"
	}
	return printer.Sprintf("For %s %s, dispatch = %s to meet %.0f kWh demand.", model.MonthName(m), s, mix, alloc.DemandKWh)
}
