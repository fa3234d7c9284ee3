package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rustyeddy/portmon/market"
)

var positionHeader = []string{"instrument", "quantity", "avg_cost", "market_price", "market_value", "unrealized_pnl", "weight"}

// WritePositionsCSV writes positions with a header row.
func WritePositionsCSV(w io.Writer, positions []market.Position) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(positionHeader); err != nil {
		return err
	}
	for _, p := range positions {
		if err := cw.Write([]string{
			p.Instrument,
			f(p.Quantity),
			f(p.AvgCost),
			f(p.MarketPrice),
			f(p.MarketValue),
			f(p.UnrealizedPnL),
			f(p.Weight),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SavePositionsCSV writes positions to path.
func SavePositionsCSV(path string, positions []market.Position) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WritePositionsCSV(fh, positions); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
