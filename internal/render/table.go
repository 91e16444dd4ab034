package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"spot-price-panel/internal/pricing"
)

// WriteTable prints the snapshot as a terminal table: the current price
// header followed by the slot list, with the current slot marked.
func WriteTable(w io.Writer, state *pricing.PriceState) error {
	if !state.OK {
		msg := state.Err
		if msg == "" {
			msg = "no data"
		}
		_, err := fmt.Fprintf(w, "%s: ERROR %s\n", state.Source, msg)
		return err
	}

	fmt.Fprintf(w, "Current: %.2f %s/kWh  %s  (%s", state.CurrentPrice, state.Currency, state.CurrentTier, state.Source)
	if state.HasAverage {
		fmt.Fprintf(w, ", 72h avg %.2f", state.Average)
	}
	fmt.Fprintln(w, ")")

	if len(state.Slots) == 0 {
		return nil
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Starts At\tPrice\tTier\t")
	for i := range state.Slots {
		marker := ""
		if i == state.CurrentIndex {
			marker = "<--"
		}
		fmt.Fprintf(
			writer,
			"%s\t%.3f\t%s\t%s\n",
			sanitizeInline(state.Slots[i].StartsAt),
			state.Slots[i].Price,
			state.Slots[i].Tier,
			marker,
		)
	}
	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	return strings.ReplaceAll(cleaned, "\r", " ")
}
