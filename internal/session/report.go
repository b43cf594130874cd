package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/efreitasn/exchangesim/internal/domain"
	"github.com/efreitasn/exchangesim/internal/sink"
)

// Report renders the closing summary of a session, one line per element.
func Report(stats *Stats) []string {
	lines := []string{
		fmt.Sprintf("=== Exchange closed at %s ===", stats.ClosedAt.Format("15:04:05")),
		fmt.Sprintf("Opened at: %s", stats.OpenedAt.Format("15:04:05")),
		fmt.Sprintf("Closed at: %s", stats.ClosedAt.Format("15:04:05")),
		fmt.Sprintf("Total orders generated: %d", stats.TotalGenerated),
		fmt.Sprintf("Orders accepted: %d", stats.Accepted),
		fmt.Sprintf("Trades executed: %d", stats.TradesExecuted),
		fmt.Sprintf("Pending orders: %d (queued %d, resting buys %d, resting sells %d)",
			stats.PendingCount(), len(stats.PendingInQueue), len(stats.RestingBuys), len(stats.RestingSells)),
	}
	if stats.StoppedEarly {
		lines = append(lines, "Session was stopped before all orders were generated.")
	}

	lines = append(lines, orderTable("Pending buy orders", stats.RestingBuys)...)
	lines = append(lines, orderTable("Pending sell orders", stats.RestingSells)...)
	if len(stats.PendingInQueue) > 0 {
		lines = append(lines, orderTable("Orders left in queue", stats.PendingInQueue)...)
	}

	lines = append(lines, "Simulation finished.")
	return lines
}

// EmitReport writes Report(stats) to out line by line.
func EmitReport(out sink.LogSink, stats *Stats) {
	for _, line := range Report(stats) {
		out.Emit(line)
	}
}

func orderTable(title string, orders []domain.Order) []string {
	if len(orders) == 0 {
		return []string{title + ": none"}
	}

	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"ID", "Side", "Symbol", "Price", "Qty", "Created"})
	table.SetAutoWrapText(false)
	for _, o := range orders {
		table.Append([]string{
			o.ID,
			string(o.Side),
			o.Symbol,
			strconv.FormatInt(o.Price, 10),
			strconv.FormatInt(o.Quantity, 10),
			o.CreatedAt.Format("15:04:05.000"),
		})
	}
	table.Render()

	lines := []string{fmt.Sprintf("%s (%d):", title, len(orders))}
	return append(lines, strings.Split(strings.TrimRight(b.String(), "\n"), "\n")...)
}
