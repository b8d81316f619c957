package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"binance-signal-monitor/internal/tradestore"
)

func main() {
	_ = godotenv.Load()

	dbPath := flag.String("db", envOr("STORE_PATH", "trades.db"), "path to the trade database")
	interval := flag.String("interval", "", "restrict the report to one interval")
	flag.Parse()

	store, err := tradestore.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer store.Close()

	fmt.Println(strings.Repeat("=", 72))
	fmt.Printf("PAPER TRADE ANALYSIS  %s\n", *dbPath)
	fmt.Println(strings.Repeat("=", 72))

	if *interval != "" {
		sum, err := store.SummaryForInterval(*interval)
		if err != nil {
			fmt.Fprintf(os.Stderr, "summary: %v\n", err)
			os.Exit(1)
		}
		printSummary(sum)
		return
	}

	overall, err := store.SummaryForInterval("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "summary: %v\n", err)
		os.Exit(1)
	}
	if overall.Trades == 0 {
		fmt.Println("no closed trades recorded")
		return
	}

	fmt.Println("\nOVERALL")
	printSummary(overall)

	byInterval, err := store.SummaryByInterval()
	if err != nil {
		fmt.Fprintf(os.Stderr, "summary by interval: %v\n", err)
		os.Exit(1)
	}
	for _, sum := range byInterval {
		fmt.Printf("\nINTERVAL %s\n", sum.Interval)
		printSummary(sum)
	}
}

func printSummary(sum *tradestore.Summary) {
	fmt.Printf("  trades: %d  winners: %d  win rate: %.1f%%\n",
		sum.Trades, sum.Winners, sum.WinRate)
	fmt.Printf("  total pnl: %+.3f  best: %+.3f  worst: %+.3f  commissions: %.3f\n",
		sum.TotalPnL, sum.BestPnL, sum.WorstPnL, sum.Commissions)
	fmt.Printf("  avg hold: %s\n", (time.Duration(sum.AvgDurationSec) * time.Second).String())

	if len(sum.BySymbol) == 0 {
		return
	}
	fmt.Println("  by symbol:")
	for _, sb := range sum.BySymbol {
		winRate := 0.0
		if sb.Trades > 0 {
			winRate = float64(sb.Winners) / float64(sb.Trades) * 100
		}
		fmt.Printf("    %-12s trades: %-4d win rate: %5.1f%%  pnl: %+.3f\n",
			sb.Symbol, sb.Trades, winRate, sb.TotalPnL)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
