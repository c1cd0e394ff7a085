package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	"VolunTrack-Agent/sdk/go/voluntrack"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/quote", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(voluntrack.Quote{OutAmount: "140000000", IsMock: true})
	})
	mux.HandleFunc("/api/v1/balance", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(voluntrack.Balance{
			Address:   "DonationWallet111111111111111111111111111111",
			Lamports:  1_000_000_000,
			Available: true,
		})
	})
	mux.HandleFunc("/api/v1/activity", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(voluntrack.Activity{
			Address: "DonationWallet111111111111111111111111111111",
			Records: []voluntrack.ActivityRecord{{Signature: "5KtPn1demo", Timestamp: 1700000000}},
		})
	})
	mux.HandleFunc("/api/v1/report", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(voluntrack.Report{
			ID:      "report-demo",
			Summary: "Казначейство отримало одну транзакцію.",
			Period:  "Останні транзакції",
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := voluntrack.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}
	ctx := context.Background()

	balance, err := client.GetBalance(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("balance: %d lamports (available=%v)\n", balance.Lamports, balance.Available)

	activity, err := client.GetActivity(ctx, 5)
	if err != nil {
		panic(err)
	}
	fmt.Printf("activity: %d records\n", len(activity.Records))

	quote, err := client.GetQuote(ctx, "So11111111111111111111111111111111111111112",
		"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", int64(balance.Lamports))
	if err != nil {
		panic(err)
	}
	fmt.Printf("quote: %s (mock=%v)\n", quote.OutAmount, quote.IsMock)

	report, err := client.GenerateReport(ctx, "")
	if err != nil {
		panic(err)
	}
	fmt.Printf("report %s: %s\n", report.ID, report.Summary)
}
