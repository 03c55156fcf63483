// seed_portfolio.go — standalone script to seed a demo portfolio into
// Beacon via the API: companies, one period of channel metrics, and a
// cyclic supply-chain dependency ring.
//
// Usage:
//
//	go run scripts/seed_portfolio.go -api http://localhost:8700 -period 2024-02
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
)

type company struct {
	Name         string   `json:"name"`
	Industry     string   `json:"industry,omitempty"`
	Listed       bool     `json:"listed"`
	CreditGrade  string   `json:"credit_grade,omitempty"`
	StandalonePD *float64 `json:"standalone_pd,omitempty"`
}

type metrics struct {
	Transaction map[string]float64     `json:"transaction,omitempty"`
	Registry    map[string]int         `json:"public_registry,omitempty"`
	Market      map[string]interface{} `json:"market,omitempty"`
	News        map[string]interface{} `json:"news,omitempty"`
	Financial   map[string]float64     `json:"financial,omitempty"`
}

type edge struct {
	CompanyID       string  `json:"company_id"`
	PartnerID       string  `json:"partner_id"`
	DependencyRatio float64 `json:"dependency_ratio"`
	PaymentStatus   string  `json:"payment_status"`
	Period          string  `json:"period"`
}

type seed struct {
	company company
	metrics metrics
	// dependency on the next company in the ring
	ratio  float64
	status string
}

var portfolio = []seed{
	{
		company: company{Name: "Hanseatic Steel AG", Industry: "manufacturing", Listed: true, CreditGrade: "BBB"},
		metrics: metrics{
			Transaction: map[string]float64{"limit_utilization": 0.45, "payment_delay_days": 2, "deposit_outflow_rate": 0.05, "overdraft_count": 0},
			Registry:    map[string]int{"unresolved_total": 0, "unresolved_severe": 0},
			Market:      map[string]interface{}{"asset_value": 1200.0, "liabilities": 800.0, "expected_return": 0.06, "asset_volatility": 0.25, "horizon_years": 1.0, "cds_spread_bps": 140.0, "implied_pd": 0.02},
			News:        map[string]interface{}{"avg_sentiment": 0.1, "negative_ratio": 0.2, "article_count": 34},
			Financial:   map[string]float64{"leverage_z": 0.2, "liquidity_z": 0.4, "interest_coverage_z": 0.1, "operating_margin_z": 0.3, "asset_turnover_z": -0.1},
		},
		ratio: 0.3, status: "NORMAL",
	},
	{
		company: company{Name: "Nordwind Logistics GmbH", Industry: "transport", Listed: false, CreditGrade: "BB"},
		metrics: metrics{
			Transaction: map[string]float64{"limit_utilization": 0.7, "payment_delay_days": 9, "deposit_outflow_rate": 0.15, "overdraft_count": 1},
			Registry:    map[string]int{"unresolved_total": 1, "unresolved_severe": 0},
			News:        map[string]interface{}{"avg_sentiment": -0.2, "negative_ratio": 0.4, "article_count": 12},
			Financial:   map[string]float64{"leverage_z": -0.5, "liquidity_z": -0.3, "interest_coverage_z": -0.4, "operating_margin_z": 0.0, "asset_turnover_z": 0.2},
		},
		ratio: 0.5, status: "DELAYED",
	},
	{
		company: company{Name: "Baltika Components OY", Industry: "manufacturing", Listed: false, CreditGrade: "B"},
		metrics: metrics{
			Transaction: map[string]float64{"limit_utilization": 0.92, "payment_delay_days": 21, "deposit_outflow_rate": 0.35, "overdraft_count": 3},
			Registry:    map[string]int{"unresolved_total": 3, "unresolved_severe": 1},
			News:        map[string]interface{}{"avg_sentiment": -0.5, "negative_ratio": 0.7, "article_count": 8},
			Financial:   map[string]float64{"leverage_z": -1.2, "liquidity_z": -0.9, "interest_coverage_z": -1.1, "operating_margin_z": -0.6, "asset_turnover_z": -0.2},
		},
		ratio: 0.4, status: "DELINQUENT",
	},
	{
		company: company{Name: "Meridian Retail Group", Industry: "retail", Listed: true, CreditGrade: "A"},
		metrics: metrics{
			Transaction: map[string]float64{"limit_utilization": 0.25, "payment_delay_days": 0, "deposit_outflow_rate": 0.02, "overdraft_count": 0},
			Registry:    map[string]int{"unresolved_total": 0, "unresolved_severe": 0},
			Market:      map[string]interface{}{"distance_to_default": 4.2, "cds_spread_bps": 60.0, "implied_pd": 0.005},
			News:        map[string]interface{}{"avg_sentiment": 0.4, "negative_ratio": 0.1, "article_count": 51},
			Financial:   map[string]float64{"leverage_z": 0.8, "liquidity_z": 0.6, "interest_coverage_z": 0.9, "operating_margin_z": 0.5, "asset_turnover_z": 0.4},
		},
		ratio: 0.2, status: "NORMAL",
	},
}

func main() {
	apiURL := flag.String("api", "http://localhost:8700", "Beacon API base URL")
	period := flag.String("period", "2024-02", "evaluation period (YYYY-MM)")
	dryRun := flag.Bool("dry-run", false, "print payloads without posting")
	flag.Parse()

	ids := make([]string, len(portfolio))
	for i, s := range portfolio {
		if *dryRun {
			b, _ := json.MarshalIndent(s.company, "", "  ")
			fmt.Printf("company: %s\n", b)
			continue
		}
		var created struct {
			ID string `json:"id"`
		}
		if err := post(*apiURL+"/api/v1/companies", s.company, &created); err != nil {
			log.Fatalf("create company %s: %v", s.company.Name, err)
		}
		ids[i] = created.ID
		fmt.Printf("created %s (%s)\n", s.company.Name, created.ID)

		if err := put(fmt.Sprintf("%s/api/v1/companies/%s/metrics/%s", *apiURL, created.ID, *period), s.metrics); err != nil {
			log.Fatalf("seed metrics for %s: %v", s.company.Name, err)
		}
	}

	if *dryRun {
		return
	}

	// dependency ring: each company depends on the next, closing a cycle
	for i, s := range portfolio {
		e := edge{
			CompanyID:       ids[i],
			PartnerID:       ids[(i+1)%len(ids)],
			DependencyRatio: s.ratio,
			PaymentStatus:   s.status,
			Period:          *period,
		}
		if err := post(*apiURL+"/api/v1/edges", e, nil); err != nil {
			log.Fatalf("create edge from %s: %v", s.company.Name, err)
		}
	}
	fmt.Printf("seeded %d companies and %d edges for %s\n", len(portfolio), len(portfolio), *period)
}

func post(url string, payload, out interface{}) error {
	return send(http.MethodPost, url, payload, out)
}

func put(url string, payload interface{}) error {
	return send(http.MethodPut, url, payload, nil)
}

func send(method, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, url, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
