package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultUniverse is the built-in ticker list, grouped loosely by sector.
// Duplicates are tolerated here and removed on load.
var defaultUniverse = []string{
	// Mega cap tech
	"AAPL", "MSFT", "GOOGL", "AMZN", "META", "NVDA", "TSLA", "ORCL", "IBM", "ADBE",
	// Semiconductors
	"AMD", "INTC", "QCOM", "AVGO", "MU", "AMAT", "LRCX", "KLAC", "MRVL", "NXPI", "TXN", "ADI",
	// Large cap finance / banking
	"JPM", "BAC", "GS", "MS", "V", "MA", "AXP", "WFC", "C", "BLK", "SCHW", "COF",
	// Fintech
	"HOOD", "SOFI", "COIN", "UPST", "AFRM", "NU", "PYPL", "BILL",
	// Healthcare / pharma
	"JNJ", "PFE", "MRNA", "UNH", "CVS", "ABT", "LLY", "MRK", "BMY", "GILD",
	"AMGN", "REGN", "VRTX", "BIIB", "DXCM", "ISRG", "HCA", "CI", "HUM",
	// Consumer staples
	"WMT", "TGT", "COST", "MCD", "SBUX", "NKE", "PG", "KO", "PEP",
	"CL", "GIS", "HSY", "MO",
	// Consumer discretionary
	"HD", "LOW", "TJX", "BKNG", "MAR", "HLT", "F", "GM", "RIVN",
	"NIO", "LI", "XPEV", "CVNA",
	// Energy
	"XOM", "CVX", "OXY", "SLB", "COP", "EOG", "PSX", "VLO", "MPC", "HAL",
	// Crypto miners / data centers
	"IREN", "CORZ", "MARA", "CLSK", "RIOT", "HUT",
	// Industrials / defense
	"BA", "GE", "CAT", "HON", "LMT", "RTX", "NOC", "GD", "MMM", "DE", "ITW", "ETN",
	// Space
	"RKLB", "ASTS",
	// Media / telecom
	"DIS", "NFLX", "T", "VZ", "CMCSA", "SPOT", "TTWO", "EA", "LYV",
	// Cloud / software
	"PLTR", "CRM", "SNOW", "DDOG", "NET", "MDB", "ZS", "PANW", "CRWD",
	"NOW", "WDAY", "VEEV", "HUBS", "TEAM", "OKTA", "ZM",
	// REITs
	"O", "AMT", "PLD", "EQIX", "CCI", "WELL", "SPG",
	// Materials
	"LIN", "APD", "NEM", "FCX", "AA",
	// Transport / travel
	"UPS", "FDX", "DAL", "UAL", "AAL", "LUV", "UBER", "LYFT", "DASH",
	// Meme / high volatility
	"GME", "AMC",
	// Biotech movers
	"SRPT", "EXAS", "BEAM", "EDIT",
}

type universeFile struct {
	Tickers []string `yaml:"tickers"`
}

// loadUniverse returns the configured ticker universe: the YAML file at path
// when given, the built-in list otherwise. Order is preserved, duplicates
// dropped.
func loadUniverse(path string) ([]string, error) {
	tickers := defaultUniverse
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading universe file: %w", err)
		}
		var uf universeFile
		if err := yaml.Unmarshal(data, &uf); err != nil {
			return nil, fmt.Errorf("parsing universe file: %w", err)
		}
		if len(uf.Tickers) == 0 {
			return nil, fmt.Errorf("universe file %s lists no tickers", path)
		}
		tickers = uf.Tickers
	}
	return dedupe(tickers), nil
}

func dedupe(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
