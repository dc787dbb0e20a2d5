package domain

import (
	"errors"
	"strings"
)

// Sector is an industry category with its own model pair and feature schema.
type Sector string

const (
	SectorBanking    Sector = "banking"
	SectorIT         Sector = "it"
	SectorAuto       Sector = "auto"
	SectorPower      Sector = "power"
	SectorRealEstate Sector = "real_estate"
	SectorTelecom    Sector = "telecom"
	SectorEnergy     Sector = "energy"
	SectorMetals     Sector = "metals"
)

var ErrUnknownSector = errors.New("unknown sector")

// SupportedSectors lists all sectors in a stable order.
var SupportedSectors = []Sector{
	SectorBanking,
	SectorIT,
	SectorAuto,
	SectorPower,
	SectorRealEstate,
	SectorTelecom,
	SectorEnergy,
	SectorMetals,
}

// sectorFeatures holds the ordered feature names each sector's models were
// trained on. Position matters: vectors are fed to models positionally.
var sectorFeatures = map[Sector][]string{
	SectorBanking: {
		"NIM (%)",
		"Net Interest Income (₹ Cr)",
		"ROA (%)",
		"ROE (%)",
		"Gross NPA (%)",
		"Net NPA (%)",
		"Provision Coverage Ratio (%)",
		"CAR (%)",
		"CASA (%)",
		"P/B Ratio",
		"Cost-to-Income Ratio (%)",
		"Dividend Yield (%)",
	},
	SectorIT: {
		"EPS",
		"P/E Ratio",
		"ROE",
		"ROCE",
		"Debt-to-Equity Ratio",
		"Current Ratio",
		"Revenue Growth Rate (%)",
		"Operating Margin (%)",
		"FCF Yield (%)",
		"Attrition Rate (%)",
		"Price-to-Sales Ratio",
		"Dividend Yield (%)",
	},
	SectorAuto: {
		"Volume Growth (%)",
		"EPS",
		"Operating Margin (%)",
		"ROCE (%)",
		"ROE (%)",
		"Asset Turnover Ratio",
		"Inventory Turnover",
		"Debt-to-Equity Ratio",
		"P/E Ratio",
		"Net Profit Margin (%)",
	},
	SectorPower: {
		"Plant Load Factor (PLF %)",
		"EBITDA Margin (%)",
		"Revenue_per_MW (₹ Cr)",
		"ROE (%)",
		"Debt-to-Equity Ratio",
		"Interest Coverage Ratio",
		"Operating Cash Flow (₹ Cr)",
		"Dividend Yield (%)",
		"P/B Ratio",
	},
	SectorRealEstate: {
		"Net Debt-to-Equity Ratio",
		"Interest Coverage Ratio",
		"EBITDA Margin (%)",
		"Project Completion Ratio (%)",
		"Sales/Booking Growth (%)",
		"Operating Cash Flow (₹ Cr)",
		"P/B Ratio",
		"ROCE (%)",
		"ROE (%)",
	},
	SectorTelecom: {
		"ARPU (₹)",
		"Subscriber Growth (%)",
		"EBITDA Margin (%)",
		"Debt-to-Equity Ratio",
		"Capex-to-Sales Ratio (%)",
		"Churn Rate (%)",
		"Operating Margin (%)",
		"ROE (%)",
		"Net Profit Margin (%)",
	},
	SectorEnergy: {
		"EBITDA Margin (%)",
		"Net Profit Margin (%)",
		"ROE (%)",
		"Debt-to-Equity Ratio",
		"Reserves_to_Production Ratio",
		"Dividend Yield (%)",
		"Operational Efficiency Index",
		"P/E Ratio",
		"ROCE (%)",
	},
	SectorMetals: {
		"EBITDA_per_Ton",
		"Operating Margin (%)",
		"ROCE (%)",
		"Volume Growth (%)",
		"Debt-to-Equity Ratio",
		"Reserve Life Index",
		"Dividend Payout Ratio (%)",
		"Net Profit Margin (%)",
		"EPS",
	},
}

// artifactDirs maps sectors to their model directory names on disk.
var artifactDirs = map[Sector]string{
	SectorRealEstate: "realestate",
}

// ParseSector matches a raw path segment against the known sectors. Matching is
// exact: "Banking" is not a sector.
func ParseSector(raw string) (Sector, error) {
	s := Sector(raw)
	if _, ok := sectorFeatures[s]; !ok {
		return "", ErrUnknownSector
	}
	return s, nil
}

func (s Sector) IsValid() bool {
	_, ok := sectorFeatures[s]
	return ok
}

func (s Sector) String() string {
	return string(s)
}

// Features returns a copy of the sector's ordered feature list, or nil for an
// unknown sector.
func (s Sector) Features() []string {
	names, ok := sectorFeatures[s]
	if !ok {
		return nil
	}
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// FeatureCount returns the length of the sector's feature vector.
func (s Sector) FeatureCount() int {
	return len(sectorFeatures[s])
}

// ArtifactDir is the directory name holding the sector's model files.
func (s Sector) ArtifactDir() string {
	if dir, ok := artifactDirs[s]; ok {
		return dir
	}
	return strings.ToLower(string(s))
}
