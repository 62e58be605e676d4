package model

import "github.com/rotisserie/eris"

// StatementType is the closed set of financial statement classifications.
type StatementType uint8

const (
	StatementUnknown StatementType = iota
	StatementIncome
	StatementBalanceSheet
	StatementCashFlow
)

func (s StatementType) String() string {
	switch s {
	case StatementIncome:
		return "income_statement"
	case StatementBalanceSheet:
		return "balance_sheet"
	case StatementCashFlow:
		return "cash_flow"
	case StatementUnknown:
		return "unknown"
	}
	return "unknown"
}

// ParseStatementType maps the wire name back to a StatementType.
func ParseStatementType(s string) (StatementType, error) {
	switch s {
	case "income_statement":
		return StatementIncome, nil
	case "balance_sheet":
		return StatementBalanceSheet, nil
	case "cash_flow":
		return StatementCashFlow, nil
	case "unknown", "":
		return StatementUnknown, nil
	}
	return StatementUnknown, eris.Errorf("model: unknown statement type %q", s)
}

func (s StatementType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StatementType) UnmarshalText(text []byte) error {
	v, err := ParseStatementType(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// StatementSummary is the classification result for one table.
type StatementSummary struct {
	Type       StatementType      `json:"statement_type"`
	Confidence float64            `json:"confidence"`
	Fields     map[string]float64 `json:"summary"`
}

// Recognized reports whether the table matched a known statement shape.
func (s StatementSummary) Recognized() bool {
	return s.Type != StatementUnknown
}
