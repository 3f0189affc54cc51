package polymarket

import (
	"encoding/json"
	"testing"
)

func TestParseFloat(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
	}{
		{"0.65", fptr(0.65)},
		{"100", fptr(100)},
		{"", nil},
		{"abc", nil},
	}
	for _, tc := range cases {
		got := ParseFloat(tc.in)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("ParseFloat(%q) = %v, want nil", tc.in, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Errorf("ParseFloat(%q) = %v, want %v", tc.in, got, *tc.want)
		}
	}
}

func fptr(v float64) *float64 { return &v }

func TestFlexBool(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`"true"`, true},
		{`"false"`, false},
		{`"TRUE"`, true},
	}
	for _, tc := range cases {
		var b flexBool
		if err := json.Unmarshal([]byte(tc.in), &b); err != nil {
			t.Errorf("unmarshal %s: %v", tc.in, err)
			continue
		}
		if bool(b) != tc.want {
			t.Errorf("flexBool(%s) = %v, want %v", tc.in, b, tc.want)
		}
	}
}

func TestBalanceAmount(t *testing.T) {
	b := APIBalance{Balance: "123450000", Decimals: 6}
	got := b.Amount()
	if got == nil || *got != 123.45 {
		t.Errorf("Amount() = %v, want 123.45", got)
	}

	bad := APIBalance{Balance: "junk", Decimals: 6}
	if bad.Amount() != nil {
		t.Error("unparseable balance must yield nil")
	}

	whole := APIBalance{Balance: "7", Decimals: 0}
	if got := whole.Amount(); got == nil || *got != 7 {
		t.Errorf("Amount() = %v, want 7", got)
	}
}

func TestMarketToMarketInfo(t *testing.T) {
	m := APIMarket{
		ID:            "12345",
		ConditionID:   "0xcond",
		Question:      "Will X happen?",
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: `["0.65","0.35"]`,
		ClobTokenIDs:  `["111","222"]`,
		BestBid:       "0.64",
		BestAsk:       "0.66",
		Closed:        true,
	}

	info := m.ToMarketInfo()
	if info.ID != "0xcond" || info.Question != "Will X happen?" || !info.Closed {
		t.Errorf("info = %+v", info)
	}
	if len(info.Outcomes) != 2 || info.Outcomes[1] != "No" {
		t.Errorf("outcomes = %v", info.Outcomes)
	}
	if len(info.OutcomePrices) != 2 || info.OutcomePrices[0] != 0.65 {
		t.Errorf("prices = %v", info.OutcomePrices)
	}
	if len(info.TokenIDs) != 2 || info.TokenIDs[0] != "111" {
		t.Errorf("token ids = %v", info.TokenIDs)
	}
	if info.BestBid == nil || *info.BestBid != 0.64 || info.BestAsk == nil || *info.BestAsk != 0.66 {
		t.Errorf("bid/ask = %v/%v", info.BestBid, info.BestAsk)
	}
}

func TestMarketPricesPlainArray(t *testing.T) {
	m := APIMarket{OutcomePrices: `[0.7, 0.3]`}
	got := m.Prices()
	if len(got) != 2 || got[0] != 0.7 {
		t.Errorf("Prices() = %v", got)
	}
}

func TestMarketMalformedArrays(t *testing.T) {
	m := APIMarket{Outcomes: "not json", OutcomePrices: "", ClobTokenIDs: "{}"}
	if m.OutcomeLabels() != nil {
		t.Errorf("OutcomeLabels() = %v, want nil", m.OutcomeLabels())
	}
	if m.Prices() != nil {
		t.Errorf("Prices() = %v, want nil", m.Prices())
	}
	if m.TokenIDs() != nil {
		t.Errorf("TokenIDs() = %v, want nil", m.TokenIDs())
	}
}
