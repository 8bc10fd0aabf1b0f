package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTokenRawConversions(t *testing.T) {
	usdt := Token{Symbol: "USDT", Decimals: 18}

	tests := []struct {
		name   string
		amount string
		raw    string
	}{
		{"whole", "50", "50000000000000000000"},
		{"fraction", "0.5", "500000000000000000"},
		{"zero", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tt.amount)
			if err != nil {
				t.Fatalf("parse amount: %v", err)
			}
			raw := usdt.ToRaw(amount)
			if raw.String() != tt.raw {
				t.Fatalf("ToRaw(%s) = %s, want %s", tt.amount, raw, tt.raw)
			}
			back := usdt.FromRaw(raw)
			if !back.Equal(amount) {
				t.Fatalf("FromRaw(ToRaw(%s)) = %s", tt.amount, back)
			}
		})
	}
}

func TestTokenToRawTruncatesSubUnit(t *testing.T) {
	small := Token{Symbol: "X", Decimals: 2}
	amount, _ := decimal.NewFromString("1.999")
	if got := small.ToRaw(amount); got.Cmp(big.NewInt(199)) != 0 {
		t.Fatalf("ToRaw(1.999) = %s, want 199", got)
	}
}

func TestTokenUnit(t *testing.T) {
	if got := (Token{Decimals: 6}).Unit(); got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("Unit() = %s, want 1000000", got)
	}
}

func TestSnapshotVenuesSortedAndAge(t *testing.T) {
	taken := time.Now().Add(-2 * time.Second)
	snap := PriceSnapshot{
		Prices: map[string]VenuePrice{
			"mdex":        {},
			"biswap":      {},
			"pancakeswap": {},
		},
		Taken: taken,
	}

	venues := snap.Venues()
	want := []string{"biswap", "mdex", "pancakeswap"}
	if len(venues) != len(want) {
		t.Fatalf("venues = %v, want %v", venues, want)
	}
	for i := range want {
		if venues[i] != want[i] {
			t.Fatalf("venues[%d] = %s, want %s", i, venues[i], want[i])
		}
	}

	if age := snap.Age(taken.Add(2 * time.Second)); age != 2*time.Second {
		t.Fatalf("Age = %s, want 2s", age)
	}
}

func TestReceiptFee(t *testing.T) {
	rcpt := Receipt{Status: 1, GasUsed: 100_000, EffectiveGasPrice: big.NewInt(5_000_000_000)}
	if !rcpt.Succeeded() {
		t.Fatalf("status 1 not treated as success")
	}
	if got := rcpt.Fee(); got.Cmp(big.NewInt(500_000_000_000_000)) != 0 {
		t.Fatalf("Fee = %s, want 500000000000000", got)
	}
}

func TestCycleResultProfitable(t *testing.T) {
	res := CycleResult{Profit: decimal.NewFromInt(1), State: CycleSettled}
	if !res.Profitable() {
		t.Fatalf("positive settled profit not profitable")
	}
	res.Profit = decimal.NewFromInt(-1)
	if res.Profitable() {
		t.Fatalf("negative profit reported profitable")
	}
}
